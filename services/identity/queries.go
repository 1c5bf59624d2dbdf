package identity

const (
	insertUserQuery = `
		INSERT INTO users (id, email, password_hash, confirmed_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	// profiles are created with the identity and never on their own
	insertProfileQuery = `
		INSERT INTO profiles (user_id, first_name, last_name)
		VALUES ($1, $2, $3)
	`

	insertConfirmationQuery = `
		INSERT INTO confirmations (token, user_id, redirect_target, expires_at)
		VALUES ($1, $2, $3, $4)
	`

	selectUserByEmailQuery = `
		SELECT id, email, password_hash, confirmed_at, created_at
		FROM users
		WHERE email = $1
	`

	selectUserByIDQuery = `
		SELECT id, email, confirmed_at, created_at
		FROM users
		WHERE id = $1
	`

	selectConfirmationQuery = `
		SELECT user_id, redirect_target, expires_at
		FROM confirmations
		WHERE token = $1
		FOR UPDATE
	`

	confirmUserQuery = `
		UPDATE users
		SET confirmed_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND confirmed_at IS NULL
	`

	deleteConfirmationQuery = `DELETE FROM confirmations WHERE token = $1`
)
