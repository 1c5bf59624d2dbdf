package persona

const (
	selectProfileQuery = `
		SELECT user_id, first_name, last_name, agent_id, agent_link, updated_at
		FROM profiles
		WHERE user_id = $1
	`

	linkProfileQuery = `
		UPDATE profiles
		SET agent_id = $1,
			agent_link = $2,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $3
	`

	updateProfileNamesQuery = `
		UPDATE profiles
		SET first_name = $1,
			last_name = $2,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $3
		RETURNING user_id, first_name, last_name, agent_id, agent_link, updated_at
	`

	insertPersonaQuery = `
		INSERT INTO personas (
			id, user_id, is_public, api_key,
			agent_id, conversation_link, avatar_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	selectOwnPersonaQuery = `
		SELECT id, user_id, is_public, agent_id, conversation_link, avatar_url, created_at, updated_at
		FROM personas
		WHERE user_id = $1
	`

	selectOwnPersonaByIDQuery = `
		SELECT id, user_id, is_public, agent_id, conversation_link, avatar_url, created_at, updated_at
		FROM personas
		WHERE id = $1 AND user_id = $2
	`

	// a repeated toggle to the same value touches no row
	setVisibilityQuery = `
		UPDATE personas
		SET is_public = $1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND user_id = $3 AND is_public IS DISTINCT FROM $1
	`

	deletePersonaQuery = `DELETE FROM personas WHERE user_id = $1 RETURNING id`

	selectPublicPersonasQuery = `
		SELECT id, avatar_url, agent_id
		FROM personas
		WHERE is_public = true AND agent_id IS NOT NULL
		ORDER BY created_at DESC
	`

	selectPublicPersonaQuery = `
		SELECT id, avatar_url, agent_id
		FROM personas
		WHERE id = $1 AND is_public = true AND agent_id IS NOT NULL
	`

	reconcileProfileLinksQuery = `
		UPDATE profiles p
		SET agent_id = ps.agent_id,
			agent_link = ps.conversation_link,
			updated_at = CURRENT_TIMESTAMP
		FROM personas ps
		WHERE ps.user_id = p.user_id
			AND ps.agent_id IS NOT NULL
			AND p.agent_id IS NULL
	`
)
