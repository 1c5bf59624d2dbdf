package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PgLedger records issued tokens in the tokens table so sign-out can
// revoke them before they expire.
type PgLedger struct {
	db *sql.DB
}

func NewPgLedger(db *sql.DB) *PgLedger {
	return &PgLedger{db: db}
}

func (l *PgLedger) Store(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

func (l *PgLedger) Exists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tokens WHERE token = $1 AND expires_at > CURRENT_TIMESTAMP
		)
	`, token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check token: %w", err)
	}
	return exists, nil
}

func (l *PgLedger) Revoke(ctx context.Context, token string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
