package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Scope selects which row-level security policies apply to a transaction.
// The policies in schema.sql read app.user_id and app.role.
type Scope struct {
	UserID  string
	Service bool
}

// Owner scopes a transaction to one identity.
func Owner(userID string) Scope { return Scope{UserID: userID} }

// Anonymous sees only rows the public policies allow.
func Anonymous() Scope { return Scope{} }

// Service bypasses ownership; used by maintenance jobs only.
func Service() Scope { return Scope{Service: true} }

func (s Scope) role() string {
	if s.Service {
		return "service"
	}
	return ""
}

// SetScopeQuery applies a Scope for the rest of the current transaction.
const SetScopeQuery = `SELECT set_config('app.user_id', $1, true), set_config('app.role', $2, true)`

// InTx runs fn in a transaction with scope applied. fn's error rolls back.
func InTx(ctx context.Context, db *sql.DB, scope Scope, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, SetScopeQuery, scope.UserID, scope.role()); err != nil {
		return fmt.Errorf("apply scope: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
