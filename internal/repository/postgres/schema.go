package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"eventstream/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the tables used by the chat log and the registration ledger.
// Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// storageErr marks err as a storage failure while keeping the driver error matchable.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageFailure, err)
}
