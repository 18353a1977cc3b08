package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"sheetstock/pkg/logger"
)

//go:embed schema.sql
var schema string

// Migrate creates the tables when they do not exist. The schema is
// idempotent, so it runs on every start.
func Migrate(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info(ctx, "database schema applied")
	return nil
}
