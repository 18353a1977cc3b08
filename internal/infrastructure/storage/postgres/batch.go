package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// BatchQuery represents a query in a batch.
type BatchQuery struct {
	SQL  string
	Args []any
}

// QueryOf renders a squirrel builder into a BatchQuery.
func QueryOf(b squirrel.Sqlizer) (BatchQuery, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return BatchQuery{}, fmt.Errorf("build batch query: %w", err)
	}
	return BatchQuery{SQL: sql, Args: args}, nil
}

// ExecuteBatch executes multiple queries in a single round-trip.
// It must run inside a transaction.
func (m *TxManager) ExecuteBatch(ctx context.Context, queries []BatchQuery) error {
	tx := m.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("ExecuteBatch requires transaction context")
	}
	if len(queries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range queries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch query failed: %w", err)
		}
	}
	return nil
}
