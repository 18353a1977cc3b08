// Package maintenance_repo implements the bulk maintenance store and the
// document number sequencer on PostgreSQL.
package maintenance_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"

	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/domain/ledger"
	"sheetstock/internal/domain/maintenance"
	"sheetstock/internal/domain/sales"
	"sheetstock/internal/infrastructure/storage/postgres"
	"sheetstock/internal/infrastructure/storage/postgres/sales_repo"
	"sheetstock/pkg/numerator"
)

var (
	_ maintenance.Store   = (*Repo)(nil)
	_ numerator.Sequencer = (*Repo)(nil)
)

// Repo implements maintenance.Store and numerator.Sequencer.
type Repo struct {
	txm   *postgres.TxManager
	sales *sales_repo.Repo
}

// New creates the repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm, sales: sales_repo.New(txm)}
}

const statsQuery = `SELECT
	(SELECT count(*) FROM sheets)                AS sheets,
	(SELECT count(*) FROM batches)               AS batches,
	(SELECT count(*) FROM stock_movements)       AS movements,
	(SELECT count(*) FROM parties)               AS parties,
	(SELECT count(*) FROM ledger_transactions)   AS transactions,
	(SELECT count(*) FROM sales)                 AS sales,
	(SELECT count(*) FROM sale_items)            AS sale_items`

type statsRow struct {
	Sheets       int `db:"sheets"`
	Batches      int `db:"batches"`
	Movements    int `db:"movements"`
	Parties      int `db:"parties"`
	Transactions int `db:"transactions"`
	Sales        int `db:"sales"`
	SaleItems    int `db:"sale_items"`
}

func (r *Repo) Stats(ctx context.Context) (maintenance.Stats, error) {
	var row statsRow
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, statsQuery); err != nil {
		return maintenance.Stats{}, fmt.Errorf("count rows: %w", err)
	}
	return maintenance.Stats(row), nil
}

func selectAll[T any](table, orderBy string) string {
	return "SELECT " + strings.Join(postgres.ExtractDBColumns[T](), ", ") + " FROM " + table + " ORDER BY " + orderBy
}

// Dump reads every table inside one read-only transaction, so the image is
// consistent.
func (r *Repo) Dump(ctx context.Context) (*maintenance.Snapshot, error) {
	snap := &maintenance.Snapshot{Version: maintenance.FormatVersion, Sequences: map[string]int64{}}
	err := r.txm.ReadOnly(ctx, func(ctx context.Context) error {
		q := r.txm.GetQuerier(ctx)
		steps := []struct {
			dst any
			sql string
		}{
			{&snap.Sheets, selectAll[inventory.Sheet]("sheets", "id")},
			{&snap.Batches, selectAll[inventory.Batch]("batches", "received_date, id")},
			{&snap.Movements, selectAll[inventory.Movement]("stock_movements", "seq")},
			{&snap.Parties, selectAll[ledger.Party]("parties", "id")},
			{&snap.Transactions, selectAll[ledger.Transaction]("ledger_transactions", "date, id")},
		}
		for _, s := range steps {
			if err := pgxscan.Select(ctx, q, s.dst, s.sql); err != nil {
				return fmt.Errorf("dump: %w", err)
			}
		}

		list, err := r.sales.ListSales(ctx, sales.Filter{})
		if err != nil {
			return err
		}
		snap.Sales = list

		var seqs []struct {
			Key   string `db:"key"`
			Value int64  `db:"value"`
		}
		if err := pgxscan.Select(ctx, q, &seqs, "SELECT key, value FROM sequences"); err != nil {
			return fmt.Errorf("dump sequences: %w", err)
		}
		for _, s := range seqs {
			snap.Sequences[s.Key] = s.Value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// clearStatements removes operational history in dependency order.
var clearStatements = []string{
	"DELETE FROM sale_item_allocations",
	"DELETE FROM sale_items",
	"DELETE FROM sales",
	"DELETE FROM ledger_transactions",
	"DELETE FROM stock_movements",
	"DELETE FROM batches",
	"DELETE FROM sequences",
	"UPDATE parties SET balance = 0, updated_at = now()",
}

var resetStatements = append(append([]string(nil), clearStatements[:7]...),
	"DELETE FROM sheets",
	"DELETE FROM parties",
)

func (r *Repo) run(ctx context.Context, statements []string) error {
	queries := make([]postgres.BatchQuery, len(statements))
	for i, s := range statements {
		queries[i] = postgres.BatchQuery{SQL: s}
	}
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return r.txm.ExecuteBatch(ctx, queries)
	})
}

func (r *Repo) ClearTransactional(ctx context.Context) error {
	return r.run(ctx, clearStatements)
}

func (r *Repo) ResetAll(ctx context.Context) error {
	return r.run(ctx, resetStatements)
}

// NextValue bumps the counter under the row lock taken by the upsert, so
// inside a sale transaction numbers stay gapless.
func (r *Repo) NextValue(ctx context.Context, key string, increment int64) (int64, error) {
	var v int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx,
		`INSERT INTO sequences (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = sequences.value + EXCLUDED.value
		 RETURNING value`, key, increment).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("next sequence value %s: %w", key, err)
	}
	return v, nil
}
