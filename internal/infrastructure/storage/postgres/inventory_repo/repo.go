// Package inventory_repo is the PostgreSQL implementation of
// inventory.Repository. FIFO reads lock batch rows with FOR UPDATE when the
// caller asks for it.
package inventory_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/core/id"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/infrastructure/storage/postgres"
)

const (
	tableSheets    = "sheets"
	tableBatches   = "batches"
	tableMovements = "stock_movements"
)

var (
	sheetCols    = postgres.ExtractDBColumns[inventory.Sheet]()
	batchCols    = postgres.ExtractDBColumns[inventory.Batch]()
	movementCols = postgres.ExtractDBColumns[inventory.Movement]()
)

// Repo implements inventory.Repository.
type Repo struct {
	txm *postgres.TxManager
}

var _ inventory.Repository = (*Repo)(nil)

// New creates the repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm}
}

func (r *Repo) exec(ctx context.Context, op string, q squirrel.Sqlizer) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s: %w", op, err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.MapError(op, err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repo) CreateSheet(ctx context.Context, sheet *inventory.Sheet) error {
	q := postgres.Builder().Insert(tableSheets).SetMap(postgres.StructToMap(sheet))
	_, err := r.exec(ctx, "insert sheet", q)
	return err
}

func (r *Repo) GetSheet(ctx context.Context, sheetID id.ID) (*inventory.Sheet, error) {
	sheet, err := r.findSheet(ctx, squirrel.Eq{"id": sheetID})
	if err != nil {
		return nil, err
	}
	if sheet == nil {
		return nil, apperror.NewSheetNotFound(sheetID)
	}
	return sheet, nil
}

func (r *Repo) FindSheetByCode(ctx context.Context, code string) (*inventory.Sheet, error) {
	return r.findSheet(ctx, squirrel.Eq{"code": code})
}

func (r *Repo) findSheet(ctx context.Context, where squirrel.Sqlizer) (*inventory.Sheet, error) {
	sql, args, err := postgres.Builder().Select(sheetCols...).From(tableSheets).Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var sheet inventory.Sheet
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &sheet, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sheet: %w", err)
	}
	return &sheet, nil
}

// listSheetsQuery aggregates available stock per sheet. Only batches with
// stock left count towards batch_count.
func listSheetsQuery(filter inventory.SheetFilter) squirrel.SelectBuilder {
	cols := make([]string, 0, len(sheetCols)+2)
	for _, c := range sheetCols {
		cols = append(cols, "s."+c)
	}
	cols = append(cols,
		"COALESCE(SUM(b.quantity_remaining), 0) AS available",
		"COUNT(b.id) FILTER (WHERE b.quantity_remaining > 0) AS batch_count",
	)

	q := postgres.Builder().
		Select(cols...).
		From(tableSheets + " s").
		LeftJoin(tableBatches + " b ON b.sheet_id = s.id").
		GroupBy("s.id").
		OrderBy("s.code")

	if filter.MetalType != "" {
		q = q.Where("upper(s.metal_type) = ?", strings.ToUpper(filter.MetalType))
	}
	if filter.ExcludeRemnants {
		q = q.Where(squirrel.Eq{"s.is_remnant": false})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"s.code": "%" + filter.Search + "%"})
	}
	if filter.OnlyAvailable {
		q = q.Having("COALESCE(SUM(b.quantity_remaining), 0) > 0")
	}
	return q
}

func (r *Repo) ListSheets(ctx context.Context, filter inventory.SheetFilter) ([]inventory.SheetStock, error) {
	sql, args, err := listSheetsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []inventory.SheetStock
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	return out, nil
}

func (r *Repo) CreateBatch(ctx context.Context, batch *inventory.Batch) error {
	q := postgres.Builder().Insert(tableBatches).SetMap(postgres.StructToMap(batch))
	_, err := r.exec(ctx, "insert batch", q)
	return err
}

func (r *Repo) GetBatch(ctx context.Context, batchID id.ID, forUpdate bool) (*inventory.Batch, error) {
	q := postgres.Builder().Select(batchCols...).From(tableBatches).Where(squirrel.Eq{"id": batchID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var b inventory.Batch
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewBatchNotFound(batchID)
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return &b, nil
}

// listBatchesQuery orders by (received_date, id), the FIFO order.
func listBatchesQuery(filter inventory.BatchFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(batchCols...).
		From(tableBatches).
		OrderBy("received_date", "id")
	if filter.SheetID != nil {
		q = q.Where(squirrel.Eq{"sheet_id": *filter.SheetID})
	}
	if filter.OnlyAvailable {
		q = q.Where(squirrel.Gt{"quantity_remaining": 0})
	}
	if filter.ReceivedBefore != nil {
		q = q.Where(squirrel.Lt{"received_date": *filter.ReceivedBefore})
	}
	if filter.ForUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

func (r *Repo) ListBatches(ctx context.Context, filter inventory.BatchFilter) ([]inventory.Batch, error) {
	sql, args, err := listBatchesQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []inventory.Batch
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return out, nil
}

func (r *Repo) UpdateBatchRemaining(ctx context.Context, batchID id.ID, remaining types.Quantity) error {
	if remaining < 0 {
		return apperror.NewInvalidQuantity(batchID, remaining.Float64(), 0)
	}
	q := postgres.Builder().
		Update(tableBatches).
		Set("quantity_remaining", remaining).
		Where(squirrel.Eq{"id": batchID}).
		Where(squirrel.GtOrEq{"quantity_original": remaining})
	n, err := r.exec(ctx, "update batch remaining", q)
	if err != nil {
		return err
	}
	if n == 0 {
		b, err := r.GetBatch(ctx, batchID, false)
		if err != nil {
			return err
		}
		return apperror.NewInvalidQuantity(batchID, remaining.Float64(), b.QuantityRemaining.Float64())
	}
	return nil
}

func (r *Repo) DeleteBatch(ctx context.Context, batchID id.ID) error {
	n, err := r.exec(ctx, "delete batch", postgres.Builder().Delete(tableBatches).Where(squirrel.Eq{"id": batchID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewBatchNotFound(batchID)
	}
	return nil
}

func (r *Repo) DeleteEmptyBatches(ctx context.Context) (int, error) {
	q := postgres.Builder().
		Delete(tableBatches).
		Where(squirrel.Eq{"quantity_original": 0, "quantity_remaining": 0})
	n, err := r.exec(ctx, "delete empty batches", q)
	return int(n), err
}

func (r *Repo) AppendMovement(ctx context.Context, m *inventory.Movement) error {
	q := postgres.Builder().Insert(tableMovements).SetMap(postgres.StructToMap(m))
	_, err := r.exec(ctx, "insert movement", q)
	return err
}

func listMovementsQuery(filter inventory.MovementFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(movementCols...).
		From(tableMovements).
		OrderBy("seq")
	if filter.BatchID != nil {
		q = q.Where(squirrel.Eq{"batch_id": *filter.BatchID})
	}
	if filter.SheetID != nil {
		q = q.Where(squirrel.Eq{"sheet_id": *filter.SheetID})
	}
	if filter.ReferenceID != nil {
		q = q.Where(squirrel.Eq{"reference_id": *filter.ReferenceID})
	}
	if filter.Reason != "" {
		q = q.Where(squirrel.Eq{"reason": filter.Reason})
	}
	return q
}

func (r *Repo) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.Movement, error) {
	sql, args, err := listMovementsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []inventory.Movement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return out, nil
}
