// Package sales_repo is the PostgreSQL implementation of sales.Repository.
// A sale spans three tables: sales, sale_items and sale_item_allocations.
package sales_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/core/id"
	"sheetstock/internal/domain/sales"
	"sheetstock/internal/infrastructure/storage/postgres"
)

const (
	tableSales       = "sales"
	tableItems       = "sale_items"
	tableAllocations = "sale_item_allocations"
)

var (
	saleCols = postgres.ExtractDBColumns[sales.Sale]()
	itemCols = postgres.ExtractDBColumns[sales.SaleItem]()
)

// allocationRow is an ItemAllocation keyed to its line.
type allocationRow struct {
	ItemID   id.ID `db:"item_id"`
	Position int   `db:"position"`
	sales.ItemAllocation
}

// Repo implements sales.Repository.
type Repo struct {
	txm *postgres.TxManager
}

var _ sales.Repository = (*Repo)(nil)

// New creates the repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm}
}

// insertQueries renders the sale, its lines and their allocations.
func insertQueries(sale *sales.Sale) ([]postgres.BatchQuery, error) {
	b := postgres.Builder()
	queries := make([]postgres.BatchQuery, 0, 1+len(sale.Items)*2)

	q, err := postgres.QueryOf(b.Insert(tableSales).SetMap(postgres.StructToMap(sale)))
	if err != nil {
		return nil, err
	}
	queries = append(queries, q)

	for i := range sale.Items {
		it := &sale.Items[i]
		q, err := postgres.QueryOf(b.Insert(tableItems).SetMap(postgres.StructToMap(it)))
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)

		if len(it.Allocations) == 0 {
			continue
		}
		ins := b.Insert(tableAllocations).Columns("item_id", "position", "batch_id", "quantity", "unit_cost", "cost_known")
		for pos, a := range it.Allocations {
			ins = ins.Values(it.ID, pos, a.BatchID, a.Quantity, a.UnitCost, a.CostKnown)
		}
		q, err = postgres.QueryOf(ins)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, nil
}

// CreateSale must run inside the sale's transaction.
func (r *Repo) CreateSale(ctx context.Context, sale *sales.Sale) error {
	queries, err := insertQueries(sale)
	if err != nil {
		return err
	}
	if err := r.txm.ExecuteBatch(ctx, queries); err != nil {
		return postgres.MapError("insert sale", err)
	}
	return nil
}

func (r *Repo) GetSale(ctx context.Context, saleID id.ID) (*sales.Sale, error) {
	sql, args, err := postgres.Builder().Select(saleCols...).From(tableSales).Where(squirrel.Eq{"id": saleID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var sale sales.Sale
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &sale, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewSaleNotFound(saleID)
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}

	list := []sales.Sale{sale}
	if err := r.loadItems(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func listSalesQuery(filter sales.Filter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(saleCols...).From(tableSales).OrderBy("date", "id")
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.To})
	}
	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	return q
}

func (r *Repo) ListSales(ctx context.Context, filter sales.Filter) ([]sales.Sale, error) {
	sql, args, err := listSalesQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []sales.Sale
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	if err := r.loadItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadItems fills Items and their Allocations for list in two queries.
func (r *Repo) loadItems(ctx context.Context, list []sales.Sale) error {
	if len(list) == 0 {
		return nil
	}
	saleIDs := make([]id.ID, len(list))
	index := make(map[id.ID]int, len(list))
	for i := range list {
		saleIDs[i] = list[i].ID
		index[list[i].ID] = i
		list[i].Items = []sales.SaleItem{}
	}

	sql, args, err := postgres.Builder().
		Select(itemCols...).
		From(tableItems).
		Where(squirrel.Eq{"sale_id": saleIDs}).
		OrderBy("sale_id", "line_no").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	var items []sales.SaleItem
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return fmt.Errorf("list sale items: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	itemIDs := make([]id.ID, len(items))
	for i := range items {
		itemIDs[i] = items[i].ID
	}
	sql, args, err = postgres.Builder().
		Select("item_id", "position", "batch_id", "quantity", "unit_cost", "cost_known").
		From(tableAllocations).
		Where(squirrel.Eq{"item_id": itemIDs}).
		OrderBy("item_id", "position").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	var rows []allocationRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return fmt.Errorf("list allocations: %w", err)
	}
	byItem := make(map[id.ID][]sales.ItemAllocation, len(items))
	for _, row := range rows {
		byItem[row.ItemID] = append(byItem[row.ItemID], row.ItemAllocation)
	}

	for _, it := range items {
		it.Allocations = byItem[it.ID]
		sale := &list[index[it.SaleID]]
		sale.Items = append(sale.Items, it)
	}
	return nil
}

// DeleteSale removes the sale; lines and allocations cascade.
func (r *Repo) DeleteSale(ctx context.Context, saleID id.ID) error {
	sql, args, err := postgres.Builder().Delete(tableSales).Where(squirrel.Eq{"id": saleID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError("delete sale", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewSaleNotFound(saleID)
	}
	return nil
}
