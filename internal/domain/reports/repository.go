package reports

import (
	"context"

	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/domain/sales"
)

// SaleSource lists sales with their items in (date, id) order.
type SaleSource interface {
	ListSales(ctx context.Context, filter sales.Filter) ([]sales.Sale, error)
}

// StockSource values remaining stock.
type StockSource interface {
	Valuation(ctx context.Context) (*inventory.Valuation, error)
}
