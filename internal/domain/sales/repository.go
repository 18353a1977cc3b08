package sales

import (
	"context"
	"time"

	"sheetstock/internal/core/id"
)

// Filter narrows ListSales. Results are ordered by (date, id).
type Filter struct {
	From       *time.Time
	To         *time.Time
	CustomerID *id.ID
	Limit      int
}

// Repository persists sales with their items and allocations.
type Repository interface {
	CreateSale(ctx context.Context, sale *Sale) error
	// GetSale returns a SALE_NOT_FOUND error when missing.
	GetSale(ctx context.Context, saleID id.ID) (*Sale, error)
	ListSales(ctx context.Context, filter Filter) ([]Sale, error)
	DeleteSale(ctx context.Context, saleID id.ID) error
}
