package inventory

import (
	"context"
	"time"

	"sheetstock/internal/core/id"
	"sheetstock/internal/core/types"
)

// SheetFilter narrows ListSheets.
type SheetFilter struct {
	MetalType       string
	OnlyAvailable   bool
	ExcludeRemnants bool
	Search          string
}

// BatchFilter narrows ListBatches. Results are ordered by
// (received_date, id) ascending.
type BatchFilter struct {
	SheetID       *id.ID
	OnlyAvailable bool
	// ReceivedBefore excludes batches received at or after this instant.
	ReceivedBefore *time.Time
	// ForUpdate locks the returned rows until the transaction ends.
	ForUpdate bool
}

// MovementFilter narrows ListMovements. Results are in creation order.
type MovementFilter struct {
	BatchID     *id.ID
	SheetID     *id.ID
	ReferenceID *id.ID
	Reason      MovementReason
}

// Repository persists sheets, batches and movements.
type Repository interface {
	CreateSheet(ctx context.Context, sheet *Sheet) error
	// GetSheet returns a SHEET_NOT_FOUND error when missing.
	GetSheet(ctx context.Context, sheetID id.ID) (*Sheet, error)
	// FindSheetByCode returns nil, nil when no sheet carries code.
	FindSheetByCode(ctx context.Context, code string) (*Sheet, error)
	ListSheets(ctx context.Context, filter SheetFilter) ([]SheetStock, error)

	CreateBatch(ctx context.Context, batch *Batch) error
	// GetBatch returns a BATCH_NOT_FOUND error when missing.
	GetBatch(ctx context.Context, batchID id.ID, forUpdate bool) (*Batch, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error)
	UpdateBatchRemaining(ctx context.Context, batchID id.ID, remaining types.Quantity) error
	DeleteBatch(ctx context.Context, batchID id.ID) error
	// DeleteEmptyBatches removes batches with zero original and zero
	// remaining quantity and returns how many were removed.
	DeleteEmptyBatches(ctx context.Context) (int, error)

	AppendMovement(ctx context.Context, m *Movement) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}
