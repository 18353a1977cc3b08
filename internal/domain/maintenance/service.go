package maintenance

import (
	"context"
	"fmt"
	"io"
	"time"

	"sheetstock/internal/core/apperror"
	"sheetstock/pkg/logger"
)

// Confirmation tokens for the destructive operations. Callers must pass the
// literal token; anything else is rejected before the store is touched.
const (
	ConfirmClear = "CLEAR TRANSACTIONAL DATA"
	ConfirmReset = "RESET TO INITIAL STATE"
)

// Store is the bulk access the maintenance operations need.
type Store interface {
	Stats(ctx context.Context) (Stats, error)
	// Dump returns a consistent image of every table.
	Dump(ctx context.Context) (*Snapshot, error)
	// ClearTransactional removes batches, movements, ledger lines, sales and
	// counters, and zeroes party balances. Sheets and parties survive.
	ClearTransactional(ctx context.Context) error
	// ResetAll removes every row.
	ResetAll(ctx context.Context) error
}

// Result is the {success, error} shape returned to API callers.
type Result struct {
	Success bool               `json:"success"`
	Error   *apperror.AppError `json:"error,omitempty"`
}

// ResultOf converts an operation error into a Result.
func ResultOf(err error) Result {
	if err == nil {
		return Result{Success: true}
	}
	return Result{Error: apperror.Normalize(err)}
}

// Service runs store-wide maintenance.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a maintenance service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// SetClock overrides the export timestamp source.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// DatabaseStats counts rows per table.
func (s *Service) DatabaseStats(ctx context.Context) (Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("database stats: %w", err)
	}
	return st, nil
}

// ExportSnapshot writes a zstd-compressed JSON image of the store to w.
func (s *Service) ExportSnapshot(ctx context.Context, w io.Writer) (Stats, error) {
	snap, err := s.store.Dump(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("dump store: %w", err)
	}
	snap.Version = FormatVersion
	snap.ExportedAt = s.now().UTC()

	if err := WriteSnapshot(w, snap); err != nil {
		return Stats{}, err
	}

	st := StatsOf(snap)
	logger.Info(ctx, "snapshot exported",
		"sheets", st.Sheets,
		"batches", st.Batches,
		"transactions", st.Transactions,
		"sales", st.Sales)
	return st, nil
}

// ClearTransactionalData wipes operational history and keeps master data.
// It is irreversible.
func (s *Service) ClearTransactionalData(ctx context.Context, confirm string) error {
	if confirm != ConfirmClear {
		return apperror.NewConfirmationRequired("clear transactional data", ConfirmClear)
	}
	if err := s.store.ClearTransactional(ctx); err != nil {
		return fmt.Errorf("clear transactional data: %w", err)
	}
	logger.Warn(ctx, "transactional data cleared")
	return nil
}

// ResetToInitialState removes every row. It is irreversible.
func (s *Service) ResetToInitialState(ctx context.Context, confirm string) error {
	if confirm != ConfirmReset {
		return apperror.NewConfirmationRequired("reset to initial state", ConfirmReset)
	}
	if err := s.store.ResetAll(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	logger.Warn(ctx, "store reset to initial state")
	return nil
}
