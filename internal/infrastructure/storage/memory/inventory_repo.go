package memory

import (
	"context"
	"sort"
	"strings"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/core/id"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/inventory"
)

// InventoryRepo implements inventory.Repository.
type InventoryRepo struct {
	s *Store
}

var _ inventory.Repository = (*InventoryRepo)(nil)

// NewInventoryRepo returns the inventory repository of s.
func NewInventoryRepo(s *Store) *InventoryRepo {
	return &InventoryRepo{s: s}
}

func (r *InventoryRepo) CreateSheet(ctx context.Context, sheet *inventory.Sheet) error {
	return r.s.update(ctx, func(d *data) error {
		if _, exists := d.sheets[sheet.ID]; exists {
			return apperror.NewConflict("sheet already exists").WithDetail("id", sheet.ID)
		}
		for _, other := range d.sheets {
			if other.Code == sheet.Code {
				return apperror.NewConflict("sheet code already exists").WithDetail("code", sheet.Code)
			}
		}
		c := *sheet
		d.sheets[c.ID] = &c
		return nil
	})
}

func (r *InventoryRepo) GetSheet(ctx context.Context, sheetID id.ID) (*inventory.Sheet, error) {
	var out *inventory.Sheet
	err := r.s.view(ctx, func(d *data) error {
		sh, ok := d.sheets[sheetID]
		if !ok {
			return apperror.NewSheetNotFound(sheetID)
		}
		c := *sh
		out = &c
		return nil
	})
	return out, err
}

func (r *InventoryRepo) FindSheetByCode(ctx context.Context, code string) (*inventory.Sheet, error) {
	var out *inventory.Sheet
	err := r.s.view(ctx, func(d *data) error {
		for _, sh := range d.sheets {
			if sh.Code == code {
				c := *sh
				out = &c
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *InventoryRepo) ListSheets(ctx context.Context, filter inventory.SheetFilter) ([]inventory.SheetStock, error) {
	var out []inventory.SheetStock
	err := r.s.view(ctx, func(d *data) error {
		stock := make(map[id.ID]*inventory.SheetStock, len(d.sheets))
		for _, sh := range d.sheets {
			if filter.MetalType != "" && !strings.EqualFold(sh.MetalType, filter.MetalType) {
				continue
			}
			if filter.ExcludeRemnants && sh.IsRemnant {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToUpper(sh.Code), strings.ToUpper(filter.Search)) {
				continue
			}
			stock[sh.ID] = &inventory.SheetStock{Sheet: *sh}
		}
		for _, b := range d.batches {
			st, ok := stock[b.SheetID]
			if !ok {
				continue
			}
			st.Available += b.QuantityRemaining
			if b.QuantityRemaining > 0 {
				st.BatchCount++
			}
		}
		for _, st := range stock {
			if filter.OnlyAvailable && st.Available <= 0 {
				continue
			}
			out = append(out, *st)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, err
}

func (r *InventoryRepo) CreateBatch(ctx context.Context, batch *inventory.Batch) error {
	return r.s.update(ctx, func(d *data) error {
		if _, ok := d.sheets[batch.SheetID]; !ok {
			return apperror.NewSheetNotFound(batch.SheetID)
		}
		if _, exists := d.batches[batch.ID]; exists {
			return apperror.NewConflict("batch already exists").WithDetail("id", batch.ID)
		}
		c := *batch
		d.batches[c.ID] = &c
		return nil
	})
}

// GetBatch ignores forUpdate: the transaction already holds the writer lock.
func (r *InventoryRepo) GetBatch(ctx context.Context, batchID id.ID, _ bool) (*inventory.Batch, error) {
	var out *inventory.Batch
	err := r.s.view(ctx, func(d *data) error {
		b, ok := d.batches[batchID]
		if !ok {
			return apperror.NewBatchNotFound(batchID)
		}
		c := *b
		out = &c
		return nil
	})
	return out, err
}

func (r *InventoryRepo) ListBatches(ctx context.Context, filter inventory.BatchFilter) ([]inventory.Batch, error) {
	var out []inventory.Batch
	err := r.s.view(ctx, func(d *data) error {
		for _, b := range d.batches {
			if filter.SheetID != nil && b.SheetID != *filter.SheetID {
				continue
			}
			if filter.OnlyAvailable && b.QuantityRemaining <= 0 {
				continue
			}
			if filter.ReceivedBefore != nil && !b.ReceivedDate.Before(*filter.ReceivedBefore) {
				continue
			}
			out = append(out, *b)
		}
		return nil
	})
	sortBatches(out)
	return out, err
}

func (r *InventoryRepo) UpdateBatchRemaining(ctx context.Context, batchID id.ID, remaining types.Quantity) error {
	return r.s.update(ctx, func(d *data) error {
		b, ok := d.batches[batchID]
		if !ok {
			return apperror.NewBatchNotFound(batchID)
		}
		if remaining < 0 || remaining > b.QuantityOriginal {
			return apperror.NewInvalidQuantity(batchID, remaining.Float64(), b.QuantityRemaining.Float64())
		}
		b.QuantityRemaining = remaining
		return nil
	})
}

func (r *InventoryRepo) DeleteBatch(ctx context.Context, batchID id.ID) error {
	return r.s.update(ctx, func(d *data) error {
		if _, ok := d.batches[batchID]; !ok {
			return apperror.NewBatchNotFound(batchID)
		}
		delete(d.batches, batchID)
		return nil
	})
}

func (r *InventoryRepo) DeleteEmptyBatches(ctx context.Context) (int, error) {
	removed := 0
	err := r.s.update(ctx, func(d *data) error {
		for k, b := range d.batches {
			if b.QuantityOriginal == 0 && b.QuantityRemaining == 0 {
				delete(d.batches, k)
				removed++
			}
		}
		return nil
	})
	return removed, err
}

func (r *InventoryRepo) AppendMovement(ctx context.Context, m *inventory.Movement) error {
	return r.s.update(ctx, func(d *data) error {
		c := *m
		if m.Receipt != nil {
			rc := *m.Receipt
			c.Receipt = &rc
		}
		d.movements = append(d.movements, c)
		return nil
	})
}

func (r *InventoryRepo) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.Movement, error) {
	var out []inventory.Movement
	err := r.s.view(ctx, func(d *data) error {
		for _, m := range d.movements {
			if filter.BatchID != nil && m.BatchID != *filter.BatchID {
				continue
			}
			if filter.SheetID != nil && m.SheetID != *filter.SheetID {
				continue
			}
			if filter.ReferenceID != nil && !id.Equal(m.ReferenceID, filter.ReferenceID) {
				continue
			}
			if filter.Reason != "" && m.Reason != filter.Reason {
				continue
			}
			out = append(out, m)
		}
		return nil
	})
	return out, err
}
