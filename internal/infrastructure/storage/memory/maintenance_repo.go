package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"sheetstock/internal/domain/maintenance"
	"sheetstock/pkg/numerator"
)

var (
	_ maintenance.Store   = (*Store)(nil)
	_ numerator.Sequencer = (*Store)(nil)
)

func (s *Store) Stats(ctx context.Context) (maintenance.Stats, error) {
	var st maintenance.Stats
	err := s.view(ctx, func(d *data) error {
		st = maintenance.Stats{
			Sheets:       len(d.sheets),
			Batches:      len(d.batches),
			Movements:    len(d.movements),
			Parties:      len(d.parties),
			Transactions: len(d.transactions),
			Sales:        len(d.sales),
		}
		for _, sale := range d.sales {
			st.SaleItems += len(sale.Items)
		}
		return nil
	})
	return st, err
}

func (s *Store) Dump(ctx context.Context) (*maintenance.Snapshot, error) {
	var snap *maintenance.Snapshot
	err := s.view(ctx, func(d *data) error {
		snap = d.snapshot()
		return nil
	})
	return snap, err
}

func (s *Store) ClearTransactional(ctx context.Context) error {
	return s.update(ctx, func(d *data) error {
		fresh := newData()
		d.batches = fresh.batches
		d.movements = nil
		d.transactions = fresh.transactions
		d.sales = fresh.sales
		d.sequences = fresh.sequences
		for _, p := range d.parties {
			p.Balance = decimal.Zero
		}
		return nil
	})
}

func (s *Store) ResetAll(ctx context.Context) error {
	return s.update(ctx, func(d *data) error {
		*d = *newData()
		return nil
	})
}

// NextValue implements numerator.Sequencer.
func (s *Store) NextValue(ctx context.Context, key string, increment int64) (int64, error) {
	var v int64
	err := s.update(ctx, func(d *data) error {
		d.sequences[key] += increment
		v = d.sequences[key]
		return nil
	})
	return v, err
}
