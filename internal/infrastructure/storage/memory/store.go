// Package memory is an embedded transactional store. A transaction holds the
// single writer lock and works on the live data; rollback restores the image
// taken at begin. With a snapshot path configured, every commit writes the
// whole image to disk before the lock is released.
package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/core/id"
	"sheetstock/internal/core/tx"
	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/domain/ledger"
	"sheetstock/internal/domain/maintenance"
	"sheetstock/internal/domain/sales"
	"sheetstock/pkg/logger"
)

var tracer = otel.Tracer("sheetstock/storage/memory")

// data is the full image. Maps hold private copies; callers never see them.
type data struct {
	sheets       map[id.ID]*inventory.Sheet
	batches      map[id.ID]*inventory.Batch
	movements    []inventory.Movement
	parties      map[id.ID]*ledger.Party
	transactions map[id.ID]*ledger.Transaction
	sales        map[id.ID]*sales.Sale
	sequences    map[string]int64
}

func newData() *data {
	return &data{
		sheets:       make(map[id.ID]*inventory.Sheet),
		batches:      make(map[id.ID]*inventory.Batch),
		parties:      make(map[id.ID]*ledger.Party),
		transactions: make(map[id.ID]*ledger.Transaction),
		sales:        make(map[id.ID]*sales.Sale),
		sequences:    make(map[string]int64),
	}
}

func (d *data) clone() *data {
	out := newData()
	for k, v := range d.sheets {
		c := *v
		out.sheets[k] = &c
	}
	for k, v := range d.batches {
		c := *v
		out.batches[k] = &c
	}
	out.movements = make([]inventory.Movement, len(d.movements))
	copy(out.movements, d.movements)
	for k, v := range d.parties {
		c := *v
		out.parties[k] = &c
	}
	for k, v := range d.transactions {
		c := *v
		out.transactions[k] = &c
	}
	for k, v := range d.sales {
		out.sales[k] = v.Clone()
	}
	for k, v := range d.sequences {
		out.sequences[k] = v
	}
	return out
}

// snapshot flattens the image into deterministic, sorted slices.
func (d *data) snapshot() *maintenance.Snapshot {
	snap := &maintenance.Snapshot{
		Version:      maintenance.FormatVersion,
		Sheets:       make([]inventory.Sheet, 0, len(d.sheets)),
		Batches:      make([]inventory.Batch, 0, len(d.batches)),
		Movements:    make([]inventory.Movement, len(d.movements)),
		Parties:      make([]ledger.Party, 0, len(d.parties)),
		Transactions: make([]ledger.Transaction, 0, len(d.transactions)),
		Sales:        make([]sales.Sale, 0, len(d.sales)),
		Sequences:    make(map[string]int64, len(d.sequences)),
	}
	for _, v := range d.sheets {
		snap.Sheets = append(snap.Sheets, *v)
	}
	sort.Slice(snap.Sheets, func(i, j int) bool { return id.Compare(snap.Sheets[i].ID, snap.Sheets[j].ID) < 0 })
	for _, v := range d.batches {
		snap.Batches = append(snap.Batches, *v)
	}
	sortBatches(snap.Batches)
	copy(snap.Movements, d.movements)
	for _, v := range d.parties {
		snap.Parties = append(snap.Parties, *v)
	}
	sort.Slice(snap.Parties, func(i, j int) bool { return id.Compare(snap.Parties[i].ID, snap.Parties[j].ID) < 0 })
	for _, v := range d.transactions {
		snap.Transactions = append(snap.Transactions, *v)
	}
	sortTransactions(snap.Transactions)
	for _, v := range d.sales {
		snap.Sales = append(snap.Sales, *v.Clone())
	}
	sortSales(snap.Sales)
	for k, v := range d.sequences {
		snap.Sequences[k] = v
	}
	return snap
}

func fromSnapshot(snap *maintenance.Snapshot) *data {
	d := newData()
	for i := range snap.Sheets {
		v := snap.Sheets[i]
		d.sheets[v.ID] = &v
	}
	for i := range snap.Batches {
		v := snap.Batches[i]
		d.batches[v.ID] = &v
	}
	d.movements = append(d.movements, snap.Movements...)
	for i := range snap.Parties {
		v := snap.Parties[i]
		d.parties[v.ID] = &v
	}
	for i := range snap.Transactions {
		v := snap.Transactions[i]
		d.transactions[v.ID] = &v
	}
	for i := range snap.Sales {
		d.sales[snap.Sales[i].ID] = snap.Sales[i].Clone()
	}
	for k, v := range snap.Sequences {
		d.sequences[k] = v
	}
	return d
}

// Store is the in-process store. It implements tx.Beginner and hands out
// repositories that share its data.
type Store struct {
	mu   sync.Mutex
	d    *data
	path string
}

var _ tx.Beginner = (*Store)(nil)

// New creates an empty, non-durable store.
func New() *Store {
	return &Store{d: newData()}
}

// Open creates a durable store at path, loading the existing image if any.
func Open(path string) (*Store, error) {
	s := &Store{d: newData(), path: path}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := maintenance.ReadSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	s.d = fromSnapshot(snap)
	return s, nil
}

// Path returns the snapshot path, empty for a non-durable store.
func (s *Store) Path() string {
	return s.path
}

// save writes the image atomically through a temp file. Caller holds mu.
func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	f, err := os.CreateTemp(dir, ".sheetstock-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := maintenance.WriteSnapshot(f, s.d.snapshot()); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// --- transactions ---

type txKey struct{}

type txState struct {
	store  *Store
	backup *data
	span   trace.Span
	done   bool
}

func (s *Store) stateFrom(ctx context.Context) *txState {
	st, ok := ctx.Value(txKey{}).(*txState)
	if !ok || st.store != s || st.done {
		return nil
	}
	return st
}

// InTransaction reports whether ctx carries an open transaction of s.
func (s *Store) InTransaction(ctx context.Context) bool {
	return s.stateFrom(ctx) != nil
}

// Begin takes the writer lock and returns a unit that must be committed or
// rolled back. A nested Begin joins the outer transaction.
func (s *Store) Begin(ctx context.Context) (context.Context, tx.Unit, error) {
	if s.stateFrom(ctx) != nil {
		return ctx, nestedUnit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return ctx, nil, err
	}

	ctx, span := tracer.Start(ctx, "memory.Transaction",
		trace.WithAttributes(attribute.Bool("db.durable", s.path != "")))

	s.mu.Lock()
	st := &txState{store: s, backup: s.d.clone(), span: span}
	return context.WithValue(ctx, txKey{}, st), &unit{st: st}, nil
}

// RunInTransaction executes fn in a transaction, joining one already in ctx.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.stateFrom(ctx) != nil {
		return fn(ctx)
	}
	return tx.RunInUnit(ctx, s, fn)
}

type unit struct {
	st *txState
}

func (u *unit) Commit(ctx context.Context) error {
	st := u.st
	if st.done {
		return nil
	}
	st.done = true
	s := st.store
	defer s.mu.Unlock()
	defer st.span.End()

	if s.path != "" {
		if err := s.save(); err != nil {
			s.d = st.backup
			st.span.RecordError(err)
			st.span.SetStatus(codes.Error, "save failed")
			logger.Error(ctx, "snapshot save failed, transaction rolled back", "error", err, "path", s.path)
			return apperror.NewPersistence(err)
		}
	}
	return nil
}

func (u *unit) Rollback(context.Context) error {
	st := u.st
	if st.done {
		return nil
	}
	st.done = true
	st.store.d = st.backup
	st.span.SetStatus(codes.Error, "rolled back")
	st.span.End()
	st.store.mu.Unlock()
	return nil
}

type nestedUnit struct{}

func (nestedUnit) Commit(context.Context) error   { return nil }
func (nestedUnit) Rollback(context.Context) error { return nil }

// view runs a read against the live data.
func (s *Store) view(ctx context.Context, fn func(d *data) error) error {
	if s.stateFrom(ctx) != nil {
		return fn(s.d)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.d)
}

// update runs a write, opening a transaction when ctx has none.
func (s *Store) update(ctx context.Context, fn func(d *data) error) error {
	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		return fn(s.d)
	})
}

// --- ordering helpers ---

func sortBatches(bs []inventory.Batch) {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].ReceivedDate.Equal(bs[j].ReceivedDate) {
			return bs[i].ReceivedDate.Before(bs[j].ReceivedDate)
		}
		return id.Compare(bs[i].ID, bs[j].ID) < 0
	})
}

func sortTransactions(ts []ledger.Transaction) {
	sort.Slice(ts, func(i, j int) bool {
		return ledger.CursorOf(&ts[i]).Before(ledger.CursorOf(&ts[j]))
	})
}

func sortSales(ss []sales.Sale) {
	sort.Slice(ss, func(i, j int) bool {
		if !ss[i].Date.Equal(ss[j].Date) {
			return ss[i].Date.Before(ss[j].Date)
		}
		return id.Compare(ss[i].ID, ss[j].ID) < 0
	})
}
