// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces, not on a concrete store;
// the memory and postgres storage packages implement them.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Unit is an explicitly controlled unit of work.
// Rollback after a successful Commit is a no-op, so callers may defer it.
type Unit interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner opens explicit units of work. The returned context carries the
// transaction and must be passed to every repository call inside the unit.
type Beginner interface {
	Manager
	Begin(ctx context.Context) (context.Context, Unit, error)
}

// RunInUnit drives fn through an explicit unit: begin, commit on success,
// rollback on error or panic.
func RunInUnit(ctx context.Context, b Beginner, fn func(ctx context.Context) error) (err error) {
	txCtx, unit, err := b.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = unit.Rollback(context.Background())
			panic(p)
		}
		if err != nil {
			_ = unit.Rollback(context.Background())
		}
	}()

	if err = fn(txCtx); err != nil {
		return err
	}
	return unit.Commit(txCtx)
}
