package sales

import (
	"context"
	"fmt"

	"sheetstock/internal/core/tx"
	"sheetstock/pkg/logger"
)

// State is the lifecycle of a sale being created. It only moves forward;
// Aborted is reachable from every state before Committed.
type State int

const (
	StateDraft State = iota
	StateValidated
	StateInventoryAllocated
	StatePosted
	StateCommitted
	StateAborted
)

var stateNames = [...]string{
	StateDraft:              "draft",
	StateValidated:          "validated",
	StateInventoryAllocated: "inventory_allocated",
	StatePosted:             "posted",
	StateCommitted:          "committed",
	StateAborted:            "aborted",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// CanTransition reports whether from -> to is allowed.
func (s State) CanTransition(to State) bool {
	switch {
	case s == StateCommitted || s == StateAborted:
		return false
	case to == StateAborted:
		return true
	default:
		return to == s+1
	}
}

// saleUnit is the explicit unit of work for one sale. Repository calls made
// with ctx join the underlying store transaction.
type saleUnit struct {
	ctx   context.Context
	unit  tx.Unit
	state State
}

func beginSaleUnit(ctx context.Context, b tx.Beginner) (*saleUnit, error) {
	txCtx, unit, err := b.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &saleUnit{ctx: txCtx, unit: unit, state: StateValidated}, nil
}

func (u *saleUnit) advance(to State) error {
	if !u.state.CanTransition(to) {
		return fmt.Errorf("sale unit: illegal transition %s -> %s", u.state, to)
	}
	u.state = to
	return nil
}

func (u *saleUnit) commit() error {
	if err := u.advance(StateCommitted); err != nil {
		return err
	}
	if err := u.unit.Commit(u.ctx); err != nil {
		u.state = StateAborted
		return fmt.Errorf("commit sale: %w", err)
	}
	return nil
}

// abort rolls back unless the unit already committed.
func (u *saleUnit) abort() {
	if u.state == StateCommitted || u.state == StateAborted {
		return
	}
	u.state = StateAborted
	if err := u.unit.Rollback(u.ctx); err != nil {
		logger.Error(u.ctx, "sale rollback failed", "error", err)
	}
}
