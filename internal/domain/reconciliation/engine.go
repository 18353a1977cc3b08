// Package reconciliation recomputes party balances from their transaction
// logs and repairs drift in the cached balance and the balance_after trail.
package reconciliation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/core/id"
	"sheetstock/internal/core/tx"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/ledger"
	"sheetstock/pkg/logger"
)

// Result reports one party reconciliation.
type Result struct {
	PartyID id.ID            `json:"partyId"`
	Kind    ledger.PartyKind `json:"kind"`
	Before  types.Money      `json:"before"`
	After   types.Money      `json:"after"`
	// Corrected is true when the cached balance or any balance_after was
	// rewritten.
	Corrected bool `json:"corrected"`
	// RewrittenLines counts balance_after values that were repaired.
	RewrittenLines int `json:"rewrittenLines"`
	// Mismatch describes the drift that was found; nil when consistent.
	Mismatch *apperror.AppError `json:"mismatch,omitempty"`
}

// Summary reports a pass over all parties of one kind.
type Summary struct {
	Kind      ledger.PartyKind `json:"kind"`
	Checked   int              `json:"checked"`
	Corrected int              `json:"corrected"`
	Results   []Result         `json:"results"`
}

// Observer receives correction events (metrics).
type Observer interface {
	Corrected(kind ledger.PartyKind)
}

type nopObserver struct{}

func (nopObserver) Corrected(ledger.PartyKind) {}

// Engine is the only component allowed to overwrite cached balances.
type Engine struct {
	repo     ledger.Repository
	txm      tx.Manager
	observer Observer
}

// NewEngine creates a reconciliation engine over the ledger repository.
func NewEngine(repo ledger.Repository, txm tx.Manager) *Engine {
	return &Engine{repo: repo, txm: txm, observer: nopObserver{}}
}

// SetObserver installs a correction observer.
func (e *Engine) SetObserver(o Observer) {
	if o != nil {
		e.observer = o
	}
}

// RecalculateBalance replays the party's full log in (date, id) order and
// rewrites any balance_after and the cached balance that disagree.
func (e *Engine) RecalculateBalance(ctx context.Context, partyID id.ID) (Result, error) {
	var res Result
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		party, err := e.repo.GetParty(ctx, partyID, true)
		if err != nil {
			return err
		}
		res = Result{PartyID: party.ID, Kind: party.Kind, Before: party.Balance}

		lines, err := e.repo.ListTransactions(ctx, ledger.TransactionFilter{PartyID: partyID})
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}

		running := decimal.Zero
		for i := range lines {
			running = running.Add(lines[i].Amount)
			if lines[i].BalanceAfter.Equal(running) {
				continue
			}
			if err := e.repo.UpdateBalanceAfter(ctx, lines[i].ID, running); err != nil {
				return fmt.Errorf("rewrite balance_after: %w", err)
			}
			res.RewrittenLines++
		}
		res.After = running

		if !party.Balance.Equal(running) {
			if err := e.repo.UpdateBalance(ctx, partyID, running); err != nil {
				return fmt.Errorf("rewrite balance: %w", err)
			}
			res.Corrected = true
		}
		if res.RewrittenLines > 0 {
			res.Corrected = true
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if res.Corrected {
		res.Mismatch = apperror.NewReconciliationMismatch(partyID, res.Before.String(), res.After.String()).
			WithDetail("rewritten_lines", res.RewrittenLines)
		e.observer.Corrected(res.Kind)
		logger.Warn(ctx, "balance corrected",
			"party_id", partyID,
			"kind", res.Kind,
			"before", res.Before.String(),
			"after", res.After.String(),
			"rewritten_lines", res.RewrittenLines,
		)
	}
	return res, nil
}

// RecalculateAll reconciles every party of kind, each in its own
// transaction. It stops between parties when ctx is cancelled and returns
// the partial summary with the context error.
func (e *Engine) RecalculateAll(ctx context.Context, kind ledger.PartyKind) (Summary, error) {
	if !kind.Valid() {
		return Summary{}, apperror.NewValidation("unknown party kind").WithDetail("kind", kind)
	}

	parties, err := e.repo.ListParties(ctx, ledger.PartyFilter{Kind: kind, IncludeInactive: true})
	if err != nil {
		return Summary{}, fmt.Errorf("list parties: %w", err)
	}

	sum := Summary{Kind: kind}
	for _, p := range parties {
		if err := ctx.Err(); err != nil {
			logger.Warn(ctx, "reconciliation cancelled", "kind", kind, "checked", sum.Checked)
			return sum, err
		}
		res, err := e.RecalculateBalance(ctx, p.ID)
		if err != nil {
			return sum, err
		}
		sum.Checked++
		if res.Corrected {
			sum.Corrected++
		}
		sum.Results = append(sum.Results, res)
	}

	logger.Info(ctx, "reconciliation finished",
		"kind", kind,
		"checked", sum.Checked,
		"corrected", sum.Corrected,
	)
	return sum, nil
}
