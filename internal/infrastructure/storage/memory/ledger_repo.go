package memory

import (
	"context"
	"sort"
	"strings"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/core/id"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/ledger"
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	s *Store
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo returns the ledger repository of s.
func NewLedgerRepo(s *Store) *LedgerRepo {
	return &LedgerRepo{s: s}
}

func (r *LedgerRepo) CreateParty(ctx context.Context, p *ledger.Party) error {
	return r.s.update(ctx, func(d *data) error {
		if _, exists := d.parties[p.ID]; exists {
			return apperror.NewConflict("party already exists").WithDetail("id", p.ID)
		}
		c := *p
		d.parties[c.ID] = &c
		return nil
	})
}

func (r *LedgerRepo) UpdateParty(ctx context.Context, p *ledger.Party) error {
	return r.s.update(ctx, func(d *data) error {
		cur, ok := d.parties[p.ID]
		if !ok {
			return apperror.NewPartyNotFound(p.ID)
		}
		balance := cur.Balance
		*cur = *p
		cur.Balance = balance
		return nil
	})
}

// GetParty ignores forUpdate: the transaction already holds the writer lock.
func (r *LedgerRepo) GetParty(ctx context.Context, partyID id.ID, _ bool) (*ledger.Party, error) {
	var out *ledger.Party
	err := r.s.view(ctx, func(d *data) error {
		p, ok := d.parties[partyID]
		if !ok {
			return apperror.NewPartyNotFound(partyID)
		}
		c := *p
		out = &c
		return nil
	})
	return out, err
}

func (r *LedgerRepo) ListParties(ctx context.Context, filter ledger.PartyFilter) ([]ledger.Party, error) {
	var out []ledger.Party
	err := r.s.view(ctx, func(d *data) error {
		for _, p := range d.parties {
			if filter.Kind != "" && p.Kind != filter.Kind {
				continue
			}
			if !filter.IncludeInactive && !p.IsActive {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
				continue
			}
			out = append(out, *p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return id.Compare(out[i].ID, out[j].ID) < 0
	})
	return out, err
}

func (r *LedgerRepo) UpdateBalance(ctx context.Context, partyID id.ID, balance types.Money) error {
	return r.s.update(ctx, func(d *data) error {
		p, ok := d.parties[partyID]
		if !ok {
			return apperror.NewPartyNotFound(partyID)
		}
		p.Balance = balance
		return nil
	})
}

func (r *LedgerRepo) InsertTransaction(ctx context.Context, t *ledger.Transaction) error {
	return r.s.update(ctx, func(d *data) error {
		if _, ok := d.parties[t.PartyID]; !ok {
			return apperror.NewPartyNotFound(t.PartyID)
		}
		if _, exists := d.transactions[t.ID]; exists {
			return apperror.NewConflict("transaction already exists").WithDetail("id", t.ID)
		}
		c := *t
		d.transactions[c.ID] = &c
		return nil
	})
}

func (r *LedgerRepo) UpdateBalanceAfter(ctx context.Context, txID id.ID, balanceAfter types.Money) error {
	return r.s.update(ctx, func(d *data) error {
		t, ok := d.transactions[txID]
		if !ok {
			return apperror.NewNotFound("transaction", txID)
		}
		t.BalanceAfter = balanceAfter
		return nil
	})
}

func (r *LedgerRepo) LastTransactionBefore(ctx context.Context, partyID id.ID, pos ledger.Cursor) (*ledger.Transaction, error) {
	var out *ledger.Transaction
	err := r.s.view(ctx, func(d *data) error {
		for _, t := range d.transactions {
			if t.PartyID != partyID {
				continue
			}
			c := ledger.CursorOf(t)
			if !c.Before(pos) {
				continue
			}
			if out == nil || ledger.CursorOf(out).Before(c) {
				cp := *t
				out = &cp
			}
		}
		return nil
	})
	return out, err
}

func (r *LedgerRepo) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	err := r.s.view(ctx, func(d *data) error {
		for _, t := range d.transactions {
			if t.PartyID != filter.PartyID {
				continue
			}
			if filter.From != nil && t.Date.Before(*filter.From) {
				continue
			}
			if filter.To != nil && t.Date.After(*filter.To) {
				continue
			}
			if filter.ReferenceID != nil && !id.Equal(t.ReferenceID, filter.ReferenceID) {
				continue
			}
			if filter.After != nil && !filter.After.Before(ledger.CursorOf(t)) {
				continue
			}
			out = append(out, *t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortTransactions(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
