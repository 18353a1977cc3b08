package ledger

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sheetstock/internal/core/apperror"
	appctx "sheetstock/internal/core/context"
	"sheetstock/internal/core/id"
	"sheetstock/internal/core/tx"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/inventory"
	"sheetstock/pkg/logger"
	"sheetstock/pkg/validation"
)

// DefaultStatementPageSize is the keyset page size used by Statement.
const DefaultStatementPageSize = 200

// Observer receives posting events (metrics).
type Observer interface {
	Posted(kind PartyKind, t TxType)
}

type nopObserver struct{}

func (nopObserver) Posted(PartyKind, TxType) {}

// Service is the ledger store. All balance changes go through post.
type Service struct {
	repo     Repository
	txm      tx.Manager
	observer Observer
	now      func() time.Time
	pageSize int
}

// NewService creates a ledger service.
func NewService(repo Repository, txm tx.Manager) *Service {
	return &Service{
		repo:     repo,
		txm:      txm,
		observer: nopObserver{},
		now:      time.Now,
		pageSize: DefaultStatementPageSize,
	}
}

// SetObserver installs a posting observer.
func (s *Service) SetObserver(o Observer) {
	if o != nil {
		s.observer = o
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetPageSize overrides the statement page size.
func (s *Service) SetPageSize(n int) {
	if n > 0 {
		s.pageSize = n
	}
}

// --- Parties ---

// CreatePartyInput describes a new customer or supplier.
type CreatePartyInput struct {
	Kind           PartyKind   `json:"kind" validate:"party_kind"`
	Name           string      `json:"name" validate:"not_blank,max=200"`
	Phone          string      `json:"phone" validate:"max=50"`
	Email          string      `json:"email" validate:"omitempty,email"`
	Address        string      `json:"address" validate:"max=500"`
	TaxNumber      string      `json:"taxNumber" validate:"max=50"`
	Notes          string      `json:"notes" validate:"max=1000"`
	OpeningBalance types.Money `json:"openingBalance"`
	OpeningDate    time.Time   `json:"openingDate"`
}

// CreateParty creates a party and, for a non-zero opening balance, posts
// an opening line in the same transaction.
func (s *Service) CreateParty(ctx context.Context, in CreatePartyInput) (*Party, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	party := &Party{
		ID:        id.New(),
		Kind:      in.Kind,
		Name:      strings.TrimSpace(in.Name),
		Phone:     in.Phone,
		Email:     in.Email,
		Address:   in.Address,
		TaxNumber: in.TaxNumber,
		Notes:     in.Notes,
		IsActive:  true,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateParty(ctx, party); err != nil {
			return fmt.Errorf("create party: %w", err)
		}
		if in.OpeningBalance.IsZero() {
			return nil
		}
		t, err := s.post(ctx, PostInput{
			PartyID: party.ID,
			Kind:    party.Kind,
			Type:    TypeOpening,
			Amount:  in.OpeningBalance,
			Date:    in.OpeningDate,
			Notes:   "Opening balance",
		})
		if err != nil {
			return err
		}
		party.Balance = t.BalanceAfter
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "party created", "party_id", party.ID, "kind", party.Kind)
	return party, nil
}

// UpdatePartyInput changes contact fields; nil leaves a field unchanged.
type UpdatePartyInput struct {
	Name      *string `json:"name" validate:"omitempty,not_blank,max=200"`
	Phone     *string `json:"phone" validate:"omitempty,max=50"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Address   *string `json:"address" validate:"omitempty,max=500"`
	TaxNumber *string `json:"taxNumber" validate:"omitempty,max=50"`
	Notes     *string `json:"notes" validate:"omitempty,max=1000"`
	IsActive  *bool   `json:"isActive"`
}

// UpdateParty applies contact changes. Balance and kind are not editable.
func (s *Service) UpdateParty(ctx context.Context, partyID id.ID, in UpdatePartyInput) (*Party, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var party *Party
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		party, err = s.repo.GetParty(ctx, partyID, true)
		if err != nil {
			return err
		}
		setIf(&party.Name, in.Name)
		setIf(&party.Phone, in.Phone)
		setIf(&party.Email, in.Email)
		setIf(&party.Address, in.Address)
		setIf(&party.TaxNumber, in.TaxNumber)
		setIf(&party.Notes, in.Notes)
		if in.IsActive != nil {
			party.IsActive = *in.IsActive
		}
		party.UpdatedAt = s.now().UTC()
		return s.repo.UpdateParty(ctx, party)
	})
	if err != nil {
		return nil, err
	}
	return party, nil
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// GetParty returns one party.
func (s *Service) GetParty(ctx context.Context, partyID id.ID) (*Party, error) {
	return s.repo.GetParty(ctx, partyID, false)
}

// ListParties returns parties matching filter.
func (s *Service) ListParties(ctx context.Context, filter PartyFilter) ([]Party, error) {
	return s.repo.ListParties(ctx, filter)
}

// RequireParty returns the party when it exists with the given kind.
func (s *Service) RequireParty(ctx context.Context, partyID id.ID, kind PartyKind) (*Party, error) {
	p, err := s.repo.GetParty(ctx, partyID, false)
	if err != nil {
		return nil, err
	}
	if kind != "" && p.Kind != kind {
		return nil, apperror.NewPartyNotFound(partyID).WithDetail("kind", kind)
	}
	return p, nil
}

// Balance returns the cached balance of a party.
func (s *Service) Balance(ctx context.Context, partyID id.ID) (types.Money, error) {
	p, err := s.repo.GetParty(ctx, partyID, false)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Balance, nil
}

// --- Postings ---

// PostInput is one ledger posting. Kind, when set, must match the party.
type PostInput struct {
	PartyID     id.ID
	Kind        PartyKind
	Type        TxType
	Amount      types.Money
	ReferenceID *id.ID
	Date        time.Time
	Method      string
	Notes       string
}

// Post appends a line with balance_after = previous + amount and moves the
// cached balance in the same transaction. A backdated line re-derives the
// balance_after of every later line.
func (s *Service) Post(ctx context.Context, in PostInput) (*Transaction, error) {
	if err := checkSign(in.Type, in.Amount); err != nil {
		return nil, err
	}

	var t *Transaction
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.post(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func checkSign(t TxType, amount types.Money) error {
	if amount.IsZero() {
		return apperror.NewInvalidAmount(amount.String())
	}
	switch t {
	case TypeSale, TypePurchase:
		if amount.IsNegative() {
			return apperror.NewInvalidAmount(amount.String()).WithDetail("type", t)
		}
	case TypePayment:
		if amount.IsPositive() {
			return apperror.NewInvalidAmount(amount.String()).WithDetail("type", t)
		}
	case TypeOpening, TypeAdjustment, TypeReversal:
	default:
		return apperror.NewValidation("unknown transaction type").WithDetail("type", t)
	}
	return nil
}

func (s *Service) post(ctx context.Context, in PostInput) (*Transaction, error) {
	if err := checkSign(in.Type, in.Amount); err != nil {
		return nil, err
	}

	party, err := s.repo.GetParty(ctx, in.PartyID, true)
	if err != nil {
		return nil, err
	}
	if in.Kind != "" && party.Kind != in.Kind {
		return nil, apperror.NewPartyNotFound(in.PartyID).WithDetail("kind", in.Kind)
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	t := &Transaction{
		ID:          id.New(),
		PartyID:     party.ID,
		PartyKind:   party.Kind,
		Type:        in.Type,
		Amount:      in.Amount,
		ReferenceID: in.ReferenceID,
		Date:        date.UTC(),
		Method:      in.Method,
		Notes:       in.Notes,
		CreatedBy:   appctx.GetUserID(ctx),
		CreatedAt:   s.now().UTC(),
	}
	pos := CursorOf(t)

	prev, err := s.repo.LastTransactionBefore(ctx, party.ID, pos)
	if err != nil {
		return nil, fmt.Errorf("load previous line: %w", err)
	}
	previous := decimal.Zero
	if prev != nil {
		previous = prev.BalanceAfter
	}
	t.BalanceAfter = previous.Add(t.Amount)

	if err := s.repo.InsertTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	later, err := s.repo.ListTransactions(ctx, TransactionFilter{PartyID: party.ID, After: &pos})
	if err != nil {
		return nil, fmt.Errorf("load later lines: %w", err)
	}
	running := t.BalanceAfter
	for i := range later {
		running = running.Add(later[i].Amount)
		if !later[i].BalanceAfter.Equal(running) {
			if err := s.repo.UpdateBalanceAfter(ctx, later[i].ID, running); err != nil {
				return nil, fmt.Errorf("shift later line: %w", err)
			}
		}
	}
	if len(later) > 0 {
		logger.Debug(ctx, "backdated posting shifted later lines", "party_id", party.ID, "count", len(later))
	}

	if err := s.repo.UpdateBalance(ctx, party.ID, running); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	s.observer.Posted(party.Kind, t.Type)
	logger.Info(ctx, "ledger posted",
		"party_id", party.ID,
		"type", t.Type,
		"amount", t.Amount.String(),
		"balance", running.String(),
	)
	return t, nil
}

// SettleInput records a payment from a customer or to a supplier.
type SettleInput struct {
	PartyID     id.ID       `json:"-"`
	Amount      types.Money `json:"amount"`
	Date        time.Time   `json:"date"`
	Method      string      `json:"method" validate:"max=50"`
	Notes       string      `json:"notes" validate:"max=1000"`
	ReferenceID *id.ID      `json:"referenceId"`
}

// Settle posts a payment that reduces the balance. Amount must be positive.
func (s *Service) Settle(ctx context.Context, in SettleInput) (*Transaction, error) {
	if !in.Amount.IsPositive() {
		return nil, apperror.NewInvalidAmount(in.Amount.String())
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	return s.Post(ctx, PostInput{
		PartyID:     in.PartyID,
		Type:        TypePayment,
		Amount:      in.Amount.Neg(),
		ReferenceID: in.ReferenceID,
		Date:        in.Date,
		Method:      in.Method,
		Notes:       in.Notes,
	})
}

// RecordPurchase books a supplier purchase for a received batch. The
// supplier must exist even when the amount is zero.
func (s *Service) RecordPurchase(ctx context.Context, p inventory.Purchase) error {
	if _, err := s.RequireParty(ctx, p.SupplierID, KindSupplier); err != nil {
		return err
	}
	if !p.Amount.IsPositive() {
		logger.Warn(ctx, "supplier batch without cost, no purchase posted",
			"supplier_id", p.SupplierID,
			"batch_id", p.BatchID,
		)
		return nil
	}
	_, err := s.Post(ctx, PostInput{
		PartyID:     p.SupplierID,
		Kind:        KindSupplier,
		Type:        TypePurchase,
		Amount:      p.Amount,
		ReferenceID: &p.BatchID,
		Date:        p.Date,
		Notes:       p.Notes,
	})
	return err
}

// ReverseReference posts an offsetting reversal for every line that
// references ref. Already reversed references are left alone.
func (s *Service) ReverseReference(ctx context.Context, partyID, ref id.ID, notes string) ([]Transaction, error) {
	var out []Transaction
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		lines, err := s.repo.ListTransactions(ctx, TransactionFilter{PartyID: partyID, ReferenceID: &ref})
		if err != nil {
			return fmt.Errorf("list referenced lines: %w", err)
		}
		for _, l := range lines {
			if l.Type == TypeReversal {
				return nil
			}
		}
		for _, l := range lines {
			t, err := s.post(ctx, PostInput{
				PartyID:     partyID,
				Type:        TypeReversal,
				Amount:      l.Amount.Neg(),
				ReferenceID: &ref,
				Notes:       fmt.Sprintf("%s (reverses %s %s)", notes, l.Type, l.Amount.String()),
			})
			if err != nil {
				return err
			}
			out = append(out, *t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --- Statement ---

// StatementRange optionally windows a statement by date (inclusive).
type StatementRange struct {
	From *time.Time
	To   *time.Time
}

// Statement returns a lazy, restartable sequence of the party's lines in
// (date, id) order. Each range over the result queries the store afresh.
func (s *Service) Statement(ctx context.Context, partyID id.ID, rng StatementRange) iter.Seq2[Transaction, error] {
	return func(yield func(Transaction, error) bool) {
		if _, err := s.repo.GetParty(ctx, partyID, false); err != nil {
			yield(Transaction{}, err)
			return
		}

		var after *Cursor
		for {
			page, err := s.repo.ListTransactions(ctx, TransactionFilter{
				PartyID: partyID,
				From:    rng.From,
				To:      rng.To,
				After:   after,
				Limit:   s.pageSize,
			})
			if err != nil {
				yield(Transaction{}, err)
				return
			}
			for _, t := range page {
				if !yield(t, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			c := CursorOf(&page[len(page)-1])
			after = &c
		}
	}
}

// OpeningBalance is the running balance just before from.
func (s *Service) OpeningBalance(ctx context.Context, partyID id.ID, from time.Time) (types.Money, error) {
	prev, err := s.repo.LastTransactionBefore(ctx, partyID, Cursor{Date: from.UTC(), ID: id.Nil()})
	if err != nil {
		return decimal.Zero, err
	}
	if prev == nil {
		return decimal.Zero, nil
	}
	return prev.BalanceAfter, nil
}
