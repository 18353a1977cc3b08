package ledger

import (
	"context"
	"time"

	"sheetstock/internal/core/id"
	"sheetstock/internal/core/types"
)

// PartyFilter narrows ListParties.
type PartyFilter struct {
	Kind            PartyKind
	IncludeInactive bool
	Search          string
}

// TransactionFilter narrows ListTransactions. Results are ordered by
// (date, id) ascending.
type TransactionFilter struct {
	PartyID     id.ID
	From        *time.Time
	To          *time.Time
	ReferenceID *id.ID
	// After starts the page strictly after this position.
	After *Cursor
	// Limit caps the page size; zero means no limit.
	Limit int
}

// Repository persists parties and their transaction logs.
type Repository interface {
	CreateParty(ctx context.Context, p *Party) error
	// UpdateParty writes contact fields and IsActive; never the balance.
	UpdateParty(ctx context.Context, p *Party) error
	// GetParty returns a PARTY_NOT_FOUND error when missing. forUpdate
	// locks the row until the transaction ends.
	GetParty(ctx context.Context, partyID id.ID, forUpdate bool) (*Party, error)
	ListParties(ctx context.Context, filter PartyFilter) ([]Party, error)
	UpdateBalance(ctx context.Context, partyID id.ID, balance types.Money) error

	InsertTransaction(ctx context.Context, t *Transaction) error
	UpdateBalanceAfter(ctx context.Context, txID id.ID, balanceAfter types.Money) error
	// LastTransactionBefore returns the last line strictly before pos, or nil.
	LastTransactionBefore(ctx context.Context, partyID id.ID, pos Cursor) (*Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
}
