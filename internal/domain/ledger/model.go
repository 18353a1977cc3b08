// Package ledger keeps the append-only customer and supplier transaction
// logs with their running balances.
package ledger

import (
	"time"

	"sheetstock/internal/core/id"
	"sheetstock/internal/core/types"
)

// PartyKind separates customers (they owe us) from suppliers (we owe them).
// A positive amount always means the party balance grows.
type PartyKind string

const (
	KindCustomer PartyKind = "customer"
	KindSupplier PartyKind = "supplier"
)

// Valid reports whether k is a known kind.
func (k PartyKind) Valid() bool {
	return k == KindCustomer || k == KindSupplier
}

// Party is a customer or supplier. Balance is a read model of the latest
// balance_after in the party's log; only Service postings and
// reconciliation write it.
type Party struct {
	ID        id.ID       `db:"id" json:"id"`
	Kind      PartyKind   `db:"kind" json:"kind"`
	Name      string      `db:"name" json:"name"`
	Phone     string      `db:"phone" json:"phone,omitempty"`
	Email     string      `db:"email" json:"email,omitempty"`
	Address   string      `db:"address" json:"address,omitempty"`
	TaxNumber string      `db:"tax_number" json:"taxNumber,omitempty"`
	Notes     string      `db:"notes" json:"notes,omitempty"`
	IsActive  bool        `db:"is_active" json:"isActive"`
	Balance   types.Money `db:"balance" json:"balance"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `db:"updated_at" json:"updatedAt"`
}

// TxType classifies a ledger line.
type TxType string

const (
	TypeSale       TxType = "sale"
	TypePurchase   TxType = "purchase"
	TypePayment    TxType = "payment"
	TypeOpening    TxType = "opening"
	TypeAdjustment TxType = "adjustment"
	TypeReversal   TxType = "reversal"
)

// Transaction is one append-only ledger line. Lines are ordered by
// (date, id); BalanceAfter is the running total at that position.
type Transaction struct {
	ID           id.ID       `db:"id" json:"id"`
	PartyID      id.ID       `db:"party_id" json:"partyId"`
	PartyKind    PartyKind   `db:"party_kind" json:"partyKind"`
	Type         TxType      `db:"type" json:"type"`
	Amount       types.Money `db:"amount" json:"amount"`
	BalanceAfter types.Money `db:"balance_after" json:"balanceAfter"`
	ReferenceID  *id.ID      `db:"reference_id" json:"referenceId,omitempty"`
	Date         time.Time   `db:"date" json:"date"`
	Method       string      `db:"method" json:"method,omitempty"`
	Notes        string      `db:"notes" json:"notes,omitempty"`
	CreatedBy    string      `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
}

// Cursor is a position in the (date, id) order.
type Cursor struct {
	Date time.Time
	ID   id.ID
}

// CursorOf returns the position of t.
func CursorOf(t *Transaction) Cursor {
	return Cursor{Date: t.Date, ID: t.ID}
}

// Before reports whether c sorts strictly before o.
func (c Cursor) Before(o Cursor) bool {
	if !c.Date.Equal(o.Date) {
		return c.Date.Before(o.Date)
	}
	return id.Compare(c.ID, o.ID) < 0
}
