package dto

import (
	"time"

	"sheetstock/internal/core/id"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/ledger"
)

// ListPartiesRequest filters GET /parties.
type ListPartiesRequest struct {
	Kind            string `form:"kind" binding:"omitempty,party_kind"`
	Search          string `form:"search" binding:"max=100"`
	IncludeInactive bool   `form:"includeInactive"`
}

// ToFilter converts the request into a repository filter.
func (r ListPartiesRequest) ToFilter() ledger.PartyFilter {
	return ledger.PartyFilter{
		Kind:            ledger.PartyKind(r.Kind),
		Search:          r.Search,
		IncludeInactive: r.IncludeInactive,
	}
}

// BalanceResponse is the cached balance of one party.
type BalanceResponse struct {
	PartyID id.ID            `json:"partyId"`
	Kind    ledger.PartyKind `json:"kind"`
	Balance types.Money      `json:"balance"`
}

// StatementResponse is a party's transaction log over a window.
type StatementResponse struct {
	PartyID id.ID                `json:"partyId"`
	From    *time.Time           `json:"from,omitempty"`
	To      *time.Time           `json:"to,omitempty"`
	Opening types.Money          `json:"opening"`
	Closing types.Money          `json:"closing"`
	Lines   []ledger.Transaction `json:"lines"`
}
