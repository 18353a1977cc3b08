package handlers

import (
	"github.com/gin-gonic/gin"

	"sheetstock/internal/domain/ledger"
	"sheetstock/internal/infrastructure/http/v1/dto"
)

// PartyHandler serves customers, suppliers and their ledgers.
type PartyHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewPartyHandler creates a new party handler.
func NewPartyHandler(base *BaseHandler, service *ledger.Service) *PartyHandler {
	return &PartyHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List handles GET /parties
func (h *PartyHandler) List(c *gin.Context) {
	var req dto.ListPartiesRequest
	if !h.BindQuery(c, &req) {
		return
	}

	parties, err := h.service.ListParties(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	if parties == nil {
		parties = []ledger.Party{}
	}
	h.OK(c, parties)
}

// Create handles POST /parties
func (h *PartyHandler) Create(c *gin.Context) {
	var req ledger.CreatePartyInput
	if !h.BindJSON(c, &req) {
		return
	}

	party, err := h.service.CreateParty(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, party)
}

// Get handles GET /parties/:id
func (h *PartyHandler) Get(c *gin.Context) {
	partyID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	party, err := h.service.GetParty(c.Request.Context(), partyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, party)
}

// Update handles PUT /parties/:id
func (h *PartyHandler) Update(c *gin.Context) {
	partyID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req ledger.UpdatePartyInput
	if !h.BindJSON(c, &req) {
		return
	}

	party, err := h.service.UpdateParty(c.Request.Context(), partyID, req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, party)
}

// Balance handles GET /parties/:id/balance
func (h *PartyHandler) Balance(c *gin.Context) {
	partyID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	party, err := h.service.GetParty(c.Request.Context(), partyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.BalanceResponse{PartyID: party.ID, Kind: party.Kind, Balance: party.Balance})
}

// Statement handles GET /parties/:id/statement
func (h *PartyHandler) Statement(c *gin.Context) {
	ctx := c.Request.Context()
	partyID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.DateWindow
	if !h.BindQuery(c, &req) {
		return
	}
	from, to := req.Bounds()

	resp := dto.StatementResponse{PartyID: partyID, From: from, To: to, Lines: []ledger.Transaction{}}
	if from != nil {
		opening, err := h.service.OpeningBalance(ctx, partyID, *from)
		if err != nil {
			h.Error(c, err)
			return
		}
		resp.Opening = opening
	}
	resp.Closing = resp.Opening

	for t, err := range h.service.Statement(ctx, partyID, ledger.StatementRange{From: from, To: to}) {
		if err != nil {
			h.Error(c, err)
			return
		}
		resp.Lines = append(resp.Lines, t)
		resp.Closing = t.BalanceAfter
	}
	h.OK(c, resp)
}

// Settle handles POST /parties/:id/settle
func (h *PartyHandler) Settle(c *gin.Context) {
	partyID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req ledger.SettleInput
	if !h.BindJSON(c, &req) {
		return
	}
	req.PartyID = partyID

	t, err := h.service.Settle(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, t)
}
