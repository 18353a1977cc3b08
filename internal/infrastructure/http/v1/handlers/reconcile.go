package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"sheetstock/internal/domain/ledger"
	"sheetstock/internal/domain/reconciliation"
)

// ReconcileHandler triggers balance reconciliation.
type ReconcileHandler struct {
	*BaseHandler
	engine *reconciliation.Engine
}

// NewReconcileHandler creates a new reconciliation handler.
func NewReconcileHandler(base *BaseHandler, engine *reconciliation.Engine) *ReconcileHandler {
	return &ReconcileHandler{
		BaseHandler: base,
		engine:      engine,
	}
}

// Party handles POST /reconcile/parties/:id
func (h *ReconcileHandler) Party(c *gin.Context) {
	partyID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	res, err := h.engine.RecalculateBalance(c.Request.Context(), partyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Kind handles POST /reconcile/:kind where kind is customers or suppliers.
func (h *ReconcileHandler) Kind(c *gin.Context) {
	kind := ledger.PartyKind(strings.TrimSuffix(c.Param("kind"), "s"))

	summary, err := h.engine.RecalculateAll(c.Request.Context(), kind)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, summary)
}
