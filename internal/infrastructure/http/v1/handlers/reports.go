package handlers

import (
	"github.com/gin-gonic/gin"

	"sheetstock/internal/domain/reports"
	"sheetstock/internal/infrastructure/http/v1/dto"
)

// ReportsHandler handles HTTP requests for reports.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Profit handles GET /reports/profit?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *ReportsHandler) Profit(c *gin.Context) {
	var req dto.PeriodRequest
	if !h.BindQuery(c, &req) {
		return
	}

	report, err := h.service.GetProfitBreakdown(c.Request.Context(), req.Period())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// BestSelling handles GET /reports/best-selling
func (h *ReportsHandler) BestSelling(c *gin.Context) {
	var req dto.BestSellingRequest
	if !h.BindQuery(c, &req) {
		return
	}

	report, err := h.service.GetBestSelling(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// Valuation handles GET /reports/valuation
func (h *ReportsHandler) Valuation(c *gin.Context) {
	val, err := h.service.GetInventoryValuation(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, val)
}
