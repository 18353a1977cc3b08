package handlers

import (
	"github.com/gin-gonic/gin"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/domain/sales"
	"sheetstock/internal/infrastructure/http/v1/dto"
)

// SaleHandler serves sales.
type SaleHandler struct {
	*BaseHandler
	service *sales.Service
}

// NewSaleHandler creates a new sale handler.
func NewSaleHandler(base *BaseHandler, service *sales.Service) *SaleHandler {
	return &SaleHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /sales. A failed sale answers with
// {"success": false, "code": ...} and leaves no trace in the store.
func (h *SaleHandler) Create(c *gin.Context) {
	var req sales.CreateSaleInput
	if !h.BindJSON(c, &req) {
		return
	}

	sale, err := h.service.CreateSale(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, sales.ResultOf(sale, nil))
}

// Get handles GET /sales/:id
func (h *SaleHandler) Get(c *gin.Context) {
	saleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	sale, err := h.service.GetSale(c.Request.Context(), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, sale)
}

// List handles GET /sales
func (h *SaleHandler) List(c *gin.Context) {
	var req dto.ListSalesRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid customerId"))
		return
	}

	list, err := h.service.ListSales(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	if list == nil {
		list = []sales.Sale{}
	}
	h.OK(c, list)
}

// Delete handles DELETE /sales/:id. Stock and ledger effects are reversed
// in one transaction.
func (h *SaleHandler) Delete(c *gin.Context) {
	saleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteSale(c.Request.Context(), saleID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
