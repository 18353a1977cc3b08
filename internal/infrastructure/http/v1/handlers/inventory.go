package handlers

import (
	"github.com/gin-gonic/gin"

	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/infrastructure/http/v1/dto"
)

// InventoryHandler serves sheets and batches.
type InventoryHandler struct {
	*BaseHandler
	service *inventory.Service
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, service *inventory.Service) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler: base,
		service:     service,
	}
}

// ListSheets handles GET /sheets
func (h *InventoryHandler) ListSheets(c *gin.Context) {
	var req dto.ListSheetsRequest
	if !h.BindQuery(c, &req) {
		return
	}

	sheets, err := h.service.ListSheets(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	if sheets == nil {
		sheets = []inventory.SheetStock{}
	}
	h.OK(c, sheets)
}

// ListSheetBatches handles GET /sheets/:id/batches
func (h *InventoryHandler) ListSheetBatches(c *gin.Context) {
	ctx := c.Request.Context()
	sheetID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	sheet, err := h.service.GetSheet(ctx, sheetID)
	if err != nil {
		h.Error(c, err)
		return
	}
	batches, err := h.service.ListBatches(ctx, sheetID)
	if err != nil {
		h.Error(c, err)
		return
	}
	available, err := h.service.Available(ctx, sheetID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if batches == nil {
		batches = []inventory.BatchView{}
	}

	h.OK(c, dto.SheetBatchesResponse{Sheet: sheet, Available: available, Batches: batches})
}

// Receive handles POST /batches
func (h *InventoryHandler) Receive(c *gin.Context) {
	var req inventory.ReceiveInput
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Receive(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, result)
}

// GetBatch handles GET /batches/:id
func (h *InventoryHandler) GetBatch(c *gin.Context) {
	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	batch, err := h.service.GetBatch(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, batch)
}

// ListBatchMovements handles GET /batches/:id/movements
func (h *InventoryHandler) ListBatchMovements(c *gin.Context) {
	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	movements, err := h.service.ListMovements(c.Request.Context(), inventory.MovementFilter{BatchID: &batchID})
	if err != nil {
		h.Error(c, err)
		return
	}
	if movements == nil {
		movements = []inventory.Movement{}
	}
	h.OK(c, movements)
}

// Adjust handles POST /batches/:id/adjust
func (h *InventoryHandler) Adjust(c *gin.Context) {
	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.AdjustBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	batch, err := h.service.Adjust(c.Request.Context(), inventory.AdjustInput{
		BatchID: batchID,
		Delta:   req.Delta,
		Notes:   req.Notes,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, batch)
}

// Prune handles POST /batches/prune
func (h *InventoryHandler) Prune(c *gin.Context) {
	n, err := h.service.PruneEmpty(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.PruneResponse{Removed: n})
}
