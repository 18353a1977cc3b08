package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sheetstock/internal/domain/maintenance"
	"sheetstock/internal/infrastructure/http/v1/dto"
)

// MaintenanceHandler exposes store-wide maintenance.
type MaintenanceHandler struct {
	*BaseHandler
	service *maintenance.Service
}

// NewMaintenanceHandler creates a new maintenance handler.
func NewMaintenanceHandler(base *BaseHandler, service *maintenance.Service) *MaintenanceHandler {
	return &MaintenanceHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Stats handles GET /maintenance/stats
func (h *MaintenanceHandler) Stats(c *gin.Context) {
	st, err := h.service.DatabaseStats(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, st)
}

// Export handles GET /maintenance/export and returns a zstd snapshot.
func (h *MaintenanceHandler) Export(c *gin.Context) {
	var buf bytes.Buffer
	if _, err := h.service.ExportSnapshot(c.Request.Context(), &buf); err != nil {
		h.Error(c, err)
		return
	}

	name := fmt.Sprintf("sheetstock-%s.json.zst", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/zstd", buf.Bytes())
}

// Clear handles POST /maintenance/clear
func (h *MaintenanceHandler) Clear(c *gin.Context) {
	var req dto.ConfirmRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := h.service.ClearTransactionalData(c.Request.Context(), req.Confirm); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, maintenance.ResultOf(nil))
}

// Reset handles POST /maintenance/reset
func (h *MaintenanceHandler) Reset(c *gin.Context) {
	var req dto.ConfirmRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := h.service.ResetToInitialState(c.Request.Context(), req.Confirm); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, maintenance.ResultOf(nil))
}
