package v1

import (
	"github.com/gin-gonic/gin"

	"sheetstock/internal/infrastructure/http/v1/handlers"
)

// registerInventoryRoutes registers sheet and batch endpoints.
func registerInventoryRoutes(rg *gin.RouterGroup, h *handlers.InventoryHandler) {
	rg.GET("/sheets", h.ListSheets)
	rg.GET("/sheets/:id/batches", h.ListSheetBatches)

	batches := rg.Group("/batches")
	batches.POST("", h.Receive)
	batches.POST("/prune", h.Prune)
	batches.GET("/:id", h.GetBatch)
	batches.GET("/:id/movements", h.ListBatchMovements)
	batches.POST("/:id/adjust", h.Adjust)
}

// registerPartyRoutes registers customer/supplier endpoints.
func registerPartyRoutes(rg *gin.RouterGroup, h *handlers.PartyHandler) {
	parties := rg.Group("/parties")
	parties.GET("", h.List)
	parties.POST("", h.Create)
	parties.GET("/:id", h.Get)
	parties.PUT("/:id", h.Update)
	parties.GET("/:id/balance", h.Balance)
	parties.GET("/:id/statement", h.Statement)
	parties.POST("/:id/settle", h.Settle)
}

// registerSaleRoutes registers sale endpoints.
func registerSaleRoutes(rg *gin.RouterGroup, h *handlers.SaleHandler) {
	s := rg.Group("/sales")
	s.GET("", h.List)
	s.POST("", h.Create)
	s.GET("/:id", h.Get)
	s.DELETE("/:id", h.Delete)
}

// registerReconcileRoutes registers reconciliation endpoints.
func registerReconcileRoutes(rg *gin.RouterGroup, h *handlers.ReconcileHandler) {
	r := rg.Group("/reconcile")
	r.POST("/parties/:id", h.Party)
	r.POST("/:kind", h.Kind)
}

// registerReportRoutes registers report endpoints.
func registerReportRoutes(rg *gin.RouterGroup, h *handlers.ReportsHandler) {
	r := rg.Group("/reports")
	r.GET("/profit", h.Profit)
	r.GET("/best-selling", h.BestSelling)
	r.GET("/valuation", h.Valuation)
}

// registerMaintenanceRoutes registers maintenance endpoints.
func registerMaintenanceRoutes(rg *gin.RouterGroup, h *handlers.MaintenanceHandler) {
	m := rg.Group("/maintenance")
	m.GET("/stats", h.Stats)
	m.GET("/export", h.Export)
	m.POST("/clear", h.Clear)
	m.POST("/reset", h.Reset)
}
