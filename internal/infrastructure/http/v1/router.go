// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/domain/ledger"
	"sheetstock/internal/domain/maintenance"
	"sheetstock/internal/domain/reconciliation"
	"sheetstock/internal/domain/reports"
	"sheetstock/internal/domain/sales"
	"sheetstock/internal/infrastructure/http/v1/handlers"
	"sheetstock/internal/infrastructure/http/v1/middleware"
	"sheetstock/internal/infrastructure/idempotency"
	"sheetstock/internal/infrastructure/metrics"
	"sheetstock/pkg/logger"
	"sheetstock/pkg/validation"
)

// RouterConfig holds the services the API exposes.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Metrics, when set, records request metrics and serves /metrics
	Metrics *metrics.Metrics

	// Idempotency, when set, deduplicates retried mutations
	Idempotency idempotency.Store

	// StorageDriver and Version are reported by /health/info
	StorageDriver string
	Version       string

	// Store is pinged by /health/ready; nil means always ready
	Store handlers.Pinger

	Inventory      *inventory.Service
	Ledger         *ledger.Service
	Sales          *sales.Service
	Reconciliation *reconciliation.Engine
	Reports        *reports.Service
	Maintenance    *maintenance.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		validation.Register(v)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	var recorder middleware.RequestRecorder
	if cfg.Metrics != nil {
		recorder = cfg.Metrics
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger, recorder))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.StorageDriver, cfg.Version, cfg.Store)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Session())
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerInventoryRoutes(v1, handlers.NewInventoryHandler(base, cfg.Inventory))
	registerPartyRoutes(v1, handlers.NewPartyHandler(base, cfg.Ledger))
	registerSaleRoutes(v1, handlers.NewSaleHandler(base, cfg.Sales))
	registerReconcileRoutes(v1, handlers.NewReconcileHandler(base, cfg.Reconciliation))
	registerReportRoutes(v1, handlers.NewReportsHandler(base, cfg.Reports))
	registerMaintenanceRoutes(v1, handlers.NewMaintenanceHandler(base, cfg.Maintenance))

	return router
}
