// Package app assembles the domain services over the configured storage
// driver. Both the HTTP server and the maintenance CLI start from Build.
package app

import (
	"context"
	"fmt"

	"sheetstock/internal/config"
	"sheetstock/internal/core/tx"
	"sheetstock/internal/domain/catalog"
	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/domain/ledger"
	"sheetstock/internal/domain/maintenance"
	"sheetstock/internal/domain/reconciliation"
	"sheetstock/internal/domain/reports"
	"sheetstock/internal/domain/sales"
	"sheetstock/internal/infrastructure/http/v1/handlers"
	"sheetstock/internal/infrastructure/idempotency"
	"sheetstock/internal/infrastructure/metrics"
	"sheetstock/internal/infrastructure/storage/memory"
	"sheetstock/internal/infrastructure/storage/postgres"
	"sheetstock/internal/infrastructure/storage/postgres/inventory_repo"
	"sheetstock/internal/infrastructure/storage/postgres/ledger_repo"
	"sheetstock/internal/infrastructure/storage/postgres/maintenance_repo"
	"sheetstock/internal/infrastructure/storage/postgres/sales_repo"
	"sheetstock/pkg/logger"
	"sheetstock/pkg/numerator"
)

// App holds the wired services.
type App struct {
	Catalog        *catalog.Service
	Inventory      *inventory.Service
	Ledger         *ledger.Service
	Sales          *sales.Service
	Reconciliation *reconciliation.Engine
	Reports        *reports.Service
	Maintenance    *maintenance.Service
	Metrics        *metrics.Metrics
	Idempotency    idempotency.Store

	// Store answers readiness probes. Nil for the memory driver.
	Store handlers.Pinger

	closers []func()
}

// storage is what a driver contributes.
type storage struct {
	txb          tx.Beginner
	ledgerRepo   ledger.Repository
	invRepo      inventory.Repository
	salesRepo    sales.Repository
	maintenance  maintenance.Store
	sequencer    numerator.Sequencer
	idempotency  idempotency.Store
	pinger       handlers.Pinger
	closers      []func()
	describeArgs []any
}

// Build opens storage and wires every service.
func Build(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	cat, err := loadCatalog(cfg.CompanyProfile)
	if err != nil {
		return nil, err
	}

	var st *storage
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		st, err = openPostgres(ctx, cfg)
	default:
		st, err = openMemory(cfg)
	}
	if err != nil {
		return nil, err
	}
	log.Infow("storage opened", append([]any{"driver", cfg.StorageDriver}, st.describeArgs...)...)

	m := metrics.New(metrics.DefaultConfig())
	numbers := numerator.New(st.sequencer)

	led := ledger.NewService(st.ledgerRepo, st.txb)
	led.SetObserver(m)

	inv := inventory.NewService(st.invRepo, st.txb, cat, led)
	inv.SetObserver(m)

	sal := sales.NewService(st.salesRepo, st.txb, inv, led, numbers, cat)
	sal.SetObserver(m)

	rec := reconciliation.NewEngine(st.ledgerRepo, st.txb)
	rec.SetObserver(m)

	return &App{
		Catalog:        cat,
		Inventory:      inv,
		Ledger:         led,
		Sales:          sal,
		Reconciliation: rec,
		Reports:        reports.NewService(sal, inv),
		Maintenance:    maintenance.NewService(st.maintenance),
		Metrics:        m,
		Idempotency:    st.idempotency,
		Store:          st.pinger,
		closers:        st.closers,
	}, nil
}

// Close releases storage resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func loadCatalog(path string) (*catalog.Service, error) {
	if path == "" {
		return catalog.NewService(catalog.DefaultProfile(), catalog.Catalogs{})
	}
	profile, catalogs, err := config.LoadProfile(path)
	if err != nil {
		return nil, fmt.Errorf("load company profile: %w", err)
	}
	return catalog.NewService(profile, catalogs)
}

func openMemory(cfg config.Config) (*storage, error) {
	var (
		store *memory.Store
		err   error
	)
	if cfg.SnapshotPath != "" {
		store, err = memory.Open(cfg.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("open snapshot %s: %w", cfg.SnapshotPath, err)
		}
	} else {
		store = memory.New()
	}

	return &storage{
		txb:          store,
		ledgerRepo:   memory.NewLedgerRepo(store),
		invRepo:      memory.NewInventoryRepo(store),
		salesRepo:    memory.NewSalesRepo(store),
		maintenance:  store,
		sequencer:    store,
		idempotency:  idempotency.NewMemoryStore(idempotency.DefaultTTL),
		describeArgs: []any{"snapshot", cfg.SnapshotPath},
	}, nil
}

func openPostgres(ctx context.Context, cfg config.Config) (*storage, error) {
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL, cfg.DBMaxConns))
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	pool.LogStats(ctx)

	txm := postgres.NewTxManager(pool, cfg.TxTimeout)
	maint := maintenance_repo.New(txm)

	return &storage{
		txb:          txm,
		ledgerRepo:   ledger_repo.New(txm),
		invRepo:      inventory_repo.New(txm),
		salesRepo:    sales_repo.New(txm),
		maintenance:  maint,
		sequencer:    maint,
		idempotency:  postgres.NewIdempotencyStore(txm, idempotency.DefaultTTL),
		pinger:       pool,
		closers:      []func(){pool.Close},
		describeArgs: []any{"max_conns", cfg.DBMaxConns},
	}, nil
}
