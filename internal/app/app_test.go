package app_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetstock/internal/app"
	"sheetstock/internal/config"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/domain/ledger"
	"sheetstock/pkg/logger"
)

func memoryConfig(snapshot string) config.Config {
	return config.Config{
		StorageDriver: config.DriverMemory,
		SnapshotPath:  snapshot,
	}
}

func receive(t *testing.T, ctx context.Context, a *app.App) *inventory.ReceiveResult {
	t.Helper()
	res, err := a.Inventory.Receive(ctx, inventory.ReceiveInput{
		Sheet: &inventory.SheetSpec{
			MetalType:     "ALU",
			LengthMM:      decimal.NewFromInt(2000),
			WidthMM:       decimal.NewFromInt(1000),
			ThicknessMM:   decimal.NewFromInt(2),
			WeightPerUnit: types.Some(decimal.NewFromInt(10)),
		},
		Quantity:     types.NewQuantity(5),
		PricePerKg:   types.Some(decimal.NewFromInt(3)),
		ReceivedDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return res
}

func TestBuild_MemoryDriver(t *testing.T) {
	ctx := context.Background()
	a, err := app.Build(ctx, memoryConfig(""), logger.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Store)
	assert.NotNil(t, a.Idempotency)

	res := receive(t, ctx, a)
	avail, err := a.Inventory.Available(ctx, res.Sheet.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(5), avail)

	st, err := a.Maintenance.DatabaseStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Sheets)
	assert.Equal(t, 1, st.Batches)
}

func TestBuild_SnapshotSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json.zst")

	a, err := app.Build(ctx, memoryConfig(path), logger.NewNop())
	require.NoError(t, err)
	res := receive(t, ctx, a)
	_, err = a.Ledger.CreateParty(ctx, ledger.CreatePartyInput{Kind: ledger.KindCustomer, Name: "Acme"})
	require.NoError(t, err)
	a.Close()

	reopened, err := app.Build(ctx, memoryConfig(path), logger.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	sheet, err := reopened.Inventory.GetSheet(ctx, res.Sheet.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Sheet.Code, sheet.Code)

	st, err := reopened.Maintenance.DatabaseStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Parties)
}

func TestBuild_MissingProfile(t *testing.T) {
	cfg := memoryConfig("")
	cfg.CompanyProfile = filepath.Join(t.TempDir(), "absent.yaml")

	_, err := app.Build(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}
