package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/core/id"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/domain/ledger"
	"sheetstock/internal/infrastructure/storage/memory"
)

var (
	jan10 = time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	jan11 = time.Date(2026, time.January, 11, 8, 0, 0, 0, time.UTC)
	jan12 = time.Date(2026, time.January, 12, 17, 30, 0, 0, time.UTC)
)

type allocations struct {
	known, unknown int
}

func (a *allocations) Allocated(costKnown bool) {
	if costKnown {
		a.known++
	} else {
		a.unknown++
	}
}

func newService(t *testing.T) (*inventory.Service, *ledger.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	led := ledger.NewService(memory.NewLedgerRepo(store), store)
	inv := inventory.NewService(memory.NewInventoryRepo(store), store, nil, led)
	return inv, led, store
}

func q(n int64) types.Quantity { return types.NewQuantity(n) }

func m(s string) types.Money { return types.MustMoney(s) }

func spec() *inventory.SheetSpec {
	return &inventory.SheetSpec{
		MetalType:     "ss",
		Grade:         "304",
		Finish:        "2b",
		LengthMM:      m("2000"),
		WidthMM:       m("1000"),
		ThicknessMM:   m("1.5"),
		WeightPerUnit: types.Some(m("2")),
	}
}

func TestSheetCode(t *testing.T) {
	s := spec()
	assert.Equal(t, "SS-2000x1000x1.5-304-2B", inventory.SheetCode(*s))

	s.Grade, s.Finish, s.IsRemnant = "", "", true
	assert.Equal(t, "SS-2000x1000x1.5-R", inventory.SheetCode(*s))
}

func TestReceive_ReusesSheetByCode(t *testing.T) {
	inv, _, _ := newService(t)
	ctx := context.Background()

	first, err := inv.Receive(ctx, inventory.ReceiveInput{Sheet: spec(), Quantity: q(5), PricePerKg: types.Some(m("10"))})
	require.NoError(t, err)
	assert.False(t, first.SheetReused)
	assert.Equal(t, q(5), first.Batch.QuantityRemaining)
	assert.Equal(t, inventory.PricingPerKg, first.Batch.PricingBasis)

	second, err := inv.Receive(ctx, inventory.ReceiveInput{Sheet: spec(), Quantity: q(3), TotalCost: types.Some(m("90"))})
	require.NoError(t, err)
	assert.True(t, second.SheetReused)
	assert.Equal(t, first.Sheet.ID, second.Sheet.ID)

	// total 90 over 3 units of 2 kg: 15/kg, 30/unit.
	cost := second.Batch.Cost
	require.True(t, cost.PricePerKg.Valid)
	assert.True(t, m("15").Equal(cost.PricePerKg.Decimal))
	assert.True(t, m("30").Equal(cost.UnitCost))
	assert.False(t, second.Batch.PricePerKg.Valid, "derived price is not stored")

	avail, err := inv.Available(ctx, first.Sheet.ID)
	require.NoError(t, err)
	assert.Equal(t, q(8), avail)

	moves, err := inv.ListMovements(ctx, inventory.MovementFilter{SheetID: &first.Sheet.ID})
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, inventory.ReasonReceipt, moves[0].Reason)
	assert.Equal(t, q(5), moves[0].Delta)
	require.NotNil(t, moves[0].Receipt)
}

func TestReceive_Validation(t *testing.T) {
	inv, _, _ := newService(t)
	ctx := context.Background()
	sheetID := id.New()

	tests := []struct {
		name string
		in   inventory.ReceiveInput
		code string
	}{
		{"both pricing inputs", inventory.ReceiveInput{Sheet: spec(), Quantity: q(1), PricePerKg: types.Some(m("1")), TotalCost: types.Some(m("1"))}, apperror.CodeValidation},
		{"no sheet", inventory.ReceiveInput{Quantity: q(1)}, apperror.CodeValidation},
		{"sheet and spec", inventory.ReceiveInput{SheetID: &sheetID, Sheet: spec(), Quantity: q(1)}, apperror.CodeValidation},
		{"zero quantity", inventory.ReceiveInput{Sheet: spec()}, apperror.CodeValidation},
		{"unknown sheet", inventory.ReceiveInput{SheetID: &sheetID, Quantity: q(1)}, apperror.CodeSheetNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inv.Receive(ctx, tt.in)
			require.Error(t, err)
			assert.True(t, apperror.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestReceive_PostsSupplierPurchase(t *testing.T) {
	inv, led, _ := newService(t)
	ctx := context.Background()
	sup, err := led.CreateParty(ctx, ledger.CreatePartyInput{Kind: ledger.KindSupplier, Name: "Nordic Steel"})
	require.NoError(t, err)

	_, err = inv.Receive(ctx, inventory.ReceiveInput{
		Sheet:      spec(),
		SupplierID: &sup.ID,
		Quantity:   q(5),
		PricePerKg: types.Some(m("10")),
	})
	require.NoError(t, err)

	bal, err := led.Balance(ctx, sup.ID)
	require.NoError(t, err)
	assert.True(t, m("100").Equal(bal), "balance %s", bal)
}

func TestReceive_UnknownSupplierRollsBack(t *testing.T) {
	inv, _, store := newService(t)
	ctx := context.Background()
	ghost := id.New()

	_, err := inv.Receive(ctx, inventory.ReceiveInput{Sheet: spec(), SupplierID: &ghost, Quantity: q(5)})
	assert.True(t, apperror.Is(err, apperror.CodePartyNotFound))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Sheets)
	assert.Zero(t, stats.Batches)
	assert.Zero(t, stats.Movements)
}

func TestAllocate_FIFO(t *testing.T) {
	inv, _, _ := newService(t)
	ctx := context.Background()
	obs := &allocations{}
	inv.SetObserver(obs)

	b1, err := inv.Receive(ctx, inventory.ReceiveInput{Sheet: spec(), Quantity: q(5), PricePerKg: types.Some(m("10")), ReceivedDate: jan10})
	require.NoError(t, err)
	b2, err := inv.Receive(ctx, inventory.ReceiveInput{SheetID: &b1.Sheet.ID, Quantity: q(10), TotalCost: types.Some(m("300")), ReceivedDate: jan11})
	require.NoError(t, err)

	plan, err := inv.Plan(ctx, b1.Sheet.ID, q(7), jan12)
	require.NoError(t, err)
	require.Len(t, plan.Portions, 2)

	alloc, err := inv.Allocate(ctx, inventory.AllocateInput{SheetID: b1.Sheet.ID, Quantity: q(7), AsOf: jan12})
	require.NoError(t, err)
	require.Len(t, alloc.Portions, 2)
	assert.Equal(t, b1.Batch.ID, alloc.Portions[0].BatchID)
	assert.Equal(t, q(5), alloc.Portions[0].Quantity)
	assert.Equal(t, b2.Batch.ID, alloc.Portions[1].BatchID)
	assert.Equal(t, q(2), alloc.Portions[1].Quantity)

	// 5 x 20 + 2 x 30
	assert.True(t, m("160").Equal(alloc.Cost()), "cost %s", alloc.Cost())
	assert.True(t, alloc.CostKnown())
	assert.Equal(t, 1, obs.known)

	got, err := inv.GetBatch(ctx, b1.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, q(0), got.QuantityRemaining)
	assert.Equal(t, q(5), got.QuantityOriginal, "depleted batch keeps its history")
}

func TestAllocate_InsufficientIsAllOrNothing(t *testing.T) {
	inv, _, _ := newService(t)
	ctx := context.Background()

	b1, err := inv.Receive(ctx, inventory.ReceiveInput{Sheet: spec(), Quantity: q(5), ReceivedDate: jan10})
	require.NoError(t, err)
	_, err = inv.Receive(ctx, inventory.ReceiveInput{SheetID: &b1.Sheet.ID, Quantity: q(3), ReceivedDate: jan11})
	require.NoError(t, err)

	_, err = inv.Allocate(ctx, inventory.AllocateInput{SheetID: b1.Sheet.ID, Quantity: q(9), AsOf: jan12})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, float64(8), appErr.Details["available"])

	avail, err := inv.Available(ctx, b1.Sheet.ID)
	require.NoError(t, err)
	assert.Equal(t, q(8), avail)
}

func TestAllocate_UncostedBatchContributesZero(t *testing.T) {
	inv, _, _ := newService(t)
	ctx := context.Background()
	obs := &allocations{}
	inv.SetObserver(obs)

	b, err := inv.Receive(ctx, inventory.ReceiveInput{Sheet: spec(), Quantity: q(4)})
	require.NoError(t, err)
	assert.False(t, b.Batch.Cost.CostKnown)

	alloc, err := inv.Allocate(ctx, inventory.AllocateInput{SheetID: b.Sheet.ID, Quantity: q(2)})
	require.NoError(t, err)
	assert.True(t, alloc.Cost().IsZero())
	assert.False(t, alloc.CostKnown())
	assert.Equal(t, 1, obs.unknown)
}

func TestRelease_NeverGoesNegative(t *testing.T) {
	inv, _, _ := newService(t)
	ctx := context.Background()
	b, err := inv.Receive(ctx, inventory.ReceiveInput{Sheet: spec(), Quantity: q(2)})
	require.NoError(t, err)

	err = inv.Release(ctx, inventory.ReleaseInput{BatchID: b.Batch.ID, Quantity: q(3)})
	assert.True(t, apperror.Is(err, apperror.CodeInvalidQuantity), "got %v", err)

	require.NoError(t, inv.Release(ctx, inventory.ReleaseInput{BatchID: b.Batch.ID, Quantity: q(2)}))
	got, err := inv.GetBatch(ctx, b.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, q(0), got.QuantityRemaining)
}

func TestRestore_NeverExceedsOriginal(t *testing.T) {
	inv, _, _ := newService(t)
	ctx := context.Background()
	b, err := inv.Receive(ctx, inventory.ReceiveInput{Sheet: spec(), Quantity: q(2)})
	require.NoError(t, err)

	err = inv.Restore(ctx, inventory.RestoreInput{BatchID: b.Batch.ID, Quantity: q(1)})
	assert.True(t, apperror.Is(err, apperror.CodeInvalidQuantity))
}

func TestRestore_RecreatesMissingBatch(t *testing.T) {
	inv, _, store := newService(t)
	ctx := context.Background()
	ref := id.New()

	b, err := inv.Receive(ctx, inventory.ReceiveInput{Sheet: spec(), Quantity: q(4), PricePerKg: types.Some(m("10"))})
	require.NoError(t, err)
	_, err = inv.Allocate(ctx, inventory.AllocateInput{SheetID: b.Sheet.ID, Quantity: q(4), ReferenceID: &ref})
	require.NoError(t, err)

	// Simulate a batch lost outside the engine.
	require.NoError(t, memory.NewInventoryRepo(store).DeleteBatch(ctx, b.Batch.ID))

	require.NoError(t, inv.Restore(ctx, inventory.RestoreInput{BatchID: b.Batch.ID, Quantity: q(4), ReferenceID: &ref}))

	got, err := inv.GetBatch(ctx, b.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, q(4), got.QuantityRemaining)
	assert.Equal(t, q(4), got.QuantityOriginal)
	assert.True(t, m("20").Equal(got.Cost.UnitCost))

	moves, err := inv.ListMovements(ctx, inventory.MovementFilter{BatchID: &b.Batch.ID, Reason: inventory.ReasonRecreated})
	require.NoError(t, err)
	assert.Len(t, moves, 1)
}

func TestAdjust(t *testing.T) {
	inv, _, _ := newService(t)
	ctx := context.Background()
	b, err := inv.Receive(ctx, inventory.ReceiveInput{Sheet: spec(), Quantity: q(5)})
	require.NoError(t, err)

	_, err = inv.Adjust(ctx, inventory.AdjustInput{BatchID: b.Batch.ID, Delta: q(-2)})
	assert.True(t, apperror.Is(err, apperror.CodeValidation), "notes are required")

	got, err := inv.Adjust(ctx, inventory.AdjustInput{BatchID: b.Batch.ID, Delta: q(-2), Notes: "scratched"})
	require.NoError(t, err)
	assert.Equal(t, q(3), got.QuantityRemaining)

	got, err = inv.Adjust(ctx, inventory.AdjustInput{BatchID: b.Batch.ID, Delta: q(1), Notes: "found in rack"})
	require.NoError(t, err)
	assert.Equal(t, q(4), got.QuantityRemaining)

	_, err = inv.Adjust(ctx, inventory.AdjustInput{BatchID: b.Batch.ID, Delta: q(2), Notes: "too many"})
	assert.True(t, apperror.Is(err, apperror.CodeInvalidQuantity))
}

func TestCaptureRemnant(t *testing.T) {
	inv, _, _ := newService(t)
	ctx := context.Background()
	b, err := inv.Receive(ctx, inventory.ReceiveInput{Sheet: spec(), Quantity: q(1)})
	require.NoError(t, err)

	res, err := inv.CaptureRemnant(ctx, inventory.RemnantInput{
		ParentSheetID: b.Sheet.ID,
		LengthMM:      m("1000"),
		WidthMM:       m("1000"),
		Quantity:      q(1),
	})
	require.NoError(t, err)
	assert.True(t, res.Sheet.IsRemnant)
	assert.Equal(t, "SS-1000x1000x1.5-304-2B-R", res.Sheet.Code)
	require.True(t, res.Sheet.WeightPerUnit.Valid)
	assert.True(t, m("1").Equal(res.Sheet.WeightPerUnit.Decimal), "half the area, half the weight")
	assert.Nil(t, res.Batch.SupplierID)

	_, err = inv.CaptureRemnant(ctx, inventory.RemnantInput{
		ParentSheetID: b.Sheet.ID,
		LengthMM:      m("2000"),
		WidthMM:       m("1000"),
		Quantity:      q(1),
	})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	list, err := inv.ListSheets(ctx, inventory.SheetFilter{ExcludeRemnants: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.Sheet.ID, list[0].ID)

	require.NoError(t, inv.RemoveRemnant(ctx, res.Batch.ID, nil))
	_, err = inv.GetBatch(ctx, res.Batch.ID)
	assert.True(t, apperror.Is(err, apperror.CodeBatchNotFound))
	require.NoError(t, inv.RemoveRemnant(ctx, res.Batch.ID, nil), "removing twice is a no-op")
}

func TestPruneEmpty_KeepsDepletedHistory(t *testing.T) {
	inv, _, store := newService(t)
	ctx := context.Background()
	b, err := inv.Receive(ctx, inventory.ReceiveInput{Sheet: spec(), Quantity: q(2)})
	require.NoError(t, err)
	_, err = inv.Allocate(ctx, inventory.AllocateInput{SheetID: b.Sheet.ID, Quantity: q(2)})
	require.NoError(t, err)

	artifact := &inventory.Batch{ID: id.New(), SheetID: b.Sheet.ID, PricingBasis: inventory.PricingNone, ReceivedDate: jan10}
	require.NoError(t, memory.NewInventoryRepo(store).CreateBatch(ctx, artifact))

	removed, err := inv.PruneEmpty(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = inv.GetBatch(ctx, b.Batch.ID)
	require.NoError(t, err)
	_, err = inv.GetBatch(ctx, artifact.ID)
	assert.True(t, apperror.Is(err, apperror.CodeBatchNotFound))
}

func TestValuation(t *testing.T) {
	inv, _, _ := newService(t)
	ctx := context.Background()
	b, err := inv.Receive(ctx, inventory.ReceiveInput{Sheet: spec(), Quantity: q(5), PricePerKg: types.Some(m("10"))})
	require.NoError(t, err)
	_, err = inv.Receive(ctx, inventory.ReceiveInput{SheetID: &b.Sheet.ID, Quantity: q(2)})
	require.NoError(t, err)

	val, err := inv.Valuation(ctx)
	require.NoError(t, err)
	require.Len(t, val.Lines, 1)
	assert.Equal(t, q(7), val.TotalQuantity)
	assert.Equal(t, q(2), val.UncostedQuantity)
	assert.True(t, m("100").Equal(val.TotalValue), "value %s", val.TotalValue)
}
