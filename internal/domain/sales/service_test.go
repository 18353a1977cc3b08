package sales_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/core/id"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/catalog"
	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/domain/ledger"
	"sheetstock/internal/domain/sales"
	"sheetstock/internal/infrastructure/storage/memory"
	"sheetstock/pkg/numerator"
)

type fixture struct {
	ctx    context.Context
	store  *memory.Store
	inv    *inventory.Service
	ledger *ledger.Service
	sales  *sales.Service
}

func newFixture(t *testing.T, cat *catalog.Service) *fixture {
	t.Helper()
	store := memory.New()
	led := ledger.NewService(memory.NewLedgerRepo(store), store)
	inv := inventory.NewService(memory.NewInventoryRepo(store), store, cat, led)
	svc := sales.NewService(memory.NewSalesRepo(store), store, inv, led, numerator.New(store), cat)
	return &fixture{
		ctx:    context.Background(),
		store:  store,
		inv:    inv,
		ledger: led,
		sales:  svc,
	}
}

var (
	day1 = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	day5 = time.Date(2026, time.March, 5, 15, 0, 0, 0, time.UTC)
)

func qty(n int64) types.Quantity { return types.NewQuantity(n) }

func money(s string) types.Money { return types.MustMoney(s) }

func sheetSpec(length int64) *inventory.SheetSpec {
	return &inventory.SheetSpec{
		MetalType:     "ALU",
		LengthMM:      money("2000").Add(decimal.NewFromInt(length)),
		WidthMM:       money("1000"),
		ThicknessMM:   money("1"),
		WeightPerUnit: types.Some(money("2")),
	}
}

// receive adds a batch priced at 10/kg with 2 kg per unit.
func (f *fixture) receive(t *testing.T, sheetID *id.ID, length int64, n int64, at time.Time) *inventory.ReceiveResult {
	t.Helper()
	in := inventory.ReceiveInput{
		Quantity:     qty(n),
		PricePerKg:   types.Some(money("10")),
		ReceivedDate: at,
	}
	if sheetID != nil {
		in.SheetID = sheetID
	} else {
		in.Sheet = sheetSpec(length)
	}
	res, err := f.inv.Receive(f.ctx, in)
	require.NoError(t, err)
	return res
}

func (f *fixture) customer(t *testing.T) *ledger.Party {
	t.Helper()
	p, err := f.ledger.CreateParty(f.ctx, ledger.CreatePartyInput{Kind: ledger.KindCustomer, Name: "Acme Fabrication"})
	require.NoError(t, err)
	return p
}

func (f *fixture) remaining(t *testing.T, batchID id.ID) types.Quantity {
	t.Helper()
	b, err := f.inv.GetBatch(f.ctx, batchID)
	require.NoError(t, err)
	return b.QuantityRemaining
}

func materialLine(sheetID id.ID, n int64, price string) sales.LineInput {
	return sales.LineInput{
		Kind:      sales.KindMaterial,
		SheetID:   &sheetID,
		Quantity:  qty(n),
		UnitPrice: money(price),
	}
}

func TestCreateSale_DrawsOldestBatchFirst(t *testing.T) {
	f := newFixture(t, nil)
	b1 := f.receive(t, nil, 0, 5, day1)
	b2 := f.receive(t, &b1.Sheet.ID, 0, 10, day2)

	sale, err := f.sales.CreateSale(f.ctx, sales.CreateSaleInput{
		Date:  day5,
		Items: []sales.LineInput{materialLine(b1.Sheet.ID, 7, "40")},
	})
	require.NoError(t, err)

	require.Len(t, sale.Items, 1)
	allocs := sale.Items[0].Allocations
	require.Len(t, allocs, 2)
	assert.Equal(t, b1.Batch.ID, allocs[0].BatchID)
	assert.Equal(t, qty(5), allocs[0].Quantity)
	assert.Equal(t, b2.Batch.ID, allocs[1].BatchID)
	assert.Equal(t, qty(2), allocs[1].Quantity)

	assert.Equal(t, qty(0), f.remaining(t, b1.Batch.ID))
	assert.Equal(t, qty(8), f.remaining(t, b2.Batch.ID))
}

func TestCreateSale_FreezesFIFOCost(t *testing.T) {
	f := newFixture(t, nil)
	b := f.receive(t, nil, 0, 5, day1)
	require.True(t, b.Batch.Cost.TotalCost.Valid)
	assert.True(t, money("100").Equal(b.Batch.Cost.TotalCost.Decimal))

	sale, err := f.sales.CreateSale(f.ctx, sales.CreateSaleInput{
		Date:  day5,
		Items: []sales.LineInput{materialLine(b.Sheet.ID, 3, "40")},
	})
	require.NoError(t, err)

	it := sale.Items[0]
	assert.True(t, money("60").Equal(it.CostTotal), "cogs %s", it.CostTotal)
	assert.True(t, money("120").Equal(it.LineTotal), "revenue %s", it.LineTotal)
	assert.True(t, money("60").Equal(it.GrossProfit()))
	assert.True(t, money("20").Equal(it.UnitCost))
	assert.True(t, it.CostKnown)
	assert.True(t, money("60").Equal(sale.CostOfGoods()))

	stored, err := f.sales.GetSale(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, money("60").Equal(stored.Items[0].CostTotal))
	assert.Equal(t, "SAL-2026-00001", stored.Number)
}

func TestCreateSale_PostsSaleAndPayment(t *testing.T) {
	f := newFixture(t, nil)
	b := f.receive(t, nil, 0, 10, day1)
	cust := f.customer(t)

	sale, err := f.sales.CreateSale(f.ctx, sales.CreateSaleInput{
		CustomerID: &cust.ID,
		Date:       day5,
		Items:      []sales.LineInput{materialLine(b.Sheet.ID, 5, "100")},
		Paid:       types.Some(money("200")),
	})
	require.NoError(t, err)
	assert.True(t, money("500").Equal(sale.Total))
	assert.True(t, money("300").Equal(sale.Remaining))

	var lines []ledger.Transaction
	for tr, err := range f.ledger.Statement(f.ctx, cust.ID, ledger.StatementRange{}) {
		require.NoError(t, err)
		lines = append(lines, tr)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, ledger.TypeSale, lines[0].Type)
	assert.True(t, money("500").Equal(lines[0].Amount))
	assert.True(t, money("500").Equal(lines[0].BalanceAfter))
	assert.Equal(t, ledger.TypePayment, lines[1].Type)
	assert.True(t, money("-200").Equal(lines[1].Amount))
	assert.True(t, money("300").Equal(lines[1].BalanceAfter))

	balance, err := f.ledger.Balance(f.ctx, cust.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(sale.Remaining))
}

func TestCreateSale_SecondLineShortRollsBackFirst(t *testing.T) {
	f := newFixture(t, nil)
	a := f.receive(t, nil, 0, 5, day1)
	b := f.receive(t, nil, 500, 2, day1)
	before, err := f.store.Stats(f.ctx)
	require.NoError(t, err)

	_, err = f.sales.CreateSale(f.ctx, sales.CreateSaleInput{
		Date: day5,
		Items: []sales.LineInput{
			materialLine(a.Sheet.ID, 3, "40"),
			materialLine(b.Sheet.ID, 3, "40"),
		},
	})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock), "got %v", err)

	assert.Equal(t, qty(5), f.remaining(t, a.Batch.ID))
	assert.Equal(t, qty(2), f.remaining(t, b.Batch.ID))

	after, err := f.store.Stats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// The aborted sale did not consume a number.
	sale, err := f.sales.CreateSale(f.ctx, sales.CreateSaleInput{
		Date:  day5,
		Items: []sales.LineInput{materialLine(a.Sheet.ID, 1, "40")},
	})
	require.NoError(t, err)
	assert.Equal(t, "SAL-2026-00001", sale.Number)
}

func TestCreateSale_ConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t, nil)
	b := f.receive(t, nil, 0, 10, day1)

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
		short   int
		other   []error
	)
	start := make(chan struct{})
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			sale, err := f.sales.CreateSale(f.ctx, sales.CreateSaleInput{
				Date:  day5,
				Items: []sales.LineInput{materialLine(b.Sheet.ID, 3, "40")},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				numbers = append(numbers, sale.Number)
			case apperror.Is(err, apperror.CodeInsufficientStock):
				short++
			default:
				other = append(other, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, other)
	assert.Len(t, numbers, 3)
	assert.Equal(t, workers-3, short)
	assert.Equal(t, qty(1), f.remaining(t, b.Batch.ID))

	seen := make(map[string]bool, len(numbers))
	for _, n := range numbers {
		assert.False(t, seen[n], "duplicate sale number %s", n)
		seen[n] = true
	}

	st, err := f.store.Stats(f.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, st.Sales)
}

func TestDeleteSale_RestoresStockAndBalance(t *testing.T) {
	f := newFixture(t, nil)
	b1 := f.receive(t, nil, 0, 5, day1)
	b2 := f.receive(t, &b1.Sheet.ID, 0, 10, day2)
	cust := f.customer(t)

	sale, err := f.sales.CreateSale(f.ctx, sales.CreateSaleInput{
		CustomerID: &cust.ID,
		Date:       day5,
		Items: []sales.LineInput{
			materialLine(b1.Sheet.ID, 7, "40"),
			{Kind: sales.KindService, ServiceType: "cutting", UnitPrice: money("15")},
		},
		Paid: types.Some(money("100")),
	})
	require.NoError(t, err)
	bal, err := f.ledger.Balance(f.ctx, cust.ID)
	require.NoError(t, err)
	assert.True(t, money("195").Equal(bal), "balance %s", bal)

	require.NoError(t, f.sales.DeleteSale(f.ctx, sale.ID))

	assert.Equal(t, qty(5), f.remaining(t, b1.Batch.ID))
	assert.Equal(t, qty(10), f.remaining(t, b2.Batch.ID))
	bal, err = f.ledger.Balance(f.ctx, cust.ID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero(), "balance %s", bal)

	_, err = f.sales.GetSale(f.ctx, sale.ID)
	assert.True(t, apperror.Is(err, apperror.CodeSaleNotFound))

	err = f.sales.DeleteSale(f.ctx, sale.ID)
	assert.True(t, apperror.Is(err, apperror.CodeSaleNotFound))
}

func TestCreateSale_RemnantIsCapturedAndRemovedOnDelete(t *testing.T) {
	f := newFixture(t, nil)
	b := f.receive(t, nil, 0, 5, day1)

	line := materialLine(b.Sheet.ID, 1, "40")
	line.Remnant = &sales.RemnantSpec{LengthMM: money("800"), WidthMM: money("1000"), Quantity: qty(1)}
	sale, err := f.sales.CreateSale(f.ctx, sales.CreateSaleInput{Date: day5, Items: []sales.LineInput{line}})
	require.NoError(t, err)

	remnantID := sale.Items[0].RemnantBatchID
	require.NotNil(t, remnantID)
	remnant, err := f.inv.GetBatch(f.ctx, *remnantID)
	require.NoError(t, err)
	assert.Nil(t, remnant.SupplierID)
	assert.Equal(t, qty(1), remnant.QuantityRemaining)

	sheet, err := f.inv.GetSheet(f.ctx, remnant.SheetID)
	require.NoError(t, err)
	assert.True(t, sheet.IsRemnant)
	assert.Equal(t, b.Sheet.ID, *sheet.ParentSheetID)

	require.NoError(t, f.sales.DeleteSale(f.ctx, sale.ID))
	_, err = f.inv.GetBatch(f.ctx, *remnantID)
	assert.True(t, apperror.Is(err, apperror.CodeBatchNotFound))
	assert.Equal(t, qty(5), f.remaining(t, b.Batch.ID))
}

func TestDeleteSale_ConsumedRemnantBlocksDelete(t *testing.T) {
	f := newFixture(t, nil)
	b := f.receive(t, nil, 0, 5, day1)

	line := materialLine(b.Sheet.ID, 1, "40")
	line.Remnant = &sales.RemnantSpec{LengthMM: money("800"), WidthMM: money("1000"), Quantity: qty(1)}
	sale, err := f.sales.CreateSale(f.ctx, sales.CreateSaleInput{Date: day5, Items: []sales.LineInput{line}})
	require.NoError(t, err)

	remnant, err := f.inv.GetBatch(f.ctx, *sale.Items[0].RemnantBatchID)
	require.NoError(t, err)
	_, err = f.sales.CreateSale(f.ctx, sales.CreateSaleInput{
		Date:  day5,
		Items: []sales.LineInput{materialLine(remnant.SheetID, 1, "15")},
	})
	require.NoError(t, err)

	err = f.sales.DeleteSale(f.ctx, sale.ID)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeRemnantConsumed))
	assert.Equal(t, qty(4), f.remaining(t, b.Batch.ID), "failed delete must not restore stock")
}

func TestCreateSale_PinnedBatch(t *testing.T) {
	f := newFixture(t, nil)
	b1 := f.receive(t, nil, 0, 5, day1)
	b2 := f.receive(t, &b1.Sheet.ID, 0, 5, day2)

	sale, err := f.sales.CreateSale(f.ctx, sales.CreateSaleInput{
		Date: day5,
		Items: []sales.LineInput{{
			Kind:      sales.KindMaterial,
			BatchID:   &b2.Batch.ID,
			Quantity:  qty(2),
			UnitPrice: money("40"),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, b1.Sheet.ID, *sale.Items[0].SheetID)
	assert.Equal(t, qty(5), f.remaining(t, b1.Batch.ID))
	assert.Equal(t, qty(3), f.remaining(t, b2.Batch.ID))
}

func TestCreateSale_IgnoresBatchesReceivedAfterSaleDate(t *testing.T) {
	f := newFixture(t, nil)
	b := f.receive(t, nil, 0, 5, day5)

	_, err := f.sales.CreateSale(f.ctx, sales.CreateSaleInput{
		Date:  day1,
		Items: []sales.LineInput{materialLine(b.Sheet.ID, 1, "40")},
	})
	assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock))
}

func TestCreateSale_TaxAndDiscountRule(t *testing.T) {
	profile := catalog.DefaultProfile()
	profile.TaxRatePercent = money("10")
	profile.DiscountRule = "subtotal >= 100.0 ? 20.0 : 0.0"
	cat, err := catalog.NewService(profile, catalog.Catalogs{})
	require.NoError(t, err)

	f := newFixture(t, cat)
	b := f.receive(t, nil, 0, 5, day1)

	sale, err := f.sales.CreateSale(f.ctx, sales.CreateSaleInput{
		Date:  day5,
		Items: []sales.LineInput{materialLine(b.Sheet.ID, 5, "40")},
	})
	require.NoError(t, err)
	assert.True(t, money("200").Equal(sale.Subtotal))
	assert.True(t, money("20").Equal(sale.Discount))
	assert.True(t, money("18").Equal(sale.Tax))
	assert.True(t, money("198").Equal(sale.Total))
	assert.True(t, sale.Total.Equal(sale.Paid), "walk-in sale is paid in full")
	assert.True(t, sale.Remaining.IsZero())
	require.NoError(t, sale.CheckTotals())
}

func TestCreateSale_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	b := f.receive(t, nil, 0, 5, day1)
	missing := id.New()

	tests := []struct {
		name string
		in   sales.CreateSaleInput
		code string
	}{
		{
			name: "no items",
			in:   sales.CreateSaleInput{},
			code: apperror.CodeValidation,
		},
		{
			name: "unknown customer",
			in: sales.CreateSaleInput{
				CustomerID: &missing,
				Items:      []sales.LineInput{materialLine(b.Sheet.ID, 1, "40")},
			},
			code: apperror.CodePartyNotFound,
		},
		{
			name: "service without price",
			in: sales.CreateSaleInput{
				Items: []sales.LineInput{{Kind: sales.KindService, ServiceType: "bending"}},
			},
			code: apperror.CodeInvalidAmount,
		},
		{
			name: "zero material quantity",
			in: sales.CreateSaleInput{
				Items: []sales.LineInput{materialLine(b.Sheet.ID, 0, "40")},
			},
			code: apperror.CodeValidation,
		},
		{
			name: "open balance without customer",
			in: sales.CreateSaleInput{
				Items: []sales.LineInput{materialLine(b.Sheet.ID, 1, "40")},
				Paid:  types.Some(money("10")),
			},
			code: apperror.CodeValidation,
		},
		{
			name: "paid above total",
			in: sales.CreateSaleInput{
				Items: []sales.LineInput{materialLine(b.Sheet.ID, 1, "40")},
				Paid:  types.Some(money("41")),
			},
			code: apperror.CodeInvalidAmount,
		},
		{
			name: "unknown sheet",
			in: sales.CreateSaleInput{
				Items: []sales.LineInput{materialLine(missing, 1, "40")},
			},
			code: apperror.CodeSheetNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := sales.ResultOf(f.sales.CreateSale(f.ctx, tt.in))
			assert.False(t, res.Success)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.code, res.Error.Code)
		})
	}

	assert.Equal(t, qty(5), f.remaining(t, b.Batch.ID))
}

func TestResultOf_Success(t *testing.T) {
	sale := &sales.Sale{ID: id.New()}
	res := sales.ResultOf(sale, nil)
	assert.True(t, res.Success)
	assert.Equal(t, sale.ID, *res.SaleID)
	assert.Nil(t, res.Error)
}
