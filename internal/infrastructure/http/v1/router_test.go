package v1_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/domain/ledger"
	"sheetstock/internal/domain/maintenance"
	"sheetstock/internal/domain/reconciliation"
	"sheetstock/internal/domain/reports"
	"sheetstock/internal/domain/sales"
	v1 "sheetstock/internal/infrastructure/http/v1"
	"sheetstock/internal/infrastructure/http/v1/dto"
	"sheetstock/internal/infrastructure/idempotency"
	"sheetstock/internal/infrastructure/metrics"
	"sheetstock/internal/infrastructure/storage/memory"
	"sheetstock/pkg/logger"
	"sheetstock/pkg/numerator"
)

type api struct {
	router http.Handler
}

func newAPI(t *testing.T) *api {
	t.Helper()
	store := memory.New()
	m := metrics.New(&metrics.Config{Namespace: "sheetstock"})

	led := ledger.NewService(memory.NewLedgerRepo(store), store)
	led.SetObserver(m)
	inv := inventory.NewService(memory.NewInventoryRepo(store), store, nil, led)
	inv.SetObserver(m)
	numbers := numerator.New(store)
	sal := sales.NewService(memory.NewSalesRepo(store), store, inv, led, numbers, nil)
	sal.SetObserver(m)
	rec := reconciliation.NewEngine(memory.NewLedgerRepo(store), store)
	rec.SetObserver(m)

	router := v1.NewRouter(v1.RouterConfig{
		Logger:         logger.NewNop(),
		Metrics:        m,
		Idempotency:    idempotency.NewMemoryStore(idempotency.DefaultTTL),
		StorageDriver:  "memory",
		Version:        "test",
		Inventory:      inv,
		Ledger:         led,
		Sales:          sal,
		Reconciliation: rec,
		Reports:        reports.NewService(sal, inv),
		Maintenance:    maintenance.NewService(store),
	})
	return &api{router: router}
}

func (a *api) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *api) receiveSheet(t *testing.T, qty int64) inventory.ReceiveResult {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/batches", map[string]any{
		"sheet": map[string]any{
			"metalType":     "ALU",
			"lengthMm":      "2000",
			"widthMm":       "1000",
			"thicknessMm":   "1",
			"weightPerUnit": "2",
		},
		"quantity":   qty,
		"pricePerKg": "10",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[inventory.ReceiveResult](t, w)
}

func (a *api) createCustomer(t *testing.T, name string) ledger.Party {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/parties", map[string]any{"kind": "customer", "name": name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[ledger.Party](t, w)
}

func TestHealthLive(t *testing.T) {
	a := newAPI(t)
	w := a.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestSaleLifecycle(t *testing.T) {
	a := newAPI(t)
	received := a.receiveSheet(t, 5)
	assert.True(t, received.Batch.Cost.CostKnown)
	assert.True(t, types.MustMoney("100").Equal(received.Batch.Cost.TotalCost.Decimal))

	customer := a.createCustomer(t, "Acme")

	w := a.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
		"customerId": customer.ID,
		"paid":       "20",
		"items": []map[string]any{{
			"kind":      "material",
			"sheetId":   received.Sheet.ID,
			"quantity":  3,
			"unitPrice": "40",
		}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	result := decode[sales.SaleResult](t, w)
	require.True(t, result.Success)
	require.NotNil(t, result.Sale)
	assert.True(t, types.MustMoney("120").Equal(result.Sale.Total))
	assert.True(t, types.MustMoney("60").Equal(result.Sale.CostOfGoods()))

	w = a.do(t, http.MethodGet, "/api/v1/parties/"+customer.ID.String()+"/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	balance := decode[dto.BalanceResponse](t, w)
	assert.True(t, types.MustMoney("100").Equal(balance.Balance), balance.Balance.String())

	w = a.do(t, http.MethodGet, "/api/v1/parties/"+customer.ID.String()+"/statement", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stmt := decode[dto.StatementResponse](t, w)
	require.Len(t, stmt.Lines, 2)
	assert.True(t, types.MustMoney("100").Equal(stmt.Closing))

	w = a.do(t, http.MethodGet, "/api/v1/sheets/"+received.Sheet.ID.String()+"/batches", nil)
	require.Equal(t, http.StatusOK, w.Code)
	batches := decode[dto.SheetBatchesResponse](t, w)
	assert.Equal(t, types.NewQuantity(2), batches.Available)

	w = a.do(t, http.MethodDelete, "/api/v1/sales/"+result.SaleID.String(), nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = a.do(t, http.MethodGet, "/api/v1/parties/"+customer.ID.String()+"/balance", nil)
	balance = decode[dto.BalanceResponse](t, w)
	assert.True(t, balance.Balance.IsZero(), balance.Balance.String())

	w = a.do(t, http.MethodGet, "/api/v1/sheets/"+received.Sheet.ID.String()+"/batches", nil)
	batches = decode[dto.SheetBatchesResponse](t, w)
	assert.Equal(t, types.NewQuantity(5), batches.Available)

	w = a.do(t, http.MethodGet, "/api/v1/sales/"+result.SaleID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateSale_FailureShape(t *testing.T) {
	a := newAPI(t)
	received := a.receiveSheet(t, 2)

	w := a.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
		"items": []map[string]any{{
			"kind":      "material",
			"sheetId":   received.Sheet.ID,
			"quantity":  3,
			"unitPrice": "40",
		}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	body := decode[dto.ErrorResponse](t, w)
	assert.False(t, body.Success)
	assert.Equal(t, apperror.CodeInsufficientStock, body.Code)

	w = a.do(t, http.MethodPost, "/api/v1/sales", map[string]any{"items": []any{}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, decode[dto.ErrorResponse](t, w).Code)
}

func TestSettle_RejectsNegativeAmount(t *testing.T) {
	a := newAPI(t)
	customer := a.createCustomer(t, "Acme")

	w := a.do(t, http.MethodPost, "/api/v1/parties/"+customer.ID.String()+"/settle", map[string]any{"amount": "-10"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeInvalidAmount, decode[dto.ErrorResponse](t, w).Code)
}

func TestInvalidPathID(t *testing.T) {
	a := newAPI(t)
	w := a.do(t, http.MethodGet, "/api/v1/parties/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIdempotentCreateReplays(t *testing.T) {
	a := newAPI(t)
	body := map[string]any{"kind": "supplier", "name": "Steel Co"}

	first := a.do(t, http.MethodPost, "/api/v1/parties", body, "X-Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code)
	second := a.do(t, http.MethodPost, "/api/v1/parties", body, "X-Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, decode[ledger.Party](t, first).ID, decode[ledger.Party](t, second).ID)

	w := a.do(t, http.MethodGet, "/api/v1/parties?kind=supplier", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]ledger.Party](t, w), 1)

	w = a.do(t, http.MethodPost, "/api/v1/parties", map[string]any{"kind": "supplier", "name": "Other"}, "X-Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeIdempotencyKeyReused, decode[dto.ErrorResponse](t, w).Code)
}

func TestListParties_RejectsUnknownKind(t *testing.T) {
	a := newAPI(t)
	w := a.do(t, http.MethodGet, "/api/v1/parties?kind=vendor", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReconcile(t *testing.T) {
	a := newAPI(t)
	customer := a.createCustomer(t, "Acme")

	w := a.do(t, http.MethodPost, "/api/v1/reconcile/customers", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decode[reconciliation.Summary](t, w)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 0, summary.Corrected)

	w = a.do(t, http.MethodPost, "/api/v1/reconcile/parties/"+customer.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[reconciliation.Result](t, w).Corrected)

	w = a.do(t, http.MethodPost, "/api/v1/reconcile/vendors", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReports(t *testing.T) {
	a := newAPI(t)

	w := a.do(t, http.MethodGet, "/api/v1/reports/profit", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "from and to are required")

	w = a.do(t, http.MethodGet, "/api/v1/reports/profit?from=2026-01-01&to=2026-12-31", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	profit := decode[reports.ProfitBreakdown](t, w)
	assert.Equal(t, 0, profit.Sales)

	w = a.do(t, http.MethodGet, "/api/v1/reports/best-selling?from=2026-01-01&to=2026-12-31&kind=color", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	a.receiveSheet(t, 5)
	w = a.do(t, http.MethodGet, "/api/v1/reports/valuation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	val := decode[inventory.Valuation](t, w)
	assert.True(t, types.MustMoney("100").Equal(val.TotalValue), val.TotalValue.String())
}

func TestMaintenance(t *testing.T) {
	a := newAPI(t)
	a.receiveSheet(t, 5)

	w := a.do(t, http.MethodGet, "/api/v1/maintenance/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[maintenance.Stats](t, w).Batches)

	w = a.do(t, http.MethodGet, "/api/v1/maintenance/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zstd", w.Header().Get("Content-Type"))
	snap, err := maintenance.ReadSnapshot(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Len(t, snap.Batches, 1)

	w = a.do(t, http.MethodPost, "/api/v1/maintenance/clear", dto.ConfirmRequest{Confirm: "yes"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeConfirmationRequired, decode[dto.ErrorResponse](t, w).Code)

	w = a.do(t, http.MethodPost, "/api/v1/maintenance/clear", dto.ConfirmRequest{Confirm: maintenance.ConfirmClear})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[maintenance.Result](t, w).Success)

	w = a.do(t, http.MethodGet, "/api/v1/maintenance/stats", nil)
	st := decode[maintenance.Stats](t, w)
	assert.Equal(t, 0, st.Batches)
	assert.Equal(t, 1, st.Sheets)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newAPI(t)
	a.do(t, http.MethodGet, "/health/live", nil)

	w := a.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `sheetstock_http_requests_total{method="GET",path="/health/live",status="200"} 1`)
}
