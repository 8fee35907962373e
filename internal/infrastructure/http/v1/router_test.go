package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantry/internal/core/apperror"
	"pantry/internal/core/types"
	"pantry/internal/domain/catalog"
	"pantry/internal/domain/ledger"
	v1 "pantry/internal/infrastructure/http/v1"
	"pantry/internal/infrastructure/http/v1/middleware"
	"pantry/internal/infrastructure/idempotency"
	"pantry/internal/infrastructure/storage/memory"
)

type api struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	return newAPIWithLedger(t, memory.NewLedgerStore())
}

func newAPIWithLedger(t *testing.T, led ledger.Repository) *api {
	t.Helper()
	cat := memory.NewCatalogStore()
	clock := func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) }

	router := v1.NewRouter(v1.RouterConfig{
		Ledger:            ledger.NewService(led, cat, ledger.Config{Clock: clock}),
		Catalog:           catalog.NewService(cat),
		Idempotency:       idempotency.NewMemoryStore(time.Hour),
		Storage:           "memory",
		LowStockThreshold: types.MustQuantity("2"),
		Mode:              gin.TestMode,
	})
	return &api{t: t, router: router}
}

func (a *api) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
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

func (a *api) decode(w *httptest.ResponseRecorder) map[string]any {
	a.t.Helper()
	var out map[string]any
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// burger seeds beef (kg) and bun (unit) with a burger using 120 g of beef and one bun.
func (a *api) burger() {
	a.t.Helper()
	for _, ing := range []map[string]any{
		{"id": "beef", "name": "Beef", "purchaseUnit": "kg", "category": "meat"},
		{"id": "bun", "name": "Bun", "purchaseUnit": "unit", "category": "bakery"},
	} {
		w := a.do(http.MethodPost, "/api/v1/ingredients", ing)
		require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	}
	for _, u := range []map[string]any{
		{"id": "u-beef", "baseIngredientId": "beef", "quantityPerPortion": 120, "unit": "g"},
		{"id": "u-bun", "baseIngredientId": "bun", "quantityPerPortion": 1, "unit": "unit"},
	} {
		w := a.do(http.MethodPost, "/api/v1/usages", u)
		require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	}
	w := a.do(http.MethodPost, "/api/v1/products", map[string]any{
		"id": "burger", "name": "Burger", "usageIds": []string{"u-beef", "u-bun"},
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/api/v1/purchases", map[string]any{
		"ingredientId": "beef", "quantity": 2, "totalPrice": 40,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	w = a.do(http.MethodPost, "/api/v1/purchases", map[string]any{
		"ingredientId": "bun", "quantity": 10, "totalPrice": 5,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
}

func TestHealth(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", a.decode(w)["checks"].(map[string]any)["memory"])
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}

func TestHealth_NotReady(t *testing.T) {
	router := v1.NewRouter(v1.RouterConfig{
		Storage: "postgres",
		Ready:   func(context.Context) error { return errors.New("connection refused") },
		Mode:    gin.TestMode,
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPurchaseAndStock(t *testing.T) {
	a := newAPI(t)
	a.burger()

	w := a.do(http.MethodGet, "/api/v1/ingredients/beef/stock", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := a.decode(w)
	assert.Equal(t, "2", body["quantity"])
	assert.Equal(t, "40", body["value"])

	w = a.do(http.MethodGet, "/api/v1/ingredients/unknown/stock", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", a.decode(w)["quantity"])

	w = a.do(http.MethodGet, "/api/v1/ingredients/beef/lots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, a.decode(w)["totalCount"])
}

func TestPurchase_Rejected(t *testing.T) {
	a := newAPI(t)
	a.burger()

	tests := []struct {
		name string
		body map[string]any
		code int
	}{
		{"zero quantity", map[string]any{"ingredientId": "beef", "quantity": 0, "totalPrice": 1}, http.StatusBadRequest},
		{"negative price", map[string]any{"ingredientId": "beef", "quantity": 1, "totalPrice": -1}, http.StatusBadRequest},
		{"missing ingredient id", map[string]any{"quantity": 1, "totalPrice": 1}, http.StatusBadRequest},
		{"unknown ingredient", map[string]any{"ingredientId": "tofu", "quantity": 1, "totalPrice": 1}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(http.MethodPost, "/api/v1/purchases", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestSale_ConsumesAndRecordsActor(t *testing.T) {
	a := newAPI(t)
	a.burger()

	w := a.do(http.MethodPost, "/api/v1/sales", map[string]any{
		"orderId": "o-1",
		"items":   []map[string]any{{"productId": "burger", "quantity": 3}},
	}, middleware.HeaderActor, "till-3")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := a.decode(w)
	assert.Equal(t, "completed", body["state"])
	assert.Equal(t, true, body["satisfied"])

	w = a.do(http.MethodGet, "/api/v1/ingredients/beef/stock", nil)
	assert.Equal(t, "1.64", a.decode(w)["quantity"])

	w = a.do(http.MethodGet, "/api/v1/ingredients/beef/movements?orderRef=o-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := a.decode(w)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "till-3", items[0].(map[string]any)["performedBy"])
}

func TestSale_Shortfall(t *testing.T) {
	a := newAPI(t)
	a.burger()

	w := a.do(http.MethodPost, "/api/v1/sales", map[string]any{
		"orderId": "o-2",
		"items":   []map[string]any{{"productId": "burger", "quantity": 12}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := a.decode(w)
	assert.Equal(t, false, body["satisfied"])

	w = a.do(http.MethodGet, "/api/v1/ingredients/bun/reconciliation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec := a.decode(w)
	assert.Equal(t, true, rec["balanced"])
	assert.Equal(t, "2", rec["shortfallTotal"])
}

func TestSale_UnknownProductIsNotFound(t *testing.T) {
	a := newAPI(t)
	a.burger()

	w := a.do(http.MethodPost, "/api/v1/sales", map[string]any{
		"orderId": "o-3",
		"items": []map[string]any{
			{"productId": "burger", "quantity": 1},
			{"productId": "pizza", "quantity": 1},
		},
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, a.decode(w)["code"])

	w = a.do(http.MethodGet, "/api/v1/ingredients/beef/stock", nil)
	assert.Equal(t, "2", a.decode(w)["quantity"], "nothing is consumed when an item cannot be resolved")
}

func TestSale_IdempotentReplay(t *testing.T) {
	a := newAPI(t)
	a.burger()

	sale := map[string]any{
		"orderId": "o-4",
		"items":   []map[string]any{{"productId": "burger", "quantity": 1}},
	}
	first := a.do(http.MethodPost, "/api/v1/sales", sale, middleware.HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := a.do(http.MethodPost, "/api/v1/sales", sale, middleware.HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	w := a.do(http.MethodGet, "/api/v1/ingredients/bun/stock", nil)
	assert.Equal(t, "9", a.decode(w)["quantity"], "replay must not consume again")

	sale["orderId"] = "o-5"
	w = a.do(http.MethodPost, "/api/v1/sales", sale, middleware.HeaderIdempotencyKey, "key-1")
	assert.Equal(t, http.StatusConflict, w.Code)
}

// bunOutage fails every outgoing bun movement.
type bunOutage struct {
	*memory.LedgerStore
}

func (r bunOutage) AppendMovement(ctx context.Context, m *ledger.StockMovement) error {
	if m.IngredientID == "bun" && m.Direction == ledger.DirectionOut {
		return errors.New("disk full")
	}
	return r.LedgerStore.AppendMovement(ctx, m)
}

func TestSale_PartialFailureReplaysInsteadOfConsumingAgain(t *testing.T) {
	a := newAPIWithLedger(t, bunOutage{memory.NewLedgerStore()})
	a.burger()

	sale := map[string]any{
		"orderId": "o-6",
		"items":   []map[string]any{{"productId": "burger", "quantity": 1}},
	}
	first := a.do(http.MethodPost, "/api/v1/sales", sale, middleware.HeaderIdempotencyKey, "key-6")
	require.Equal(t, http.StatusInternalServerError, first.Code, first.Body.String())
	body := a.decode(first)
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.Equal(t, []any{"bun"}, body["details"].(map[string]any)["sale"].(map[string]any)["failed"])

	w := a.do(http.MethodGet, "/api/v1/ingredients/beef/stock", nil)
	assert.Equal(t, "1.88", a.decode(w)["quantity"])

	second := a.do(http.MethodPost, "/api/v1/sales", sale, middleware.HeaderIdempotencyKey, "key-6")
	require.Equal(t, http.StatusInternalServerError, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	w = a.do(http.MethodGet, "/api/v1/ingredients/beef/stock", nil)
	assert.Equal(t, "1.88", a.decode(w)["quantity"], "beef must not be consumed twice")
}

func TestSufficiency(t *testing.T) {
	a := newAPI(t)
	a.burger()

	w := a.do(http.MethodGet, "/api/v1/products/burger/sufficiency?quantity=15", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := a.decode(w)
	assert.Equal(t, false, body["sufficient"])
	assert.Len(t, body["shortages"], 1)

	w = a.do(http.MethodGet, "/api/v1/products/burger/sufficiency?quantity=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, "/api/v1/products/pizza/sufficiency", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConsumeAndDelete(t *testing.T) {
	a := newAPI(t)
	a.burger()

	w := a.do(http.MethodPost, "/api/v1/ingredients/bun/consume", map[string]any{"quantity": 2, "reason": "waste"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "2", a.decode(w)["consumed"])

	w = a.do(http.MethodPost, "/api/v1/ingredients/bun/consume", map[string]any{"quantity": 1, "reason": "theft"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodDelete, "/api/v1/ingredients/bun", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(http.MethodPost, "/api/v1/ingredients", map[string]any{"id": "salt", "name": "Salt", "purchaseUnit": "kg"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = a.do(http.MethodDelete, "/api/v1/ingredients/salt", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = a.do(http.MethodGet, "/api/v1/ingredients/salt", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLowStockAndValuation(t *testing.T) {
	a := newAPI(t)
	a.burger()

	w := a.do(http.MethodGet, "/api/v1/alerts/low-stock", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := a.decode(w)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "beef", items[0].(map[string]any)["ingredientId"])

	w = a.do(http.MethodGet, "/api/v1/alerts/low-stock?threshold=20", nil)
	assert.EqualValues(t, 2, a.decode(w)["totalCount"])

	w = a.do(http.MethodGet, "/api/v1/valuation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "45", a.decode(w)["total"])
}
