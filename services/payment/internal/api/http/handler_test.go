package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/auth"
	"github.com/shestoi/adminpanel/platform/metrics"
	"github.com/shestoi/adminpanel/services/payment/internal/repository/memory"
	"github.com/shestoi/adminpanel/services/payment/internal/service"
)

const testSecret = "test-secret"

// fakeOrders order service с фиксированным набором заказов
type fakeOrders struct {
	ids   map[int64]bool
	err   error
	calls int
}

func (f *fakeOrders) OrderExists(_ context.Context, id int64) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.ids[id], nil
}

type testEnv struct {
	router http.Handler
	orders *fakeOrders
	repo   *memory.Repository
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := memory.NewRepository()
	orders := &fakeOrders{ids: map[int64]bool{1: true, 2: true}}
	svc := service.NewPaymentService(repo, orders, memory.NewIdempotencyStore(time.Hour), nil, nil, zap.NewNop())

	token, err := auth.NewIssuer(testSecret, time.Hour).Issue(1, "admin@example.com")
	require.NoError(t, err)

	router := NewRouter(NewHandler(svc, zap.NewNop()), auth.NewVerifier(testSecret), nil, metrics.New("payment"), zap.NewNop())
	return &testEnv{router: router, orders: orders, repo: repo, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+e.token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestCreatePayment(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/payments", map[string]any{"order_id": 1, "amount": 3000, "status": "pending"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var got PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, int64(1), got.ID)
	require.Equal(t, int64(1), got.OrderID)
	require.Equal(t, int64(3000), got.Amount)
	require.Equal(t, "pending", got.Status)
	require.False(t, got.Date.IsZero())
}

func TestCreatePayment_UnknownOrder(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/payments", map[string]any{"order_id": 999, "amount": 100, "status": "pending"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "order id is not valid", decodeError(t, rec))

	list, err := env.repo.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestCreatePayment_OrderStoreUnreachable(t *testing.T) {
	env := newTestEnv(t)
	env.orders.err = apperr.Upstream("order", context.DeadlineExceeded)

	rec := env.do(t, http.MethodPost, "/payments", map[string]any{"order_id": 1, "amount": 100, "status": "pending"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "failed to validate order", decodeError(t, rec))
	require.Equal(t, 1, env.orders.calls)

	list, err := env.repo.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestCreatePayment_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing order_id", map[string]any{"amount": 1, "status": "paid"}},
		{"missing amount", map[string]any{"order_id": 1, "status": "paid"}},
		{"negative amount", map[string]any{"order_id": 1, "amount": -5, "status": "paid"}},
		{"bad status", map[string]any{"order_id": 1, "amount": 5, "status": "done"}},
		{"not an object", "oops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/payments", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotEmpty(t, decodeError(t, rec))
		})
	}
	require.Zero(t, env.orders.calls)
}

func TestCreatePayment_IdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"order_id": 2, "amount": 1500, "status": "pending"}

	first := env.do(t, http.MethodPost, "/payments", body, IdempotencyKeyHeader, "order-2-payment-1")
	require.Equal(t, http.StatusCreated, first.Code)

	second := env.do(t, http.MethodPost, "/payments", body, IdempotencyKeyHeader, "order-2-payment-1")
	require.Equal(t, http.StatusOK, second.Code)
	require.JSONEq(t, first.Body.String(), second.Body.String())

	list, err := env.repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, env.orders.calls)

	conflict := env.do(t, http.MethodPost, "/payments", map[string]any{"order_id": 2, "amount": 1, "status": "pending"},
		IdempotencyKeyHeader, "order-2-payment-1")
	require.Equal(t, http.StatusConflict, conflict.Code)
}

func TestPaymentCRUD(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/payments", map[string]any{"order_id": 1, "amount": 100, "status": "pending"}).Code)

	rec := env.do(t, http.MethodPut, "/payments/1", map[string]any{"order_id": 42, "amount": 250, "status": "paid"})
	require.Equal(t, http.StatusOK, rec.Code, "заказ при обновлении не проверяется")
	var updated PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, int64(42), updated.OrderID)
	require.Equal(t, "paid", updated.Status)

	rec = env.do(t, http.MethodGet, "/payments/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/payments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = env.do(t, http.MethodDelete, "/payments/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"deleted","id":1}`, rec.Body.String())

	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/payments/1", nil).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/payments/1", nil).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/payments/1", map[string]any{"order_id": 1, "amount": 1, "status": "paid"}).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/payments/abc", nil).Code)
}

func TestPayments_RequireToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/payments", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
