package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/auth"
	platformhealth "github.com/shestoi/adminpanel/platform/health/http"
	"github.com/shestoi/adminpanel/platform/metrics"
	"github.com/shestoi/adminpanel/services/order/internal/client"
	"github.com/shestoi/adminpanel/services/order/internal/repository/memory"
	"github.com/shestoi/adminpanel/services/order/internal/service"
	"github.com/shestoi/adminpanel/services/order/internal/service/mocks"
)

const testSecret = "test-secret"

type testEnv struct {
	router   http.Handler
	repo     *memory.Repository
	products *mocks.ProductClient
	payments *mocks.PaymentClient
	token    string
}

func newTestEnv(t *testing.T, mode service.FailureMode) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:     memory.NewRepository("order.events"),
		products: mocks.NewProductClient(t),
		payments: mocks.NewPaymentClient(t),
	}
	svc := service.NewOrderService(env.repo, env.products, env.payments, mode, nil, zap.NewNop())

	token, err := auth.NewIssuer(testSecret, time.Hour).Issue(1, "admin@example.com")
	require.NoError(t, err)
	env.token = token

	checks := map[string]platformhealth.Check{"postgres": func(context.Context) error { return nil }}
	env.router = NewRouter(NewHandler(svc, zap.NewNop()), auth.NewVerifier(testSecret), checks, metrics.New("order"), zap.NewNop())
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+e.token)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestCreateOrder_Linked(t *testing.T) {
	env := newTestEnv(t, service.FailOpen)
	env.products.On("GetProduct", mock.Anything, int64(5)).Return(client.Product{ID: 5, Price: 1000}, nil).Once()
	env.payments.On("CreatePayment", mock.MatchedBy(func(ctx context.Context) bool {
		// токен вызывающего уходит дальше без изменений
		token, ok := auth.TokenFromContext(ctx)
		return ok && token == env.token
	}), mock.Anything).Return(int64(9), nil).Once()

	rec := env.do(t, http.MethodPost, "/orders", map[string]any{"user_id": 1, "product_id": 5, "quantity": 3})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Empty(t, rec.Header().Get(WarningHeader))

	got := decode[OrderResponse](t, rec)
	require.Equal(t, "linked", got.State)
	require.Equal(t, int64(3000), *got.Amount)
	require.Equal(t, int64(9), *got.PaymentID)
	require.Equal(t, "order-1-payment-1", got.PaymentKey)
}

func TestCreateOrder_FailOpenWarning(t *testing.T) {
	env := newTestEnv(t, service.FailOpen)
	env.products.On("GetProduct", mock.Anything, int64(404)).
		Return(client.Product{}, &apperr.RemoteError{Service: "product", Status: 404}).Once()

	rec := env.do(t, http.MethodPost, "/orders", map[string]any{"user_id": 1, "product_id": 404, "quantity": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, service.LastErrorProductNotFound, rec.Header().Get(WarningHeader))

	got := decode[OrderResponse](t, rec)
	require.Equal(t, "created", got.State)
	require.Nil(t, got.PaymentID)
	require.Equal(t, service.LastErrorProductNotFound, got.LastError)
}

func TestCreateOrder_FailClosed(t *testing.T) {
	tests := []struct {
		name       string
		productErr error
		paymentErr error
		wantStatus int
		wantError  string
	}{
		{
			name:       "product not found",
			productErr: &apperr.RemoteError{Service: "product", Status: 404},
			wantStatus: http.StatusNotFound,
			wantError:  service.LastErrorProductNotFound,
		},
		{
			name:       "product unavailable",
			productErr: apperr.Upstream("product", context.DeadlineExceeded),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  service.LastErrorProductUnavailable,
		},
		{
			name:       "payment unavailable",
			paymentErr: apperr.Upstream("payment", context.DeadlineExceeded),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  service.LastErrorPaymentUnavailable,
		},
		{
			name:       "payment rejected with 404",
			paymentErr: &apperr.RemoteError{Service: "payment", Status: 404, Message: "order id is not valid"},
			wantStatus: http.StatusBadGateway,
			wantError:  "payment rejected: order id is not valid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, service.FailClosed)
			if tt.productErr != nil {
				env.products.On("GetProduct", mock.Anything, int64(5)).Return(client.Product{}, tt.productErr).Once()
			} else {
				env.products.On("GetProduct", mock.Anything, int64(5)).Return(client.Product{ID: 5, Price: 10}, nil).Once()
				env.payments.On("CreatePayment", mock.Anything, mock.Anything).Return(int64(0), tt.paymentErr).Once()
			}

			rec := env.do(t, http.MethodPost, "/orders", map[string]any{"user_id": 1, "product_id": 5, "quantity": 1})
			require.Equal(t, tt.wantStatus, rec.Code)

			body := decode[map[string]any](t, rec)
			require.Equal(t, tt.wantError, body["error"])
			require.EqualValues(t, 1, body["order_id"])

			// заказ остаётся
			require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/orders/1", nil).Code)
		})
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	env := newTestEnv(t, service.FailOpen)

	tests := []struct {
		name string
		body any
	}{
		{"missing user", map[string]any{"product_id": 1, "quantity": 1}},
		{"missing quantity", map[string]any{"user_id": 1, "product_id": 1}},
		{"zero quantity", map[string]any{"user_id": 1, "product_id": 1, "quantity": 0}},
		{"negative product", map[string]any{"user_id": 1, "product_id": -2, "quantity": 1}},
		{"not an object", []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/orders", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	list := decode[[]OrderResponse](t, env.do(t, http.MethodGet, "/orders", nil))
	require.Empty(t, list)
}

func TestOrderCRUD(t *testing.T) {
	env := newTestEnv(t, service.FailOpen)
	env.products.On("GetProduct", mock.Anything, int64(5)).Return(client.Product{ID: 5, Price: 100}, nil).Once()
	env.payments.On("CreatePayment", mock.Anything, mock.Anything).Return(int64(1), nil).Once()

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/orders", map[string]any{"user_id": 1, "product_id": 5, "quantity": 2}).Code)

	rec := env.do(t, http.MethodPut, "/orders/1", map[string]any{"user_id": 2, "product_id": 6, "quantity": 7})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[OrderResponse](t, rec)
	require.Equal(t, int64(7), updated.Quantity)
	require.Equal(t, int64(200), *updated.Amount, "сумма не пересчитывается")

	list := decode[[]OrderResponse](t, env.do(t, http.MethodGet, "/orders", nil))
	require.Len(t, list, 1)

	rec = env.do(t, http.MethodDelete, "/orders/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"deleted","id":1}`, rec.Body.String())

	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/orders/1", nil).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/orders/1", nil).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/orders/1", map[string]any{"user_id": 1, "product_id": 1, "quantity": 1}).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/orders/abc", nil).Code)
}

func TestOrders_RequireToken(t *testing.T) {
	env := newTestEnv(t, service.FailOpen)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(`{}`)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	env.products.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
