package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/auth"
	"github.com/shestoi/adminpanel/platform/httpclient"
	"github.com/shestoi/adminpanel/services/reporting/internal/ledger"
)

// stubServer отвечает по карте путь -> (код, тело) и запоминает последний запрос
type stubServer struct {
	routes map[string]func() (int, any)

	lastAuth   string
	lastKey    string
	lastBody   string
	lastMethod string
}

func newStub(t *testing.T, routes map[string]func() (int, any)) (*httpclient.Client, *stubServer) {
	t.Helper()
	stub := &stubServer{routes: routes}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		stub.lastAuth = r.Header.Get("Authorization")
		stub.lastKey = r.Header.Get(IdempotencyKeyHeader)
		stub.lastBody = string(raw)
		stub.lastMethod = r.Method

		route, ok := stub.routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"route not found"}`))
			return
		}
		status, body := route()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		assert.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	t.Cleanup(srv.Close)
	return httpclient.New("stub", srv.URL, time.Second), stub
}

func TestClients_ForwardTokenAndDecode(t *testing.T) {
	ctx := auth.WithToken(context.Background(), "user-token")

	c, stub := newStub(t, map[string]func() (int, any){
		"/users":      func() (int, any) { return 200, []map[string]any{{"id": 1}, {"id": 2}} },
		"/products/2": func() (int, any) { return 200, ledger.Product{ID: 2, Name: "Mouse", Price: 40} },
		"/orders":     func() (int, any) { return 200, []ledger.Order{{ID: 10, ProductID: 2, Quantity: 3}} },
		"/payments": func() (int, any) {
			return 201, map[string]any{"id": 5, "order_id": 10, "amount": 120, "status": "paid", "date": "2026-01-02T03:04:05Z"}
		},
	})

	n, err := NewUserClient(c).CountUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "Bearer user-token", stub.lastAuth)

	p, err := NewProductClient(c).GetProduct(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(40), p.Price)

	orders, err := NewOrderClient(c).ListOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, []ledger.Order{{ID: 10, ProductID: 2, Quantity: 3}}, orders)

	payment, err := NewPaymentClient(c).CreatePayment(ctx, ledger.PaymentRequest{
		OrderID: 10, Amount: 120, Status: ledger.StatusPaid, IdempotencyKey: "manual-1",
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), payment.ID)
	require.Equal(t, 2026, payment.Date.Year())
	require.Equal(t, http.MethodPost, stub.lastMethod)
	require.Equal(t, "manual-1", stub.lastKey)
	require.JSONEq(t, `{"order_id":10,"amount":120,"status":"paid"}`, stub.lastBody)
}

func TestClients_ErrorMapping(t *testing.T) {
	ctx := context.Background()

	c, _ := newStub(t, map[string]func() (int, any){
		"/payments": func() (int, any) { return 500, map[string]string{"error": "internal error"} },
	})

	_, err := NewOrderClient(c).GetOrder(ctx, 7)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = NewPaymentClient(c).ListPayments(ctx)
	require.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)

	dead := httpclient.New("product", "http://127.0.0.1:1", 200*time.Millisecond)
	_, err = NewProductClient(dead).ListProducts(ctx)
	require.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}
