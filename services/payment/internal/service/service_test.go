package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/services/payment/internal/event"
	"github.com/shestoi/adminpanel/services/payment/internal/repository"
	repoMocks "github.com/shestoi/adminpanel/services/payment/internal/repository/mocks"
	"github.com/shestoi/adminpanel/services/payment/internal/service/mocks"
)

type serviceDeps struct {
	repo      *repoMocks.PaymentRepository
	orders    *mocks.OrderClient
	idem      *mocks.IdempotencyStore
	publisher *mocks.EventPublisher
}

func newTestService(t *testing.T) (*PaymentService, serviceDeps) {
	deps := serviceDeps{
		repo:      repoMocks.NewPaymentRepository(t),
		orders:    mocks.NewOrderClient(t),
		idem:      mocks.NewIdempotencyStore(t),
		publisher: mocks.NewEventPublisher(t),
	}
	svc := NewPaymentService(deps.repo, deps.orders, deps.idem, deps.publisher, NewMetrics(), zap.NewNop())
	return svc, deps
}

func TestPaymentService_CreatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("success: order exists, payment saved and published", func(t *testing.T) {
		svc, deps := newTestService(t)

		deps.orders.On("OrderExists", ctx, int64(7)).Return(true, nil).Once()
		deps.repo.On("Create", ctx, mock.MatchedBy(func(p repository.Payment) bool {
			return p.OrderID == 7 && p.Amount == 500 && p.Status == repository.StatusPaid && p.IdempotencyKey == ""
		})).Return(repository.Payment{ID: 1, OrderID: 7, Amount: 500, Status: repository.StatusPaid}, nil).Once()
		deps.publisher.On("PublishPaymentRecorded", ctx, mock.MatchedBy(func(e event.PaymentRecorded) bool {
			return e.PaymentID == 1 && e.OrderID == 7 && e.Amount == 500
		})).Return(nil).Once()

		out, err := svc.CreatePayment(ctx, CreatePaymentInput{OrderID: 7, Amount: 500, Status: repository.StatusPaid})
		require.NoError(t, err)
		require.False(t, out.Replayed)
		require.Equal(t, int64(1), out.Payment.ID)

		deps.idem.AssertNotCalled(t, "Remember", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("order does not exist: nothing stored", func(t *testing.T) {
		svc, deps := newTestService(t)

		deps.orders.On("OrderExists", ctx, int64(99)).Return(false, nil).Once()

		_, err := svc.CreatePayment(ctx, CreatePaymentInput{OrderID: 99, Amount: 10, Status: repository.StatusPending})
		require.Error(t, err)
		require.ErrorIs(t, err, ErrInvalidOrder)
		require.ErrorIs(t, err, apperr.ErrNotFound)

		deps.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		deps.publisher.AssertNotCalled(t, "PublishPaymentRecorded", mock.Anything, mock.Anything)
	})

	t.Run("order service unreachable: payment rejected without retry", func(t *testing.T) {
		svc, deps := newTestService(t)

		upstream := apperr.Upstream("order", errors.New("connection refused"))
		deps.orders.On("OrderExists", ctx, int64(5)).Return(false, upstream).Once()

		_, err := svc.CreatePayment(ctx, CreatePaymentInput{OrderID: 5, Amount: 10, Status: repository.StatusPaid})
		require.Error(t, err)
		require.ErrorIs(t, err, ErrOrderCheckFailed)
		require.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)

		deps.orders.AssertNumberOfCalls(t, "OrderExists", 1)
		deps.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("validation errors", func(t *testing.T) {
		cases := []struct {
			name  string
			input CreatePaymentInput
			field string
		}{
			{"zero order id", CreatePaymentInput{OrderID: 0, Amount: 1, Status: "paid"}, "order_id"},
			{"negative amount", CreatePaymentInput{OrderID: 1, Amount: -1, Status: "paid"}, "amount"},
			{"unknown status", CreatePaymentInput{OrderID: 1, Amount: 1, Status: "refunded"}, "status"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				svc, deps := newTestService(t)

				_, err := svc.CreatePayment(ctx, tc.input)
				var verr *apperr.ValidationError
				require.ErrorAs(t, err, &verr)
				require.Equal(t, tc.field, verr.Field)

				deps.orders.AssertNotCalled(t, "OrderExists", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("zero amount is allowed", func(t *testing.T) {
		svc, deps := newTestService(t)

		deps.orders.On("OrderExists", ctx, int64(3)).Return(true, nil).Once()
		deps.repo.On("Create", ctx, mock.Anything).
			Return(repository.Payment{ID: 2, OrderID: 3, Amount: 0, Status: repository.StatusPending}, nil).Once()
		deps.publisher.On("PublishPaymentRecorded", ctx, mock.Anything).Return(nil).Once()

		out, err := svc.CreatePayment(ctx, CreatePaymentInput{OrderID: 3, Amount: 0, Status: repository.StatusPending})
		require.NoError(t, err)
		require.Equal(t, int64(0), out.Payment.Amount)
	})

	t.Run("new idempotency key is remembered", func(t *testing.T) {
		svc, deps := newTestService(t)
		key := "order-3-payment-1"

		deps.idem.On("Lookup", ctx, key).Return(int64(0), false, nil).Once()
		deps.repo.On("GetByIdempotencyKey", ctx, key).Return(repository.Payment{}, repository.ErrNotFound).Once()
		deps.orders.On("OrderExists", ctx, int64(3)).Return(true, nil).Once()
		deps.repo.On("Create", ctx, mock.MatchedBy(func(p repository.Payment) bool { return p.IdempotencyKey == key })).
			Return(repository.Payment{ID: 4, OrderID: 3, Amount: 1500, Status: repository.StatusPending, IdempotencyKey: key}, nil).Once()
		deps.idem.On("Remember", ctx, key, int64(4)).Return(nil).Once()
		deps.publisher.On("PublishPaymentRecorded", ctx, mock.MatchedBy(func(e event.PaymentRecorded) bool {
			return e.IdempotencyKey == key
		})).Return(nil).Once()

		out, err := svc.CreatePayment(ctx, CreatePaymentInput{OrderID: 3, Amount: 1500, Status: repository.StatusPending, IdempotencyKey: key})
		require.NoError(t, err)
		require.False(t, out.Replayed)
	})

	t.Run("replay by cached key returns the stored payment", func(t *testing.T) {
		svc, deps := newTestService(t)
		key := "order-3-payment-1"
		stored := repository.Payment{ID: 4, OrderID: 3, Amount: 1500, Status: repository.StatusPending, IdempotencyKey: key}

		deps.idem.On("Lookup", ctx, key).Return(int64(4), true, nil).Once()
		deps.repo.On("Get", ctx, int64(4)).Return(stored, nil).Once()

		out, err := svc.CreatePayment(ctx, CreatePaymentInput{OrderID: 3, Amount: 1500, Status: repository.StatusPending, IdempotencyKey: key})
		require.NoError(t, err)
		require.True(t, out.Replayed)
		require.Equal(t, stored, out.Payment)

		deps.orders.AssertNotCalled(t, "OrderExists", mock.Anything, mock.Anything)
		deps.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		deps.publisher.AssertNotCalled(t, "PublishPaymentRecorded", mock.Anything, mock.Anything)
	})

	t.Run("cache unavailable: falls back to database", func(t *testing.T) {
		svc, deps := newTestService(t)
		key := "order-3-payment-1"
		stored := repository.Payment{ID: 4, OrderID: 3, Amount: 1500, Status: repository.StatusPending, IdempotencyKey: key}

		deps.idem.On("Lookup", ctx, key).Return(int64(0), false, errors.New("redis down")).Once()
		deps.repo.On("GetByIdempotencyKey", ctx, key).Return(stored, nil).Once()
		deps.idem.On("Remember", ctx, key, int64(4)).Return(errors.New("redis down")).Once()

		out, err := svc.CreatePayment(ctx, CreatePaymentInput{OrderID: 3, Amount: 1500, Status: repository.StatusPending, IdempotencyKey: key})
		require.NoError(t, err)
		require.True(t, out.Replayed)
	})

	t.Run("same key with different payload is a conflict", func(t *testing.T) {
		svc, deps := newTestService(t)
		key := "order-3-payment-1"

		deps.idem.On("Lookup", ctx, key).Return(int64(4), true, nil).Once()
		deps.repo.On("Get", ctx, int64(4)).
			Return(repository.Payment{ID: 4, OrderID: 3, Amount: 1500, Status: repository.StatusPending, IdempotencyKey: key}, nil).Once()

		_, err := svc.CreatePayment(ctx, CreatePaymentInput{OrderID: 3, Amount: 900, Status: repository.StatusPending, IdempotencyKey: key})
		require.ErrorIs(t, err, ErrIdempotencyConflict)
		require.ErrorIs(t, err, apperr.ErrAlreadyExists)
	})

	t.Run("concurrent duplicate insert is replayed", func(t *testing.T) {
		svc, deps := newTestService(t)
		key := "order-8-payment-1"
		stored := repository.Payment{ID: 9, OrderID: 8, Amount: 100, Status: repository.StatusPending, IdempotencyKey: key}

		deps.idem.On("Lookup", ctx, key).Return(int64(0), false, nil).Once()
		deps.repo.On("GetByIdempotencyKey", ctx, key).Return(repository.Payment{}, repository.ErrNotFound).Once()
		deps.orders.On("OrderExists", ctx, int64(8)).Return(true, nil).Once()
		deps.repo.On("Create", ctx, mock.Anything).Return(repository.Payment{}, repository.ErrDuplicateKey).Once()
		deps.repo.On("GetByIdempotencyKey", ctx, key).Return(stored, nil).Once()

		out, err := svc.CreatePayment(ctx, CreatePaymentInput{OrderID: 8, Amount: 100, Status: repository.StatusPending, IdempotencyKey: key})
		require.NoError(t, err)
		require.True(t, out.Replayed)
		require.Equal(t, int64(9), out.Payment.ID)
	})

	t.Run("publish failure does not fail the request", func(t *testing.T) {
		svc, deps := newTestService(t)

		deps.orders.On("OrderExists", ctx, int64(7)).Return(true, nil).Once()
		deps.repo.On("Create", ctx, mock.Anything).
			Return(repository.Payment{ID: 1, OrderID: 7, Amount: 500, Status: repository.StatusPaid}, nil).Once()
		deps.publisher.On("PublishPaymentRecorded", ctx, mock.Anything).Return(errors.New("kafka down")).Once()

		out, err := svc.CreatePayment(ctx, CreatePaymentInput{OrderID: 7, Amount: 500, Status: repository.StatusPaid})
		require.NoError(t, err)
		require.Equal(t, int64(1), out.Payment.ID)
	})
}

func TestPaymentService_UpdatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("order is not re-validated", func(t *testing.T) {
		svc, deps := newTestService(t)

		deps.repo.On("Update", ctx, repository.Payment{ID: 1, OrderID: 2, Amount: 300, Status: repository.StatusPaid}).
			Return(repository.Payment{ID: 1, OrderID: 2, Amount: 300, Status: repository.StatusPaid}, nil).Once()

		p, err := svc.UpdatePayment(ctx, UpdatePaymentInput{ID: 1, OrderID: 2, Amount: 300, Status: repository.StatusPaid})
		require.NoError(t, err)
		require.Equal(t, int64(300), p.Amount)

		deps.orders.AssertNotCalled(t, "OrderExists", mock.Anything, mock.Anything)
	})

	t.Run("missing payment", func(t *testing.T) {
		svc, deps := newTestService(t)

		deps.repo.On("Update", ctx, mock.Anything).Return(repository.Payment{}, repository.ErrNotFound).Once()

		_, err := svc.UpdatePayment(ctx, UpdatePaymentInput{ID: 42, OrderID: 2, Amount: 300, Status: repository.StatusPaid})
		require.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestPaymentService_DeletePayment(t *testing.T) {
	ctx := context.Background()
	svc, deps := newTestService(t)

	deps.repo.On("Delete", ctx, int64(1)).Return(nil).Once()
	deps.repo.On("Delete", ctx, int64(2)).Return(repository.ErrNotFound).Once()

	require.NoError(t, svc.DeletePayment(ctx, 1))
	require.ErrorIs(t, svc.DeletePayment(ctx, 2), apperr.ErrNotFound)
}
