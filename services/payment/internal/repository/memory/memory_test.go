package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shestoi/adminpanel/services/payment/internal/repository"
)

func TestRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	first, err := repo.Create(ctx, repository.Payment{OrderID: 1, Amount: 3000, Status: repository.StatusPending, IdempotencyKey: "order-1-payment-1"})
	require.NoError(t, err)
	require.Equal(t, int64(1), first.ID)
	require.False(t, first.CreatedAt.IsZero())

	second, err := repo.Create(ctx, repository.Payment{OrderID: 1, Amount: 500, Status: repository.StatusPaid})
	require.NoError(t, err)
	require.Equal(t, int64(2), second.ID)

	_, err = repo.Create(ctx, repository.Payment{OrderID: 1, Amount: 3000, IdempotencyKey: "order-1-payment-1"})
	require.ErrorIs(t, err, repository.ErrDuplicateKey)

	byKey, err := repo.GetByIdempotencyKey(ctx, "order-1-payment-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, byKey.ID)

	updated, err := repo.Update(ctx, repository.Payment{ID: 2, OrderID: 7, Amount: 100, Status: repository.StatusPending})
	require.NoError(t, err)
	require.Equal(t, int64(7), updated.OrderID)
	require.Equal(t, second.CreatedAt, updated.CreatedAt)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, int64(1), list[0].ID)

	require.NoError(t, repo.Delete(ctx, 1))
	require.ErrorIs(t, repo.Delete(ctx, 1), repository.ErrNotFound)
	_, err = repo.Get(ctx, 1)
	require.ErrorIs(t, err, repository.ErrNotFound)

	// id не переиспользуется после удаления
	third, err := repo.Create(ctx, repository.Payment{OrderID: 1, Amount: 1, Status: repository.StatusPending})
	require.NoError(t, err)
	require.Equal(t, int64(3), third.ID)
}
