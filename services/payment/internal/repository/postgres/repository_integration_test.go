//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/postgres"
	"github.com/shestoi/adminpanel/services/payment/internal/repository"
	"github.com/shestoi/adminpanel/services/payment/migrations"
)

func TestRepository_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("payments"),
		tcpostgres.WithUsername("payment_user"),
		tcpostgres.WithPassword("payment_password"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.Connect(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool, migrations.FS))

	repo := NewRepository(pool)

	t.Run("create and read back", func(t *testing.T) {
		created, err := repo.Create(ctx, repository.Payment{OrderID: 10, Amount: 3000, Status: repository.StatusPending, IdempotencyKey: "order-10-payment-1"})
		require.NoError(t, err)
		require.NotZero(t, created.ID)
		require.False(t, created.CreatedAt.IsZero())

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, created.ID, got.ID)
		require.Equal(t, "order-10-payment-1", got.IdempotencyKey)

		byKey, err := repo.GetByIdempotencyKey(ctx, "order-10-payment-1")
		require.NoError(t, err)
		require.Equal(t, created.ID, byKey.ID)
	})

	t.Run("duplicate idempotency key", func(t *testing.T) {
		_, err := repo.Create(ctx, repository.Payment{OrderID: 10, Amount: 3000, Status: repository.StatusPending, IdempotencyKey: "order-10-payment-1"})
		require.ErrorIs(t, err, repository.ErrDuplicateKey)
	})

	t.Run("payments without key do not collide", func(t *testing.T) {
		_, err := repo.Create(ctx, repository.Payment{OrderID: 11, Amount: 1, Status: repository.StatusPaid})
		require.NoError(t, err)
		_, err = repo.Create(ctx, repository.Payment{OrderID: 11, Amount: 2, Status: repository.StatusPaid})
		require.NoError(t, err)
	})

	t.Run("update and delete", func(t *testing.T) {
		created, err := repo.Create(ctx, repository.Payment{OrderID: 12, Amount: 5, Status: repository.StatusPending})
		require.NoError(t, err)

		updated, err := repo.Update(ctx, repository.Payment{ID: created.ID, OrderID: 13, Amount: 50, Status: repository.StatusPaid})
		require.NoError(t, err)
		require.Equal(t, int64(13), updated.OrderID)
		require.Equal(t, repository.StatusPaid, updated.Status)

		require.NoError(t, repo.Delete(ctx, created.ID))
		require.ErrorIs(t, repo.Delete(ctx, created.ID), repository.ErrNotFound)

		_, err = repo.Update(ctx, repository.Payment{ID: created.ID, OrderID: 1, Status: repository.StatusPaid})
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("list ordered by id", func(t *testing.T) {
		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		for i := 1; i < len(list); i++ {
			require.Less(t, list[i-1].ID, list[i].ID)
		}
	})
}
