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
	"github.com/shestoi/adminpanel/services/user/internal/repository"
	"github.com/shestoi/adminpanel/services/user/migrations"
)

func TestRepository_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("users"),
		tcpostgres.WithUsername("user_svc"),
		tcpostgres.WithPassword("user_password"),
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

	t.Run("create many and read back", func(t *testing.T) {
		created, err := repo.CreateMany(ctx, []repository.User{
			{Name: "Alice", Email: "alice@example.com", PasswordHash: "h1"},
			{Name: "Bob", Email: "bob@example.com", PasswordHash: "h2"},
		})
		require.NoError(t, err)
		require.Len(t, created, 2)
		require.Less(t, created[0].ID, created[1].ID)

		got, err := repo.GetByEmail(ctx, "bob@example.com")
		require.NoError(t, err)
		require.Equal(t, created[1].ID, got.ID)
		require.Equal(t, "h2", got.PasswordHash)
	})

	t.Run("batch with taken email is rolled back", func(t *testing.T) {
		_, err := repo.CreateMany(ctx, []repository.User{
			{Name: "Carol", Email: "carol@example.com", PasswordHash: "h3"},
			{Name: "Alice again", Email: "alice@example.com", PasswordHash: "h4"},
		})
		require.ErrorIs(t, err, repository.ErrAlreadyExists)

		_, err = repo.GetByEmail(ctx, "carol@example.com")
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("update and delete", func(t *testing.T) {
		alice, err := repo.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)

		alice.Name = "Alicia"
		updated, err := repo.Update(ctx, alice)
		require.NoError(t, err)
		require.Equal(t, "Alicia", updated.Name)

		alice.Email = "bob@example.com"
		_, err = repo.Update(ctx, alice)
		require.ErrorIs(t, err, repository.ErrAlreadyExists)

		require.NoError(t, repo.Delete(ctx, alice.ID))
		require.ErrorIs(t, repo.Delete(ctx, alice.ID), repository.ErrNotFound)
		_, err = repo.Get(ctx, alice.ID)
		require.ErrorIs(t, err, repository.ErrNotFound)

		users, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
	})
}
