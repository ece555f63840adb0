package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/auth"
	"github.com/shestoi/adminpanel/services/user/internal/repository"
	"github.com/shestoi/adminpanel/services/user/internal/repository/memory"
	"github.com/shestoi/adminpanel/services/user/internal/repository/mocks"
)

const testSecret = "test-secret"

func newMemoryService() (*Service, *memory.Repository) {
	repo := memory.NewRepository()
	return NewService(zap.NewNop(), repo, auth.NewIssuer(testSecret, time.Hour), bcrypt.MinCost), repo
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("batch registered, passwords hashed", func(t *testing.T) {
		svc, repo := newMemoryService()

		users, err := svc.Register(ctx, []RegisterInput{
			{Name: " Alice ", Email: "alice@example.com", Password: "secret1"},
			{Name: "Bob", Email: "bob@example.com", Password: "secret2"},
		})
		require.NoError(t, err)
		require.Len(t, users, 2)
		require.Equal(t, int64(1), users[0].ID)
		require.Equal(t, "Alice", users[0].Name)

		stored, err := repo.GetByEmail(ctx, "bob@example.com")
		require.NoError(t, err)
		require.NotEqual(t, "secret2", stored.PasswordHash)
		require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret2")))
	})

	tests := []struct {
		name  string
		input RegisterInput
		field string
	}{
		{"empty name", RegisterInput{Name: "  ", Email: "a@example.com", Password: "secret1"}, "name"},
		{"bad email", RegisterInput{Name: "A", Email: "not-an-email", Password: "secret1"}, "email"},
		{"display name in email", RegisterInput{Name: "A", Email: "A <a@example.com>", Password: "secret1"}, "email"},
		{"short password", RegisterInput{Name: "A", Email: "a@example.com", Password: "12345"}, "password"},
	}
	for _, tt := range tests {
		t.Run("invalid: "+tt.name, func(t *testing.T) {
			svc, repo := newMemoryService()

			// валидный пользователь в той же пачке тоже не сохраняется
			_, err := svc.Register(ctx, []RegisterInput{
				{Name: "Ok", Email: "ok@example.com", Password: "secret1"},
				tt.input,
			})
			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tt.field, verr.Field)

			users, err := repo.List(ctx)
			require.NoError(t, err)
			require.Empty(t, users)
		})
	}

	t.Run("duplicate email", func(t *testing.T) {
		svc, _ := newMemoryService()

		_, err := svc.Register(ctx, []RegisterInput{{Name: "A", Email: "a@example.com", Password: "secret1"}})
		require.NoError(t, err)

		_, err = svc.Register(ctx, []RegisterInput{{Name: "B", Email: "a@example.com", Password: "secret2"}})
		require.ErrorIs(t, err, apperr.ErrAlreadyExists)
	})

	t.Run("empty batch", func(t *testing.T) {
		svc, _ := newMemoryService()
		_, err := svc.Register(ctx, nil)
		require.Error(t, err)
		require.Equal(t, 400, apperr.HTTPStatus(err))
	})

	t.Run("storage error", func(t *testing.T) {
		repo := mocks.NewUserRepository(t)
		svc := NewService(zap.NewNop(), repo, auth.NewIssuer(testSecret, time.Hour), bcrypt.MinCost)

		repo.On("CreateMany", ctx, mock.Anything).Return(nil, errors.New("connection reset")).Once()

		_, err := svc.Register(ctx, []RegisterInput{{Name: "A", Email: "a@example.com", Password: "secret1"}})
		require.Error(t, err)
		require.Equal(t, 500, apperr.HTTPStatus(err))
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService()

	users, err := svc.Register(ctx, []RegisterInput{{Name: "Alice", Email: "alice@example.com", Password: "secret1"}})
	require.NoError(t, err)

	t.Run("token carries id and email", func(t *testing.T) {
		token, err := svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "secret1"})
		require.NoError(t, err)

		claims, err := auth.NewVerifier(testSecret).Verify(token)
		require.NoError(t, err)
		require.Equal(t, users[0].ID, claims.ID)
		require.Equal(t, "alice@example.com", claims.Email)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "secret1"})
		require.ErrorIs(t, err, apperr.ErrNotFound)
		require.EqualError(t, err, "User not found")
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong-password"})
		require.ErrorIs(t, err, apperr.ErrUnauthorized)
		require.EqualError(t, err, "Invalid password")
	})

	t.Run("empty password", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginInput{Email: "alice@example.com"})
		require.Equal(t, 400, apperr.HTTPStatus(err))
	})
}

func TestService_UpdateUser(t *testing.T) {
	ctx := context.Background()
	ptr := func(s string) *string { return &s }

	t.Run("partial update keeps other fields", func(t *testing.T) {
		svc, repo := newMemoryService()
		users, err := svc.Register(ctx, []RegisterInput{{Name: "Alice", Email: "alice@example.com", Password: "secret1"}})
		require.NoError(t, err)
		oldHash := func() string {
			u, err := repo.Get(ctx, users[0].ID)
			require.NoError(t, err)
			return u.PasswordHash
		}()

		updated, err := svc.UpdateUser(ctx, UpdateInput{ID: users[0].ID, Name: ptr("Alicia")})
		require.NoError(t, err)
		require.Equal(t, "Alicia", updated.Name)
		require.Equal(t, "alice@example.com", updated.Email)
		require.Equal(t, oldHash, updated.PasswordHash)
	})

	t.Run("new password can log in", func(t *testing.T) {
		svc, _ := newMemoryService()
		users, err := svc.Register(ctx, []RegisterInput{{Name: "Alice", Email: "alice@example.com", Password: "secret1"}})
		require.NoError(t, err)

		_, err = svc.UpdateUser(ctx, UpdateInput{ID: users[0].ID, Email: ptr("a2@example.com"), Password: ptr("another1")})
		require.NoError(t, err)

		_, err = svc.Login(ctx, LoginInput{Email: "a2@example.com", Password: "another1"})
		require.NoError(t, err)
	})

	t.Run("missing user", func(t *testing.T) {
		svc, _ := newMemoryService()
		_, err := svc.UpdateUser(ctx, UpdateInput{ID: 42, Name: ptr("x")})
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("short password rejected before lookup", func(t *testing.T) {
		repo := mocks.NewUserRepository(t)
		svc := NewService(zap.NewNop(), repo, auth.NewIssuer(testSecret, time.Hour), bcrypt.MinCost)

		_, err := svc.UpdateUser(ctx, UpdateInput{ID: 1, Password: ptr("123")})
		require.Equal(t, 400, apperr.HTTPStatus(err))
		repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})
}

func TestService_DeleteUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService()
	users, err := svc.Register(ctx, []RegisterInput{{Name: "Alice", Email: "alice@example.com", Password: "secret1"}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, users[0].ID))
	require.ErrorIs(t, svc.DeleteUser(ctx, users[0].ID), repository.ErrNotFound)
}
