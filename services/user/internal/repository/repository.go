package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shestoi/adminpanel/platform/apperr"
)

// User представляет доменную модель пользователя.
// PasswordHash никогда не уходит наружу через API.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=UserRepository --dir=. --output=./mocks --outpkg=mocks

// UserRepository определяет интерфейс для работы с хранилищем пользователей
// Service слой зависит от этого интерфейса, а не от конкретной реализации
type UserRepository interface {
	// List все пользователи в порядке id
	List(ctx context.Context) ([]User, error)

	// Get возвращает ErrNotFound, если пользователя нет
	Get(ctx context.Context, id int64) (User, error)

	// GetByEmail возвращает ErrNotFound, если пользователя с таким email нет
	GetByEmail(ctx context.Context, email string) (User, error)

	// CreateMany сохраняет пачку пользователей атомарно: либо все, либо ни одного.
	// Возвращает ErrAlreadyExists, если email уже занят (в том числе внутри пачки).
	CreateMany(ctx context.Context, users []User) ([]User, error)

	// Update меняет name/email/password_hash
	Update(ctx context.Context, u User) (User, error)

	Delete(ctx context.Context, id int64) error
}

var (
	// ErrNotFound возвращается, когда пользователь не найден в хранилище
	ErrNotFound = fmt.Errorf("User %w", apperr.ErrNotFound)
	// ErrAlreadyExists возвращается, когда пользователь с таким email уже существует
	ErrAlreadyExists = fmt.Errorf("user with this email %w", apperr.ErrAlreadyExists)
)
