package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/observability"
	"github.com/shestoi/adminpanel/services/user/internal/repository"
)

const minPasswordLen = 6

// credentialsError неверные учётные данные, HTTP слой отдаёт 401 с текстом ошибки
type credentialsError string

func (e credentialsError) Error() string { return string(e) }

func (e credentialsError) Is(target error) bool { return target == apperr.ErrUnauthorized }

// ErrInvalidPassword пароль не совпал с хэшем
var ErrInvalidPassword error = credentialsError("Invalid password")

// TokenIssuer выпускает bearer токен для пользователя (platform/auth.Issuer)
type TokenIssuer interface {
	Issue(id int64, email string) (string, error)
}

// Service содержит бизнес-логику работы с пользователями
type Service struct {
	logger   *zap.Logger
	repo     repository.UserRepository
	issuer   TokenIssuer
	hashCost int
}

// NewService создаёт новый экземпляр Service. hashCost 0 - bcrypt.DefaultCost.
func NewService(logger *zap.Logger, repo repository.UserRepository, issuer TokenIssuer, hashCost int) *Service {
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	return &Service{
		logger:   logger,
		repo:     repo,
		issuer:   issuer,
		hashCost: hashCost,
	}
}

// RegisterInput содержит входные данные для регистрации одного пользователя
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

func normalizeEmail(field, raw string) (string, error) {
	email := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation(field, "must be a valid email")
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return apperr.Validation("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}
	return nil
}

// Register регистрирует одного или нескольких пользователей.
// Вся пачка валидируется до записи и сохраняется атомарно.
func (s *Service) Register(ctx context.Context, inputs []RegisterInput) ([]repository.User, error) {
	if len(inputs) == 0 {
		return nil, apperr.Validation("body", "at least one user is required")
	}

	users := make([]repository.User, 0, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, apperr.Validation("name", "is required")
		}
		email, err := normalizeEmail("email", in.Email)
		if err != nil {
			return nil, err
		}
		if err := validatePassword(in.Password); err != nil {
			return nil, err
		}
		users = append(users, repository.User{Name: name, Email: email})
	}

	// хэшируем только после успешной валидации всей пачки
	for i, in := range inputs {
		hash, err := s.hash(ctx, in.Password)
		if err != nil {
			return nil, err
		}
		users[i].PasswordHash = hash
	}

	created, err := s.repo.CreateMany(ctx, users)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, err
		}
		observability.L(ctx, s.logger).Error("failed to create users", zap.Error(err))
		return nil, fmt.Errorf("failed to create users: %w", err)
	}

	for _, u := range created {
		observability.L(ctx, s.logger).Info("user registered successfully",
			zap.Int64("user_id", u.ID),
			zap.String("email", u.Email),
		)
	}
	return created, nil
}

func (s *Service) hash(ctx context.Context, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		observability.L(ctx, s.logger).Error("failed to hash password", zap.Error(err))
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// LoginInput содержит входные данные для входа пользователя
type LoginInput struct {
	Email    string
	Password string
}

// Login проверяет пароль и выпускает токен с claims id и email
func (s *Service) Login(ctx context.Context, input LoginInput) (string, error) {
	email, err := normalizeEmail("email", input.Email)
	if err != nil {
		return "", err
	}
	if input.Password == "" {
		return "", apperr.Validation("password", "is required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
		observability.L(ctx, s.logger).Error("failed to get user by email", zap.Error(err))
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		observability.L(ctx, s.logger).Warn("invalid password attempt", zap.Int64("user_id", user.ID))
		return "", ErrInvalidPassword
	}

	token, err := s.issuer.Issue(user.ID, user.Email)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	observability.L(ctx, s.logger).Info("user logged in successfully", zap.Int64("user_id", user.ID))
	return token, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]repository.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateInput частичное обновление, nil поле не меняется
type UpdateInput struct {
	ID       int64
	Name     *string
	Email    *string
	Password *string
}

// UpdateUser применяет заданные поля поверх текущей записи. Новый пароль хэшируется заново.
func (s *Service) UpdateUser(ctx context.Context, in UpdateInput) (repository.User, error) {
	var email string
	if in.Email != nil {
		var err error
		if email, err = normalizeEmail("email", *in.Email); err != nil {
			return repository.User{}, err
		}
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return repository.User{}, err
		}
	}

	user, err := s.repo.Get(ctx, in.ID)
	if err != nil {
		return repository.User{}, err
	}

	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name != "" {
			user.Name = name
		}
	}
	if in.Email != nil {
		user.Email = email
	}
	if in.Password != nil {
		if user.PasswordHash, err = s.hash(ctx, *in.Password); err != nil {
			return repository.User{}, err
		}
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrAlreadyExists) {
			return repository.User{}, err
		}
		return repository.User{}, fmt.Errorf("update user %d: %w", in.ID, err)
	}
	return updated, nil
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	observability.L(ctx, s.logger).Info("user deleted", zap.Int64("user_id", id))
	return nil
}
