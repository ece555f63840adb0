// Package apperr - таксономия ошибок, общая для всех сервисов.
// Сервисы оборачивают свои ошибки через %w, а HTTP слой определяет код по errors.Is/As.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound запись или связанная сущность отсутствует
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists нарушение уникальности (email пользователя)
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnauthorized нет токена, токен невалиден или неверный пароль
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUpstreamUnavailable зависимость не ответила: таймаут, отказ соединения, 5xx
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ValidationError некорректный ввод, без побочных эффектов
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validation конструктор ValidationError
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// UpstreamError зависимость недоступна. errors.Is(err, ErrUpstreamUnavailable) == true.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s service unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamUnavailable }

// Upstream конструктор UpstreamError
func Upstream(service string, err error) error {
	return &UpstreamError{Service: service, Err: err}
}

// RemoteError зависимость ответила 4xx: запрос отклонён по существу.
// 404 дополнительно матчится как ErrNotFound, 401 как ErrUnauthorized.
type RemoteError struct {
	Service string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s service rejected request (%d): %s", e.Service, e.Status, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

// HTTPStatus код ответа по умолчанию для ошибки
func HTTPStatus(err error) int {
	var verr *ValidationError
	var rerr *RemoteError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &rerr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
