// Package httpjson - общие помощники JSON API: ответы, ошибки, разбор тела и path параметров.
package httpjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/shestoi/adminpanel/platform/apperr"
)

// maxBody ограничение размера тела запроса
const maxBody = 1 << 20

// Write пишет v как JSON с кодом status
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorMessage пишет {"error": msg}
func ErrorMessage(w http.ResponseWriter, status int, msg string) {
	Write(w, status, map[string]string{"error": msg})
}

// Error определяет код по таксономии apperr. Текст внутренних ошибок наружу не отдаётся.
func Error(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	ErrorMessage(w, status, msg)
}

// Decode разбирает JSON тело в v. Ошибка разбора - ValidationError.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v); err != nil {
		return apperr.Validation("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

// DecodeOneOrMany принимает либо один объект, либо массив объектов
func DecodeOneOrMany[T any](r *http.Request) ([]T, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, apperr.Validation("body", "cannot read body")
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, apperr.Validation("body", "empty body")
	}

	if body[0] == '[' {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, apperr.Validation("body", fmt.Sprintf("invalid JSON: %v", err))
		}
		return items, nil
	}

	var item T
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, apperr.Validation("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return []T{item}, nil
}

// ErrInvalidID нечисловой или неположительный идентификатор в пути
var ErrInvalidID = apperr.Validation("id", "Invalid ID")

// PathID читает положительный int64 параметр из chi маршрута (simple style, как в OpenAPI)
func PathID(r *http.Request, name string) (int64, error) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// IsValidation true для ошибок ввода
func IsValidation(err error) bool {
	var verr *apperr.ValidationError
	return errors.As(err, &verr)
}
