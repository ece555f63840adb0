// Package httpclient - JSON клиент для вызовов между сервисами.
// Каждый вызов ограничен таймаутом, пробрасывает Authorization вызывающего и traceparent,
// а ошибки транспорта и 5xx приводит к apperr.ErrUpstreamUnavailable.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/auth"
	"github.com/shestoi/adminpanel/platform/observability"
)

// Client клиент одного соседнего сервиса
type Client struct {
	service string
	baseURL string
	http    *http.Client
}

// New создаёт клиент. service - имя зависимости для ошибок и спанов (product, payment, order, user).
func New(service, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: observability.Transport(service, nil),
		},
	}
}

// Service имя зависимости
func (c *Client) Service() string { return c.service }

// RequestOption дополнительные параметры запроса
type RequestOption func(*http.Request)

// WithHeader добавляет заголовок (например Idempotency-Key)
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		if value = strings.TrimSpace(value); value != "" {
			r.Header.Set(key, value)
		}
	}
}

// Response код и заголовки ответа; тело уже разобрано в out
type Response struct {
	Status int
	Header http.Header
}

// Do выполняет запрос. in сериализуется в JSON (если не nil), ответ 2xx разбирается в out (если не nil).
// 4xx возвращается как *apperr.RemoteError, ошибки сети/таймауты/5xx как *apperr.UpstreamError.
func (c *Client) Do(ctx context.Context, method, path string, in, out any, opts ...RequestOption) (*Response, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", c.service, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := auth.TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Upstream(c.service, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperr.Upstream(c.service, fmt.Errorf("read body: %w", err))
	}

	result := &Response{Status: resp.StatusCode, Header: resp.Header}
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return result, apperr.Upstream(c.service, fmt.Errorf("status %d: %s", resp.StatusCode, errorMessage(raw)))
	case resp.StatusCode >= http.StatusBadRequest:
		return result, &apperr.RemoteError{Service: c.service, Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return result, fmt.Errorf("decode %s response: %w", c.service, err)
		}
	}
	return result, nil
}

// errorMessage достаёт {"error": "..."} из тела, иначе возвращает тело как есть
func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// IsTimeout true, если зависимость не ответила в срок
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err)
}

func isNetTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
