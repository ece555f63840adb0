package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/apperr"
	"github.com/shestoi/adminpanel/platform/httpjson"
	"github.com/shestoi/adminpanel/platform/observability"
	"github.com/shestoi/adminpanel/services/user/internal/repository"
	"github.com/shestoi/adminpanel/services/user/internal/service"
)

// Handler HTTP-обработчики User Service
type Handler struct {
	users  *service.Service
	logger *zap.Logger
}

func NewHandler(users *service.Service, logger *zap.Logger) *Handler {
	return &Handler{users: users, logger: logger}
}

// RegisterRequest элемент тела POST /users/register
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest тело POST /users/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateRequest тело PUT /users/{id}, все поля необязательны
type UpdateRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// UserResponse пользователь без хэша пароля
type UserResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toResponse(u repository.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}

func toResponses(users []repository.User) []UserResponse {
	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toResponse(u))
	}
	return resp
}

// Register POST /users/register, один объект или массив
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	reqs, err := httpjson.DecodeOneOrMany[RegisterRequest](r)
	if err != nil {
		httpjson.Error(w, err)
		return
	}

	inputs := make([]service.RegisterInput, 0, len(reqs))
	for _, req := range reqs {
		inputs = append(inputs, service.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
	}

	users, err := h.users.Register(r.Context(), inputs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponses(users))
}

// Login POST /users/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, err)
		return
	}
	token, err := h.users.Login(r.Context(), service.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"token": token})
}

// ListUsers GET /users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponses(users))
}

// UpdateUser PUT /users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r, "id")
	if err != nil {
		httpjson.Error(w, err)
		return
	}
	var req UpdateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, err)
		return
	}
	u, err := h.users.UpdateUser(r.Context(), service.UpdateInput{
		ID:       id,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponse(u))
}

// DeleteUser DELETE /users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r, "id")
	if err != nil {
		httpjson.Error(w, err)
		return
	}
	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"message": "User deleted", "id": id})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.HTTPStatus(err) == http.StatusInternalServerError {
		observability.L(r.Context(), h.logger).Error("user request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
	httpjson.Error(w, err)
}
