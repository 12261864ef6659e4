package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/apicalculator/internal/console/service"
	"github.com/xela07ax/apicalculator/internal/domain"
)

const (
	statusSuccess = "Success"
	statusError   = "Error"
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(s *service.AuthService) *AuthHandler {
	return &AuthHandler{service: s}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/register-admin", h.RegisterAdmin)
	r.Post("/login", h.Login)
}

// Register создает пользователя с ролью User.
// POST /api/Authenticate/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, h.service.Register)
}

// RegisterAdmin создает пользователя с ролью Admin.
// POST /api/Authenticate/register-admin
func (h *AuthHandler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, h.service.RegisterAdmin)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request, create func(context.Context, domain.RegisterRequest) (*domain.User, error)) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, domain.StatusResponse{Status: statusError, Message: "Invalid request payload"})
		return
	}

	if _, err := create(r.Context(), req); err != nil {
		status := HTTPStatusFromError(err)
		msg := "User creation failed! Please check user details and try again."
		switch {
		case errors.Is(err, domain.ErrConflict):
			msg = "User already exists!"
		case errors.Is(err, domain.ErrValidation):
			msg = err.Error()
		}
		respondJSON(w, status, domain.StatusResponse{Status: statusError, Message: msg})
		return
	}

	respondJSON(w, http.StatusOK, domain.StatusResponse{Status: statusSuccess, Message: "User created successfully!"})
}

// Login меняет учетные данные на bearer токен.
// POST /api/Authenticate/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request payload"})
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		// неизвестный пользователь и неверный пароль для клиента неразличимы
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
