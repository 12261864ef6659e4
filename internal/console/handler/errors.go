package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xela07ax/apicalculator/internal/domain"
)

// HTTPStatusFromError переводит доменные ошибки в HTTP статусы.
func HTTPStatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError пишет err как {"error": ...}. Текст внутренних ошибок наружу не отдается.
func respondError(w http.ResponseWriter, err error) {
	status := HTTPStatusFromError(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		msg = http.StatusText(status)
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
		msg = http.StatusText(status)
	}
	respondJSON(w, status, errorResponse{Error: msg})
}
