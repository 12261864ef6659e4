package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/xela07ax/apicalculator/internal/calculator"
	"github.com/xela07ax/apicalculator/internal/console/service"
	"github.com/xela07ax/apicalculator/internal/domain"
	"github.com/xela07ax/apicalculator/internal/infra/auth"
)

type OperationsHandler struct {
	service *service.OperationsService
}

func NewOperationsHandler(s *service.OperationsService) *OperationsHandler {
	return &OperationsHandler{service: s}
}

// RegisterRoutes ожидает, что r уже закрыт bearer middleware.
func (h *OperationsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Calculate)
	r.Get("/user-history", h.UserHistory)
	r.Get("/admin-history", h.AdminHistory)
	r.Delete("/", h.ClearHistory)
}

// Calculate вычисляет и записывает уравнение, отвечает результатом в виде текста.
// POST /api/Operations?firstElement=199&operation=%2B&secondElement=7
func (h *OperationsHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, domain.ErrTokenMissing)
		return
	}

	q := r.URL.Query()
	first, err := parseOperand(q.Get("firstElement"), "firstElement")
	if err != nil {
		respondError(w, err)
		return
	}
	second, err := parseOperand(q.Get("secondElement"), "secondElement")
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := h.service.Calculate(r.Context(), claims, first, q.Get("operation"), second)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(result.String()))
}

// UserHistory список вычислений вызывающего, сначала новые.
// GET /api/Operations/user-history
func (h *OperationsHandler) UserHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, domain.ErrTokenMissing)
		return
	}
	recs, err := h.service.UserHistory(r.Context(), claims)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toDTOs(recs))
}

// AdminHistory список всех вычислений. Только для роли Admin.
// GET /api/Operations/admin-history
func (h *OperationsHandler) AdminHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, domain.ErrTokenMissing)
		return
	}
	recs, err := h.service.AdminHistory(r.Context(), claims)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toDTOs(recs))
}

// ClearHistory удаляет вычисления вызывающего.
// DELETE /api/Operations
func (h *OperationsHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, domain.ErrTokenMissing)
		return
	}
	if _, err := h.service.ClearHistory(r.Context(), claims); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseOperand(raw, name string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, name)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s is not a decimal", domain.ErrInvalidInput, name)
	}
	if err := calculator.ValidateOperand(v); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func toDTOs(recs []domain.CalculationRecord) []domain.CalculationDTO {
	out := make([]domain.CalculationDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.DTO())
	}
	return out
}
