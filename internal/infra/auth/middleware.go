package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/xela07ax/apicalculator/internal/domain"
	"github.com/xela07ax/apicalculator/internal/infra"
	"go.uber.org/zap"
)

// TokenValidator реализует BaseValidator.
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.Claims, error)
}

type ctxKey string

const claimsKey ctxKey = "claims"

// NewMiddleware отвечает 401 на запросы без валидного bearer токена до вызова
// хендлера и кладет проверенные claims в контекст запроса.
func NewMiddleware(v TokenValidator, logger *zap.Logger, metrics *infra.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := jwtauth.TokenFromHeader(r)
			if tokenStr == "" {
				metrics.AuthFailures.WithLabelValues(Reason(domain.ErrTokenMissing)).Inc()
				unauthorized(w)
				return
			}

			claims, err := v.VerifyToken(tokenStr)
			if err != nil {
				reason := Reason(err)
				metrics.AuthFailures.WithLabelValues(reason).Inc()
				logger.Warn("auth failure", zap.String("reason", reason), zap.Error(err))
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), *claims)))
		})
	}
}

// WithClaims возвращает копию ctx с claims.
func WithClaims(ctx context.Context, claims domain.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext возвращает claims, сохраненные NewMiddleware.
func ClaimsFromContext(ctx context.Context) (domain.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(domain.Claims)
	return claims, ok
}

// Reason короткая метка ошибки аутентификации для метрик и логов.
func Reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenMissing):
		return "token_missing"
	case errors.Is(err, domain.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, domain.ErrTokenBadSignature):
		return "bad_signature"
	case errors.Is(err, domain.ErrTokenWrongAudience):
		return "wrong_audience"
	case errors.Is(err, domain.ErrTokenWrongIssuer):
		return "wrong_issuer"
	case errors.Is(err, domain.ErrTokenMalformed):
		return "token_malformed"
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, domain.ErrBadPassword):
		return "bad_password"
	default:
		return "other"
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
