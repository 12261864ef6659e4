package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/apicalculator/internal/domain"
)

// BaseValidator проверяет HS256 токены, выпущенные Issuer.
type BaseValidator struct {
	opts   Options
	parser *jwt.Parser
}

func NewBaseValidator(opts Options) (*BaseValidator, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("auth: signing secret is empty")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(opts.Issuer),
		jwt.WithAudience(opts.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(opts.now),
	)
	return &BaseValidator{opts: opts, parser: parser}, nil
}

// VerifyToken реализует TokenValidator. Принимает сам токен или значение заголовка
// с префиксом "Bearer " и возвращает claims, заложенные при выпуске.
func (v *BaseValidator) VerifyToken(tokenStr string) (*domain.Claims, error) {
	tokenStr = strings.TrimPrefix(tokenStr, "Bearer ")
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, domain.ErrTokenMissing
	}

	claims := &domain.Claims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return v.opts.Secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, domain.ErrTokenMalformed
	}

	if claims.IdentityID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: identity claims are missing", domain.ErrTokenMalformed)
	}

	return claims, nil
}

// classify переводит ошибки jwt в доменные. Парсер проверяет подпись раньше
// временных claims, так что ErrTokenExpired означает корректную подпись.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return domain.ErrTokenBadSignature
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return domain.ErrTokenWrongAudience
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return domain.ErrTokenWrongIssuer
	default:
		return fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
	}
}
