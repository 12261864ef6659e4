package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/xela07ax/apicalculator/internal/domain"
)

// TokenValidity фиксирован. Токены не отзываются, их ограничивает только срок.
const TokenValidity = 3 * time.Hour

// Options общая конфигурация Issuer и BaseValidator.
type Options struct {
	Secret   []byte
	Issuer   string
	Audience string
	// Now подменяет часы, в основном для тестов.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Issuer выпускает HS256 токены для проверенных пользователей.
type Issuer struct {
	opts Options
}

func NewIssuer(opts Options) (*Issuer, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("auth: signing secret is empty")
	}
	return &Issuer{opts: opts}, nil
}

// Issue подписывает набор claims для user: subject = username, identity_id, новый
// jti и по одной записи role на каждую роль.
func (i *Issuer) Issue(user *domain.User) (string, time.Time, error) {
	now := i.opts.now()
	claims := &domain.Claims{
		IdentityID: user.ID,
		Roles:      append([]domain.Role(nil), user.Roles...),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Username,
			Issuer:    i.opts.Issuer,
			Audience:  jwt.ClaimStrings{i.opts.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenValidity)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.opts.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, claims.ExpiresAt.Time, nil
}
