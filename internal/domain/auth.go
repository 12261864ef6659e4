package domain

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role имя из фиксированного каталога ролей.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// Valid сообщает, есть ли r в каталоге.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Claims набор claims внутри подписанного токена.
// Subject содержит username, ID содержит id токена (jti).
//
// Набор фиксируется при выпуске: смена ролей после логина
// не видна до следующего входа.
type Claims struct {
	IdentityID string `json:"identity_id"`
	Roles      []Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Username возвращает claim subject.
func (c Claims) Username() string {
	return c.Subject
}

// HasRole сообщает, есть ли в claims роль r.
func (c Claims) HasRole(r Role) bool {
	return slices.Contains(c.Roles, r)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
}

// StatusResponse тело ответа регистрации.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// User зарегистрированный пользователь. PasswordHash это bcrypt хеш.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}
