package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("resource conflict")
	ErrNotFound     = errors.New("not found")
	ErrStorage      = errors.New("storage failure")
	ErrRateLimited  = errors.New("too many requests")
)

// Ошибки валидации.
var (
	ErrInvalidOperator = fmt.Errorf("%w: invalid operator", ErrValidation)
	ErrDivisionByZero  = fmt.Errorf("%w: the divisor of a division cannot be 0", ErrValidation)
	ErrWeakPassword    = fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	ErrInvalidInput    = fmt.Errorf("%w: invalid input", ErrValidation)
)

// Ошибки аутентификации. Все они превращаются в 401.
var (
	ErrUserNotFound       = fmt.Errorf("%w: user not found", ErrUnauthorized)
	ErrBadPassword        = fmt.Errorf("%w: bad password", ErrUnauthorized)
	ErrTokenMissing       = fmt.Errorf("%w: token missing", ErrUnauthorized)
	ErrTokenMalformed     = fmt.Errorf("%w: token malformed", ErrUnauthorized)
	ErrTokenExpired       = fmt.Errorf("%w: token expired", ErrUnauthorized)
	ErrTokenBadSignature  = fmt.Errorf("%w: token signature invalid", ErrUnauthorized)
	ErrTokenWrongAudience = fmt.Errorf("%w: token audience mismatch", ErrUnauthorized)
	ErrTokenWrongIssuer   = fmt.Errorf("%w: token issuer mismatch", ErrUnauthorized)
)

// MinPasswordLength единственное требование к паролю.
const MinPasswordLength = 6
