// Package memory содержит хранилища в памяти процесса с теми же контрактами,
// что и postgres репозитории. Username и email сравниваются с учетом регистра,
// как в collation postgres по умолчанию.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/xela07ax/apicalculator/internal/domain"
)

type UserRepo struct {
	mu         sync.RWMutex
	byUsername map[string]*domain.User
	emails     map[string]struct{}
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		byUsername: make(map[string]*domain.User),
		emails:     make(map[string]struct{}),
	}
}

// CreateUser сохраняет копию user с ролью role.
func (r *UserRepo) CreateUser(ctx context.Context, user *domain.User, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[user.Username]; ok {
		return fmt.Errorf("memory: username %q already exists: %w", user.Username, domain.ErrConflict)
	}
	if _, ok := r.emails[user.Email]; ok {
		return fmt.Errorf("memory: email already registered: %w", domain.ErrConflict)
	}

	stored := *user
	stored.Roles = []domain.Role{role}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.byUsername[stored.Username] = &stored
	r.emails[stored.Email] = struct{}{}

	user.Roles = slices.Clone(stored.Roles)
	user.CreatedAt = stored.CreatedAt
	return nil
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byUsername[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *u
	out.Roles = slices.Clone(u.Roles)
	return &out, nil
}

// Ping всегда успешен: хранилище живет в процессе.
func (r *UserRepo) Ping(ctx context.Context) error {
	return nil
}
