package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xela07ax/apicalculator/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// CreateUser вставляет пользователя, заводит роль при первом использовании и назначает ее,
// все в одной транзакции. Повтор username или email превращается в ErrConflict.
func (r *UserRepo) CreateUser(ctx context.Context, user *domain.User, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("create user", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO users (id, username, email, password_hash) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		user.ID, user.Username, user.Email, user.PasswordHash,
	).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: user %q: %w", user.Username, domain.ErrConflict)
		}
		return storageErr("create user", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO roles (name) VALUES ($1) ON CONFLICT DO NOTHING`, string(role)); err != nil {
		return storageErr("ensure role", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, user.ID, string(role)); err != nil {
		return storageErr("assign role", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("create user", err)
	}
	user.Roles = []domain.Role{role}
	return nil
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("get user", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, u.ID)
	if err != nil {
		return nil, storageErr("get roles", err)
	}
	defer rows.Close()

	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, storageErr("scan role", err)
		}
		u.Roles = append(u.Roles, domain.Role(role))
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("get roles", err)
	}
	return u, nil
}

// Ping используется gRPC health сервисом как проверка готовности.
func (r *UserRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}
