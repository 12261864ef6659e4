// Package postgres реализует хранилища учетных записей и истории поверх
// database/sql с драйвером pgx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // регистрирует драйвер "pgx"
	"github.com/pressly/goose/v3"
	"github.com/xela07ax/apicalculator/internal/domain"
	"github.com/xela07ax/apicalculator/internal/infra"
	"github.com/xela07ax/apicalculator/internal/repository/postgres/migrations"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

// подменяется в тестах
var gooseUpContext = goose.UpContext

// Open создает пул и ждет, пока база не ответит на Ping.
func Open(ctx context.Context, cfg infra.DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := Ping(ctx, db, cfg.ConnectAttempts, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Ping повторяет PingContext с экспоненциальной задержкой.
func Ping(ctx context.Context, db *sql.DB, attempts uint, logger *zap.Logger) error {
	if attempts == 0 {
		attempts = 1
	}
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(retry.BackOffDelay),
	)
	var attempt uint
	err := r.Do(func() error {
		attempt++
		pCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pCtx); err != nil {
			logger.Warn("database not ready", zap.Uint("attempt", attempt), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("postgres: ping: %w: %w", domain.ErrStorage, err)
	}
	return nil
}

// Migrate применяет встроенные миграции goose.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func storageErr(op string, err error) error {
	return fmt.Errorf("postgres: %s: %w: %w", op, domain.ErrStorage, err)
}
