package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xela07ax/apicalculator/internal/calculator"
	"github.com/xela07ax/apicalculator/internal/domain"
	"github.com/xela07ax/apicalculator/internal/infra"
	"go.uber.org/zap"
)

type Evaluator interface {
	Evaluate(operator string, first, second decimal.Decimal) (decimal.Decimal, error)
}

// HistoryStore реализуют postgres и memory репозитории, а также
// декоратор кэша redis.
type HistoryStore interface {
	Insert(ctx context.Context, rec domain.CalculationRecord) (domain.CalculationRecord, error)
	ListForUser(ctx context.Context, identityID string) ([]domain.CalculationRecord, error)
	ListAll(ctx context.Context) ([]domain.CalculationRecord, error)
	DeleteAllForUser(ctx context.Context, identityID string) (int64, error)
}

// OperationsService вычисляет уравнения и записывает их для вызывающего.
// Каждый вызов явно получает проверенные claims, владельцем любой операции
// с историей является claims.IdentityID.
type OperationsService struct {
	engine  Evaluator
	store   HistoryStore
	logger  *zap.Logger
	metrics *infra.Metrics

	now func() time.Time
}

func NewOperationsService(engine Evaluator, store HistoryStore, logger *zap.Logger, metrics *infra.Metrics) *OperationsService {
	return &OperationsService{
		engine:  engine,
		store:   store,
		logger:  logger.Named("operations-service"),
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *OperationsService) Calculate(ctx context.Context, claims domain.Claims, first decimal.Decimal, operator string, second decimal.Decimal) (decimal.Decimal, error) {
	if claims.IdentityID == "" {
		return decimal.Decimal{}, domain.ErrTokenMalformed
	}
	label := operatorLabel(operator)

	result, err := s.engine.Evaluate(operator, first, second)
	if err != nil {
		s.metrics.Calculations.WithLabelValues(label, "invalid").Inc()
		return decimal.Decimal{}, err
	}

	_, err = s.store.Insert(ctx, domain.CalculationRecord{
		UserID:        claims.IdentityID,
		FirstElement:  first,
		Operation:     operator,
		SecondElement: second,
		Result:        result,
		OperationDate: s.now().UTC(),
	})
	if err != nil {
		s.metrics.Calculations.WithLabelValues(label, "storage_error").Inc()
		s.logger.Error("record calculation",
			zap.String("identity_id", claims.IdentityID), zap.String("operator", operator), zap.Error(err))
		return decimal.Decimal{}, err
	}

	s.metrics.Calculations.WithLabelValues(label, "ok").Inc()
	s.logger.Info("calculation",
		zap.String("username", claims.Username()),
		zap.String("equation", fmt.Sprintf("%s %s %s", first, operator, second)),
		zap.String("result", result.String()))
	return result, nil
}

// UserHistory возвращает записи вызывающего, сначала новые, или ErrNotFound, если их нет.
func (s *OperationsService) UserHistory(ctx context.Context, claims domain.Claims) ([]domain.CalculationRecord, error) {
	if claims.IdentityID == "" {
		return nil, domain.ErrTokenMalformed
	}
	recs, err := s.store.ListForUser(ctx, claims.IdentityID)
	return s.history(recs, err, claims, "user history")
}

// AdminHistory возвращает записи всех пользователей, нужна роль Admin.
func (s *OperationsService) AdminHistory(ctx context.Context, claims domain.Claims) ([]domain.CalculationRecord, error) {
	if !claims.HasRole(domain.RoleAdmin) {
		s.logger.Warn("admin history denied", zap.String("username", claims.Username()))
		return nil, fmt.Errorf("%w: %s role required", domain.ErrForbidden, domain.RoleAdmin)
	}
	recs, err := s.store.ListAll(ctx)
	return s.history(recs, err, claims, "admin history")
}

// ClearHistory удаляет только записи вызывающего. Пустая история не ошибка.
func (s *OperationsService) ClearHistory(ctx context.Context, claims domain.Claims) (int64, error) {
	if claims.IdentityID == "" {
		return 0, domain.ErrTokenMalformed
	}
	n, err := s.store.DeleteAllForUser(ctx, claims.IdentityID)
	if err != nil {
		s.logger.Error("clear history", zap.String("identity_id", claims.IdentityID), zap.Error(err))
		return 0, err
	}
	s.logger.Info("history cleared", zap.String("username", claims.Username()), zap.Int64("removed", n))
	return n, nil
}

func (s *OperationsService) history(recs []domain.CalculationRecord, err error, claims domain.Claims, what string) ([]domain.CalculationRecord, error) {
	if err != nil {
		s.logger.Error(what, zap.String("identity_id", claims.IdentityID), zap.Error(err))
		return nil, err
	}
	if len(recs) == 0 {
		s.logger.Warn(what+" is empty", zap.String("username", claims.Username()))
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrNotFound, what)
	}
	return recs, nil
}

func operatorLabel(op string) string {
	switch op {
	case calculator.OpAdd, calculator.OpSub, calculator.OpMul, calculator.OpDiv:
		return op
	default:
		return "other"
	}
}

