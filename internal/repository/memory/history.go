package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/xela07ax/apicalculator/internal/calculator"
	"github.com/xela07ax/apicalculator/internal/domain"
)

// HistoryRepo хранит записи в порядке вставки, чтение сортирует копию.
type HistoryRepo struct {
	mu      sync.RWMutex
	nextID  int64
	records []domain.CalculationRecord
}

func NewHistoryRepo() *HistoryRepo {
	return &HistoryRepo{}
}

func (r *HistoryRepo) Insert(ctx context.Context, rec domain.CalculationRecord) (domain.CalculationRecord, error) {
	if rec.UserID == "" {
		return domain.CalculationRecord{}, fmt.Errorf("%w: record has no owner", domain.ErrInvalidInput)
	}
	if err := (calculator.Engine{}).Validate(rec.Operation, rec.FirstElement, rec.SecondElement); err != nil {
		return domain.CalculationRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	rec.ID = r.nextID
	r.records = append(r.records, rec)
	return rec, nil
}

func (r *HistoryRepo) ListForUser(ctx context.Context, identityID string) ([]domain.CalculationRecord, error) {
	return r.list(func(rec domain.CalculationRecord) bool { return rec.UserID == identityID }), nil
}

func (r *HistoryRepo) ListAll(ctx context.Context) ([]domain.CalculationRecord, error) {
	return r.list(func(domain.CalculationRecord) bool { return true }), nil
}

// DeleteAllForUser удаляет только записи identityID. Пустой id ничего не делает.
func (r *HistoryRepo) DeleteAllForUser(ctx context.Context, identityID string) (int64, error) {
	if identityID == "" {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.records)
	r.records = slices.DeleteFunc(r.records, func(rec domain.CalculationRecord) bool {
		return rec.UserID == identityID
	})
	return int64(before - len(r.records)), nil
}

func (r *HistoryRepo) list(keep func(domain.CalculationRecord) bool) []domain.CalculationRecord {
	r.mu.RLock()
	out := make([]domain.CalculationRecord, 0, len(r.records))
	for _, rec := range r.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	r.mu.RUnlock()

	// сначала новые, при равенстве порядок вставки
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OperationDate.After(out[j].OperationDate)
	})
	return out
}
