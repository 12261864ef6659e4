package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xela07ax/apicalculator/internal/calculator"
	"github.com/xela07ax/apicalculator/internal/domain"
)

const selectCalculations = `SELECT id, user_id, first_element, operation, second_element, result, operation_date FROM calculations`

type HistoryRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// Insert отклоняет записи, которые не пропустил бы движок: в таблице не бывает
// неверного оператора или деления на ноль.
func (r *HistoryRepo) Insert(ctx context.Context, rec domain.CalculationRecord) (domain.CalculationRecord, error) {
	if rec.UserID == "" {
		return domain.CalculationRecord{}, fmt.Errorf("%w: record has no owner", domain.ErrInvalidInput)
	}
	if err := (calculator.Engine{}).Validate(rec.Operation, rec.FirstElement, rec.SecondElement); err != nil {
		return domain.CalculationRecord{}, err
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO calculations (user_id, first_element, operation, second_element, result, operation_date)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		rec.UserID, rec.FirstElement, rec.Operation, rec.SecondElement, rec.Result, rec.OperationDate,
	).Scan(&rec.ID)
	if err != nil {
		return domain.CalculationRecord{}, storageErr("insert calculation", err)
	}
	return rec, nil
}

func (r *HistoryRepo) ListForUser(ctx context.Context, identityID string) ([]domain.CalculationRecord, error) {
	return r.query(ctx, "list user history",
		selectCalculations+` WHERE user_id = $1 ORDER BY operation_date DESC, id ASC`, identityID)
}

func (r *HistoryRepo) ListAll(ctx context.Context) ([]domain.CalculationRecord, error) {
	return r.query(ctx, "list history", selectCalculations+` ORDER BY operation_date DESC, id ASC`)
}

// DeleteAllForUser возвращает число удаленных строк. Пустой id ничего не трогает.
func (r *HistoryRepo) DeleteAllForUser(ctx context.Context, identityID string) (int64, error) {
	if identityID == "" {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM calculations WHERE user_id = $1`, identityID)
	if err != nil {
		return 0, storageErr("delete history", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("delete history", err)
	}
	return n, nil
}

func (r *HistoryRepo) query(ctx context.Context, op, q string, args ...any) ([]domain.CalculationRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var out []domain.CalculationRecord
	for rows.Next() {
		var rec domain.CalculationRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.FirstElement, &rec.Operation,
			&rec.SecondElement, &rec.Result, &rec.OperationDate); err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}
