package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CalculationRecord одно вычисленное уравнение, принадлежащее пользователю.
// ID назначает хранилище при вставке.
type CalculationRecord struct {
	ID            int64
	UserID        string
	FirstElement  decimal.Decimal
	Operation     string
	SecondElement decimal.Decimal
	Result        decimal.Decimal
	OperationDate time.Time
}

// CalculationDTO форма записи истории в API. Decimal пишутся числами JSON,
// id владельца наружу не отдается.
type CalculationDTO struct {
	ID            int64       `json:"id"`
	OperationDate time.Time   `json:"operationDate"`
	FirstElement  json.Number `json:"firstElement"`
	Operation     string      `json:"operation"`
	SecondElement json.Number `json:"secondElement"`
	Result        json.Number `json:"result"`
}

func (r CalculationRecord) DTO() CalculationDTO {
	return CalculationDTO{
		ID:            r.ID,
		OperationDate: r.OperationDate,
		FirstElement:  json.Number(r.FirstElement.String()),
		Operation:     r.Operation,
		SecondElement: json.Number(r.SecondElement.String()),
		Result:        json.Number(r.Result.String()),
	}
}
