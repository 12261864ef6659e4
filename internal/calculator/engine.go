// Package calculator проверяет и вычисляет уравнения с одним бинарным оператором
// в точной десятичной арифметике.
package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xela07ax/apicalculator/internal/domain"
)

// DivisionScale число знаков после запятой при делении.
const DivisionScale = 28

// MaxOperand максимальный модуль операнда (2^96-1).
var MaxOperand = decimal.RequireFromString("79228162514264337593543950335")

const (
	OpAdd = "+"
	OpSub = "-"
	OpMul = "*"
	OpDiv = "/"
)

// Engine не хранит состояния, нулевое значение готово к работе.
type Engine struct{}

func New() *Engine {
	return &Engine{}
}

// ValidateOperand ограничивает d модулем MaxOperand и не более DivisionScale знаками
// после запятой. Экспонента проверяется первой, чтобы Cmp не масштабировал огромное значение.
func ValidateOperand(d decimal.Decimal) error {
	exp := d.Exponent()
	if exp < -DivisionScale {
		return fmt.Errorf("%w: operand has more than %d fractional digits", domain.ErrInvalidInput, DivisionScale)
	}
	if exp > DivisionScale || d.Abs().GreaterThan(MaxOperand) {
		return fmt.Errorf("%w: operand is out of range", domain.ErrInvalidInput)
	}
	return nil
}

// Validate проверяет диапазон операндов, оператор по списку разрешенных
// и деление на ноль.
func (Engine) Validate(operator string, first, second decimal.Decimal) error {
	if err := ValidateOperand(first); err != nil {
		return err
	}
	if err := ValidateOperand(second); err != nil {
		return err
	}

	switch operator {
	case OpAdd, OpSub, OpMul:
		return nil
	case OpDiv:
		if second.IsZero() {
			return domain.ErrDivisionByZero
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidOperator, operator)
	}
}

// Evaluate проверяет уравнение и вычисляет результат.
func (e Engine) Evaluate(operator string, first, second decimal.Decimal) (decimal.Decimal, error) {
	if err := e.Validate(operator, first, second); err != nil {
		return decimal.Zero, err
	}

	switch operator {
	case OpAdd:
		return first.Add(second), nil
	case OpSub:
		return first.Sub(second), nil
	case OpMul:
		return first.Mul(second), nil
	default:
		return first.DivRound(second, DivisionScale), nil
	}
}
