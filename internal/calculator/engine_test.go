package calculator

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/apicalculator/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEvaluate_Operators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		op     string
		a, b   string
		expect string
	}{
		{"add", "+", "199", "7", "206"},
		{"add fractions exactly", "+", "0.1", "0.2", "0.3"},
		{"sub", "-", "5", "7.5", "-2.5"},
		{"sub zero second", "-", "5", "0", "5"},
		{"mul", "*", "1.5", "-4", "-6"},
		{"mul by zero", "*", "123.456", "0", "0"},
		{"div", "/", "1", "4", "0.25"},
		{"div negative", "/", "-9", "3", "-3"},
		{"div repeating", "/", "10", "3", "3.3333333333333333333333333333"},
		{"add large", "+", "79228162514264337593543950335", "1", "79228162514264337593543950336"},
	}

	e := New()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := e.Evaluate(tc.op, d(tc.a), d(tc.b))
			require.NoError(t, err)
			assert.True(t, got.Equal(d(tc.expect)), "got %s want %s", got, tc.expect)
		})
	}
}

func TestEvaluate_DivisionByZero(t *testing.T) {
	t.Parallel()

	e := New()
	for _, a := range []string{"0", "1", "-1", "0.0001", "99999999999"} {
		_, err := e.Evaluate("/", d(a), decimal.Zero)
		require.ErrorIs(t, err, domain.ErrDivisionByZero, "dividend %s", a)
		require.ErrorIs(t, err, domain.ErrValidation)
	}

	// "0.000" все равно ровно ноль.
	_, err := e.Evaluate("/", d("1"), d("0.000"))
	require.ErrorIs(t, err, domain.ErrDivisionByZero)
}

func TestEvaluate_InvalidOperator(t *testing.T) {
	t.Parallel()

	e := New()
	for _, op := range []string{"", " ", "x", "%", "^", ",", ".", "++", "+-", "//", "−"} {
		_, err := e.Evaluate(op, d("1"), d("2"))
		require.Error(t, err, "operator %q", op)
		assert.True(t, errors.Is(err, domain.ErrInvalidOperator), "operator %q: %v", op, err)
	}
}

func TestValidate_OnlyDivisionIsGuarded(t *testing.T) {
	t.Parallel()

	e := New()
	for _, op := range []string{"+", "-", "*"} {
		assert.NoError(t, e.Validate(op, d("1"), decimal.Zero))
	}
	assert.ErrorIs(t, e.Validate("/", d("1"), decimal.Zero), domain.ErrDivisionByZero)
	assert.NoError(t, e.Validate("/", d("1"), d("2")))
}

func TestEvaluate_Idempotent(t *testing.T) {
	t.Parallel()

	e := New()
	first, err := e.Evaluate("/", d("2"), d("7"))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.Evaluate("/", d("2"), d("7"))
		require.NoError(t, err)
		require.True(t, first.Equal(again))
	}
}

func TestValidateOperand_Bounds(t *testing.T) {
	t.Parallel()

	valid := []string{
		"0",
		"79228162514264337593543950335",
		"-79228162514264337593543950335",
		"0.0000000000000000000000000001",
		"1e28",
		"7.9228162514264337593543950335e28",
	}
	for _, s := range valid {
		assert.NoError(t, ValidateOperand(d(s)), "operand %s", s)
	}

	invalid := []string{
		"1e30000000",
		"-1e30000000",
		"1e-40",
		"1e-30000000",
		"0e30000000",
		"79228162514264337593543950336",
		"-79228162514264337593543950336",
		"1e29",
		"0.00000000000000000000000000001",
	}
	for _, s := range invalid {
		err := ValidateOperand(d(s))
		require.ErrorIs(t, err, domain.ErrInvalidInput, "operand %s", s)
		require.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestEvaluate_RejectsOutOfRangeOperands(t *testing.T) {
	t.Parallel()

	e := New()
	for _, op := range []string{"+", "-", "*", "/"} {
		_, err := e.Evaluate(op, d("1e30000000"), d("1"))
		require.ErrorIs(t, err, domain.ErrInvalidInput, "operator %s", op)

		_, err = e.Evaluate(op, d("1"), d("1e-40"))
		require.ErrorIs(t, err, domain.ErrInvalidInput, "operator %s", op)
	}

	got, err := e.Evaluate("-", MaxOperand, MaxOperand.Neg())
	require.NoError(t, err)
	assert.Equal(t, "158456325028528675187087900670", got.String())
}
