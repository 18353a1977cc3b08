// Package types provides common numeric types for money, weight and stock quantities.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// OptionalDecimal is a nullable decimal (price per kg, weights).
type OptionalDecimal = decimal.NullDecimal

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Some wraps a decimal as a present optional value.
func Some(d decimal.Decimal) OptionalDecimal {
	return decimal.NewNullDecimal(d)
}

// None is an absent optional decimal.
func None() OptionalDecimal {
	return decimal.NullDecimal{}
}

// Quantity is a fixed-point quantity with 4 decimal places (scale = 1e4).
// Stored as a scaled BIGINT; JSON remains a number with up to 4 decimals.
type Quantity int64

const QuantityScale int64 = 10_000

// NewQuantity creates a Quantity of whole units.
func NewQuantity(units int64) Quantity {
	return Quantity(units * QuantityScale)
}

// NewQuantityFromDecimal rounds d to 4 fractional digits.
func NewQuantityFromDecimal(d decimal.Decimal) Quantity {
	return Quantity(d.Shift(4).Round(0).IntPart())
}

func (q Quantity) Float64() float64 { return float64(q) / float64(QuantityScale) }

// Decimal returns the exact decimal value of q.
func (q Quantity) Decimal() decimal.Decimal { return decimal.New(int64(q), -4) }

func (q Quantity) IsZero() bool { return q == 0 }

func (q Quantity) IsPositive() bool { return q > 0 }

func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Neg() Quantity { return -q }

// Min returns the smaller of two quantities.
func Min(a, b Quantity) Quantity {
	if a < b {
		return a
	}
	return b
}

// String returns a decimal string with 4 fractional digits.
func (q Quantity) String() string {
	neg := q < 0
	v := q
	if neg {
		v = -v
	}
	intPart := int64(v) / QuantityScale
	frac := int64(v) % QuantityScale
	if neg {
		return fmt.Sprintf("-%d.%04d", intPart, frac)
	}
	return fmt.Sprintf("%d.%04d", intPart, frac)
}

// MarshalJSON encodes Quantity as JSON number (not string), preserving 4 digits.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts either a JSON number or string and parses to fixed-point (4 digits).
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}

	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseQuantity(s)
		if err != nil {
			return err
		}
		*q = parsed
		return nil
	}

	parsed, err := ParseQuantity(string(data))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// maxQuantity is the largest absolute value a Quantity can hold.
var maxQuantity = decimal.New(math.MaxInt64, -4)

// ParseQuantity parses a decimal string, truncating beyond 4 fractional digits.
// Values that do not fit the scaled int64 are rejected.
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}

	if strings.ContainsAny(s, "eE") {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, fmt.Errorf("parse quantity: %w", err)
		}
		d = d.Truncate(4)
		if d.Abs().GreaterThan(maxQuantity) {
			return 0, fmt.Errorf("quantity %s out of range", s)
		}
		return NewQuantityFromDecimal(d), nil
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intStr, fracStr, _ := strings.Cut(s, ".")
	if intStr == "" && fracStr == "" {
		return 0, fmt.Errorf("parse quantity: no digits")
	}
	if !isDigits(intStr) || !isDigits(fracStr) {
		return 0, fmt.Errorf("parse quantity: invalid syntax %q", s)
	}

	var intPart uint64
	if intStr != "" {
		var err error
		intPart, err = strconv.ParseUint(intStr, 10, 64)
		if err != nil || intPart > uint64(math.MaxInt64/QuantityScale) {
			return 0, fmt.Errorf("quantity %s out of range", s)
		}
	}

	if len(fracStr) > 4 {
		fracStr = fracStr[:4]
	}
	for len(fracStr) < 4 {
		fracStr += "0"
	}
	frac, err := strconv.ParseUint(fracStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quantity fractional part: %w", err)
	}

	scaled := intPart*uint64(QuantityScale) + frac
	if scaled > math.MaxInt64 {
		return 0, fmt.Errorf("quantity %s out of range", s)
	}
	if neg {
		return Quantity(-int64(scaled)), nil
	}
	return Quantity(scaled), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
