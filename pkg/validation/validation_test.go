package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetstock/internal/core/apperror"
)

type sample struct {
	Kind   string              `json:"kind" validate:"party_kind"`
	Name   string              `json:"name" validate:"not_blank"`
	Metal  string              `json:"metal" validate:"metal_code"`
	Amount decimal.Decimal     `json:"amount" validate:"gt=0"`
	Weight decimal.NullDecimal `json:"weight" validate:"omitempty,gt=0"`
}

func TestStruct_Valid(t *testing.T) {
	err := Struct(sample{
		Kind:   "customer",
		Name:   "Acme",
		Metal:  "AL",
		Amount: decimal.NewFromInt(5),
	})
	assert.NoError(t, err)
}

func TestStruct_FieldErrors(t *testing.T) {
	err := Struct(sample{
		Kind:   "vendor",
		Name:   "  ",
		Metal:  "1-bad",
		Amount: decimal.NewFromInt(-1),
		Weight: decimal.NewNullDecimal(decimal.NewFromInt(-2)),
	})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, "must be one of: customer, supplier", appErr.Details["kind"])
	assert.Equal(t, "is required", appErr.Details["name"])
	assert.Contains(t, appErr.Details, "metal")
	assert.Equal(t, "must be greater than 0", appErr.Details["amount"])
	assert.Contains(t, appErr.Details, "weight")
}
