// Package validation wraps go-playground/validator with the project's custom
// rules and maps failures onto apperror validation errors.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"sheetstock/internal/core/apperror"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Init returns the singleton validator, registering custom rules on first use.
func Init() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		Register(validate)
	})
	return validate
}

// Register installs custom rules and the JSON tag name function on v.
// The HTTP layer calls it for gin's binding engine too.
func Register(v *validator.Validate) {
	_ = v.RegisterValidation("party_kind", validatePartyKind)
	_ = v.RegisterValidation("metal_code", validateMetalCode)
	_ = v.RegisterValidation("not_blank", validateNotBlank)

	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{}, decimal.NullDecimal{})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// decimalValue lets numeric tags (gt, gte, lte) apply to decimal fields.
func decimalValue(field reflect.Value) any {
	switch v := field.Interface().(type) {
	case decimal.Decimal:
		f, _ := v.Float64()
		return f
	case decimal.NullDecimal:
		if !v.Valid {
			return nil
		}
		f, _ := v.Decimal.Float64()
		return f
	}
	return nil
}

var metalCodeRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,31}$`)

func validatePartyKind(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "customer", "supplier":
		return true
	}
	return false
}

func validateMetalCode(fl validator.FieldLevel) bool {
	return metalCodeRegex.MatchString(fl.Field().String())
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Struct validates obj and returns an *apperror.AppError with per-field
// messages, or nil.
func Struct(obj any) error {
	err := Init().Struct(obj)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		appErr := apperror.NewValidation("validation failed")
		for field, msg := range FormatErrors(verrs) {
			appErr.WithDetail(field, msg)
		}
		return appErr
	}
	return apperror.NewValidation("validation failed: " + err.Error())
}

// FormatErrors converts validator errors into a field -> message map.
func FormatErrors(err error) map[string]string {
	fields := make(map[string]string)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			fields[e.Field()] = formatValidationError(e)
		}
	}

	return fields
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "not_blank":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "party_kind":
		return "must be one of: customer, supplier"
	case "metal_code":
		return "must be a short alphanumeric code"
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}
