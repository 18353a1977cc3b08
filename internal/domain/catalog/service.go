package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/costing"
)

// Service answers read-only catalog and profile lookups.
// A catalog list left empty in configuration accepts any code.
type Service struct {
	profile Profile

	metals   map[string]MetalType
	grades   map[string]Grade
	finishes map[string]Finish
	services map[string]ServiceType
	payments map[string]PaymentMethod

	discount cel.Program
}

// NewService builds the lookup maps and compiles the discount rule.
func NewService(profile Profile, catalogs Catalogs) (*Service, error) {
	s := &Service{
		profile:  profile,
		metals:   make(map[string]MetalType, len(catalogs.MetalTypes)),
		grades:   make(map[string]Grade, len(catalogs.Grades)),
		finishes: make(map[string]Finish, len(catalogs.Finishes)),
		services: make(map[string]ServiceType, len(catalogs.ServiceTypes)),
		payments: make(map[string]PaymentMethod, len(catalogs.PaymentMethods)),
	}
	for _, m := range catalogs.MetalTypes {
		s.metals[normalize(m.Code)] = m
	}
	for _, g := range catalogs.Grades {
		s.grades[normalize(g.Code)] = g
	}
	for _, f := range catalogs.Finishes {
		s.finishes[normalize(f.Code)] = f
	}
	for _, st := range catalogs.ServiceTypes {
		s.services[normalize(st.Code)] = st
	}
	for _, pm := range catalogs.PaymentMethods {
		s.payments[normalize(pm.Code)] = pm
	}

	if rule := strings.TrimSpace(profile.DiscountRule); rule != "" {
		prg, err := compileDiscountRule(rule)
		if err != nil {
			return nil, err
		}
		s.discount = prg
	}

	return s, nil
}

// MustDefault returns a service over DefaultProfile with empty catalogs.
func MustDefault() *Service {
	s, err := NewService(DefaultProfile(), Catalogs{})
	if err != nil {
		panic(err)
	}
	return s
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func compileDiscountRule(rule string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("subtotal", cel.DoubleType),
		cel.Variable("material_subtotal", cel.DoubleType),
		cel.Variable("service_subtotal", cel.DoubleType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("has_customer", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	ast, iss := env.Compile(rule)
	if iss.Err() != nil {
		return nil, apperror.NewValidation("invalid discount rule").
			WithDetail("rule", rule).
			WithCause(iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build discount program: %w", err)
	}
	return prg, nil
}

// Profile returns the company profile.
func (s *Service) Profile() Profile {
	return s.profile
}

// TaxRate returns the configured tax rate in percent.
func (s *Service) TaxRate() decimal.Decimal {
	return s.profile.TaxRatePercent
}

// MetalType resolves an active metal type.
func (s *Service) MetalType(code string) (MetalType, error) {
	if code = normalize(code); code == "" {
		return MetalType{}, apperror.NewValidation("metal type is required").WithDetail("field", "metalType")
	}
	if len(s.metals) == 0 {
		return MetalType{Code: code, Name: code, IsActive: true}, nil
	}
	m, ok := s.metals[code]
	if !ok || !m.IsActive {
		return MetalType{}, apperror.NewNotFound("metal type", code)
	}
	return m, nil
}

// ValidateSheetRefs checks metal type, grade and finish references.
func (s *Service) ValidateSheetRefs(metal, grade, finish string) error {
	m, err := s.MetalType(metal)
	if err != nil {
		return err
	}
	if g := normalize(grade); g != "" && len(s.grades) > 0 {
		ref, ok := s.grades[g]
		if !ok || !ref.IsActive {
			return apperror.NewNotFound("grade", g)
		}
		if ref.MetalType != "" && normalize(ref.MetalType) != m.Code {
			return apperror.NewValidation("grade does not belong to metal type").
				WithDetail("grade", g).
				WithDetail("metalType", m.Code)
		}
	}
	if f := normalize(finish); f != "" && len(s.finishes) > 0 {
		if ref, ok := s.finishes[f]; !ok || !ref.IsActive {
			return apperror.NewNotFound("finish", f)
		}
	}
	return nil
}

// TheoreticalWeight returns the weight of one sheet from its dimensions (mm)
// and the metal density. ok is false when no density is configured.
func (s *Service) TheoreticalWeight(metal string, lengthMM, widthMM, thicknessMM decimal.Decimal) (decimal.Decimal, bool) {
	m, found := s.metals[normalize(metal)]
	if !found || !m.DensityKgM3.Valid {
		return decimal.Zero, false
	}
	volumeM3 := lengthMM.Mul(widthMM).Mul(thicknessMM).Shift(-9)
	return volumeM3.Mul(m.DensityKgM3.Decimal).Round(3), true
}

// ServiceType resolves an active service type.
func (s *Service) ServiceType(code string) (ServiceType, error) {
	if code = normalize(code); code == "" {
		return ServiceType{}, apperror.NewValidation("service type is required").WithDetail("field", "serviceType")
	}
	if len(s.services) == 0 {
		return ServiceType{Code: code, Name: code, IsActive: true}, nil
	}
	st, ok := s.services[code]
	if !ok || !st.IsActive {
		return ServiceType{}, apperror.NewNotFound("service type", code)
	}
	return st, nil
}

// ResolvePaymentMethod returns code or the default method when code is empty.
func (s *Service) ResolvePaymentMethod(code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		code = s.profile.DefaultPaymentMethod
	}
	code = normalize(code)
	if len(s.payments) == 0 {
		return strings.ToLower(code), nil
	}
	pm, ok := s.payments[code]
	if !ok || !pm.IsActive {
		return "", apperror.NewNotFound("payment method", code)
	}
	return pm.Code, nil
}

// DiscountInput feeds the discount rule.
type DiscountInput struct {
	Subtotal         types.Money
	MaterialSubtotal types.Money
	ServiceSubtotal  types.Money
	ItemCount        int
	HasCustomer      bool
}

// Discount evaluates the configured discount rule. The result is clamped to
// [0, subtotal] and rounded to currency.
func (s *Service) Discount(ctx context.Context, in DiscountInput) (types.Money, error) {
	if s.discount == nil {
		return decimal.Zero, nil
	}
	out, _, err := s.discount.ContextEval(ctx, map[string]any{
		"subtotal":          in.Subtotal.InexactFloat64(),
		"material_subtotal": in.MaterialSubtotal.InexactFloat64(),
		"service_subtotal":  in.ServiceSubtotal.InexactFloat64(),
		"item_count":        int64(in.ItemCount),
		"has_customer":      in.HasCustomer,
	})
	if err != nil {
		return decimal.Zero, apperror.NewValidation("discount rule evaluation failed").WithCause(err)
	}

	var amount decimal.Decimal
	switch v := out.Value().(type) {
	case float64:
		amount = decimal.NewFromFloat(v)
	case int64:
		amount = decimal.NewFromInt(v)
	default:
		return decimal.Zero, apperror.NewValidation("discount rule must return a number").
			WithDetail("type", fmt.Sprintf("%T", v))
	}

	if amount.IsNegative() {
		amount = decimal.Zero
	}
	if amount.GreaterThan(in.Subtotal) {
		amount = in.Subtotal
	}
	return costing.RoundCurrency(amount), nil
}
