// Package catalog exposes the read-only company profile and reference
// catalogs (metal types, grades, finishes, service types, payment methods)
// that sheets and sales point at.
package catalog

import (
	"github.com/shopspring/decimal"

	"sheetstock/internal/core/types"
)

// Profile is the company configuration consumed by sale totals.
type Profile struct {
	CompanyName          string          `json:"companyName"`
	BaseCurrency         string          `json:"baseCurrency"`
	TaxRatePercent       decimal.Decimal `json:"taxRatePercent"`
	DefaultPaymentMethod string          `json:"defaultPaymentMethod"`

	// DiscountRule is an optional CEL expression evaluated per sale.
	// Variables: subtotal, material_subtotal, service_subtotal (double),
	// item_count (int), has_customer (bool). Result: discount amount.
	DiscountRule string `json:"discountRule,omitempty"`
}

// DefaultProfile is used when no company profile is configured.
func DefaultProfile() Profile {
	return Profile{
		CompanyName:          "Metal Sheets Trading",
		BaseCurrency:         "USD",
		TaxRatePercent:       decimal.Zero,
		DefaultPaymentMethod: "cash",
	}
}

// MetalType is a material family (aluminium, stainless, galvanized...).
type MetalType struct {
	Code string `json:"code"`
	Name string `json:"name"`
	// DensityKgM3 enables theoretical sheet weight when no weight is supplied.
	DensityKgM3 types.OptionalDecimal `json:"densityKgM3"`
	IsActive    bool                  `json:"isActive"`
}

// Grade is an alloy/grade designation, optionally tied to a metal type.
type Grade struct {
	Code      string `json:"code"`
	MetalType string `json:"metalType,omitempty"`
	Name      string `json:"name"`
	IsActive  bool   `json:"isActive"`
}

// Finish is a surface finish (2B, brushed, mill...).
type Finish struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// ServiceType is a billable non-material service (cutting, bending, delivery).
type ServiceType struct {
	Code         string      `json:"code"`
	Name         string      `json:"name"`
	DefaultPrice types.Money `json:"defaultPrice"`
	IsActive     bool        `json:"isActive"`
}

// PaymentMethod names how a payment was made.
type PaymentMethod struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// Catalogs bundles all reference lists.
type Catalogs struct {
	MetalTypes     []MetalType     `json:"metalTypes"`
	Grades         []Grade         `json:"grades"`
	Finishes       []Finish        `json:"finishes"`
	ServiceTypes   []ServiceType   `json:"serviceTypes"`
	PaymentMethods []PaymentMethod `json:"paymentMethods"`
}
