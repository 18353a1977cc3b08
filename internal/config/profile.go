package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/catalog"
)

// profileFile mirrors the YAML layout. Numbers are read as strings so that
// rates and prices keep exact decimal values.
type profileFile struct {
	Company struct {
		Name                 string `yaml:"name"`
		BaseCurrency         string `yaml:"base_currency"`
		TaxRatePercent       string `yaml:"tax_rate_percent"`
		DefaultPaymentMethod string `yaml:"default_payment_method"`
		DiscountRule         string `yaml:"discount_rule"`
	} `yaml:"company"`

	MetalTypes []struct {
		Code        string `yaml:"code"`
		Name        string `yaml:"name"`
		DensityKgM3 string `yaml:"density_kg_m3"`
		Inactive    bool   `yaml:"inactive"`
	} `yaml:"metal_types"`

	Grades []struct {
		Code      string `yaml:"code"`
		MetalType string `yaml:"metal_type"`
		Name      string `yaml:"name"`
		Inactive  bool   `yaml:"inactive"`
	} `yaml:"grades"`

	Finishes []struct {
		Code     string `yaml:"code"`
		Name     string `yaml:"name"`
		Inactive bool   `yaml:"inactive"`
	} `yaml:"finishes"`

	ServiceTypes []struct {
		Code         string `yaml:"code"`
		Name         string `yaml:"name"`
		DefaultPrice string `yaml:"default_price"`
		Inactive     bool   `yaml:"inactive"`
	} `yaml:"service_types"`

	PaymentMethods []struct {
		Code     string `yaml:"code"`
		Name     string `yaml:"name"`
		Inactive bool   `yaml:"inactive"`
	} `yaml:"payment_methods"`
}

// LoadProfile reads the company profile and catalogs from path.
// An empty path yields catalog.DefaultProfile and empty catalogs.
func LoadProfile(path string) (catalog.Profile, catalog.Catalogs, error) {
	if path == "" {
		return catalog.DefaultProfile(), catalog.Catalogs{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return catalog.Profile{}, catalog.Catalogs{}, fmt.Errorf("read company profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes a YAML company profile.
func ParseProfile(data []byte) (catalog.Profile, catalog.Catalogs, error) {
	var raw profileFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return catalog.Profile{}, catalog.Catalogs{}, fmt.Errorf("decode company profile: %w", err)
	}

	profile := catalog.DefaultProfile()
	if raw.Company.Name != "" {
		profile.CompanyName = raw.Company.Name
	}
	if raw.Company.BaseCurrency != "" {
		profile.BaseCurrency = raw.Company.BaseCurrency
	}
	if raw.Company.DefaultPaymentMethod != "" {
		profile.DefaultPaymentMethod = raw.Company.DefaultPaymentMethod
	}
	profile.DiscountRule = raw.Company.DiscountRule

	if raw.Company.TaxRatePercent != "" {
		rate, err := decimal.NewFromString(raw.Company.TaxRatePercent)
		if err != nil {
			return catalog.Profile{}, catalog.Catalogs{}, fmt.Errorf("tax_rate_percent: %w", err)
		}
		if rate.IsNegative() {
			return catalog.Profile{}, catalog.Catalogs{}, fmt.Errorf("tax_rate_percent must not be negative")
		}
		profile.TaxRatePercent = rate
	}

	var cats catalog.Catalogs
	for _, m := range raw.MetalTypes {
		density, err := optionalDecimal(m.DensityKgM3)
		if err != nil {
			return catalog.Profile{}, catalog.Catalogs{}, fmt.Errorf("metal type %s density: %w", m.Code, err)
		}
		cats.MetalTypes = append(cats.MetalTypes, catalog.MetalType{
			Code: m.Code, Name: m.Name, DensityKgM3: density, IsActive: !m.Inactive,
		})
	}
	for _, g := range raw.Grades {
		cats.Grades = append(cats.Grades, catalog.Grade{
			Code: g.Code, MetalType: g.MetalType, Name: g.Name, IsActive: !g.Inactive,
		})
	}
	for _, f := range raw.Finishes {
		cats.Finishes = append(cats.Finishes, catalog.Finish{
			Code: f.Code, Name: f.Name, IsActive: !f.Inactive,
		})
	}
	for _, st := range raw.ServiceTypes {
		price := decimal.Zero
		if st.DefaultPrice != "" {
			p, err := decimal.NewFromString(st.DefaultPrice)
			if err != nil {
				return catalog.Profile{}, catalog.Catalogs{}, fmt.Errorf("service type %s price: %w", st.Code, err)
			}
			price = p
		}
		cats.ServiceTypes = append(cats.ServiceTypes, catalog.ServiceType{
			Code: st.Code, Name: st.Name, DefaultPrice: price, IsActive: !st.Inactive,
		})
	}
	for _, pm := range raw.PaymentMethods {
		cats.PaymentMethods = append(cats.PaymentMethods, catalog.PaymentMethod{
			Code: pm.Code, Name: pm.Name, IsActive: !pm.Inactive,
		})
	}

	return profile, cats, nil
}

func optionalDecimal(s string) (types.OptionalDecimal, error) {
	if s == "" {
		return types.None(), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return types.None(), err
	}
	return types.Some(d), nil
}
