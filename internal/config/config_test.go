package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("APP_PORT", "")
	t.Setenv("TX_STATEMENT_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORAGE_DRIVER", "sqlite")
	_, err = Load()
	assert.Error(t, err)
}

const sampleProfile = `
company:
  name: "Steel & Sons"
  base_currency: "EUR"
  tax_rate_percent: "15"
  default_payment_method: "transfer"
  discount_rule: "subtotal >= 1000.0 ? subtotal * 0.05 : 0.0"
metal_types:
  - code: "SS"
    name: "Stainless"
    density_kg_m3: "7930"
  - code: "CU"
    name: "Copper"
    inactive: true
grades:
  - code: "304"
    metal_type: "SS"
    name: "AISI 304"
finishes:
  - code: "2B"
    name: "Cold rolled"
service_types:
  - code: "CUT"
    name: "Laser cut"
    default_price: "12.50"
payment_methods:
  - code: "transfer"
    name: "Bank transfer"
`

func TestParseProfile(t *testing.T) {
	profile, cats, err := ParseProfile([]byte(sampleProfile))
	require.NoError(t, err)

	assert.Equal(t, "Steel & Sons", profile.CompanyName)
	assert.Equal(t, "EUR", profile.BaseCurrency)
	assert.Equal(t, "15", profile.TaxRatePercent.String())
	assert.Equal(t, "transfer", profile.DefaultPaymentMethod)
	assert.NotEmpty(t, profile.DiscountRule)

	require.Len(t, cats.MetalTypes, 2)
	assert.True(t, cats.MetalTypes[0].IsActive)
	assert.Equal(t, "7930", cats.MetalTypes[0].DensityKgM3.Decimal.String())
	assert.False(t, cats.MetalTypes[1].IsActive)
	assert.False(t, cats.MetalTypes[1].DensityKgM3.Valid)
	require.Len(t, cats.ServiceTypes, 1)
	assert.Equal(t, "12.5", cats.ServiceTypes[0].DefaultPrice.String())
}

func TestParseProfile_InvalidRate(t *testing.T) {
	_, _, err := ParseProfile([]byte("company:\n  tax_rate_percent: \"abc\"\n"))
	assert.Error(t, err)

	_, _, err = ParseProfile([]byte("company:\n  tax_rate_percent: \"-1\"\n"))
	assert.Error(t, err)
}

func TestLoadProfile(t *testing.T) {
	profile, cats, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, "USD", profile.BaseCurrency)
	assert.Empty(t, cats.MetalTypes)

	path := filepath.Join(t.TempDir(), "company.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleProfile), 0o600))
	profile, _, err = LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "EUR", profile.BaseCurrency)

	_, _, err = LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
