// Package costing holds the rounding and weight/price derivations shared by
// inventory, sales and reporting.
package costing

import (
	"github.com/shopspring/decimal"

	"sheetstock/internal/core/types"
)

// CurrencyPlaces is the number of fractional digits kept for money.
const CurrencyPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundCurrency rounds half away from zero to two decimals.
func RoundCurrency(m types.Money) types.Money {
	return m.Round(CurrencyPlaces)
}

// EffectiveWeight is the explicit batch weight when given, otherwise
// quantity × weight per unit. ok is false when neither is known.
func EffectiveWeight(batchWeight, weightPerUnit types.OptionalDecimal, qty types.Quantity) (decimal.Decimal, bool) {
	if batchWeight.Valid && batchWeight.Decimal.IsPositive() {
		return batchWeight.Decimal, true
	}
	if weightPerUnit.Valid && weightPerUnit.Decimal.IsPositive() {
		return weightPerUnit.Decimal.Mul(qty.Decimal()), true
	}
	return decimal.Zero, false
}

// UnitWeight is the weight of one unit in a batch.
func UnitWeight(batchWeight, weightPerUnit types.OptionalDecimal, qtyOriginal types.Quantity) (decimal.Decimal, bool) {
	if batchWeight.Valid && batchWeight.Decimal.IsPositive() && qtyOriginal.IsPositive() {
		return batchWeight.Decimal.Div(qtyOriginal.Decimal()), true
	}
	if weightPerUnit.Valid && weightPerUnit.Decimal.IsPositive() {
		return weightPerUnit.Decimal, true
	}
	return decimal.Zero, false
}

// TotalFromPrice derives total cost from a per-kg price and weight.
func TotalFromPrice(pricePerKg, weight decimal.Decimal) types.Money {
	return RoundCurrency(pricePerKg.Mul(weight))
}

// PriceFromTotal derives the per-kg price from a total and a weight.
// ok is false when weight is zero.
func PriceFromTotal(total, weight decimal.Decimal) (decimal.Decimal, bool) {
	if !weight.IsPositive() {
		return decimal.Zero, false
	}
	return total.DivRound(weight, 4), true
}

// UnitCost returns price_per_kg × unit_weight when both are known, else
// total_cost / quantity_original. ok is false when neither path applies;
// the caller then books zero cost and flags the line.
func UnitCost(pricePerKg types.OptionalDecimal, unitWeight decimal.Decimal, hasUnitWeight bool, totalCost types.OptionalDecimal, qtyOriginal types.Quantity) (types.Money, bool) {
	if pricePerKg.Valid && hasUnitWeight {
		return pricePerKg.Decimal.Mul(unitWeight), true
	}
	if totalCost.Valid && qtyOriginal.IsPositive() {
		return totalCost.Decimal.Div(qtyOriginal.Decimal()), true
	}
	return decimal.Zero, false
}

// LineTotal is round(quantity × unit price).
func LineTotal(qty types.Quantity, unitPrice types.Money) types.Money {
	return RoundCurrency(qty.Decimal().Mul(unitPrice))
}

// Tax computes round(base × ratePercent / 100).
func Tax(base types.Money, ratePercent decimal.Decimal) types.Money {
	if ratePercent.IsZero() {
		return decimal.Zero
	}
	return RoundCurrency(base.Mul(ratePercent).Div(hundred))
}

// Portion is one (quantity, unit cost) slice of a FIFO draw.
type Portion struct {
	Quantity types.Quantity
	UnitCost types.Money
}

// CostOf sums quantity × unit cost over portions, rounded to currency.
func CostOf(portions []Portion) types.Money {
	total := decimal.Zero
	for _, p := range portions {
		total = total.Add(p.Quantity.Decimal().Mul(p.UnitCost))
	}
	return RoundCurrency(total)
}

// WeightedAverage returns the per-unit cost across portions (4 dp).
func WeightedAverage(portions []Portion) types.Money {
	qty := decimal.Zero
	total := decimal.Zero
	for _, p := range portions {
		qty = qty.Add(p.Quantity.Decimal())
		total = total.Add(p.Quantity.Decimal().Mul(p.UnitCost))
	}
	if qty.IsZero() {
		return decimal.Zero
	}
	return total.DivRound(qty, 4)
}
