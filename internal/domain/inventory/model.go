// Package inventory tracks sheets (product variants) and the priced batches
// received against them, and allocates stock strictly first-in first-out.
package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sheetstock/internal/core/id"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/costing"
)

// Sheet is a product variant. Dimensions and metal type never change after
// creation; a different size is a different sheet.
type Sheet struct {
	ID            id.ID                 `db:"id" json:"id"`
	Code          string                `db:"code" json:"code"`
	MetalType     string                `db:"metal_type" json:"metalType"`
	Grade         string                `db:"grade" json:"grade,omitempty"`
	Finish        string                `db:"finish" json:"finish,omitempty"`
	LengthMM      decimal.Decimal       `db:"length_mm" json:"lengthMm"`
	WidthMM       decimal.Decimal       `db:"width_mm" json:"widthMm"`
	ThicknessMM   decimal.Decimal       `db:"thickness_mm" json:"thicknessMm"`
	WeightPerUnit types.OptionalDecimal `db:"weight_per_unit" json:"weightPerUnit"`
	IsRemnant     bool                  `db:"is_remnant" json:"isRemnant"`
	ParentSheetID *id.ID                `db:"parent_sheet_id" json:"parentSheetId,omitempty"`
	IsActive      bool                  `db:"is_active" json:"isActive"`
	CreatedAt     time.Time             `db:"created_at" json:"createdAt"`
}

// SheetSpec describes a sheet to create or reuse on receipt.
type SheetSpec struct {
	MetalType     string                `json:"metalType" validate:"required,metal_code"`
	Grade         string                `json:"grade"`
	Finish        string                `json:"finish"`
	LengthMM      decimal.Decimal       `json:"lengthMm" validate:"gt=0"`
	WidthMM       decimal.Decimal       `json:"widthMm" validate:"gt=0"`
	ThicknessMM   decimal.Decimal       `json:"thicknessMm" validate:"gt=0"`
	WeightPerUnit types.OptionalDecimal `json:"weightPerUnit" validate:"omitempty,gt=0"`
	IsRemnant     bool                  `json:"isRemnant"`
	ParentSheetID *id.ID                `json:"parentSheetId"`
}

// SheetCode builds METAL-LxWxT[-GRADE][-FINISH][-R]. Sheets are deduplicated
// by this code.
func SheetCode(spec SheetSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s-%sx%sx%s",
		strings.ToUpper(strings.TrimSpace(spec.MetalType)),
		spec.LengthMM.String(), spec.WidthMM.String(), spec.ThicknessMM.String())
	if g := strings.ToUpper(strings.TrimSpace(spec.Grade)); g != "" {
		b.WriteString("-" + g)
	}
	if f := strings.ToUpper(strings.TrimSpace(spec.Finish)); f != "" {
		b.WriteString("-" + f)
	}
	if spec.IsRemnant {
		b.WriteString("-R")
	}
	return b.String()
}

// SheetStock is a sheet with its aggregate available quantity.
type SheetStock struct {
	Sheet
	Available  types.Quantity `db:"available" json:"available"`
	BatchCount int            `db:"batch_count" json:"batchCount"`
}

// PricingBasis names the authoritative pricing input of a batch.
type PricingBasis string

const (
	PricingPerKg PricingBasis = "per_kg"
	PricingTotal PricingBasis = "total"
	PricingNone  PricingBasis = "none"
)

// Batch is one receipt of stock against a sheet. Only the authoritative
// pricing input is stored; the other side is derived on read by Cost.
type Batch struct {
	ID                id.ID                 `db:"id" json:"id"`
	SheetID           id.ID                 `db:"sheet_id" json:"sheetId"`
	SupplierID        *id.ID                `db:"supplier_id" json:"supplierId,omitempty"`
	QuantityOriginal  types.Quantity        `db:"quantity_original" json:"quantityOriginal"`
	QuantityRemaining types.Quantity        `db:"quantity_remaining" json:"quantityRemaining"`
	Weight            types.OptionalDecimal `db:"weight" json:"weight"`
	PricingBasis      PricingBasis          `db:"pricing_basis" json:"pricingBasis"`
	PricePerKg        types.OptionalDecimal `db:"price_per_kg" json:"pricePerKg"`
	TotalCost         types.OptionalDecimal `db:"total_cost" json:"totalCost"`
	ReceivedDate      time.Time             `db:"received_date" json:"receivedDate"`
	Location          string                `db:"location" json:"location,omitempty"`
	Notes             string                `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time             `db:"created_at" json:"createdAt"`
}

// BatchCost is the full derived pricing view of a batch.
type BatchCost struct {
	PricePerKg types.OptionalDecimal `json:"pricePerKg"`
	TotalCost  types.OptionalDecimal `json:"totalCost"`
	UnitWeight types.OptionalDecimal `json:"unitWeight"`
	UnitCost   types.Money           `json:"unitCost"`
	CostKnown  bool                  `json:"costKnown"`
}

// Cost derives price per kg, total cost and unit cost from the stored
// authoritative input and the sheet weight.
func (b *Batch) Cost(weightPerUnit types.OptionalDecimal) BatchCost {
	var out BatchCost

	weight, hasWeight := costing.EffectiveWeight(b.Weight, weightPerUnit, b.QuantityOriginal)
	unitWeight, hasUnitWeight := costing.UnitWeight(b.Weight, weightPerUnit, b.QuantityOriginal)
	if hasUnitWeight {
		out.UnitWeight = types.Some(unitWeight)
	}

	switch b.PricingBasis {
	case PricingPerKg:
		out.PricePerKg = b.PricePerKg
		if b.PricePerKg.Valid && hasWeight {
			out.TotalCost = types.Some(costing.TotalFromPrice(b.PricePerKg.Decimal, weight))
		}
	case PricingTotal:
		out.TotalCost = b.TotalCost
		if b.TotalCost.Valid && hasWeight {
			if price, ok := costing.PriceFromTotal(b.TotalCost.Decimal, weight); ok {
				out.PricePerKg = types.Some(price)
			}
		}
	}

	var authPrice, authTotal types.OptionalDecimal
	switch b.PricingBasis {
	case PricingPerKg:
		authPrice = b.PricePerKg
	case PricingTotal:
		authTotal = b.TotalCost
	}
	out.UnitCost, out.CostKnown = costing.UnitCost(authPrice, unitWeight, hasUnitWeight, authTotal, b.QuantityOriginal)
	return out
}

// MovementReason classifies a stock movement.
type MovementReason string

const (
	ReasonReceipt       MovementReason = "receipt"
	ReasonSale          MovementReason = "sale"
	ReasonSaleReversal  MovementReason = "sale_reversal"
	ReasonAdjustment    MovementReason = "adjustment"
	ReasonRemnant       MovementReason = "remnant"
	ReasonRemnantRemove MovementReason = "remnant_removed"
	ReasonRecreated     MovementReason = "batch_recreated"
)

// Movement is an immutable record of a quantity change on a batch.
type Movement struct {
	ID          id.ID          `db:"id" json:"id"`
	BatchID     id.ID          `db:"batch_id" json:"batchId"`
	SheetID     id.ID          `db:"sheet_id" json:"sheetId"`
	Delta       types.Quantity `db:"delta" json:"delta"`
	Reason      MovementReason `db:"reason" json:"reason"`
	ReferenceID *id.ID         `db:"reference_id" json:"referenceId,omitempty"`
	// Receipt carries the batch as received, so a lost batch can be rebuilt.
	Receipt   *Batch    `db:"receipt" json:"receipt,omitempty"`
	Notes     string    `db:"notes" json:"notes,omitempty"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Portion is the part of an allocation drawn from one batch.
type Portion struct {
	BatchID   id.ID          `json:"batchId"`
	Quantity  types.Quantity `json:"quantity"`
	UnitCost  types.Money    `json:"unitCost"`
	CostKnown bool           `json:"costKnown"`
}

// Allocation is an ordered FIFO draw covering a requested quantity.
type Allocation struct {
	SheetID   id.ID          `json:"sheetId"`
	Requested types.Quantity `json:"requested"`
	Portions  []Portion      `json:"portions"`
}

// Cost is the total cost of the allocation rounded to currency.
func (a *Allocation) Cost() types.Money {
	return costing.CostOf(a.costingPortions())
}

// UnitCost is the weighted average cost per unit.
func (a *Allocation) UnitCost() types.Money {
	return costing.WeightedAverage(a.costingPortions())
}

// CostKnown is false when any portion came from an uncosted batch.
func (a *Allocation) CostKnown() bool {
	for _, p := range a.Portions {
		if !p.CostKnown {
			return false
		}
	}
	return true
}

func (a *Allocation) costingPortions() []costing.Portion {
	out := make([]costing.Portion, len(a.Portions))
	for i, p := range a.Portions {
		out[i] = costing.Portion{Quantity: p.Quantity, UnitCost: p.UnitCost}
	}
	return out
}

// ValuationLine is the stock value held for one sheet.
type ValuationLine struct {
	SheetID   id.ID          `json:"sheetId"`
	Code      string         `json:"code"`
	Quantity  types.Quantity `json:"quantity"`
	Value     types.Money    `json:"value"`
	Uncosted  types.Quantity `json:"uncostedQuantity"`
	IsRemnant bool           `json:"isRemnant"`
}

// Valuation is the value of remaining stock at batch cost.
type Valuation struct {
	Lines         []ValuationLine `json:"lines"`
	TotalQuantity types.Quantity  `json:"totalQuantity"`
	TotalValue    types.Money     `json:"totalValue"`
	// UncostedQuantity is stock held in batches with no known cost.
	UncostedQuantity types.Quantity `json:"uncostedQuantity"`
}
