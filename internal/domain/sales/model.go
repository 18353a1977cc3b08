// Package sales orchestrates a sale as one unit of work: FIFO inventory
// allocation, frozen cost of goods, sale persistence and customer ledger
// postings commit together or not at all.
package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/core/id"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/costing"
)

// ItemKind separates material lines from service lines.
type ItemKind string

const (
	KindMaterial ItemKind = "material"
	KindService  ItemKind = "service"
)

// ItemAllocation is the part of a material line drawn from one batch.
// It is kept so the sale can be reversed exactly.
type ItemAllocation struct {
	BatchID   id.ID          `db:"batch_id" json:"batchId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	UnitCost  types.Money    `db:"unit_cost" json:"unitCost"`
	CostKnown bool           `db:"cost_known" json:"costKnown"`
}

// SaleItem is one line. UnitCost and CostTotal are frozen at sale time.
type SaleItem struct {
	ID          id.ID          `db:"id" json:"id"`
	SaleID      id.ID          `db:"sale_id" json:"saleId"`
	LineNo      int            `db:"line_no" json:"lineNo"`
	Kind        ItemKind       `db:"kind" json:"kind"`
	SheetID     *id.ID         `db:"sheet_id" json:"sheetId,omitempty"`
	SheetCode   string         `db:"sheet_code" json:"sheetCode,omitempty"`
	BatchID     *id.ID         `db:"batch_id" json:"batchId,omitempty"`
	ServiceType string         `db:"service_type" json:"serviceType,omitempty"`
	Description string         `db:"description" json:"description,omitempty"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice   types.Money    `db:"unit_price" json:"unitPrice"`
	LineTotal   types.Money    `db:"line_total" json:"lineTotal"`
	UnitCost    types.Money    `db:"unit_cost" json:"unitCost"`
	CostTotal   types.Money    `db:"cost_total" json:"costTotal"`
	CostKnown   bool           `db:"cost_known" json:"costKnown"`

	Allocations    []ItemAllocation `db:"-" json:"allocations,omitempty"`
	RemnantBatchID *id.ID           `db:"remnant_batch_id" json:"remnantBatchId,omitempty"`
}

// GrossProfit is line total minus frozen cost.
func (it *SaleItem) GrossProfit() types.Money {
	return it.LineTotal.Sub(it.CostTotal)
}

// Sale groups line items with their stored totals.
type Sale struct {
	ID             id.ID           `db:"id" json:"id"`
	Number         string          `db:"number" json:"number"`
	CustomerID     *id.ID          `db:"customer_id" json:"customerId,omitempty"`
	Date           time.Time       `db:"date" json:"date"`
	Subtotal       types.Money     `db:"subtotal" json:"subtotal"`
	Discount       types.Money     `db:"discount" json:"discount"`
	TaxRatePercent decimal.Decimal `db:"tax_rate_percent" json:"taxRatePercent"`
	Tax            types.Money     `db:"tax" json:"tax"`
	Total          types.Money     `db:"total" json:"total"`
	Paid           types.Money     `db:"paid" json:"paid"`
	Remaining      types.Money     `db:"remaining" json:"remaining"`
	PaymentMethod  string          `db:"payment_method" json:"paymentMethod,omitempty"`
	Notes          string          `db:"notes" json:"notes,omitempty"`
	CreatedBy      string          `db:"created_by" json:"createdBy"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`

	Items []SaleItem `db:"-" json:"items"`
}

// Totals is the derived money summary of a sale.
type Totals struct {
	Subtotal  types.Money
	Discount  types.Money
	Tax       types.Money
	Total     types.Money
	Paid      types.Money
	Remaining types.Money
}

// ComputeTotals derives subtotal, tax, total and remaining:
// subtotal = sum(line totals); tax = round((subtotal - discount) * rate / 100);
// total = subtotal - discount + tax; remaining = total - paid.
func ComputeTotals(items []SaleItem, discount types.Money, ratePercent decimal.Decimal, paid types.Money) Totals {
	subtotal := decimal.Zero
	for i := range items {
		subtotal = subtotal.Add(items[i].LineTotal)
	}
	discount = costing.RoundCurrency(discount)
	base := subtotal.Sub(discount)
	tax := costing.Tax(base, ratePercent)
	total := base.Add(tax)
	paid = costing.RoundCurrency(paid)
	return Totals{
		Subtotal:  subtotal,
		Discount:  discount,
		Tax:       tax,
		Total:     total,
		Paid:      paid,
		Remaining: total.Sub(paid),
	}
}

// Apply stores totals on the sale.
func (s *Sale) Apply(t Totals) {
	s.Subtotal = t.Subtotal
	s.Discount = t.Discount
	s.Tax = t.Tax
	s.Total = t.Total
	s.Paid = t.Paid
	s.Remaining = t.Remaining
}

// CheckTotals verifies that the stored totals match the items.
func (s *Sale) CheckTotals() error {
	want := ComputeTotals(s.Items, s.Discount, s.TaxRatePercent, s.Paid)
	if !want.Subtotal.Equal(s.Subtotal) || !want.Total.Equal(s.Total) || !want.Remaining.Equal(s.Remaining) {
		return apperror.NewBusinessRule("SALE_TOTALS_MISMATCH", "sale totals do not match its items").
			WithDetail("sale_id", s.ID).
			WithDetail("stored_total", s.Total.String()).
			WithDetail("computed_total", want.Total.String())
	}
	return nil
}

// CostOfGoods is the sum of frozen line costs.
func (s *Sale) CostOfGoods() types.Money {
	total := decimal.Zero
	for i := range s.Items {
		total = total.Add(s.Items[i].CostTotal)
	}
	return total
}

// Clone returns a deep copy.
func (s *Sale) Clone() *Sale {
	out := *s
	out.Items = make([]SaleItem, len(s.Items))
	for i := range s.Items {
		it := s.Items[i]
		it.Allocations = append([]ItemAllocation(nil), s.Items[i].Allocations...)
		out.Items[i] = it
	}
	return &out
}
