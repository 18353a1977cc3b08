package reports

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/domain/sales"
)

// Service provides report generation operations.
type Service struct {
	sales SaleSource
	stock StockSource
}

// NewService creates a new reports service.
func NewService(sales SaleSource, stock StockSource) *Service {
	return &Service{sales: sales, stock: stock}
}

func checkPeriod(p Period) error {
	if p.From.IsZero() || p.To.IsZero() {
		return apperror.NewValidation("from and to are required")
	}
	if p.From.After(p.To) {
		return apperror.NewValidation("from must not be after to").
			WithDetail("from", p.From).
			WithDetail("to", p.To)
	}
	return nil
}

func (s *Service) salesIn(ctx context.Context, p Period) ([]sales.Sale, error) {
	from, to := p.From, p.To
	list, err := s.sales.ListSales(ctx, sales.Filter{From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return list, nil
}

// GetProfitBreakdown sums frozen line revenue and cost over sales dated in
// the period.
func (s *Service) GetProfitBreakdown(ctx context.Context, p Period) (*ProfitBreakdown, error) {
	if err := checkPeriod(p); err != nil {
		return nil, err
	}
	list, err := s.salesIn(ctx, p)
	if err != nil {
		return nil, err
	}

	out := &ProfitBreakdown{
		Period:    p,
		Materials: zeroCategory(),
		Services:  zeroCategory(),
		Total:     zeroCategory(),
		Discounts: decimal.Zero,
		Tax:       decimal.Zero,
		Invoiced:  decimal.Zero,
	}
	for i := range list {
		sale := &list[i]
		out.Sales++
		out.Discounts = out.Discounts.Add(sale.Discount)
		out.Tax = out.Tax.Add(sale.Tax)
		out.Invoiced = out.Invoiced.Add(sale.Total)
		for j := range sale.Items {
			it := &sale.Items[j]
			if it.Kind == sales.KindService {
				out.Services.add(it)
			} else {
				out.Materials.add(it)
			}
			out.Total.add(it)
		}
	}
	out.Materials.close()
	out.Services.close()
	out.Total.close()
	return out, nil
}

func zeroCategory() Category {
	return Category{
		Revenue:         decimal.Zero,
		Cost:            decimal.Zero,
		GrossProfit:     decimal.Zero,
		UncostedRevenue: decimal.Zero,
	}
}

// GetBestSelling ranks sheets or service types by quantity sold.
func (s *Service) GetBestSelling(ctx context.Context, filter BestSellingFilter) (*BestSelling, error) {
	if filter.Kind != RankSheets && filter.Kind != RankServices {
		return nil, apperror.NewValidation("kind must be sheet or service").WithDetail("kind", filter.Kind)
	}
	if err := checkPeriod(filter.Period); err != nil {
		return nil, err
	}

	// Set default limit
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	list, err := s.salesIn(ctx, filter.Period)
	if err != nil {
		return nil, err
	}

	rows := make(map[string]*BestSellingRow)
	for i := range list {
		for j := range list[i].Items {
			it := &list[i].Items[j]
			key, label, ok := rankKey(filter.Kind, it)
			if !ok {
				continue
			}
			row, seen := rows[key]
			if !seen {
				row = &BestSellingRow{Key: key, Label: label, Revenue: decimal.Zero, Cost: decimal.Zero}
				rows[key] = row
			}
			row.Quantity += it.Quantity
			row.Revenue = row.Revenue.Add(it.LineTotal)
			row.Cost = row.Cost.Add(it.CostTotal)
			row.Lines++
		}
	}

	out := &BestSelling{Kind: filter.Kind, Period: filter.Period, Rows: make([]BestSellingRow, 0, len(rows))}
	for _, row := range rows {
		row.GrossProfit = row.Revenue.Sub(row.Cost)
		out.Rows = append(out.Rows, *row)
	}
	slices.SortFunc(out.Rows, func(a, b BestSellingRow) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		if c := b.Revenue.Cmp(a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if len(out.Rows) > filter.Limit {
		out.Rows = out.Rows[:filter.Limit]
	}
	return out, nil
}

func rankKey(kind RankBy, it *sales.SaleItem) (key, label string, ok bool) {
	switch {
	case kind == RankSheets && it.Kind == sales.KindMaterial && it.SheetID != nil:
		return it.SheetID.String(), it.SheetCode, true
	case kind == RankServices && it.Kind == sales.KindService:
		label := it.Description
		if label == "" {
			label = it.ServiceType
		}
		return it.ServiceType, label, true
	}
	return "", "", false
}

// GetInventoryValuation values remaining stock at batch cost as of now.
func (s *Service) GetInventoryValuation(ctx context.Context) (*inventory.Valuation, error) {
	val, err := s.stock.Valuation(ctx)
	if err != nil {
		return nil, fmt.Errorf("inventory valuation: %w", err)
	}
	return val, nil
}

// DayRange widens a pair of calendar dates to cover both whole days.
func DayRange(from, to time.Time) Period {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location()).AddDate(0, 0, 1).Add(-time.Nanosecond)
	return Period{From: start, To: end}
}
