package memory

import (
	"context"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/core/id"
	"sheetstock/internal/domain/sales"
)

// SalesRepo implements sales.Repository.
type SalesRepo struct {
	s *Store
}

var _ sales.Repository = (*SalesRepo)(nil)

// NewSalesRepo returns the sales repository of s.
func NewSalesRepo(s *Store) *SalesRepo {
	return &SalesRepo{s: s}
}

func (r *SalesRepo) CreateSale(ctx context.Context, sale *sales.Sale) error {
	return r.s.update(ctx, func(d *data) error {
		if _, exists := d.sales[sale.ID]; exists {
			return apperror.NewConflict("sale already exists").WithDetail("id", sale.ID)
		}
		for _, other := range d.sales {
			if other.Number == sale.Number {
				return apperror.NewConflict("sale number already exists").WithDetail("number", sale.Number)
			}
		}
		d.sales[sale.ID] = sale.Clone()
		return nil
	})
}

func (r *SalesRepo) GetSale(ctx context.Context, saleID id.ID) (*sales.Sale, error) {
	var out *sales.Sale
	err := r.s.view(ctx, func(d *data) error {
		s, ok := d.sales[saleID]
		if !ok {
			return apperror.NewSaleNotFound(saleID)
		}
		out = s.Clone()
		return nil
	})
	return out, err
}

func (r *SalesRepo) ListSales(ctx context.Context, filter sales.Filter) ([]sales.Sale, error) {
	var out []sales.Sale
	err := r.s.view(ctx, func(d *data) error {
		for _, s := range d.sales {
			if filter.From != nil && s.Date.Before(*filter.From) {
				continue
			}
			if filter.To != nil && s.Date.After(*filter.To) {
				continue
			}
			if filter.CustomerID != nil && !id.Equal(s.CustomerID, filter.CustomerID) {
				continue
			}
			out = append(out, *s.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortSales(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *SalesRepo) DeleteSale(ctx context.Context, saleID id.ID) error {
	return r.s.update(ctx, func(d *data) error {
		if _, ok := d.sales[saleID]; !ok {
			return apperror.NewSaleNotFound(saleID)
		}
		delete(d.sales, saleID)
		return nil
	})
}
