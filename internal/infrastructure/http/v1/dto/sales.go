package dto

import "sheetstock/internal/domain/sales"

// ListSalesRequest filters GET /sales.
type ListSalesRequest struct {
	DateWindow
	CustomerID string `form:"customerId" binding:"omitempty,uuid"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// ToFilter converts the request into a repository filter.
func (r ListSalesRequest) ToFilter() (sales.Filter, error) {
	customer, err := ParseOptionalID(r.CustomerID)
	if err != nil {
		return sales.Filter{}, err
	}
	from, to := r.Bounds()
	limit := r.Limit
	if limit == 0 {
		limit = 100
	}
	return sales.Filter{From: from, To: to, CustomerID: customer, Limit: limit}, nil
}
