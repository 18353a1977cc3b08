// Package reports derives profit and ranking reports from frozen sale line
// costs. It never writes.
package reports

import (
	"time"

	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/sales"
)

// Period is a closed [From, To] date range.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// --- Profit Breakdown ---

// Category is the revenue and cost of one line kind.
type Category struct {
	Revenue     types.Money `json:"revenue"`
	Cost        types.Money `json:"cost"`
	GrossProfit types.Money `json:"grossProfit"`
	Lines       int         `json:"lines"`

	// UncostedLines were sold from batches without a cost basis; their
	// revenue is included with zero cost.
	UncostedLines   int         `json:"uncostedLines"`
	UncostedRevenue types.Money `json:"uncostedRevenue"`
}

func (c *Category) add(it *sales.SaleItem) {
	c.Revenue = c.Revenue.Add(it.LineTotal)
	c.Cost = c.Cost.Add(it.CostTotal)
	c.Lines++
	if !it.CostKnown {
		c.UncostedLines++
		c.UncostedRevenue = c.UncostedRevenue.Add(it.LineTotal)
	}
}

func (c *Category) close() {
	c.GrossProfit = c.Revenue.Sub(c.Cost)
}

// ProfitBreakdown splits gross profit into materials and services.
// Discount and tax are reported beside the line figures; gross profit is
// computed on line totals.
type ProfitBreakdown struct {
	Period    Period      `json:"period"`
	Sales     int         `json:"sales"`
	Materials Category    `json:"materials"`
	Services  Category    `json:"services"`
	Total     Category    `json:"total"`
	Discounts types.Money `json:"discounts"`
	Tax       types.Money `json:"tax"`
	Invoiced  types.Money `json:"invoiced"`
}

// --- Best Selling ---

// RankBy selects the entity ranked by BestSelling.
type RankBy string

const (
	RankSheets   RankBy = "sheet"
	RankServices RankBy = "service"
)

// BestSellingFilter defines the ranking query.
type BestSellingFilter struct {
	Kind   RankBy
	Period Period
	// Limit caps the rows (default 10, max 100).
	Limit int
}

// BestSellingRow is one ranked sheet or service type.
type BestSellingRow struct {
	// Key is the sheet id or the service type.
	Key         string         `json:"key"`
	Label       string         `json:"label"`
	Quantity    types.Quantity `json:"quantity"`
	Revenue     types.Money    `json:"revenue"`
	Cost        types.Money    `json:"cost"`
	GrossProfit types.Money    `json:"grossProfit"`
	Lines       int            `json:"lines"`
}

// BestSelling is the ranked result, ordered by quantity then revenue.
type BestSelling struct {
	Kind   RankBy           `json:"kind"`
	Period Period           `json:"period"`
	Rows   []BestSellingRow `json:"rows"`
}
