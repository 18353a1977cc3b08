package dto

import (
	"time"

	"sheetstock/internal/domain/reports"
)

// PeriodRequest is a required inclusive window of whole days.
type PeriodRequest struct {
	From time.Time `form:"from" binding:"required" time_format:"2006-01-02" time_utc:"1"`
	To   time.Time `form:"to" binding:"required" time_format:"2006-01-02" time_utc:"1"`
}

// Period widens the request to whole days.
func (r PeriodRequest) Period() reports.Period {
	return reports.DayRange(r.From, r.To)
}

// BestSellingRequest is the query of GET /reports/best-selling.
type BestSellingRequest struct {
	PeriodRequest
	Kind  string `form:"kind" binding:"omitempty,oneof=sheet service"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// ToFilter converts the request into a report filter.
func (r BestSellingRequest) ToFilter() reports.BestSellingFilter {
	kind := reports.RankBy(r.Kind)
	if kind == "" {
		kind = reports.RankSheets
	}
	return reports.BestSellingFilter{Kind: kind, Period: r.Period(), Limit: r.Limit}
}
