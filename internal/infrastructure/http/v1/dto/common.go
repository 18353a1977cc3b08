// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"sheetstock/internal/core/id"
)

// DateLayout is the query-string date format.
const DateLayout = "2006-01-02"

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Success bool           `json:"success"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// --- Date windows ---

// DateWindow is an optional inclusive window of whole days.
type DateWindow struct {
	From *time.Time `form:"from" time_format:"2006-01-02" time_utc:"1"`
	To   *time.Time `form:"to" time_format:"2006-01-02" time_utc:"1"`
}

// Bounds returns From at midnight UTC and To at the last instant of its
// day; absent ends stay nil.
func (w DateWindow) Bounds() (from, to *time.Time) {
	if w.From != nil {
		f := startOfDay(*w.From)
		from = &f
	}
	if w.To != nil {
		t := startOfDay(*w.To).Add(24*time.Hour - time.Nanosecond)
		to = &t
	}
	return from, to
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseOptionalID parses s, treating "" as absent.
func ParseOptionalID(s string) (*id.ID, error) {
	if s == "" {
		return nil, nil
	}
	v, err := id.Parse(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
