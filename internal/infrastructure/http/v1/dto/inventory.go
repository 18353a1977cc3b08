package dto

import (
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/inventory"
)

// ListSheetsRequest filters GET /sheets.
type ListSheetsRequest struct {
	MetalType       string `form:"metalType" binding:"omitempty,metal_code"`
	OnlyAvailable   bool   `form:"onlyAvailable"`
	ExcludeRemnants bool   `form:"excludeRemnants"`
	Search          string `form:"search" binding:"max=100"`
}

// ToFilter converts the request into a repository filter.
func (r ListSheetsRequest) ToFilter() inventory.SheetFilter {
	return inventory.SheetFilter{
		MetalType:       r.MetalType,
		OnlyAvailable:   r.OnlyAvailable,
		ExcludeRemnants: r.ExcludeRemnants,
		Search:          r.Search,
	}
}

// AdjustBatchRequest is the body of POST /batches/:id/adjust.
type AdjustBatchRequest struct {
	Delta types.Quantity `json:"delta"`
	Notes string         `json:"notes"`
}

// PruneResponse reports removed empty batches.
type PruneResponse struct {
	Removed int `json:"removed"`
}

// SheetBatchesResponse lists a sheet's batches in FIFO order.
type SheetBatchesResponse struct {
	Sheet     *inventory.Sheet      `json:"sheet"`
	Available types.Quantity        `json:"available"`
	Batches   []inventory.BatchView `json:"batches"`
}
