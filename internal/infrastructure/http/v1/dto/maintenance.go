package dto

// ConfirmRequest carries the literal confirmation token of a destructive
// maintenance operation.
type ConfirmRequest struct {
	Confirm string `json:"confirm"`
}
