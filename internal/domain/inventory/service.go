package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sheetstock/internal/core/apperror"
	appctx "sheetstock/internal/core/context"
	"sheetstock/internal/core/id"
	"sheetstock/internal/core/tx"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/catalog"
	"sheetstock/pkg/logger"
	"sheetstock/pkg/validation"
)

// Purchase is the supplier-side effect of receiving a batch.
type Purchase struct {
	SupplierID id.ID
	BatchID    id.ID
	// Amount is zero when the batch cost is unknown.
	Amount types.Money
	Date   time.Time
	Notes  string
}

// PurchaseRecorder books supplier purchases. It must fail with
// PARTY_NOT_FOUND when the supplier does not exist.
type PurchaseRecorder interface {
	RecordPurchase(ctx context.Context, p Purchase) error
}

// Observer receives allocation outcomes (metrics).
type Observer interface {
	Allocated(costKnown bool)
}

type nopObserver struct{}

func (nopObserver) Allocated(bool) {}

// Service is the inventory batch store.
type Service struct {
	repo      Repository
	txm       tx.Manager
	catalog   *catalog.Service
	purchases PurchaseRecorder
	observer  Observer
	now       func() time.Time
}

// NewService creates the inventory service. purchases may be nil, in which
// case supplier batches are received without a ledger entry.
func NewService(repo Repository, txm tx.Manager, cat *catalog.Service, purchases PurchaseRecorder) *Service {
	if cat == nil {
		cat = catalog.MustDefault()
	}
	return &Service{
		repo:      repo,
		txm:       txm,
		catalog:   cat,
		purchases: purchases,
		observer:  nopObserver{},
		now:       time.Now,
	}
}

// SetObserver installs an allocation observer.
func (s *Service) SetObserver(o Observer) {
	if o != nil {
		s.observer = o
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// --- Receipt ---

// ReceiveInput describes a batch receipt. Exactly one of SheetID and Sheet
// must be set; at most one of PricePerKg and TotalCost.
type ReceiveInput struct {
	SheetID      *id.ID                `json:"sheetId"`
	Sheet        *SheetSpec            `json:"sheet"`
	SupplierID   *id.ID                `json:"supplierId"`
	Quantity     types.Quantity        `json:"quantity" validate:"gt=0"`
	Weight       types.OptionalDecimal `json:"weight" validate:"omitempty,gt=0"`
	PricePerKg   types.OptionalDecimal `json:"pricePerKg" validate:"omitempty,gte=0"`
	TotalCost    types.OptionalDecimal `json:"totalCost" validate:"omitempty,gte=0"`
	ReceivedDate time.Time             `json:"receivedDate"`
	Location     string                `json:"location" validate:"max=100"`
	Notes        string                `json:"notes" validate:"max=1000"`
}

// BatchView is a batch with its derived pricing.
type BatchView struct {
	Batch
	Cost BatchCost `json:"cost"`
}

// ReceiveResult is the sheet and batch produced by a receipt.
type ReceiveResult struct {
	Sheet       Sheet     `json:"sheet"`
	Batch       BatchView `json:"batch"`
	SheetReused bool      `json:"sheetReused"`
}

// Receive creates or reuses a sheet and appends a batch with a receipt
// movement. A supplier batch books a purchase in the same transaction.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (*ReceiveResult, error) {
	if err := s.validateReceive(in); err != nil {
		return nil, err
	}

	var result *ReceiveResult
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		sheet, reused, err := s.resolveSheet(ctx, in)
		if err != nil {
			return err
		}
		result, err = s.appendBatch(ctx, sheet, in, ReasonReceipt, nil)
		if err != nil {
			return err
		}
		result.SheetReused = reused
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "batch received",
		"batch_id", result.Batch.ID,
		"sheet_id", result.Sheet.ID,
		"sheet_code", result.Sheet.Code,
		"quantity", result.Batch.QuantityOriginal,
		"cost_known", result.Batch.Cost.CostKnown,
	)
	if !result.Batch.Cost.CostKnown {
		logger.Warn(ctx, "batch received without cost basis", "batch_id", result.Batch.ID)
	}

	return result, nil
}

func (s *Service) validateReceive(in ReceiveInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	if (in.SheetID == nil) == (in.Sheet == nil) {
		return apperror.NewValidation("exactly one of sheetId and sheet is required")
	}
	if in.Sheet != nil {
		if err := validation.Struct(in.Sheet); err != nil {
			return err
		}
	}
	if in.PricePerKg.Valid && in.TotalCost.Valid {
		return apperror.NewValidation("only one of pricePerKg and totalCost may be given").
			WithDetail("pricePerKg", in.PricePerKg.Decimal.String()).
			WithDetail("totalCost", in.TotalCost.Decimal.String())
	}
	return nil
}

func (s *Service) resolveSheet(ctx context.Context, in ReceiveInput) (*Sheet, bool, error) {
	if in.SheetID != nil {
		sheet, err := s.repo.GetSheet(ctx, *in.SheetID)
		return sheet, true, err
	}
	return s.findOrCreateSheet(ctx, *in.Sheet)
}

func (s *Service) findOrCreateSheet(ctx context.Context, spec SheetSpec) (*Sheet, bool, error) {
	if err := s.catalog.ValidateSheetRefs(spec.MetalType, spec.Grade, spec.Finish); err != nil {
		return nil, false, err
	}

	code := SheetCode(spec)
	existing, err := s.repo.FindSheetByCode(ctx, code)
	if err != nil {
		return nil, false, fmt.Errorf("find sheet by code: %w", err)
	}
	if existing != nil {
		return existing, true, nil
	}

	weight := spec.WeightPerUnit
	if !weight.Valid {
		if w, ok := s.catalog.TheoreticalWeight(spec.MetalType, spec.LengthMM, spec.WidthMM, spec.ThicknessMM); ok {
			weight = types.Some(w)
		}
	}

	sheet := &Sheet{
		ID:            id.New(),
		Code:          code,
		MetalType:     normalizeCode(spec.MetalType),
		Grade:         normalizeCode(spec.Grade),
		Finish:        normalizeCode(spec.Finish),
		LengthMM:      spec.LengthMM,
		WidthMM:       spec.WidthMM,
		ThicknessMM:   spec.ThicknessMM,
		WeightPerUnit: weight,
		IsRemnant:     spec.IsRemnant,
		ParentSheetID: spec.ParentSheetID,
		IsActive:      true,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.CreateSheet(ctx, sheet); err != nil {
		return nil, false, fmt.Errorf("create sheet: %w", err)
	}
	return sheet, false, nil
}

func (s *Service) appendBatch(ctx context.Context, sheet *Sheet, in ReceiveInput, reason MovementReason, ref *id.ID) (*ReceiveResult, error) {
	received := in.ReceivedDate
	if received.IsZero() {
		received = s.now()
	}

	batch := &Batch{
		ID:                id.New(),
		SheetID:           sheet.ID,
		SupplierID:        in.SupplierID,
		QuantityOriginal:  in.Quantity,
		QuantityRemaining: in.Quantity,
		Weight:            in.Weight,
		PricingBasis:      PricingNone,
		ReceivedDate:      received.UTC(),
		Location:          in.Location,
		Notes:             in.Notes,
		CreatedAt:         s.now().UTC(),
	}
	switch {
	case in.PricePerKg.Valid:
		batch.PricingBasis = PricingPerKg
		batch.PricePerKg = in.PricePerKg
	case in.TotalCost.Valid:
		batch.PricingBasis = PricingTotal
		batch.TotalCost = in.TotalCost
	}

	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	receipt := *batch
	if err := s.appendMovement(ctx, batch, batch.QuantityOriginal, reason, ref, in.Notes, &receipt); err != nil {
		return nil, err
	}

	cost := batch.Cost(sheet.WeightPerUnit)
	if batch.SupplierID != nil && s.purchases != nil {
		amount := decimal.Zero
		if cost.TotalCost.Valid {
			amount = cost.TotalCost.Decimal
		} else if cost.CostKnown {
			amount = cost.UnitCost.Mul(batch.QuantityOriginal.Decimal()).Round(2)
		}
		err := s.purchases.RecordPurchase(ctx, Purchase{
			SupplierID: *batch.SupplierID,
			BatchID:    batch.ID,
			Amount:     amount,
			Date:       batch.ReceivedDate,
			Notes:      fmt.Sprintf("Receipt %s x %s", sheet.Code, batch.QuantityOriginal),
		})
		if err != nil {
			return nil, err
		}
	}

	return &ReceiveResult{
		Sheet: *sheet,
		Batch: BatchView{Batch: *batch, Cost: cost},
	}, nil
}

func (s *Service) appendMovement(ctx context.Context, b *Batch, delta types.Quantity, reason MovementReason, ref *id.ID, notes string, receipt *Batch) error {
	m := &Movement{
		ID:          id.New(),
		BatchID:     b.ID,
		SheetID:     b.SheetID,
		Delta:       delta,
		Reason:      reason,
		ReferenceID: ref,
		Receipt:     receipt,
		Notes:       notes,
		CreatedBy:   appctx.GetUserID(ctx),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.AppendMovement(ctx, m); err != nil {
		return fmt.Errorf("append movement: %w", err)
	}
	return nil
}

// --- Allocation ---

// AllocateInput requests quantity of a sheet. BatchID pins the draw to one
// batch instead of walking FIFO.
type AllocateInput struct {
	SheetID     id.ID
	BatchID     *id.ID
	Quantity    types.Quantity
	AsOf        time.Time
	ReferenceID *id.ID
}

// Plan computes the FIFO draw without changing stock.
func (s *Service) Plan(ctx context.Context, sheetID id.ID, qty types.Quantity, asOf time.Time) (*Allocation, error) {
	sheet, err := s.repo.GetSheet(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	return s.planFIFO(ctx, sheet, qty, asOf, false)
}

// Allocate draws quantity from the sheet's batches oldest first and
// decrements them. Either the full quantity is drawn or nothing changes.
func (s *Service) Allocate(ctx context.Context, in AllocateInput) (*Allocation, error) {
	if !in.Quantity.IsPositive() {
		return nil, apperror.NewValidation("allocation quantity must be positive").
			WithDetail("quantity", in.Quantity.Float64())
	}

	var alloc *Allocation
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		sheet, err := s.repo.GetSheet(ctx, in.SheetID)
		if err != nil {
			return err
		}

		if in.BatchID != nil {
			alloc, err = s.planPinned(ctx, sheet, *in.BatchID, in.Quantity)
		} else {
			alloc, err = s.planFIFO(ctx, sheet, in.Quantity, in.AsOf, true)
		}
		if err != nil {
			return err
		}

		for _, p := range alloc.Portions {
			if err := s.release(ctx, p.BatchID, p.Quantity, ReasonSale, in.ReferenceID, ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	costKnown := alloc.CostKnown()
	s.observer.Allocated(costKnown)
	if !costKnown {
		logger.Warn(ctx, "allocation includes uncosted batches",
			"sheet_id", in.SheetID,
			"quantity", in.Quantity,
		)
	}
	return alloc, nil
}

func (s *Service) planFIFO(ctx context.Context, sheet *Sheet, qty types.Quantity, asOf time.Time, lock bool) (*Allocation, error) {
	cutoff := endOfDay(asOf, s.now)
	batches, err := s.repo.ListBatches(ctx, BatchFilter{
		SheetID:        &sheet.ID,
		OnlyAvailable:  true,
		ReceivedBefore: &cutoff,
		ForUpdate:      lock,
	})
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}

	alloc := &Allocation{SheetID: sheet.ID, Requested: qty}
	need := qty
	var available types.Quantity
	for i := range batches {
		b := &batches[i]
		available += b.QuantityRemaining
		if need.IsZero() {
			continue
		}
		take := types.Min(need, b.QuantityRemaining)
		if !take.IsPositive() {
			continue
		}
		cost := b.Cost(sheet.WeightPerUnit)
		alloc.Portions = append(alloc.Portions, Portion{
			BatchID:   b.ID,
			Quantity:  take,
			UnitCost:  cost.UnitCost,
			CostKnown: cost.CostKnown,
		})
		need -= take
	}

	if need.IsPositive() {
		return nil, apperror.NewInsufficientStock(sheet.ID.String(), qty.Float64(), available.Float64()).
			WithDetail("sheet_code", sheet.Code)
	}
	return alloc, nil
}

func (s *Service) planPinned(ctx context.Context, sheet *Sheet, batchID id.ID, qty types.Quantity) (*Allocation, error) {
	b, err := s.repo.GetBatch(ctx, batchID, true)
	if err != nil {
		return nil, err
	}
	if b.SheetID != sheet.ID {
		return nil, apperror.NewValidation("batch does not belong to sheet").
			WithDetail("batch_id", batchID).
			WithDetail("sheet_id", sheet.ID)
	}
	if b.QuantityRemaining < qty {
		return nil, apperror.NewInsufficientStock(sheet.ID.String(), qty.Float64(), b.QuantityRemaining.Float64()).
			WithDetail("batch_id", batchID)
	}
	cost := b.Cost(sheet.WeightPerUnit)
	return &Allocation{
		SheetID:   sheet.ID,
		Requested: qty,
		Portions: []Portion{{
			BatchID:   b.ID,
			Quantity:  qty,
			UnitCost:  cost.UnitCost,
			CostKnown: cost.CostKnown,
		}},
	}, nil
}

// endOfDay returns the start of the day after asOf; batches received before
// it are eligible. A zero asOf means now.
func endOfDay(asOf time.Time, now func() time.Time) time.Time {
	if asOf.IsZero() {
		asOf = now()
	}
	y, m, d := asOf.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, asOf.Location())
}

// --- Quantity changes ---

// ReleaseInput decrements a batch.
type ReleaseInput struct {
	BatchID     id.ID
	Quantity    types.Quantity
	ReferenceID *id.ID
	Notes       string
}

// Release decrements quantity_remaining; it fails with INVALID_QUANTITY
// when the batch would go negative.
func (s *Service) Release(ctx context.Context, in ReleaseInput) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.release(ctx, in.BatchID, in.Quantity, ReasonSale, in.ReferenceID, in.Notes)
	})
}

func (s *Service) release(ctx context.Context, batchID id.ID, qty types.Quantity, reason MovementReason, ref *id.ID, notes string) error {
	if !qty.IsPositive() {
		return apperror.NewValidation("release quantity must be positive")
	}
	b, err := s.repo.GetBatch(ctx, batchID, true)
	if err != nil {
		return err
	}
	remaining := b.QuantityRemaining - qty
	if remaining.IsNegative() {
		return apperror.NewInvalidQuantity(batchID, qty.Float64(), b.QuantityRemaining.Float64())
	}
	if err := s.repo.UpdateBatchRemaining(ctx, batchID, remaining); err != nil {
		return fmt.Errorf("update batch remaining: %w", err)
	}
	b.QuantityRemaining = remaining
	return s.appendMovement(ctx, b, qty.Neg(), reason, ref, notes, nil)
}

// RestoreInput returns quantity to a batch.
type RestoreInput struct {
	BatchID     id.ID
	Quantity    types.Quantity
	ReferenceID *id.ID
	Notes       string
}

// Restore puts quantity back on a batch. A batch that no longer exists is
// rebuilt from its receipt movement first.
func (s *Service) Restore(ctx context.Context, in RestoreInput) error {
	if !in.Quantity.IsPositive() {
		return apperror.NewValidation("restore quantity must be positive")
	}
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetBatch(ctx, in.BatchID, true)
		if apperror.Is(err, apperror.CodeBatchNotFound) {
			b, err = s.recreateBatch(ctx, in.BatchID)
		}
		if err != nil {
			return err
		}
		return s.increase(ctx, b, in.Quantity, ReasonSaleReversal, in.ReferenceID, in.Notes)
	})
}

func (s *Service) increase(ctx context.Context, b *Batch, qty types.Quantity, reason MovementReason, ref *id.ID, notes string) error {
	remaining := b.QuantityRemaining + qty
	if remaining > b.QuantityOriginal {
		return apperror.NewInvalidQuantity(b.ID, qty.Float64(), b.QuantityRemaining.Float64()).
			WithDetail("original", b.QuantityOriginal.Float64())
	}
	if err := s.repo.UpdateBatchRemaining(ctx, b.ID, remaining); err != nil {
		return fmt.Errorf("update batch remaining: %w", err)
	}
	b.QuantityRemaining = remaining
	return s.appendMovement(ctx, b, qty, reason, ref, notes, nil)
}

// recreateBatch rebuilds a missing batch from its receipt movement. The
// remaining quantity is the sum of all recorded deltas.
func (s *Service) recreateBatch(ctx context.Context, batchID id.ID) (*Batch, error) {
	movements, err := s.repo.ListMovements(ctx, MovementFilter{BatchID: &batchID})
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}

	var receipt *Batch
	var sum types.Quantity
	for i := range movements {
		if movements[i].Receipt != nil && receipt == nil {
			receipt = movements[i].Receipt
		}
		sum += movements[i].Delta
	}
	if receipt == nil {
		return nil, apperror.NewBatchNotFound(batchID)
	}

	b := *receipt
	b.QuantityRemaining = max(0, min(sum, b.QuantityOriginal))
	if err := s.repo.CreateBatch(ctx, &b); err != nil {
		return nil, fmt.Errorf("recreate batch: %w", err)
	}
	if err := s.appendMovement(ctx, &b, 0, ReasonRecreated, nil, "rebuilt from receipt", nil); err != nil {
		return nil, err
	}

	logger.Warn(ctx, "batch recreated from audit trail",
		"batch_id", batchID,
		"remaining", b.QuantityRemaining,
	)
	return &b, nil
}

// AdjustInput is a manual stock correction on one batch.
type AdjustInput struct {
	BatchID id.ID          `json:"batchId"`
	Delta   types.Quantity `json:"delta"`
	Notes   string         `json:"notes" validate:"required,max=1000"`
}

// Adjust applies a signed manual correction, keeping
// 0 <= remaining <= original.
func (s *Service) Adjust(ctx context.Context, in AdjustInput) (*Batch, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Delta.IsZero() {
		return nil, apperror.NewValidation("adjustment delta must not be zero")
	}

	var out *Batch
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if in.Delta.IsNegative() {
			if err := s.release(ctx, in.BatchID, in.Delta.Neg(), ReasonAdjustment, nil, in.Notes); err != nil {
				return err
			}
		} else {
			b, err := s.repo.GetBatch(ctx, in.BatchID, true)
			if err != nil {
				return err
			}
			if err := s.increase(ctx, b, in.Delta, ReasonAdjustment, nil, in.Notes); err != nil {
				return err
			}
		}
		var err error
		out, err = s.repo.GetBatch(ctx, in.BatchID, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "batch adjusted", "batch_id", in.BatchID, "delta", in.Delta)
	return out, nil
}

// --- Remnants ---

// RemnantInput captures cut-off stock left over from a sale.
type RemnantInput struct {
	ParentSheetID id.ID                 `json:"parentSheetId"`
	LengthMM      decimal.Decimal       `json:"lengthMm" validate:"gt=0"`
	WidthMM       decimal.Decimal       `json:"widthMm" validate:"gt=0"`
	Quantity      types.Quantity        `json:"quantity" validate:"gt=0"`
	Weight        types.OptionalDecimal `json:"weight" validate:"omitempty,gt=0"`
	TotalCost     types.OptionalDecimal `json:"totalCost" validate:"omitempty,gte=0"`
	ReceivedDate  time.Time             `json:"receivedDate"`
	Location      string                `json:"location"`
	Notes         string                `json:"notes"`
	ReferenceID   *id.ID                `json:"-"`
}

// CaptureRemnant creates or reuses a remnant sheet cut from the parent and
// receives a no-supplier batch against it.
func (s *Service) CaptureRemnant(ctx context.Context, in RemnantInput) (*ReceiveResult, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var result *ReceiveResult
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		parent, err := s.repo.GetSheet(ctx, in.ParentSheetID)
		if err != nil {
			return err
		}
		parentArea := parent.LengthMM.Mul(parent.WidthMM)
		if in.LengthMM.Mul(in.WidthMM).GreaterThanOrEqual(parentArea) {
			return apperror.NewValidation("remnant must be smaller than its parent sheet").
				WithDetail("parent_sheet_id", parent.ID)
		}

		spec := SheetSpec{
			MetalType:     parent.MetalType,
			Grade:         parent.Grade,
			Finish:        parent.Finish,
			LengthMM:      in.LengthMM,
			WidthMM:       in.WidthMM,
			ThicknessMM:   parent.ThicknessMM,
			IsRemnant:     true,
			ParentSheetID: &parent.ID,
		}
		if parent.WeightPerUnit.Valid && parentArea.IsPositive() {
			ratio := in.LengthMM.Mul(in.WidthMM).Div(parentArea)
			spec.WeightPerUnit = types.Some(parent.WeightPerUnit.Decimal.Mul(ratio).Round(3))
		}

		sheet, reused, err := s.findOrCreateSheet(ctx, spec)
		if err != nil {
			return err
		}
		result, err = s.appendBatch(ctx, sheet, ReceiveInput{
			Quantity:     in.Quantity,
			Weight:       in.Weight,
			TotalCost:    in.TotalCost,
			ReceivedDate: in.ReceivedDate,
			Location:     in.Location,
			Notes:        in.Notes,
		}, ReasonRemnant, in.ReferenceID)
		if err != nil {
			return err
		}
		result.SheetReused = reused
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "remnant captured",
		"batch_id", result.Batch.ID,
		"sheet_code", result.Sheet.Code,
		"parent_sheet_id", in.ParentSheetID,
	)
	return result, nil
}

// RemoveRemnant deletes a remnant batch that was never drawn from.
func (s *Service) RemoveRemnant(ctx context.Context, batchID id.ID, ref *id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetBatch(ctx, batchID, true)
		if apperror.Is(err, apperror.CodeBatchNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if b.QuantityRemaining != b.QuantityOriginal {
			return apperror.NewBusinessRule(apperror.CodeRemnantConsumed, "remnant stock has already been used").
				WithDetail("batch_id", batchID).
				WithDetail("remaining", b.QuantityRemaining.Float64())
		}
		if err := s.appendMovement(ctx, b, b.QuantityRemaining.Neg(), ReasonRemnantRemove, ref, "", nil); err != nil {
			return err
		}
		if err := s.repo.DeleteBatch(ctx, batchID); err != nil {
			return fmt.Errorf("delete remnant batch: %w", err)
		}
		return nil
	})
}

// --- Maintenance ---

// PruneEmpty removes batch artifacts with zero original and zero remaining
// quantity. Depleted batches with history are kept.
func (s *Service) PruneEmpty(ctx context.Context) (int, error) {
	var removed int
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		removed, err = s.repo.DeleteEmptyBatches(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune empty batches: %w", err)
	}

	logger.Info(ctx, "pruned empty batches", "count", removed)
	return removed, nil
}

// --- Reads ---

// GetSheet returns one sheet.
func (s *Service) GetSheet(ctx context.Context, sheetID id.ID) (*Sheet, error) {
	return s.repo.GetSheet(ctx, sheetID)
}

// ListSheets returns sheets with their available quantity.
func (s *Service) ListSheets(ctx context.Context, filter SheetFilter) ([]SheetStock, error) {
	return s.repo.ListSheets(ctx, filter)
}

// Available returns the sum of remaining quantity over the sheet's batches.
func (s *Service) Available(ctx context.Context, sheetID id.ID) (types.Quantity, error) {
	batches, err := s.repo.ListBatches(ctx, BatchFilter{SheetID: &sheetID, OnlyAvailable: true})
	if err != nil {
		return 0, err
	}
	var total types.Quantity
	for _, b := range batches {
		total += b.QuantityRemaining
	}
	return total, nil
}

// GetBatch returns one batch with derived pricing.
func (s *Service) GetBatch(ctx context.Context, batchID id.ID) (*BatchView, error) {
	b, err := s.repo.GetBatch(ctx, batchID, false)
	if err != nil {
		return nil, err
	}
	sheet, err := s.repo.GetSheet(ctx, b.SheetID)
	if err != nil {
		return nil, err
	}
	return &BatchView{Batch: *b, Cost: b.Cost(sheet.WeightPerUnit)}, nil
}

// ListBatches returns a sheet's batches in FIFO order with derived pricing.
func (s *Service) ListBatches(ctx context.Context, sheetID id.ID) ([]BatchView, error) {
	sheet, err := s.repo.GetSheet(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	batches, err := s.repo.ListBatches(ctx, BatchFilter{SheetID: &sheetID})
	if err != nil {
		return nil, err
	}
	out := make([]BatchView, len(batches))
	for i := range batches {
		out[i] = BatchView{Batch: batches[i], Cost: batches[i].Cost(sheet.WeightPerUnit)}
	}
	return out, nil
}

// ListMovements returns the stock audit trail.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

// Valuation values remaining stock at batch cost.
func (s *Service) Valuation(ctx context.Context) (*Valuation, error) {
	sheets, err := s.repo.ListSheets(ctx, SheetFilter{OnlyAvailable: true})
	if err != nil {
		return nil, err
	}

	val := &Valuation{TotalValue: decimal.Zero}
	for _, st := range sheets {
		batches, err := s.repo.ListBatches(ctx, BatchFilter{SheetID: &st.ID, OnlyAvailable: true})
		if err != nil {
			return nil, err
		}
		line := ValuationLine{SheetID: st.ID, Code: st.Code, IsRemnant: st.IsRemnant, Value: decimal.Zero}
		for i := range batches {
			b := &batches[i]
			cost := b.Cost(st.WeightPerUnit)
			line.Quantity += b.QuantityRemaining
			if !cost.CostKnown {
				line.Uncosted += b.QuantityRemaining
				continue
			}
			line.Value = line.Value.Add(cost.UnitCost.Mul(b.QuantityRemaining.Decimal()))
		}
		line.Value = line.Value.Round(2)
		val.Lines = append(val.Lines, line)
		val.TotalQuantity += line.Quantity
		val.UncostedQuantity += line.Uncosted
		val.TotalValue = val.TotalValue.Add(line.Value)
	}
	return val, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
