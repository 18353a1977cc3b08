package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sheetstock/internal/core/apperror"
	appctx "sheetstock/internal/core/context"
	"sheetstock/internal/core/id"
	"sheetstock/internal/core/tx"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/catalog"
	"sheetstock/internal/domain/costing"
	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/domain/ledger"
	"sheetstock/pkg/logger"
	"sheetstock/pkg/validation"
)

var tracer = otel.Tracer("sheetstock/sales")

// NumberPrefix prefixes sale numbers (SAL-2026-00001).
const NumberPrefix = "SAL"

// Inventory is the part of the batch store a sale uses.
type Inventory interface {
	GetSheet(ctx context.Context, sheetID id.ID) (*inventory.Sheet, error)
	GetBatch(ctx context.Context, batchID id.ID) (*inventory.BatchView, error)
	Allocate(ctx context.Context, in inventory.AllocateInput) (*inventory.Allocation, error)
	Restore(ctx context.Context, in inventory.RestoreInput) error
	CaptureRemnant(ctx context.Context, in inventory.RemnantInput) (*inventory.ReceiveResult, error)
	RemoveRemnant(ctx context.Context, batchID id.ID, ref *id.ID) error
}

// Ledger is the part of the ledger store a sale uses.
type Ledger interface {
	RequireParty(ctx context.Context, partyID id.ID, kind ledger.PartyKind) (*ledger.Party, error)
	Post(ctx context.Context, in ledger.PostInput) (*ledger.Transaction, error)
	ReverseReference(ctx context.Context, partyID, ref id.ID, notes string) ([]ledger.Transaction, error)
}

// Numberer hands out document numbers inside the caller's transaction.
type Numberer interface {
	Next(ctx context.Context, prefix string, at time.Time) (string, error)
}

// Observer receives sale outcomes (metrics).
type Observer interface {
	SaleCommitted(total types.Money)
	SaleAborted(code string)
}

type nopObserver struct{}

func (nopObserver) SaleCommitted(types.Money) {}
func (nopObserver) SaleAborted(string)        {}

// Service is the sale orchestrator.
type Service struct {
	repo     Repository
	txb      tx.Beginner
	inv      Inventory
	ledger   Ledger
	numbers  Numberer
	catalog  *catalog.Service
	observer Observer
	now      func() time.Time
}

// NewService wires the orchestrator. cat may be nil for the default profile.
func NewService(repo Repository, txb tx.Beginner, inv Inventory, led Ledger, numbers Numberer, cat *catalog.Service) *Service {
	if cat == nil {
		cat = catalog.MustDefault()
	}
	return &Service{
		repo:     repo,
		txb:      txb,
		inv:      inv,
		ledger:   led,
		numbers:  numbers,
		catalog:  cat,
		observer: nopObserver{},
		now:      time.Now,
	}
}

// SetObserver installs an outcome observer.
func (s *Service) SetObserver(o Observer) {
	if o != nil {
		s.observer = o
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// --- Input ---

// RemnantSpec is cut-off stock left over from a material line.
type RemnantSpec struct {
	LengthMM  decimal.Decimal       `json:"lengthMm" validate:"gt=0"`
	WidthMM   decimal.Decimal       `json:"widthMm" validate:"gt=0"`
	Quantity  types.Quantity        `json:"quantity" validate:"gt=0"`
	Weight    types.OptionalDecimal `json:"weight" validate:"omitempty,gt=0"`
	TotalCost types.OptionalDecimal `json:"totalCost" validate:"omitempty,gte=0"`
	Location  string                `json:"location" validate:"max=100"`
}

// LineInput is one requested sale line. A material line names a sheet, a
// batch, or both; a service line names a service type.
type LineInput struct {
	Kind        ItemKind       `json:"kind" validate:"oneof=material service"`
	SheetID     *id.ID         `json:"sheetId"`
	BatchID     *id.ID         `json:"batchId"`
	ServiceType string         `json:"serviceType" validate:"max=50"`
	Description string         `json:"description" validate:"max=500"`
	Quantity    types.Quantity `json:"quantity" validate:"gte=0"`
	UnitPrice   types.Money    `json:"unitPrice"`
	// UnitCost is the optional cost of a service line.
	UnitCost types.Money  `json:"unitCost"`
	Remnant  *RemnantSpec `json:"remnant"`
}

// CreateSaleInput describes a sale. Discount, when absent, comes from the
// company discount rule. Paid, when absent, is the full total for a walk-in
// sale and zero for a customer sale.
type CreateSaleInput struct {
	CustomerID    *id.ID                `json:"customerId"`
	Date          time.Time             `json:"date"`
	Items         []LineInput           `json:"items" validate:"required,min=1,dive"`
	Discount      types.OptionalDecimal `json:"discount" validate:"omitempty,gte=0"`
	Paid          types.OptionalDecimal `json:"paid" validate:"omitempty,gte=0"`
	PaymentMethod string                `json:"paymentMethod" validate:"max=50"`
	Notes         string                `json:"notes" validate:"max=1000"`
}

// SaleResult is the {success, sale_id, error} outcome of CreateSale.
type SaleResult struct {
	Success bool               `json:"success"`
	SaleID  *id.ID             `json:"saleId,omitempty"`
	Sale    *Sale              `json:"sale,omitempty"`
	Error   *apperror.AppError `json:"error,omitempty"`
}

// ResultOf converts a CreateSale outcome into a SaleResult.
func ResultOf(sale *Sale, err error) SaleResult {
	if err != nil {
		return SaleResult{Error: apperror.Normalize(err)}
	}
	return SaleResult{Success: true, SaleID: id.Ptr(sale.ID), Sale: sale}
}

// --- Create ---

// CreateSale validates the request, then allocates stock, persists the sale
// and posts the customer ledger as one unit. On any failure nothing is
// applied and the error is an *apperror.AppError.
func (s *Service) CreateSale(ctx context.Context, in CreateSaleInput) (_ *Sale, err error) {
	ctx, span := tracer.Start(ctx, "sales.CreateSale")
	defer span.End()
	defer func() {
		if err != nil {
			appErr := apperror.Normalize(err)
			err = appErr
			span.RecordError(appErr)
			span.SetStatus(codes.Error, appErr.Code)
			s.observer.SaleAborted(appErr.Code)
			logger.Warn(ctx, "sale aborted", "code", appErr.Code, "error", appErr.Message)
		}
	}()

	sale, err := s.draft(ctx, in)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("sale.id", sale.ID.String()),
		attribute.Int("sale.items", len(sale.Items)),
	)

	unit, err := beginSaleUnit(ctx, s.txb)
	if err != nil {
		return nil, fmt.Errorf("begin sale: %w", err)
	}
	defer unit.abort()

	if err := s.allocate(unit.ctx, sale, in.Items); err != nil {
		return nil, err
	}
	if err := unit.advance(StateInventoryAllocated); err != nil {
		return nil, err
	}

	if err := s.persist(unit.ctx, sale); err != nil {
		return nil, err
	}
	if err := unit.advance(StatePosted); err != nil {
		return nil, err
	}

	if err := unit.commit(); err != nil {
		return nil, err
	}

	s.observer.SaleCommitted(sale.Total)
	span.SetAttributes(attribute.String("sale.number", sale.Number))
	logger.Info(ctx, "sale committed",
		"sale_id", sale.ID,
		"number", sale.Number,
		"total", sale.Total.String(),
		"paid", sale.Paid.String(),
		"cogs", sale.CostOfGoods().String(),
	)
	return sale, nil
}

// draft validates the input and builds the sale with priced lines and
// totals. Nothing is written.
func (s *Service) draft(ctx context.Context, in CreateSaleInput) (*Sale, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	now := s.now()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	sale := &Sale{
		ID:             id.New(),
		CustomerID:     in.CustomerID,
		Date:           date.UTC(),
		TaxRatePercent: s.catalog.TaxRate(),
		Notes:          in.Notes,
		CreatedBy:      appctx.GetUserID(ctx),
		CreatedAt:      now.UTC(),
	}

	if in.CustomerID != nil {
		if _, err := s.ledger.RequireParty(ctx, *in.CustomerID, ledger.KindCustomer); err != nil {
			return nil, err
		}
	}

	method, err := s.catalog.ResolvePaymentMethod(in.PaymentMethod)
	if err != nil {
		return nil, err
	}
	sale.PaymentMethod = method

	var material, services types.Money
	for i, line := range in.Items {
		item, err := s.draftLine(ctx, sale.ID, i+1, line)
		if err != nil {
			return nil, err
		}
		if item.Kind == KindMaterial {
			material = material.Add(item.LineTotal)
		} else {
			services = services.Add(item.LineTotal)
		}
		sale.Items = append(sale.Items, *item)
	}

	subtotal := material.Add(services)
	discount := in.Discount.Decimal
	if !in.Discount.Valid {
		discount, err = s.catalog.Discount(ctx, catalog.DiscountInput{
			Subtotal:         subtotal,
			MaterialSubtotal: material,
			ServiceSubtotal:  services,
			ItemCount:        len(sale.Items),
			HasCustomer:      in.CustomerID != nil,
		})
		if err != nil {
			return nil, err
		}
	}
	if discount.GreaterThan(subtotal) {
		return nil, apperror.NewValidation("discount exceeds subtotal").
			WithDetail("discount", discount.String()).
			WithDetail("subtotal", subtotal.String())
	}

	totals := ComputeTotals(sale.Items, discount, sale.TaxRatePercent, decimal.Zero)
	paid := in.Paid.Decimal
	if !in.Paid.Valid && in.CustomerID == nil {
		paid = totals.Total
	}
	paid = costing.RoundCurrency(paid)
	if paid.GreaterThan(totals.Total) {
		return nil, apperror.NewInvalidAmount(paid.String()).
			WithDetail("reason", "paid exceeds total").
			WithDetail("total", totals.Total.String())
	}
	if in.CustomerID == nil && paid.LessThan(totals.Total) {
		return nil, apperror.NewValidation("a sale with an open balance needs a customer").
			WithDetail("remaining", totals.Total.Sub(paid).String())
	}
	sale.Apply(ComputeTotals(sale.Items, discount, sale.TaxRatePercent, paid))
	return sale, nil
}

func (s *Service) draftLine(ctx context.Context, saleID id.ID, lineNo int, in LineInput) (*SaleItem, error) {
	item := &SaleItem{
		ID:          id.New(),
		SaleID:      saleID,
		LineNo:      lineNo,
		Kind:        in.Kind,
		Description: in.Description,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		CostKnown:   true,
	}
	field := fmt.Sprintf("items[%d]", lineNo-1)

	switch in.Kind {
	case KindMaterial:
		if !in.Quantity.IsPositive() {
			return nil, apperror.NewValidation("material quantity must be positive").WithDetail("field", field+".quantity")
		}
		if in.UnitPrice.IsNegative() {
			return nil, apperror.NewInvalidAmount(in.UnitPrice.String()).WithDetail("field", field+".unitPrice")
		}
		sheetID, err := s.resolveSheetID(ctx, in)
		if err != nil {
			return nil, err
		}
		sheet, err := s.inv.GetSheet(ctx, sheetID)
		if err != nil {
			return nil, err
		}
		item.SheetID = &sheet.ID
		item.SheetCode = sheet.Code
		item.BatchID = in.BatchID

	case KindService:
		st, err := s.catalog.ServiceType(in.ServiceType)
		if err != nil {
			return nil, err
		}
		if in.SheetID != nil || in.BatchID != nil || in.Remnant != nil {
			return nil, apperror.NewValidation("service line cannot reference stock").WithDetail("field", field)
		}
		item.ServiceType = st.Code
		if item.Description == "" {
			item.Description = st.Name
		}
		if item.Quantity.IsZero() {
			item.Quantity = types.NewQuantity(1)
		}
		if item.UnitPrice.IsZero() {
			item.UnitPrice = st.DefaultPrice
		}
		if !item.UnitPrice.IsPositive() {
			return nil, apperror.NewInvalidAmount(item.UnitPrice.String()).
				WithDetail("field", field+".unitPrice").
				WithDetail("reason", "service price must be positive")
		}
		if in.UnitCost.IsNegative() {
			return nil, apperror.NewInvalidAmount(in.UnitCost.String()).WithDetail("field", field+".unitCost")
		}
		item.UnitCost = in.UnitCost
		item.CostTotal = costing.LineTotal(item.Quantity, in.UnitCost)

	default:
		return nil, apperror.NewValidation("unknown line kind").WithDetail("field", field+".kind")
	}

	item.LineTotal = costing.LineTotal(item.Quantity, item.UnitPrice)
	return item, nil
}

func (s *Service) resolveSheetID(ctx context.Context, in LineInput) (id.ID, error) {
	if in.BatchID == nil {
		if in.SheetID == nil {
			return id.Nil(), apperror.NewValidation("material line needs a sheet or a batch")
		}
		return *in.SheetID, nil
	}
	b, err := s.inv.GetBatch(ctx, *in.BatchID)
	if err != nil {
		return id.Nil(), err
	}
	if in.SheetID != nil && *in.SheetID != b.SheetID {
		return id.Nil(), apperror.NewValidation("batch does not belong to sheet").
			WithDetail("batch_id", *in.BatchID).
			WithDetail("sheet_id", *in.SheetID)
	}
	return b.SheetID, nil
}

// allocate draws stock for every material line and freezes its cost.
// Stock is re-checked here, inside the unit, not at draft time.
func (s *Service) allocate(ctx context.Context, sale *Sale, lines []LineInput) error {
	for i := range sale.Items {
		it := &sale.Items[i]
		if it.Kind != KindMaterial {
			continue
		}
		alloc, err := s.inv.Allocate(ctx, inventory.AllocateInput{
			SheetID:     *it.SheetID,
			BatchID:     it.BatchID,
			Quantity:    it.Quantity,
			AsOf:        sale.Date,
			ReferenceID: &sale.ID,
		})
		if err != nil {
			return err
		}

		it.UnitCost = alloc.UnitCost()
		it.CostTotal = alloc.Cost()
		it.CostKnown = alloc.CostKnown()
		it.Allocations = make([]ItemAllocation, len(alloc.Portions))
		for j, p := range alloc.Portions {
			it.Allocations[j] = ItemAllocation{
				BatchID:   p.BatchID,
				Quantity:  p.Quantity,
				UnitCost:  p.UnitCost,
				CostKnown: p.CostKnown,
			}
		}
		if len(alloc.Portions) == 1 {
			it.BatchID = id.Ptr(alloc.Portions[0].BatchID)
		}

		if r := lines[i].Remnant; r != nil {
			total := r.TotalCost
			if !total.Valid {
				total = types.Some(decimal.Zero)
			}
			res, err := s.inv.CaptureRemnant(ctx, inventory.RemnantInput{
				ParentSheetID: *it.SheetID,
				LengthMM:      r.LengthMM,
				WidthMM:       r.WidthMM,
				Quantity:      r.Quantity,
				Weight:        r.Weight,
				TotalCost:     total,
				ReceivedDate:  sale.Date,
				Location:      r.Location,
				Notes:         "cut from sale line " + fmt.Sprint(it.LineNo),
				ReferenceID:   &sale.ID,
			})
			if err != nil {
				return err
			}
			it.RemnantBatchID = id.Ptr(res.Batch.ID)
		}
	}
	return nil
}

// persist numbers and stores the sale, then posts the customer ledger:
// +total as a sale line and -paid as a payment line.
func (s *Service) persist(ctx context.Context, sale *Sale) error {
	number, err := s.numbers.Next(ctx, NumberPrefix, sale.Date)
	if err != nil {
		return fmt.Errorf("number sale: %w", err)
	}
	sale.Number = number

	if err := sale.CheckTotals(); err != nil {
		return err
	}
	if err := s.repo.CreateSale(ctx, sale); err != nil {
		return fmt.Errorf("create sale: %w", err)
	}

	if sale.CustomerID == nil {
		return nil
	}
	if sale.Total.IsPositive() {
		if _, err := s.ledger.Post(ctx, ledger.PostInput{
			PartyID:     *sale.CustomerID,
			Kind:        ledger.KindCustomer,
			Type:        ledger.TypeSale,
			Amount:      sale.Total,
			ReferenceID: &sale.ID,
			Date:        sale.Date,
			Notes:       "sale " + sale.Number,
		}); err != nil {
			return err
		}
	}
	if sale.Paid.IsPositive() {
		if _, err := s.ledger.Post(ctx, ledger.PostInput{
			PartyID:     *sale.CustomerID,
			Kind:        ledger.KindCustomer,
			Type:        ledger.TypePayment,
			Amount:      sale.Paid.Neg(),
			ReferenceID: &sale.ID,
			Date:        sale.Date,
			Method:      sale.PaymentMethod,
			Notes:       "payment on sale " + sale.Number,
		}); err != nil {
			return err
		}
	}
	return nil
}

// --- Delete ---

// DeleteSale reverses a sale: offsets its ledger lines, removes captured
// remnants, restores every allocated batch (recreating pruned ones) and
// deletes the sale. It is all or nothing.
func (s *Service) DeleteSale(ctx context.Context, saleID id.ID) (err error) {
	ctx, span := tracer.Start(ctx, "sales.DeleteSale",
		trace.WithAttributes(attribute.String("sale.id", saleID.String())))
	defer span.End()

	var number string
	err = tx.RunInUnit(ctx, s.txb, func(ctx context.Context) error {
		sale, err := s.repo.GetSale(ctx, saleID)
		if err != nil {
			return err
		}
		number = sale.Number

		if sale.CustomerID != nil {
			if _, err := s.ledger.ReverseReference(ctx, *sale.CustomerID, sale.ID, "sale "+sale.Number+" deleted"); err != nil {
				return err
			}
		}

		for i := len(sale.Items) - 1; i >= 0; i-- {
			it := sale.Items[i]
			if it.RemnantBatchID != nil {
				if err := s.inv.RemoveRemnant(ctx, *it.RemnantBatchID, &sale.ID); err != nil {
					return err
				}
			}
			for j := len(it.Allocations) - 1; j >= 0; j-- {
				a := it.Allocations[j]
				if err := s.inv.Restore(ctx, inventory.RestoreInput{
					BatchID:     a.BatchID,
					Quantity:    a.Quantity,
					ReferenceID: &sale.ID,
					Notes:       "sale " + sale.Number + " deleted",
				}); err != nil {
					return err
				}
			}
		}

		if err := s.repo.DeleteSale(ctx, sale.ID); err != nil {
			return fmt.Errorf("delete sale: %w", err)
		}
		return nil
	})
	if err != nil {
		appErr := apperror.Normalize(err)
		span.RecordError(appErr)
		span.SetStatus(codes.Error, appErr.Code)
		return appErr
	}

	logger.Info(ctx, "sale deleted", "sale_id", saleID, "number", number)
	return nil
}

// --- Reads ---

// GetSale returns a sale with its items.
func (s *Service) GetSale(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.repo.GetSale(ctx, saleID)
}

// ListSales returns sales in (date, id) order.
func (s *Service) ListSales(ctx context.Context, filter Filter) ([]Sale, error) {
	return s.repo.ListSales(ctx, filter)
}
