// Package main provides a CLI tool for seeding the store with demo data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"sheetstock/internal/app"
	"sheetstock/internal/config"
	"sheetstock/internal/core/id"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/domain/ledger"
	"sheetstock/internal/domain/sales"
	"sheetstock/pkg/logger"
)

type demoSheet struct {
	metal     string
	grade     string
	length    int64
	width     int64
	thickness string
	weight    string
	qty       int64
	pricePerK string
}

var demoSheets = []demoSheet{
	{metal: "ALU", grade: "5754", length: 2000, width: 1000, thickness: "2", weight: "10.8", qty: 40, pricePerK: "4.20"},
	{metal: "SS", grade: "304", length: 2500, width: 1250, thickness: "1.5", weight: "37.5", qty: 25, pricePerK: "3.10"},
	{metal: "GI", length: 2000, width: 1000, thickness: "0.8", weight: "12.6", qty: 60, pricePerK: "1.15"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
		Service:     "seed",
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	logger.SetDefault(log)
	ctx := logger.WithLogger(context.Background(), log)

	application, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer application.Close()

	if err := seedDemoData(ctx, application, log); err != nil {
		application.Close()
		log.Fatalw("failed to seed demo data", "error", err)
	}

	log.Info("seeding completed successfully")
}

func seedDemoData(ctx context.Context, a *app.App, log *logger.Logger) error {
	st, err := a.Maintenance.DatabaseStats(ctx)
	if err != nil {
		return err
	}
	if st.Sheets > 0 || st.Parties > 0 {
		log.Infow("store is not empty, skipping demo data", "sheets", st.Sheets, "parties", st.Parties)
		return nil
	}

	supplier, err := a.Ledger.CreateParty(ctx, ledger.CreatePartyInput{
		Kind:  ledger.KindSupplier,
		Name:  "Northern Metals Ltd",
		Phone: "+1 555 0100",
	})
	if err != nil {
		return fmt.Errorf("create supplier: %w", err)
	}

	customer, err := a.Ledger.CreateParty(ctx, ledger.CreatePartyInput{
		Kind:    ledger.KindCustomer,
		Name:    "Riverside Fabrication",
		Address: "12 Mill Road",
	})
	if err != nil {
		return fmt.Errorf("create customer: %w", err)
	}

	received := time.Now().UTC().AddDate(0, 0, -7)
	var first *inventory.ReceiveResult
	for _, d := range demoSheets {
		res, err := a.Inventory.Receive(ctx, inventory.ReceiveInput{
			Sheet: &inventory.SheetSpec{
				MetalType:     d.metal,
				Grade:         d.grade,
				LengthMM:      decimal.NewFromInt(d.length),
				WidthMM:       decimal.NewFromInt(d.width),
				ThicknessMM:   decimal.RequireFromString(d.thickness),
				WeightPerUnit: types.Some(decimal.RequireFromString(d.weight)),
			},
			SupplierID:   id.Ptr(supplier.ID),
			Quantity:     types.NewQuantity(d.qty),
			PricePerKg:   types.Some(decimal.RequireFromString(d.pricePerK)),
			ReceivedDate: received,
			Location:     "Rack A",
		})
		if err != nil {
			return fmt.Errorf("receive %s: %w", d.metal, err)
		}
		if first == nil {
			first = res
		}
		log.Infow("batch received", "sheet", res.Sheet.Code, "quantity", d.qty)
	}

	sale, err := a.Sales.CreateSale(ctx, sales.CreateSaleInput{
		CustomerID: id.Ptr(customer.ID),
		Date:       time.Now().UTC(),
		Items: []sales.LineInput{
			{
				Kind:      sales.KindMaterial,
				SheetID:   id.Ptr(first.Sheet.ID),
				Quantity:  types.NewQuantity(4),
				UnitPrice: decimal.NewFromInt(75),
			},
			{
				Kind:        sales.KindService,
				ServiceType: "cutting",
				Description: "Cut to 500x500",
				Quantity:    types.NewQuantity(1),
				UnitPrice:   decimal.NewFromInt(20),
			},
		},
		Paid: types.Some(decimal.NewFromInt(100)),
	})
	if err != nil {
		return fmt.Errorf("create demo sale: %w", err)
	}

	log.Infow("demo sale created", "number", sale.Number, "total", sale.Total)
	return nil
}
