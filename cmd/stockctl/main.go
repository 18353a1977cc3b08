// Package main provides the sheetstock maintenance CLI.
// Usage: stockctl stats
//
//	stockctl reconcile customers|suppliers
//	stockctl reconcile --party <party-uuid>
//	stockctl prune
//	stockctl export <file>
//	stockctl clear --confirm "CLEAR TRANSACTIONAL DATA"
//	stockctl reset --confirm "RESET TO INITIAL STATE"
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"sheetstock/internal/app"
	"sheetstock/internal/config"
	"sheetstock/internal/core/id"
	"sheetstock/internal/domain/ledger"
	"sheetstock/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "help", "--help", "-h":
		printUsage()
		return
	case "stats", "reconcile", "prune", "export", "clear", "reset":
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: true, Service: "stockctl"})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	logger.SetDefault(log)
	ctx := logger.WithLogger(context.Background(), log)

	application, err := app.Build(ctx, cfg, log)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	var cmdErr error
	switch os.Args[1] {
	case "stats":
		cmdErr = stats(ctx, application)
	case "reconcile":
		cmdErr = reconcile(ctx, application)
	case "prune":
		cmdErr = prune(ctx, application)
	case "export":
		cmdErr = export(ctx, application)
	case "clear":
		cmdErr = clearData(ctx, application)
	case "reset":
		cmdErr = resetData(ctx, application)
	}
	if cmdErr != nil {
		fmt.Printf("Error: %v\n", cmdErr)
		application.Close()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`sheetstock maintenance CLI

Usage:
  stockctl <command> [options]

Commands:
  stats       Print row counts per table
  reconcile   Recompute party balances from ledger history
  prune       Delete empty batches with no remaining history
  export      Write a compressed snapshot of the store to a file
  clear       Remove transactional data, keep sheets and parties
  reset       Remove every row
  help        Show this help

Environment Variables:
  STORAGE_DRIVER   memory (default) or postgres
  DATABASE_URL     Connection string, required for postgres
  SNAPSHOT_PATH    Snapshot file backing the memory driver
  COMPANY_PROFILE  YAML company profile and catalogs

Examples:
  stockctl reconcile customers
  stockctl reconcile --party <party-uuid>
  stockctl export backup.json.zst
  stockctl clear --confirm "CLEAR TRANSACTIONAL DATA"`)
}

func stats(ctx context.Context, a *app.App) error {
	st, err := a.Maintenance.DatabaseStats(ctx)
	if err != nil {
		return err
	}
	return printJSON(st)
}

func reconcile(ctx context.Context, a *app.App) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: stockctl reconcile customers|suppliers|--party <party-uuid>")
	}

	if os.Args[2] == "--party" {
		if len(os.Args) < 4 {
			return fmt.Errorf("--party requires a party id")
		}
		partyID, err := id.Parse(os.Args[3])
		if err != nil {
			return fmt.Errorf("invalid party id %q: %w", os.Args[3], err)
		}
		res, err := a.Reconciliation.RecalculateBalance(ctx, partyID)
		if err != nil {
			return err
		}
		return printJSON(res)
	}

	kind := ledger.PartyKind(strings.TrimSuffix(strings.ToLower(os.Args[2]), "s"))
	if !kind.Valid() {
		return fmt.Errorf("unknown party kind %q", os.Args[2])
	}
	summary, err := a.Reconciliation.RecalculateAll(ctx, kind)
	if err != nil {
		return err
	}
	fmt.Printf("✓ %d %s parties checked, %d corrected\n", summary.Checked, kind, summary.Corrected)
	return nil
}

func prune(ctx context.Context, a *app.App) error {
	n, err := a.Inventory.PruneEmpty(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✓ %d empty batches removed\n", n)
	return nil
}

func export(ctx context.Context, a *app.App) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: stockctl export <file>")
	}
	path := os.Args[2]

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	st, err := a.Maintenance.ExportSnapshot(ctx, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}

	fmt.Printf("✓ Exported %d sheets, %d batches, %d transactions, %d sales to %s\n",
		st.Sheets, st.Batches, st.Transactions, st.Sales, path)
	return nil
}

func clearData(ctx context.Context, a *app.App) error {
	if err := a.Maintenance.ClearTransactionalData(ctx, confirmArg()); err != nil {
		return err
	}
	fmt.Println("✓ Transactional data cleared")
	return nil
}

func resetData(ctx context.Context, a *app.App) error {
	if err := a.Maintenance.ResetToInitialState(ctx, confirmArg()); err != nil {
		return err
	}
	fmt.Println("✓ Store reset to initial state")
	return nil
}

func confirmArg() string {
	for i := 2; i < len(os.Args); i++ {
		if os.Args[i] == "--confirm" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
	}
	return ""
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
