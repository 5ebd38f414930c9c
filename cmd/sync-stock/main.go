// Pushes supplier stock to the marketplace listings of the latest (or a
// given) inventory export.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"meli-inventory-sync/internal/adapters/spreadsheet"
	"meli-inventory-sync/internal/app/bootstrap"
	"meli-inventory-sync/internal/app/usecases"
	"meli-inventory-sync/internal/config"
	"meli-inventory-sync/internal/domain/model"
	"meli-inventory-sync/internal/history"
	"meli-inventory-sync/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath    string
		supplierPath  string
		inventoryPath string
		previewPath   string
		dryRun        bool
	)
	flagSet := pflag.NewFlagSet("sync-stock", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	flagSet.StringVarP(&supplierPath, "supplier", "s", "", "supplier stock xlsx (CLAVE_ARTICULO, EXISTENCIAS)")
	flagSet.StringVarP(&inventoryPath, "inventory", "i", "", "inventory xlsx to reconcile against (default: latest snapshot)")
	flagSet.BoolVar(&dryRun, "dry-run", false, "reconcile and write a preview without calling the marketplace")
	flagSet.StringVar(&previewPath, "preview-out", "", "preview xlsx path for --dry-run (default: reconciled_<timestamp>.xlsx)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if supplierPath == "" {
		return errors.New("--supplier is required")
	}

	load := config.LoadForSync
	if dryRun {
		load = config.Load
	}
	cfg, err := load(configPath)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.Logging, cfg.TelegramBot)

	store, closeDB, err := bootstrap.OpenHistory(context.Background(), cfg)
	if err != nil {
		logger.LogError("history store unavailable", err)
		return err
	}
	defer closeDB()

	rows, err := readSupplier(supplierPath)
	if err != nil {
		return err
	}
	listings, err := readListings(context.Background(), store, inventoryPath)
	if err != nil {
		return err
	}

	rec := usecases.Reconcile(listings, rows, usecases.ReconcileOptions{SafetyFloor: cfg.Sync.SafetyFloor})
	fmt.Printf("units=%d changed_units=%d changed_items=%d pause_candidates=%d unresolved_sku=%d malformed_rows=%d\n",
		len(rec.Records), rec.ChangedUnits, rec.ChangedItems, len(rec.PauseCandidates), len(rec.UnresolvedSKU), rec.MalformedRows)

	if dryRun {
		if previewPath == "" {
			previewPath = fmt.Sprintf("reconciled_%s.xlsx", time.Now().Format("20060102_150405"))
		}
		if err := writePreview(previewPath, rec.Records); err != nil {
			return err
		}
		fmt.Printf("preview %s\n", previewPath)
		return nil
	}

	progress := usecases.NewProgress()
	ctx, stop := bootstrap.CancelOnInterrupt(context.Background(), progress, logger)
	defer stop()

	syncer := usecases.NewSyncStock(bootstrap.MarketplaceClient(cfg, logger), store, cfg.Sync, logger)
	result, err := syncer.Run(ctx, progress, rec)
	fmt.Print(result.Text())
	if err != nil && !errors.Is(err, usecases.ErrCancelled) {
		return err
	}
	if result.Failures > 0 || result.PauseFailures > 0 {
		for _, kind := range result.ErrorKinds {
			fmt.Printf("error kind: %s\n", kind)
		}
	}
	return nil
}

func readSupplier(path string) ([]model.SupplierRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open supplier file: %w", err)
	}
	defer f.Close()
	return spreadsheet.ReadSupplierStock(f)
}

func readListings(ctx context.Context, store *history.Store, path string) ([]model.ListingRecord, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open inventory file: %w", err)
		}
		defer f.Close()
		return spreadsheet.ReadInventory(f)
	}
	snap, err := store.LatestSnapshot(ctx)
	if errors.Is(err, history.ErrNotFound) {
		return nil, errors.New("no inventory snapshot: run extract-inventory or pass --inventory")
	}
	if err != nil {
		return nil, err
	}
	return store.LoadSnapshot(snap)
}

func writePreview(path string, records []model.ReconciledRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	if err := spreadsheet.WriteReconciled(f, records); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
