// One-shot export of the seller's listings into a history snapshot.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"meli-inventory-sync/internal/app/bootstrap"
	"meli-inventory-sync/internal/app/usecases"
	"meli-inventory-sync/internal/config"
	"meli-inventory-sync/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flagSet := pflag.NewFlagSet("extract-inventory", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.LoadForSync(configPath)
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

	progress := usecases.NewProgress()
	ctx, stop := bootstrap.CancelOnInterrupt(context.Background(), progress, logger)
	defer stop()

	client := bootstrap.MarketplaceClient(cfg, logger)
	extract := usecases.NewExtractInventory(client, store, cfg.Sync, logger)

	result, err := extract.Run(ctx, progress)
	if errors.Is(err, usecases.ErrCancelled) {
		fmt.Printf("cancelled after %d units, no snapshot saved\n", len(result.Records))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("units=%d skipped_items=%d unresolved_sku=%d\n", len(result.Records), len(result.Skipped), len(result.UnresolvedSKU))
	for _, record := range result.UnresolvedSKU {
		if record.VariationID != nil {
			fmt.Printf("no sku: %s variation %d %q\n", record.ItemID, *record.VariationID, record.Title)
			continue
		}
		fmt.Printf("no sku: %s %q\n", record.ItemID, record.Title)
	}
	for _, itemID := range result.Skipped {
		fmt.Printf("skipped: %s\n", itemID)
	}
	if result.Snapshot != nil {
		fmt.Printf("snapshot %s\n", result.Snapshot.Path)
	}
	return nil
}
