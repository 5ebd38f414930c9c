package usecases

import (
	"context"
	"errors"
	"fmt"

	"meli-inventory-sync/internal/adapters/mercadolibre"
	"meli-inventory-sync/internal/adapters/mercadolibre/dto"
	"meli-inventory-sync/internal/config"
	"meli-inventory-sync/internal/domain/model"
	"meli-inventory-sync/internal/history"
	"meli-inventory-sync/internal/logging"
)

type InventoryFetcher interface {
	UserID(ctx context.Context) (int64, error)
	ListItemIDs(ctx context.Context, ownerID int64, status string) ([]string, error)
	FetchItem(ctx context.Context, itemID string) (*dto.Item, error)
}

type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, records []model.ListingRecord) (history.Snapshot, error)
}

type ExtractResult struct {
	Records       []model.ListingRecord
	UnresolvedSKU []model.ListingRecord
	// Skipped lists item ids whose detail fetch failed.
	Skipped  []string
	Snapshot *history.Snapshot
}

type ExtractInventoryService interface {
	Run(ctx context.Context, progress *Progress) (ExtractResult, error)
}

type ClientExtract struct {
	client    InventoryFetcher
	snapshots SnapshotSaver
	config    config.SyncConfig
	logger    logging.LoggerService

	pacer Pacer
}

func NewExtractInventory(client InventoryFetcher, snapshots SnapshotSaver, cfg config.SyncConfig, logger logging.LoggerService) *ClientExtract {
	return &ClientExtract{
		client:    client,
		snapshots: snapshots,
		config:    cfg,
		logger:    logger,
		pacer:     NewPacer(cfg),
	}
}

// Run exports every listing with one of the configured statuses. Items
// whose details cannot be fetched are skipped; an authorization failure
// aborts the run.
func (c *ClientExtract) Run(ctx context.Context, progress *Progress) (ExtractResult, error) {
	if progress == nil {
		progress = NewProgress()
	}
	var result ExtractResult

	c.logInfo("Inventory extraction started")
	progress.SetMessage("listing items")

	ownerID, err := c.client.UserID(ctx)
	if err != nil {
		c.logError("Error resolving seller id", err)
		return result, err
	}

	statuses := c.config.Statuses
	if len(statuses) == 0 {
		statuses = []string{model.StatusActive, model.StatusPaused}
	}

	seen := make(map[string]struct{})
	itemIDs := make([]string, 0)
	for _, status := range statuses {
		ids, err := c.client.ListItemIDs(ctx, ownerID, status)
		if err != nil {
			c.logError(fmt.Sprintf("Error listing %s items", status), err)
			return result, err
		}
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			itemIDs = append(itemIDs, id)
		}
	}

	progress.SetMessage("fetching item details")
	progress.SetTotal(len(itemIDs))

	for i, itemID := range itemIDs {
		if progress.CancelRequested() || ctx.Err() != nil {
			c.logWarning(fmt.Sprintf("Inventory extraction cancelled after %d of %d items", i, len(itemIDs)))
			return result, ErrCancelled
		}
		if err := pace(ctx, c.pacer); err != nil {
			return result, ErrCancelled
		}
		progress.SetCurrent(itemID)

		item, err := c.client.FetchItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, mercadolibre.ErrUnauthorized) {
				c.logError("Inventory extraction stopped: authorization failed", err)
				return result, err
			}
			result.Skipped = append(result.Skipped, itemID)
			progress.Advance()
			continue
		}

		for _, record := range mercadolibre.ListingRecords(item) {
			result.Records = append(result.Records, record)
			if record.SKU == "" {
				result.UnresolvedSKU = append(result.UnresolvedSKU, record)
			}
		}
		progress.Advance()
	}

	if len(result.UnresolvedSKU) > 0 {
		c.logWarning(fmt.Sprintf("Inventory extraction: %d units without SKU", len(result.UnresolvedSKU)))
	}

	if c.snapshots != nil {
		progress.SetMessage("saving snapshot")
		snapshot, err := c.snapshots.SaveSnapshot(ctx, result.Records)
		if err != nil {
			c.logError("Error saving inventory snapshot", err)
			return result, fmt.Errorf("save snapshot: %w", err)
		}
		result.Snapshot = &snapshot
	}

	c.logSuccess(fmt.Sprintf("Inventory extraction completed items=%d units=%d skipped=%d unresolved_sku=%d",
		len(itemIDs), len(result.Records), len(result.Skipped), len(result.UnresolvedSKU)))
	return result, nil
}

func (c *ClientExtract) logInfo(message string) {
	if c.logger != nil {
		c.logger.Log(message)
	}
}

func (c *ClientExtract) logSuccess(message string) {
	if c.logger != nil {
		c.logger.LogSuccess(message)
	}
}

func (c *ClientExtract) logWarning(message string) {
	if c.logger != nil {
		c.logger.LogWarning(message)
	}
}

func (c *ClientExtract) logError(message string, err error) {
	if c.logger != nil {
		c.logger.LogError(message, err)
	}
}
