package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"meli-inventory-sync/internal/adapters/mercadolibre"
	"meli-inventory-sync/internal/adapters/mercadolibre/dto"
	"meli-inventory-sync/internal/config"
	"meli-inventory-sync/internal/domain/model"
	"meli-inventory-sync/internal/history"
	"meli-inventory-sync/internal/logging"
)

type StockUpdater interface {
	ApplyStockUpdate(ctx context.Context, itemID string, update dto.StockUpdate) error
	PauseListing(ctx context.Context, itemID string) error
}

type RunLogSaver interface {
	SaveRunLog(ctx context.Context, result model.SyncResult) (history.RunRecord, error)
}

type SyncStockService interface {
	Run(ctx context.Context, progress *Progress, rec Reconciliation) (model.SyncResult, error)
}

type ClientSync struct {
	client StockUpdater
	runs   RunLogSaver
	config config.SyncConfig
	logger logging.LoggerService

	pacer Pacer
	now   func() time.Time
}

const pauseSectionHeader = "--- pausing listings without stock ---"

func NewSyncStock(client StockUpdater, runs RunLogSaver, cfg config.SyncConfig, logger logging.LoggerService) *ClientSync {
	return &ClientSync{
		client: client,
		runs:   runs,
		config: cfg,
		logger: logger,
		pacer:  NewPacer(cfg),
		now:    time.Now,
	}
}

// Run pushes the reconciled stock, one call per changed listing, then pauses
// the listings left without stock. Failures are collected in the result and
// do not stop the batch, except an authorization failure, which ends the run
// and is returned. It returns ErrCancelled when the cancel flag stopped the
// run; the partial result is still returned and persisted.
func (c *ClientSync) Run(ctx context.Context, progress *Progress, rec Reconciliation) (model.SyncResult, error) {
	if progress == nil {
		progress = NewProgress()
	}
	result := model.SyncResult{
		RunID:     uuid.NewString(),
		Status:    model.RunRunning,
		StartedAt: c.now(),
	}

	unitsByItem, changedItems := groupChangedItems(rec.Records)
	c.logInfo(fmt.Sprintf("Stock sync started run=%s items=%d units=%d pause_candidates=%d",
		result.RunID, len(changedItems), rec.ChangedUnits, len(rec.PauseCandidates)))

	progress.SetMessage("updating stock")
	progress.SetTotal(len(changedItems))
	cancelled := false
	var authErr error

	for _, itemID := range changedItems {
		if c.shouldStop(ctx, progress) {
			cancelled = true
			break
		}
		if err := pace(ctx, c.pacer); err != nil {
			cancelled = true
			break
		}
		progress.SetCurrent(itemID)
		authErr = c.updateItem(ctx, &result, itemID, unitsByItem[itemID])
		progress.Advance()
		if authErr != nil {
			break
		}
	}

	if !cancelled && authErr == nil && len(rec.PauseCandidates) > 0 {
		result.Append(pauseSectionHeader)
		progress.SetMessage("pausing listings without stock")
		progress.SetTotal(len(rec.PauseCandidates))

		for _, itemID := range rec.PauseCandidates {
			if c.shouldStop(ctx, progress) {
				cancelled = true
				break
			}
			if err := pace(ctx, c.pacer); err != nil {
				cancelled = true
				break
			}
			progress.SetCurrent(itemID)
			authErr = c.pauseItem(ctx, &result, itemID)
			progress.Advance()
			if authErr != nil {
				break
			}
		}
	}

	result.Status = model.RunDone
	switch {
	case authErr != nil:
		result.Status = model.RunError
		result.Append("run stopped: authorization failed")
	case cancelled:
		result.Status = model.RunCancelled
		result.Append("run cancelled")
	}
	result.FinishedAt = c.now()
	result.Append(fmt.Sprintf("summary: %d units updated, %d units failed, %d listings paused, %d pause failures",
		result.Successes, result.Failures, result.Paused, result.PauseFailures))

	c.saveRunLog(ctx, result)

	summary := fmt.Sprintf("Stock sync %s run=%s successes=%d failures=%d paused=%d pause_failures=%d",
		result.Status, result.RunID, result.Successes, result.Failures, result.Paused, result.PauseFailures)
	switch {
	case authErr != nil:
		c.logError(summary, authErr)
	case result.Failures > 0 || result.PauseFailures > 0 || cancelled:
		c.logWarning(summary)
	default:
		c.logSuccess(summary)
	}

	if authErr != nil {
		return result, authErr
	}
	if cancelled {
		return result, ErrCancelled
	}
	return result, nil
}

// updateItem records the outcome of one listing update. It returns the error
// only when it is an authorization failure.
func (c *ClientSync) updateItem(ctx context.Context, result *model.SyncResult, itemID string, units []model.ReconciledRecord) error {
	payload, err := BuildStockPayload(units)
	if err != nil {
		result.Failures += len(units)
		result.AddErrorKind("invalid payload")
		result.Append(fmt.Sprintf("❌ %s: %v", itemID, err))
		return nil
	}

	if err := c.client.ApplyStockUpdate(ctx, itemID, payload); err != nil {
		kind, details := mercadolibre.DescribeError(err)
		result.Failures += len(units)
		result.AddErrorKind(kind)
		result.Append(fmt.Sprintf("❌ %s: %s", itemID, failureText(kind, details)))
		return unauthorized(err)
	}

	result.Successes += len(units)
	if payload.AvailableQuantity != nil {
		result.Append(fmt.Sprintf("✔️ %s: stock set to %d", itemID, *payload.AvailableQuantity))
		return nil
	}
	result.Append(fmt.Sprintf("✔️ %s: %d variations updated", itemID, len(payload.Variations)))
	return nil
}

func (c *ClientSync) pauseItem(ctx context.Context, result *model.SyncResult, itemID string) error {
	if err := c.client.PauseListing(ctx, itemID); err != nil {
		kind, details := mercadolibre.DescribeError(err)
		result.PauseFailures++
		result.AddErrorKind("pause failed: " + kind)
		result.Append(fmt.Sprintf("❌ %s: pause failed: %s", itemID, failureText(kind, details)))
		return unauthorized(err)
	}
	result.Paused++
	result.Append(fmt.Sprintf("⏸️ %s: paused, no stock left", itemID))
	return nil
}

func unauthorized(err error) error {
	if errors.Is(err, mercadolibre.ErrUnauthorized) {
		return err
	}
	return nil
}

func (c *ClientSync) shouldStop(ctx context.Context, progress *Progress) bool {
	return progress.CancelRequested() || ctx.Err() != nil
}

func (c *ClientSync) saveRunLog(ctx context.Context, result model.SyncResult) {
	if c.runs == nil {
		return
	}
	// The run log is kept even when the run context was cancelled.
	record, err := c.runs.SaveRunLog(context.WithoutCancel(ctx), result)
	if err != nil {
		c.logError("Error saving sync run log", err)
		return
	}
	c.logInfo(fmt.Sprintf("Sync run log saved path=%s", record.LogPath))
}

func (c *ClientSync) logInfo(message string) {
	if c.logger != nil {
		c.logger.Log(message)
	}
}

func (c *ClientSync) logSuccess(message string) {
	if c.logger != nil {
		c.logger.LogSuccess(message)
	}
}

func (c *ClientSync) logWarning(message string) {
	if c.logger != nil {
		c.logger.LogWarning(message)
	}
}

func (c *ClientSync) logError(message string, err error) {
	if c.logger != nil {
		c.logger.LogError(message, err)
	}
}

// groupChangedItems returns every unit per item id and the ids with at least
// one changed unit, in first-appearance order.
func groupChangedItems(records []model.ReconciledRecord) (map[string][]model.ReconciledRecord, []string) {
	units := make(map[string][]model.ReconciledRecord)
	order := make([]string, 0)
	changed := make(map[string]bool)
	for _, record := range records {
		if _, ok := units[record.ItemID]; !ok {
			order = append(order, record.ItemID)
		}
		units[record.ItemID] = append(units[record.ItemID], record)
		if record.Changed {
			changed[record.ItemID] = true
		}
	}

	items := make([]string, 0, len(changed))
	for _, itemID := range order {
		if changed[itemID] {
			items = append(items, itemID)
		}
	}
	return units, items
}

func failureText(kind, details string) string {
	if details == "" {
		return kind
	}
	return kind + ": " + details
}
