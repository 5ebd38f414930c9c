package mercadolibre

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"meli-inventory-sync/internal/adapters/mercadolibre/dto"
)

type StockService interface {
	ApplyStockUpdate(ctx context.Context, itemID string, update dto.StockUpdate) error
	PauseListing(ctx context.Context, itemID string) error
}

const statusPaused = "paused"

// ApplyStockUpdate sends the stock payload for one listing. For listings with
// variations the payload must carry every variation: the API deletes the
// ones left out.
func (c *Client) ApplyStockUpdate(ctx context.Context, itemID string, update dto.StockUpdate) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return errors.New("mercadolibre item id is required")
	}
	if update.AvailableQuantity == nil && len(update.Variations) == 0 {
		return fmt.Errorf("mercadolibre stock update for %s is empty", itemID)
	}
	if update.AvailableQuantity != nil && len(update.Variations) > 0 {
		return fmt.Errorf("mercadolibre stock update for %s mixes item and variation stock", itemID)
	}
	if _, err := c.apiRequest(ctx, http.MethodPut, "/items/"+url.PathEscape(itemID), update, c.updatePolicy); err != nil {
		c.logError(fmt.Sprintf("mercadolibre stock update failed item=%s", itemID), err)
		return err
	}
	return nil
}

// PauseListing takes a listing off sale. It is attempted once.
func (c *Client) PauseListing(ctx context.Context, itemID string) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return errors.New("mercadolibre item id is required")
	}
	if _, err := c.apiRequest(ctx, http.MethodPut, "/items/"+url.PathEscape(itemID), dto.StatusUpdate{Status: statusPaused}, SingleAttempt); err != nil {
		c.logError(fmt.Sprintf("mercadolibre pause failed item=%s", itemID), err)
		return err
	}
	return nil
}
