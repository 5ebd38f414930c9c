package mercadolibre

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"meli-inventory-sync/internal/adapters/mercadolibre/dto"
	"meli-inventory-sync/internal/domain/model"
)

type InventoryService interface {
	UserID(ctx context.Context) (int64, error)
	ListItemIDs(ctx context.Context, ownerID int64, status string) ([]string, error)
	FetchItem(ctx context.Context, itemID string) (*dto.Item, error)
}

func (c *Client) UserID(ctx context.Context) (int64, error) {
	if c.config.SellerID > 0 {
		return c.config.SellerID, nil
	}
	raw, err := c.apiRequest(ctx, http.MethodGet, "/users/me", nil, SingleAttempt)
	if err != nil {
		c.logError("mercadolibre user lookup failed", err)
		return 0, err
	}
	var user dto.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return 0, fmt.Errorf("mercadolibre user decode: %w", err)
	}
	if user.ID == 0 {
		return 0, errors.New("mercadolibre user id missing in response")
	}
	return user.ID, nil
}

// ListItemIDs pages through the seller's listings with the given status. Any
// failure other than authorization stops paging and returns what was
// collected so far.
func (c *Client) ListItemIDs(ctx context.Context, ownerID int64, status string) ([]string, error) {
	limit := c.config.PageSize
	ids := make([]string, 0, limit)

	for offset := 0; ; offset += limit {
		query := url.Values{
			"status": {status},
			"limit":  {strconv.Itoa(limit)},
			"offset": {strconv.Itoa(offset)},
		}
		path := fmt.Sprintf("/users/%d/items/search?%s", ownerID, query.Encode())

		raw, err := c.apiRequest(ctx, http.MethodGet, path, nil, SingleAttempt)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return ids, err
			}
			c.logWarning(fmt.Sprintf("mercadolibre item search stopped status=%s offset=%d collected=%d: %v", status, offset, len(ids), err))
			return ids, nil
		}

		var page dto.SearchResponse
		if err := json.Unmarshal(raw, &page); err != nil {
			c.logWarning(fmt.Sprintf("mercadolibre item search decode failed status=%s offset=%d: %v", status, offset, err))
			return ids, nil
		}
		ids = append(ids, page.Results...)
		if len(page.Results) < limit {
			return ids, nil
		}
	}
}

// FetchItem loads one listing with the detail retry policy. Callers treat an
// error as a skipped item unless it matches ErrUnauthorized.
func (c *Client) FetchItem(ctx context.Context, itemID string) (*dto.Item, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, errors.New("mercadolibre item id is required")
	}
	raw, err := c.apiRequest(ctx, http.MethodGet, "/items/"+url.PathEscape(itemID), nil, c.detailPolicy)
	if err != nil {
		c.logWarning(fmt.Sprintf("mercadolibre item %s skipped: %v", itemID, err))
		return nil, err
	}
	var item dto.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("mercadolibre item %s decode: %w", itemID, err)
	}
	if item.ID == "" {
		item.ID = itemID
	}
	return &item, nil
}

// ListingRecords flattens an item into its sellable units.
func ListingRecords(item *dto.Item) []model.ListingRecord {
	if item == nil {
		return nil
	}
	status := strings.TrimSpace(item.Status)
	if status == "" {
		status = "unknown"
	}
	if len(item.Variations) == 0 {
		return []model.ListingRecord{{
			Status: status,
			ItemID: item.ID,
			Title:  item.Title,
			SKU:    ResolveSKU(item.Raw),
			Stock:  nonNegative(item.AvailableQuantity),
		}}
	}
	records := make([]model.ListingRecord, 0, len(item.Variations))
	for _, v := range item.Variations {
		variationID := v.ID
		records = append(records, model.ListingRecord{
			Status:      status,
			ItemID:      item.ID,
			Title:       item.Title,
			SKU:         ResolveSKU(v.Raw),
			VariationID: &variationID,
			Stock:       nonNegative(v.AvailableQuantity),
		})
	}
	return records
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
