package usecases

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"meli-inventory-sync/internal/adapters/mercadolibre/dto"
	"meli-inventory-sync/internal/domain/model"
)

// maxStock caps supplier quantities so the int conversion stays in range.
const maxStock = math.MaxInt32

type ReconcileOptions struct {
	// SafetyFloor forces supplier stock at or below it to zero.
	SafetyFloor int
}

type Reconciliation struct {
	Records []model.ReconciledRecord
	// PauseCandidates are item ids whose new total is zero while the prior
	// total was positive, in first-appearance order.
	PauseCandidates []string
	UnresolvedSKU   []model.ListingRecord

	ChangedUnits   int
	ChangedItems   int
	UnchangedUnits int
	MatchedUnits   int
	MalformedRows  int
	DuplicateKeys  int
}

// Changed returns the records whose stock differs from the computed one.
func (r Reconciliation) Changed() []model.ReconciledRecord {
	changed := make([]model.ReconciledRecord, 0, r.ChangedUnits)
	for _, record := range r.Records {
		if record.Changed {
			changed = append(changed, record)
		}
	}
	return changed
}

// Reconcile computes the target stock of every listing unit from the
// supplier rows.
func Reconcile(listings []model.ListingRecord, rows []model.SupplierRow, opts ReconcileOptions) Reconciliation {
	var result Reconciliation

	stockByKey := make(map[string]float64, len(rows))
	for _, row := range rows {
		key := strings.TrimSpace(row.ArticleKey)
		if key == "" || !row.Numeric || math.IsNaN(row.StockQuantity) || math.IsInf(row.StockQuantity, 0) {
			result.MalformedRows++
			continue
		}
		if _, ok := stockByKey[key]; ok {
			result.DuplicateKeys++
		}
		stockByKey[key] = row.StockQuantity
	}

	type totals struct {
		prior int
		next  int
	}
	byItem := make(map[string]*totals)
	itemOrder := make([]string, 0)
	changedItems := make(map[string]struct{})

	result.Records = make([]model.ReconciledRecord, 0, len(listings))
	for _, listing := range listings {
		sku := strings.TrimSpace(listing.SKU)
		if sku == "" {
			result.UnresolvedSKU = append(result.UnresolvedSKU, listing)
		}

		newStock := 0
		if quantity, ok := stockByKey[sku]; ok && sku != "" {
			result.MatchedUnits++
			newStock = int(math.Max(math.Min(quantity, maxStock), 0))
		}
		if newStock <= opts.SafetyFloor || newStock < 0 {
			newStock = 0
		}

		record := model.ReconciledRecord{
			ListingRecord: listing,
			NewStock:      newStock,
			Changed:       listing.Stock != newStock,
		}
		result.Records = append(result.Records, record)
		if record.Changed {
			result.ChangedUnits++
			changedItems[listing.ItemID] = struct{}{}
		} else {
			result.UnchangedUnits++
		}

		t, ok := byItem[listing.ItemID]
		if !ok {
			t = &totals{}
			byItem[listing.ItemID] = t
			itemOrder = append(itemOrder, listing.ItemID)
		}
		t.prior += listing.Stock
		t.next += newStock
	}

	for _, itemID := range itemOrder {
		t := byItem[itemID]
		if t.next == 0 && t.prior > 0 {
			result.PauseCandidates = append(result.PauseCandidates, itemID)
		}
	}
	result.ChangedItems = len(changedItems)
	return result
}

// BuildStockPayload builds the update body for one listing from all of its
// units. Listings with variations get every variation, changed or not.
func BuildStockPayload(units []model.ReconciledRecord) (dto.StockUpdate, error) {
	if len(units) == 0 {
		return dto.StockUpdate{}, errors.New("no units to update")
	}
	itemID := units[0].ItemID
	withVariation := units[0].HasVariation()

	if !withVariation {
		if len(units) != 1 {
			return dto.StockUpdate{}, fmt.Errorf("item %s has %d units without variation", itemID, len(units))
		}
		quantity := units[0].NewStock
		return dto.StockUpdate{AvailableQuantity: &quantity}, nil
	}

	seen := make(map[int64]struct{}, len(units))
	variations := make([]dto.VariationStock, 0, len(units))
	for _, unit := range units {
		if unit.ItemID != itemID {
			return dto.StockUpdate{}, fmt.Errorf("units of %s and %s mixed in one payload", itemID, unit.ItemID)
		}
		if !unit.HasVariation() {
			return dto.StockUpdate{}, fmt.Errorf("item %s mixes units with and without variation", itemID)
		}
		id := *unit.VariationID
		if _, ok := seen[id]; ok {
			return dto.StockUpdate{}, fmt.Errorf("item %s repeats variation %d", itemID, id)
		}
		seen[id] = struct{}{}
		variations = append(variations, dto.VariationStock{ID: id, AvailableQuantity: unit.NewStock})
	}
	return dto.StockUpdate{Variations: variations}, nil
}
