package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"meli-inventory-sync/internal/domain/model"
)

const (
	ColumnStatus      = "status"
	ColumnItemID      = "item_id"
	ColumnTitle       = "título"
	ColumnSKU         = "sku"
	ColumnVariationID = "variación_id"
	ColumnCurrent     = "stock"
	ColumnNewStock    = "stock_nuevo"
)

var inventoryHeader = []string{ColumnStatus, ColumnItemID, ColumnTitle, ColumnSKU, ColumnVariationID, ColumnCurrent}

var inventoryAliases = map[string]string{
	"titulo":       ColumnTitle,
	"title":        ColumnTitle,
	"variacion_id": ColumnVariationID,
	"variation_id": ColumnVariationID,
}

func WriteInventory(w io.Writer, records []model.ListingRecord) error {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, inventoryRow(r))
	}
	return writeSheet(w, inventoryHeader, rows)
}

// WriteReconciled writes the inventory columns plus the computed stock.
func WriteReconciled(w io.Writer, records []model.ReconciledRecord) error {
	header := append(append([]string{}, inventoryHeader...), ColumnNewStock)
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, append(inventoryRow(r.ListingRecord), r.NewStock))
	}
	return writeSheet(w, header, rows)
}

func inventoryRow(r model.ListingRecord) []any {
	var variation any = ""
	if r.VariationID != nil {
		variation = *r.VariationID
	}
	return []any{r.Status, r.ItemID, r.Title, r.SKU, variation, r.Stock}
}

// ReadInventory parses an inventory export. status and título are optional.
func ReadInventory(r io.Reader) ([]model.ListingRecord, error) {
	rows, err := readFirstSheet(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("inventory file is empty")
	}

	index := headerIndex(rows[0], normalizeInventoryHeader)
	var missing []string
	for _, column := range []string{ColumnItemID, ColumnSKU, ColumnVariationID, ColumnCurrent} {
		if _, ok := index[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{File: "inventory file", Columns: missing}
	}

	statusIdx, hasStatus := index[ColumnStatus]
	titleIdx, hasTitle := index[ColumnTitle]
	if !hasStatus {
		statusIdx = -1
	}
	if !hasTitle {
		titleIdx = -1
	}

	records := make([]model.ListingRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		itemID := cell(row, index[ColumnItemID])
		if itemID == "" {
			continue
		}
		record := model.ListingRecord{
			Status: cell(row, statusIdx),
			ItemID: itemID,
			Title:  cell(row, titleIdx),
			SKU:    cell(row, index[ColumnSKU]),
		}
		if raw := cell(row, index[ColumnVariationID]); raw != "" && !strings.EqualFold(raw, "nan") {
			id, err := parseID(raw)
			if err != nil {
				return nil, fmt.Errorf("inventory file row %d: invalid %s %q", line, ColumnVariationID, raw)
			}
			record.VariationID = &id
		}
		if raw := cell(row, index[ColumnCurrent]); raw != "" {
			stock, ok := parseNumber(raw)
			if !ok {
				return nil, fmt.Errorf("inventory file row %d: invalid %s %q", line, ColumnCurrent, raw)
			}
			record.Stock = int(stock)
		}
		records = append(records, record)
	}
	return records, nil
}

func normalizeInventoryHeader(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := inventoryAliases[key]; ok {
		return alias
	}
	return key
}

func parseID(raw string) (int64, error) {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, nil
	}
	f, ok := parseNumber(raw)
	if !ok || f != float64(int64(f)) {
		return 0, fmt.Errorf("not an integer: %s", raw)
	}
	return int64(f), nil
}
