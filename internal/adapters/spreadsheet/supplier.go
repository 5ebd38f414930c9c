package spreadsheet

import (
	"errors"
	"io"
	"strings"

	"meli-inventory-sync/internal/domain/model"
)

const (
	ColumnArticleKey = "CLAVE_ARTICULO"
	ColumnStock      = "EXISTENCIAS"
)

// ReadSupplierStock parses the supplier stock workbook. Header names are
// trimmed and upper-cased before matching. Rows are returned as found; a
// non-numeric quantity is flagged, not rejected.
func ReadSupplierStock(r io.Reader) ([]model.SupplierRow, error) {
	rows, err := readFirstSheet(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("supplier file is empty")
	}

	index := headerIndex(rows[0], normalizeSupplierHeader)
	var missing []string
	for _, column := range []string{ColumnArticleKey, ColumnStock} {
		if _, ok := index[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{File: "supplier file", Columns: missing}
	}

	keyIdx, stockIdx := index[ColumnArticleKey], index[ColumnStock]
	out := make([]model.SupplierRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		// numeric key cells are matched by their text
		key := cell(row, keyIdx)
		raw := cell(row, stockIdx)
		if key == "" && raw == "" {
			continue
		}
		quantity, numeric := parseNumber(raw)
		out = append(out, model.SupplierRow{
			ArticleKey:    key,
			StockQuantity: quantity,
			Numeric:       numeric,
		})
	}
	return out, nil
}

func normalizeSupplierHeader(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
