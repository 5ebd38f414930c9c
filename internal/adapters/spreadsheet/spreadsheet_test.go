package spreadsheet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"meli-inventory-sync/internal/domain/model"
)

// buildWorkbook writes rows to the first sheet of a new workbook.
func buildWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func TestReadSupplierStockNormalizesHeaders(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"  clave_articulo ", "Descripcion", "existencias "},
		{"TAC-01", "Mochila", 12},
		{"TAC-02", "Linterna", 2.5},
		{"TAC-03", "Guantes", "agotado"},
		{"", "sin clave", 4},
		{"", "", ""},
	})

	rows, err := ReadSupplierStock(buf)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, model.SupplierRow{ArticleKey: "TAC-01", StockQuantity: 12, Numeric: true}, rows[0])
	assert.Equal(t, model.SupplierRow{ArticleKey: "TAC-02", StockQuantity: 2.5, Numeric: true}, rows[1])
	assert.Equal(t, "TAC-03", rows[2].ArticleKey)
	assert.False(t, rows[2].Numeric)
	assert.Equal(t, "", rows[3].ArticleKey)
	assert.True(t, rows[3].Numeric)
}

func TestReadSupplierStockMissingColumn(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"CLAVE_ARTICULO", "CANTIDAD"},
		{"TAC-01", 12},
	})

	_, err := ReadSupplierStock(buf)
	require.Error(t, err)

	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{ColumnStock}, missing.Columns)
	assert.Contains(t, err.Error(), "EXISTENCIAS")
}

func TestReadSupplierStockRejectsNonWorkbook(t *testing.T) {
	_, err := ReadSupplierStock(bytes.NewBufferString("CLAVE_ARTICULO,EXISTENCIAS\nA,1\n"))
	require.Error(t, err)
}

func TestInventoryRoundTrip(t *testing.T) {
	v1, v2 := int64(174997147938), int64(174997147939)
	records := []model.ListingRecord{
		{Status: "active", ItemID: "MLM1", Title: "Chamarra táctica", SKU: "CH-M", VariationID: &v1, Stock: 10},
		{Status: "active", ItemID: "MLM1", Title: "Chamarra táctica", SKU: "", VariationID: &v2, Stock: 0},
		{Status: "paused", ItemID: "MLM2", Title: "Linterna", SKU: "LIN-1", Stock: 3},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteInventory(&buf, records))

	got, err := ReadInventory(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestReadInventoryAcceptsUnaccentedHeaders(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"ITEM_ID", "Titulo", "SKU", "variacion_id", "Stock"},
		{"MLM5", "Casco", "CAS-1", "", 4},
	})

	got, err := ReadInventory(buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Casco", got[0].Title)
	assert.Nil(t, got[0].VariationID)
	assert.Equal(t, 4, got[0].Stock)
	assert.Equal(t, "", got[0].Status)
}

func TestReadInventoryMissingColumns(t *testing.T) {
	buf := buildWorkbook(t, [][]any{{"item_id", "sku"}, {"MLM1", "A"}})

	_, err := ReadInventory(buf)
	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{ColumnVariationID, ColumnCurrent}, missing.Columns)
}

func TestWriteReconciledAddsNewStockColumn(t *testing.T) {
	records := []model.ReconciledRecord{
		{ListingRecord: model.ListingRecord{Status: "active", ItemID: "MLM2", SKU: "LIN-1", Stock: 3}, NewStock: 8, Changed: true},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteReconciled(&buf, records))

	rows, err := readFirstSheet(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"status", "item_id", "título", "sku", "variación_id", "stock", "stock_nuevo"}, rows[0])
	assert.Equal(t, "8", rows[1][6])
}

func TestReadSupplierStockNumericKeyCell(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"CLAVE_ARTICULO", "EXISTENCIAS"},
		{10045, 7},
	})

	rows, err := ReadSupplierStock(buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.SupplierRow{ArticleKey: "10045", StockQuantity: 7, Numeric: true}, rows[0])
}
