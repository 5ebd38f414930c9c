package model

const (
	StatusActive = "active"
	StatusPaused = "paused"
)

// ListingRecord is one sellable unit of a listing. A listing without
// variations is a single unit; each variation is a separate unit sharing
// ItemID.
type ListingRecord struct {
	Status      string
	ItemID      string
	Title       string
	SKU         string
	VariationID *int64
	Stock       int
}

func (r ListingRecord) HasVariation() bool {
	return r.VariationID != nil
}

type SupplierRow struct {
	ArticleKey    string
	StockQuantity float64
	// Numeric is false when the quantity cell did not hold a number.
	Numeric bool
}

type ReconciledRecord struct {
	ListingRecord
	NewStock int
	Changed  bool
}
