package application

import "time"

// PurchaseOrderLineInput is one line of an incoming purchase order
type PurchaseOrderLineInput struct {
	LineID      string
	Description string
	SupplierSKU string
	Quantity    float64
	UnitCostGBP float64
}

// RecordPurchaseOrderCommand stores a purchase order and syncs it to transit
// unless it already produced transit records
type RecordPurchaseOrderCommand struct {
	PurchaseOrderID string
	SupplierID      string
	SupplierName    string
	Reference       string
	OrderedAt       *time.Time
	Lines           []PurchaseOrderLineInput
	// Source labels the sync metric: "api", "kafka" or "backfill"
	Source string
}

// SyncPurchaseOrderCommand syncs a stored purchase order. Without Force an
// order that already produced transit records is left alone.
type SyncPurchaseOrderCommand struct {
	PurchaseOrderID string
	Force           bool
	Source          string
}

// ReceiveStockCommand receives stock for a product out of transit
type ReceiveStockCommand struct {
	ProductID string
	Quantity  float64
}

// AddBarcodeCommand attaches a scanner barcode to a product
type AddBarcodeCommand struct {
	ProductID string
	Barcode   string
}

// BackfillTransitCommand syncs stored purchase orders that have no transit
// records. Limit <= 0 processes all of them.
type BackfillTransitCommand struct {
	Limit int
}
