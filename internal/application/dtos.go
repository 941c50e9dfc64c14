package application

import "time"

// ProductDTO represents a catalog product in responses
type ProductDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	SKU         string    `json:"sku,omitempty"`
	SupplierSKU string    `json:"supplierSku,omitempty"`
	Barcodes    []string  `json:"barcodes"`
	Aliases     []string  `json:"aliases"`
	SupplierID  string    `json:"supplierId,omitempty"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// InventoryDTO represents on-hand stock for a product
type InventoryDTO struct {
	ProductID      string    `json:"productId"`
	QuantityOnHand float64   `json:"quantityOnHand"`
	AverageCostGBP float64   `json:"averageCostGBP"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TransitDTO represents a transit record
type TransitDTO struct {
	ID                  string    `json:"id"`
	ProductID           string    `json:"productId"`
	PurchaseOrderID     string    `json:"purchaseOrderId"`
	PurchaseOrderLineID string    `json:"purchaseOrderLineId,omitempty"`
	SupplierID          string    `json:"supplierId"`
	Quantity            float64   `json:"quantity"`
	RemainingQuantity   float64   `json:"remainingQuantity"`
	UnitCostGBP         float64   `json:"unitCostGBP"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// SnapshotEntryDTO is one row of the inventory listing
type SnapshotEntryDTO struct {
	Product           ProductDTO    `json:"product"`
	Inventory         *InventoryDTO `json:"inventory"`
	QuantityInTransit float64       `json:"quantityInTransit"`
}

// SyncResultDTO reports the effects of syncing one purchase order
type SyncResultDTO struct {
	PurchaseOrderID string `json:"purchaseOrderId"`
	ProductsCreated int    `json:"productsCreated"`
	ProductsMatched int    `json:"productsMatched"`
	TransitCreated  int    `json:"transitCreated"`
	AlreadySynced   bool   `json:"alreadySynced"`
}

// BackfillResultDTO reports a backfill pass
type BackfillResultDTO struct {
	Processed       int             `json:"processed"`
	Remaining       int             `json:"remaining"`
	ProductsCreated int             `json:"productsCreated"`
	ProductsMatched int             `json:"productsMatched"`
	TransitCreated  int             `json:"transitCreated"`
	Results         []SyncResultDTO `json:"results"`
}

// ReceiveResultDTO reports a receipt
type ReceiveResultDTO struct {
	ProductID           string   `json:"productId"`
	RequestedQuantity   float64  `json:"requestedQuantity"`
	ReceivedQuantity    float64  `json:"receivedQuantity"`
	UnfulfilledQuantity float64  `json:"unfulfilledQuantity"`
	QuantityOnHand      float64  `json:"quantityOnHand"`
	AverageCostGBP      float64  `json:"averageCostGBP"`
	AffectedTransitIDs  []string `json:"affectedTransitIds"`
}

// BarcodeResultDTO reports a barcode attachment
type BarcodeResultDTO struct {
	Product ProductDTO `json:"product"`
	Added   bool       `json:"added"`
}

// PurchaseOrderLineDTO represents a stored purchase-order line
type PurchaseOrderLineDTO struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	SupplierSKU string  `json:"supplierSku,omitempty"`
	Quantity    float64 `json:"quantity"`
	UnitCostGBP float64 `json:"unitCostGBP"`
}

// PurchaseOrderDTO represents a stored purchase order
type PurchaseOrderDTO struct {
	ID         string                 `json:"id"`
	SupplierID string                 `json:"supplierId"`
	Reference  string                 `json:"reference,omitempty"`
	OrderedAt  *time.Time             `json:"orderedAt,omitempty"`
	Lines      []PurchaseOrderLineDTO `json:"lines"`
	Synced     bool                   `json:"synced"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}
