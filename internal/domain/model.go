package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxBarcodeLength bounds a scanner barcode after trimming
const MaxBarcodeLength = 128

// NewID returns a time-ordered identifier. Sorting ids as strings follows
// creation order within a process.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Product is a catalog entry
type Product struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	SKU         string    `bson:"sku,omitempty" json:"sku,omitempty"`
	SupplierSKU string    `bson:"supplierSku,omitempty" json:"supplierSku,omitempty"`
	Barcodes    []string  `bson:"barcodes" json:"barcodes"`
	Aliases     []string  `bson:"aliases" json:"aliases"`
	SupplierID  string    `bson:"supplierId,omitempty" json:"supplierId,omitempty"`
	Category    string    `bson:"category,omitempty" json:"category,omitempty"`
	Tags        []string  `bson:"tags" json:"tags"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasAlias reports whether the exact description is already recorded
func (p *Product) HasAlias(description string) bool {
	for _, a := range p.Aliases {
		if a == description {
			return true
		}
	}
	return false
}

// HasBarcode reports whether the exact barcode is already attached
func (p *Product) HasBarcode(barcode string) bool {
	for _, b := range p.Barcodes {
		if b == barcode {
			return true
		}
	}
	return false
}

func (p *Product) clone() *Product {
	c := *p
	c.Barcodes = cloneStrings(p.Barcodes)
	c.Aliases = cloneStrings(p.Aliases)
	c.Tags = cloneStrings(p.Tags)
	return &c
}

// InventoryRecord holds on-hand quantity and moving-average cost for one product
type InventoryRecord struct {
	ProductID      string    `bson:"_id" json:"productId"`
	QuantityOnHand float64   `bson:"quantityOnHand" json:"quantityOnHand"`
	AverageCostGBP float64   `bson:"averageCostGBP" json:"averageCostGBP"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// ApplyReceipt adds received stock and recomputes the weighted-average cost
func (r *InventoryRecord) ApplyReceipt(received, incomingValue float64, now time.Time) {
	r.AverageCostGBP = WeightedAverageCost(r.QuantityOnHand, r.AverageCostGBP, received, incomingValue)
	r.QuantityOnHand = dec(r.QuantityOnHand).Add(dec(received)).InexactFloat64()
	r.UpdatedAt = now
}

// TransitStatus is derived from a transit record's remaining quantity
type TransitStatus string

const (
	TransitInTransit         TransitStatus = "in_transit"
	TransitPartiallyReceived TransitStatus = "partially_received"
	TransitReceived          TransitStatus = "received"
)

// StatusFor derives the transit status from quantity and remaining
func StatusFor(quantity, remaining float64) TransitStatus {
	switch {
	case remaining <= 0:
		return TransitReceived
	case remaining < quantity:
		return TransitPartiallyReceived
	default:
		return TransitInTransit
	}
}

// TransitRecord is ordered quantity not yet received
type TransitRecord struct {
	ID                  string        `bson:"_id" json:"id"`
	ProductID           string        `bson:"productId" json:"productId"`
	PurchaseOrderID     string        `bson:"purchaseOrderId" json:"purchaseOrderId"`
	PurchaseOrderLineID string        `bson:"purchaseOrderLineId,omitempty" json:"purchaseOrderLineId,omitempty"`
	SupplierID          string        `bson:"supplierId" json:"supplierId"`
	Quantity            float64       `bson:"quantity" json:"quantity"`
	RemainingQuantity   float64       `bson:"remainingQuantity" json:"remainingQuantity"`
	UnitCostGBP         float64       `bson:"unitCostGBP" json:"unitCostGBP"`
	Status              TransitStatus `bson:"status" json:"status"`
	CreatedAt           time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// IsOpen reports whether any quantity remains to be received
func (t *TransitRecord) IsOpen() bool {
	return t.RemainingQuantity > 0
}

// Supplier is a purchase-order counterparty
type Supplier struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name,omitempty" json:"name,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// PurchaseOrderLine is one free-text line of a purchase order
type PurchaseOrderLine struct {
	ID          string  `bson:"id" json:"id"`
	Description string  `bson:"description" json:"description"`
	SupplierSKU string  `bson:"supplierSku,omitempty" json:"supplierSku,omitempty"`
	Quantity    float64 `bson:"quantity" json:"quantity"`
	UnitCostGBP float64 `bson:"unitCostGBP" json:"unitCostGBP"`
}

// PurchaseOrder is a stored supplier order. Lines are owned by the order.
type PurchaseOrder struct {
	ID         string              `bson:"_id" json:"id"`
	SupplierID string              `bson:"supplierId" json:"supplierId"`
	Reference  string              `bson:"reference,omitempty" json:"reference,omitempty"`
	OrderedAt  *time.Time          `bson:"orderedAt,omitempty" json:"orderedAt,omitempty"`
	Lines      []PurchaseOrderLine `bson:"lines" json:"lines"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// SyncLines converts stored lines into sync input
func (po *PurchaseOrder) SyncLines() []SyncLine {
	lines := make([]SyncLine, len(po.Lines))
	for i, l := range po.Lines {
		lines[i] = SyncLine{
			LineID:      l.ID,
			Description: l.Description,
			SupplierSKU: l.SupplierSKU,
			Quantity:    l.Quantity,
			UnitCostGBP: l.UnitCostGBP,
		}
	}
	return lines
}

func (po *PurchaseOrder) clone() *PurchaseOrder {
	c := *po
	c.Lines = append([]PurchaseOrderLine(nil), po.Lines...)
	if po.OrderedAt != nil {
		t := *po.OrderedAt
		c.OrderedAt = &t
	}
	return &c
}

// Invoice is a supplier invoice carried through persistence untouched
type Invoice struct {
	ID              string    `bson:"_id" json:"id"`
	SupplierID      string    `bson:"supplierId" json:"supplierId"`
	PurchaseOrderID string    `bson:"purchaseOrderId,omitempty" json:"purchaseOrderId,omitempty"`
	Reference       string    `bson:"reference,omitempty" json:"reference,omitempty"`
	TotalGBP        float64   `bson:"totalGBP" json:"totalGBP"`
	IssuedAt        time.Time `bson:"issuedAt" json:"issuedAt"`
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}
