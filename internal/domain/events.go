package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	AggregateID() string
	OccurredAt() time.Time
}

// MatchKind records how a purchase-order line was resolved to a product
type MatchKind string

const (
	MatchExact   MatchKind = "exact"
	MatchFuzzy   MatchKind = "fuzzy"
	MatchCreated MatchKind = "created"
)

// ProductCreatedEvent is raised when a line matches no catalog product
type ProductCreatedEvent struct {
	ProductID       string    `json:"productId"`
	Name            string    `json:"name"`
	SKU             string    `json:"sku,omitempty"`
	SupplierID      string    `json:"supplierId,omitempty"`
	Description     string    `json:"description"`
	PurchaseOrderID string    `json:"purchaseOrderId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (e *ProductCreatedEvent) EventType() string     { return "reconciliation.product.created" }
func (e *ProductCreatedEvent) AggregateID() string   { return e.ProductID }
func (e *ProductCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// ProductMatchedEvent is raised when a line resolves to an existing product
type ProductMatchedEvent struct {
	ProductID       string    `json:"productId"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Kind            MatchKind `json:"kind"`
	Score           float64   `json:"score"`
	PurchaseOrderID string    `json:"purchaseOrderId,omitempty"`
	MatchedAt       time.Time `json:"matchedAt"`
}

func (e *ProductMatchedEvent) EventType() string     { return "reconciliation.product.matched" }
func (e *ProductMatchedEvent) AggregateID() string   { return e.ProductID }
func (e *ProductMatchedEvent) OccurredAt() time.Time { return e.MatchedAt }

// TransitCreatedEvent is raised for each transit record opened by a sync
type TransitCreatedEvent struct {
	TransitID           string    `json:"transitId"`
	ProductID           string    `json:"productId"`
	PurchaseOrderID     string    `json:"purchaseOrderId"`
	PurchaseOrderLineID string    `json:"purchaseOrderLineId,omitempty"`
	SupplierID          string    `json:"supplierId"`
	Quantity            float64   `json:"quantity"`
	UnitCostGBP         float64   `json:"unitCostGBP"`
	CreatedAt           time.Time `json:"createdAt"`
}

func (e *TransitCreatedEvent) EventType() string     { return "reconciliation.transit.created" }
func (e *TransitCreatedEvent) AggregateID() string   { return e.ProductID }
func (e *TransitCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// StockReceivedEvent is raised when transit is drawn down into on-hand stock
type StockReceivedEvent struct {
	ProductID           string    `json:"productId"`
	RequestedQuantity   float64   `json:"requestedQuantity"`
	ReceivedQuantity    float64   `json:"receivedQuantity"`
	UnfulfilledQuantity float64   `json:"unfulfilledQuantity"`
	QuantityOnHand      float64   `json:"quantityOnHand"`
	AverageCostGBP      float64   `json:"averageCostGBP"`
	AffectedTransitIDs  []string  `json:"affectedTransitIds"`
	ReceivedAt          time.Time `json:"receivedAt"`
}

func (e *StockReceivedEvent) EventType() string     { return "reconciliation.stock.received" }
func (e *StockReceivedEvent) AggregateID() string   { return e.ProductID }
func (e *StockReceivedEvent) OccurredAt() time.Time { return e.ReceivedAt }

// BarcodeAddedEvent is raised when a new barcode is attached to a product
type BarcodeAddedEvent struct {
	ProductID string    `json:"productId"`
	Barcode   string    `json:"barcode"`
	AddedAt   time.Time `json:"addedAt"`
}

func (e *BarcodeAddedEvent) EventType() string     { return "reconciliation.product.barcode-added" }
func (e *BarcodeAddedEvent) AggregateID() string   { return e.ProductID }
func (e *BarcodeAddedEvent) OccurredAt() time.Time { return e.AddedAt }
