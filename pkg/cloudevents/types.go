package cloudevents

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types emitted by the reconciliation service
const (
	ProductCreated = "reconciliation.product.created"
	ProductMatched = "reconciliation.product.matched"
	TransitCreated = "reconciliation.transit.created"
	StockReceived  = "reconciliation.stock.received"
	BarcodeAdded   = "reconciliation.product.barcode-added"
)

// Event types consumed from other services
const (
	PurchaseOrderSaved = "procurement.purchase-order.saved"
)

// Event sources
const (
	SourceReconciliation = "/reconciliation-service"
	SourceProcurement    = "/procurement-service"
)

// CloudEvent is a CloudEvents v1.0 envelope. Data holds the typed payload
// when producing and the decoded JSON value when consuming.
type CloudEvent struct {
	SpecVersion     string         `json:"specversion"`
	Type            string         `json:"type"`
	Source          string         `json:"source"`
	Subject         string         `json:"subject,omitempty"`
	ID              string         `json:"id"`
	Time            time.Time      `json:"time"`
	DataContentType string         `json:"datacontenttype,omitempty"`
	Data            any            `json:"data,omitempty"`
	Extensions      map[string]any `json:"-"`

	CorrelationID string `json:"correlationid,omitempty"`
	TraceParent   string `json:"traceparent,omitempty"`
}

// DecodeData converts the event payload into v
func (e *CloudEvent) DecodeData(v any) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", e.Type, err)
	}
	return nil
}

// ProductEventData is the payload for product created/matched events
type ProductEventData struct {
	ProductID       string  `json:"productId"`
	Name            string  `json:"name"`
	SKU             string  `json:"sku,omitempty"`
	SupplierID      string  `json:"supplierId,omitempty"`
	Description     string  `json:"description"`
	PurchaseOrderID string  `json:"purchaseOrderId,omitempty"`
	MatchKind       string  `json:"matchKind,omitempty"`
	Score           float64 `json:"score,omitempty"`
}

// TransitCreatedData is the payload for transit created events
type TransitCreatedData struct {
	TransitID           string  `json:"transitId"`
	ProductID           string  `json:"productId"`
	PurchaseOrderID     string  `json:"purchaseOrderId"`
	PurchaseOrderLineID string  `json:"purchaseOrderLineId,omitempty"`
	SupplierID          string  `json:"supplierId"`
	Quantity            float64 `json:"quantity"`
	UnitCostGBP         float64 `json:"unitCostGBP"`
}

// StockReceivedData is the payload for stock received events
type StockReceivedData struct {
	ProductID           string   `json:"productId"`
	RequestedQuantity   float64  `json:"requestedQuantity"`
	ReceivedQuantity    float64  `json:"receivedQuantity"`
	UnfulfilledQuantity float64  `json:"unfulfilledQuantity"`
	QuantityOnHand      float64  `json:"quantityOnHand"`
	AverageCostGBP      float64  `json:"averageCostGBP"`
	AffectedTransitIDs  []string `json:"affectedTransitIds"`
}

// BarcodeAddedData is the payload for barcode added events
type BarcodeAddedData struct {
	ProductID string `json:"productId"`
	Barcode   string `json:"barcode"`
}

// PurchaseOrderSavedData is the inbound procurement payload
type PurchaseOrderSavedData struct {
	PurchaseOrderID string                  `json:"purchaseOrderId"`
	SupplierID      string                  `json:"supplierId"`
	SupplierName    string                  `json:"supplierName,omitempty"`
	Reference       string                  `json:"reference,omitempty"`
	OrderedAt       *time.Time              `json:"orderedAt,omitempty"`
	Lines           []PurchaseOrderLineData `json:"lines"`
}

// PurchaseOrderLineData is one line of an inbound purchase order
type PurchaseOrderLineData struct {
	LineID      string  `json:"lineId,omitempty"`
	Description string  `json:"description"`
	SupplierSKU string  `json:"supplierSku,omitempty"`
	Quantity    float64 `json:"quantity"`
	UnitCostGBP float64 `json:"unitCostGBP"`
}
