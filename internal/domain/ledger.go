package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SyncLine is one purchase-order line offered for transit creation
type SyncLine struct {
	LineID      string
	Description string
	SupplierSKU string
	Quantity    float64
	UnitCostGBP float64
}

// SyncResult counts the effects of one purchase-order sync
type SyncResult struct {
	ProductsCreated int `json:"productsCreated"`
	ProductsMatched int `json:"productsMatched"`
	TransitCreated  int `json:"transitCreated"`
}

// Add accumulates another result
func (r *SyncResult) Add(o SyncResult) {
	r.ProductsCreated += o.ProductsCreated
	r.ProductsMatched += o.ProductsMatched
	r.TransitCreated += o.TransitCreated
}

// SyncPurchaseOrder resolves every line to a product and opens a transit
// record for each line with a positive quantity. Malformed quantities and
// costs are treated as zero. Running it twice for the same order opens
// transit twice; callers check HasTransitForPurchaseOrder first.
func (s *State) SyncPurchaseOrder(m *ProductMatcher, supplierID, purchaseOrderID string, lines []SyncLine, now time.Time) SyncResult {
	var result SyncResult

	for _, line := range lines {
		if strings.TrimSpace(line.Description) == "" {
			continue
		}

		match := m.MatchOrCreate(s, line.Description, line.SupplierSKU, supplierID, now)
		product := match.Product
		if match.Kind == MatchCreated {
			result.ProductsCreated++
			s.raise(&ProductCreatedEvent{
				ProductID:       product.ID,
				Name:            product.Name,
				SKU:             product.SKU,
				SupplierID:      supplierID,
				Description:     line.Description,
				PurchaseOrderID: purchaseOrderID,
				CreatedAt:       now,
			})
		} else {
			result.ProductsMatched++
			s.raise(&ProductMatchedEvent{
				ProductID:       product.ID,
				Name:            product.Name,
				Description:     line.Description,
				Kind:            match.Kind,
				Score:           match.Score,
				PurchaseOrderID: purchaseOrderID,
				MatchedAt:       now,
			})
		}

		quantity := SanitizeQuantity(line.Quantity)
		if quantity <= 0 {
			continue
		}
		unitCost := SanitizeUnitCost(line.UnitCostGBP)

		transit := &TransitRecord{
			ID:                  NewID(),
			ProductID:           product.ID,
			PurchaseOrderID:     purchaseOrderID,
			PurchaseOrderLineID: line.LineID,
			SupplierID:          supplierID,
			Quantity:            quantity,
			RemainingQuantity:   quantity,
			UnitCostGBP:         unitCost,
			Status:              TransitInTransit,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		s.TransitRecords = append(s.TransitRecords, transit)
		result.TransitCreated++
		s.raise(&TransitCreatedEvent{
			TransitID:           transit.ID,
			ProductID:           product.ID,
			PurchaseOrderID:     purchaseOrderID,
			PurchaseOrderLineID: line.LineID,
			SupplierID:          supplierID,
			Quantity:            quantity,
			UnitCostGBP:         unitCost,
			CreatedAt:           now,
		})
	}

	return result
}

// ReceiveResult reports a receipt
type ReceiveResult struct {
	ProductID           string   `json:"productId"`
	RequestedQuantity   float64  `json:"requestedQuantity"`
	ReceivedQuantity    float64  `json:"receivedQuantity"`
	UnfulfilledQuantity float64  `json:"unfulfilledQuantity"`
	QuantityOnHand      float64  `json:"quantityOnHand"`
	AverageCostGBP      float64  `json:"averageCostGBP"`
	AffectedTransitIDs  []string `json:"affectedTransitIds"`
}

// ReceiveStock draws quantity from the product's open transit records,
// oldest first, and folds the received value into the inventory record.
// A request larger than what is in transit is fulfilled up to availability
// and the shortfall is reported.
func (s *State) ReceiveStock(productID string, quantity float64, now time.Time) (*ReceiveResult, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, ErrProductIDRequired
	}
	if !IsValidQuantity(quantity) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuantity, quantity)
	}
	if s.FindProduct(productID) == nil {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	open := s.TransitForProduct(productID, true)
	if len(open) == 0 {
		return nil, fmt.Errorf("%w: product %s", ErrInsufficientTransit, productID)
	}

	left := dec(quantity)
	received := decimal.Zero
	incomingValue := decimal.Zero
	affected := make([]string, 0, len(open))

	for _, t := range open {
		if !left.IsPositive() {
			break
		}
		take := decimal.Min(left, dec(t.RemainingQuantity))
		if !take.IsPositive() {
			continue
		}

		t.RemainingQuantity = dec(t.RemainingQuantity).Sub(take).InexactFloat64()
		t.Status = StatusFor(t.Quantity, t.RemainingQuantity)
		t.UpdatedAt = now
		affected = append(affected, t.ID)

		left = left.Sub(take)
		received = received.Add(take)
		incomingValue = incomingValue.Add(take.Mul(dec(t.UnitCostGBP)))
	}

	if !received.IsPositive() {
		return nil, fmt.Errorf("%w: product %s", ErrInsufficientTransit, productID)
	}

	record := s.FindInventory(productID)
	if record == nil {
		record = &InventoryRecord{ProductID: productID}
		s.InventoryRecords = append(s.InventoryRecords, record)
	}
	record.ApplyReceipt(received.InexactFloat64(), incomingValue.InexactFloat64(), now)

	result := &ReceiveResult{
		ProductID:           productID,
		RequestedQuantity:   quantity,
		ReceivedQuantity:    received.InexactFloat64(),
		UnfulfilledQuantity: dec(quantity).Sub(received).InexactFloat64(),
		QuantityOnHand:      record.QuantityOnHand,
		AverageCostGBP:      record.AverageCostGBP,
		AffectedTransitIDs:  affected,
	}

	s.raise(&StockReceivedEvent{
		ProductID:           productID,
		RequestedQuantity:   result.RequestedQuantity,
		ReceivedQuantity:    result.ReceivedQuantity,
		UnfulfilledQuantity: result.UnfulfilledQuantity,
		QuantityOnHand:      result.QuantityOnHand,
		AverageCostGBP:      result.AverageCostGBP,
		AffectedTransitIDs:  affected,
		ReceivedAt:          now,
	})
	return result, nil
}
