package application

import "github.com/wms-platform/reconciliation-service/internal/domain"

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string{}, s...)
}

// ToProductDTO converts a product to its response shape
func ToProductDTO(p *domain.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		SKU:         p.SKU,
		SupplierSKU: p.SupplierSKU,
		Barcodes:    nonNil(p.Barcodes),
		Aliases:     nonNil(p.Aliases),
		SupplierID:  p.SupplierID,
		Category:    p.Category,
		Tags:        nonNil(p.Tags),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// ToInventoryDTO converts an inventory record; nil stays nil
func ToInventoryDTO(r *domain.InventoryRecord) *InventoryDTO {
	if r == nil {
		return nil
	}
	return &InventoryDTO{
		ProductID:      r.ProductID,
		QuantityOnHand: r.QuantityOnHand,
		AverageCostGBP: r.AverageCostGBP,
		UpdatedAt:      r.UpdatedAt,
	}
}

// ToTransitDTO converts a transit record
func ToTransitDTO(t *domain.TransitRecord) TransitDTO {
	return TransitDTO{
		ID:                  t.ID,
		ProductID:           t.ProductID,
		PurchaseOrderID:     t.PurchaseOrderID,
		PurchaseOrderLineID: t.PurchaseOrderLineID,
		SupplierID:          t.SupplierID,
		Quantity:            t.Quantity,
		RemainingQuantity:   t.RemainingQuantity,
		UnitCostGBP:         t.UnitCostGBP,
		Status:              string(t.Status),
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

// ToSnapshotDTOs converts snapshot rows
func ToSnapshotDTOs(entries []domain.SnapshotEntry) []SnapshotEntryDTO {
	out := make([]SnapshotEntryDTO, len(entries))
	for i := range entries {
		out[i] = SnapshotEntryDTO{
			Product:           ToProductDTO(&entries[i].Product),
			Inventory:         ToInventoryDTO(entries[i].Inventory),
			QuantityInTransit: entries[i].QuantityInTransit,
		}
	}
	return out
}

// ToReceiveResultDTO converts a receipt result
func ToReceiveResultDTO(r *domain.ReceiveResult) *ReceiveResultDTO {
	return &ReceiveResultDTO{
		ProductID:           r.ProductID,
		RequestedQuantity:   r.RequestedQuantity,
		ReceivedQuantity:    r.ReceivedQuantity,
		UnfulfilledQuantity: r.UnfulfilledQuantity,
		QuantityOnHand:      r.QuantityOnHand,
		AverageCostGBP:      r.AverageCostGBP,
		AffectedTransitIDs:  nonNil(r.AffectedTransitIDs),
	}
}

// ToSyncResultDTO converts sync counters for a purchase order
func ToSyncResultDTO(purchaseOrderID string, r domain.SyncResult, alreadySynced bool) SyncResultDTO {
	return SyncResultDTO{
		PurchaseOrderID: purchaseOrderID,
		ProductsCreated: r.ProductsCreated,
		ProductsMatched: r.ProductsMatched,
		TransitCreated:  r.TransitCreated,
		AlreadySynced:   alreadySynced,
	}
}

// ToPurchaseOrderDTO converts a stored purchase order
func ToPurchaseOrderDTO(po *domain.PurchaseOrder, synced bool) PurchaseOrderDTO {
	lines := make([]PurchaseOrderLineDTO, len(po.Lines))
	for i, l := range po.Lines {
		lines[i] = PurchaseOrderLineDTO{
			ID:          l.ID,
			Description: l.Description,
			SupplierSKU: l.SupplierSKU,
			Quantity:    l.Quantity,
			UnitCostGBP: l.UnitCostGBP,
		}
	}
	return PurchaseOrderDTO{
		ID:         po.ID,
		SupplierID: po.SupplierID,
		Reference:  po.Reference,
		OrderedAt:  po.OrderedAt,
		Lines:      lines,
		Synced:     synced,
		CreatedAt:  po.CreatedAt,
		UpdatedAt:  po.UpdatedAt,
	}
}

func toDomainLines(lines []PurchaseOrderLineInput) []domain.PurchaseOrderLine {
	out := make([]domain.PurchaseOrderLine, len(lines))
	for i, l := range lines {
		out[i] = domain.PurchaseOrderLine{
			ID:          l.LineID,
			Description: l.Description,
			SupplierSKU: l.SupplierSKU,
			Quantity:    l.Quantity,
			UnitCostGBP: l.UnitCostGBP,
		}
	}
	return out
}
