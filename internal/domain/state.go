package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// State is the full reconciliation dataset. Slices keep insertion order,
// which is the catalog scan order used for match tie-breaks.
type State struct {
	Suppliers        []*Supplier        `json:"suppliers"`
	PurchaseOrders   []*PurchaseOrder   `json:"purchaseOrders"`
	Products         []*Product         `json:"products"`
	InventoryRecords []*InventoryRecord `json:"inventoryRecords"`
	TransitRecords   []*TransitRecord   `json:"transitRecords"`
	Invoices         []*Invoice         `json:"invoices"`

	events []DomainEvent
}

// NewState returns an empty state
func NewState() *State {
	return &State{
		Suppliers:        []*Supplier{},
		PurchaseOrders:   []*PurchaseOrder{},
		Products:         []*Product{},
		InventoryRecords: []*InventoryRecord{},
		TransitRecords:   []*TransitRecord{},
		Invoices:         []*Invoice{},
	}
}

// Clone returns a deep copy without pending events. Operations mutate a
// clone so a failure leaves the loaded state untouched.
func (s *State) Clone() *State {
	c := NewState()
	for _, v := range s.Suppliers {
		sup := *v
		c.Suppliers = append(c.Suppliers, &sup)
	}
	for _, v := range s.PurchaseOrders {
		c.PurchaseOrders = append(c.PurchaseOrders, v.clone())
	}
	for _, v := range s.Products {
		c.Products = append(c.Products, v.clone())
	}
	for _, v := range s.InventoryRecords {
		rec := *v
		c.InventoryRecords = append(c.InventoryRecords, &rec)
	}
	for _, v := range s.TransitRecords {
		t := *v
		c.TransitRecords = append(c.TransitRecords, &t)
	}
	for _, v := range s.Invoices {
		inv := *v
		c.Invoices = append(c.Invoices, &inv)
	}
	return c
}

func (s *State) raise(event DomainEvent) {
	s.events = append(s.events, event)
}

// PullEvents returns and clears the events raised since the last pull
func (s *State) PullEvents() []DomainEvent {
	events := s.events
	s.events = nil
	return events
}

// FindProduct returns the product with id, or nil
func (s *State) FindProduct(id string) *Product {
	for _, p := range s.Products {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// FindInventory returns the inventory record for a product, or nil
func (s *State) FindInventory(productID string) *InventoryRecord {
	for _, r := range s.InventoryRecords {
		if r.ProductID == productID {
			return r
		}
	}
	return nil
}

// FindPurchaseOrder returns the purchase order with id, or nil
func (s *State) FindPurchaseOrder(id string) *PurchaseOrder {
	for _, po := range s.PurchaseOrders {
		if po.ID == id {
			return po
		}
	}
	return nil
}

// HasTransitForPurchaseOrder reports whether a purchase order has already
// produced transit records
func (s *State) HasTransitForPurchaseOrder(purchaseOrderID string) bool {
	for _, t := range s.TransitRecords {
		if t.PurchaseOrderID == purchaseOrderID {
			return true
		}
	}
	return false
}

// UnsyncedPurchaseOrders returns stored orders without transit records, in stored order
func (s *State) UnsyncedPurchaseOrders() []*PurchaseOrder {
	synced := make(map[string]bool, len(s.TransitRecords))
	for _, t := range s.TransitRecords {
		synced[t.PurchaseOrderID] = true
	}

	var out []*PurchaseOrder
	for _, po := range s.PurchaseOrders {
		if !synced[po.ID] {
			out = append(out, po)
		}
	}
	return out
}

// TransitForProduct returns a product's transit records oldest first.
// Records created at the same instant keep insertion order.
func (s *State) TransitForProduct(productID string, openOnly bool) []*TransitRecord {
	var out []*TransitRecord
	for _, t := range s.TransitRecords {
		if t.ProductID != productID {
			continue
		}
		if openOnly && !t.IsOpen() {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// UpsertSupplier records a supplier, filling in a name when one is supplied
func (s *State) UpsertSupplier(id, name string, now time.Time) (*Supplier, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrSupplierIDRequired
	}
	for _, sup := range s.Suppliers {
		if sup.ID == id {
			if name != "" && sup.Name != name {
				sup.Name = name
				sup.UpdatedAt = now
			}
			return sup, nil
		}
	}
	sup := &Supplier{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
	s.Suppliers = append(s.Suppliers, sup)
	return sup, nil
}

// SavePurchaseOrder inserts a purchase order or replaces the header and
// lines of an existing one. It reports whether the order was new.
func (s *State) SavePurchaseOrder(po PurchaseOrder, now time.Time) (*PurchaseOrder, bool, error) {
	po.ID = strings.TrimSpace(po.ID)
	if po.ID == "" {
		return nil, false, ErrPurchaseOrderIDRequired
	}
	if strings.TrimSpace(po.SupplierID) == "" {
		return nil, false, ErrSupplierIDRequired
	}
	po.Lines = append([]PurchaseOrderLine(nil), po.Lines...)
	for i, line := range po.Lines {
		if line.ID == "" {
			po.Lines[i].ID = fmt.Sprintf("%s-%d", po.ID, i+1)
		}
	}

	if existing := s.FindPurchaseOrder(po.ID); existing != nil {
		existing.SupplierID = po.SupplierID
		existing.Reference = po.Reference
		existing.OrderedAt = po.OrderedAt
		existing.Lines = po.Lines
		existing.UpdatedAt = now
		return existing, false, nil
	}

	po.CreatedAt = now
	po.UpdatedAt = now
	if po.Lines == nil {
		po.Lines = []PurchaseOrderLine{}
	}
	stored := po.clone()
	s.PurchaseOrders = append(s.PurchaseOrders, stored)
	return stored, true, nil
}

// SnapshotEntry is one product's reporting row
type SnapshotEntry struct {
	Product           Product          `json:"product"`
	Inventory         *InventoryRecord `json:"inventory"`
	QuantityInTransit float64          `json:"quantityInTransit"`
}

// Snapshot aggregates product, on-hand and in-transit quantities in catalog
// order. It does not mutate the state.
func (s *State) Snapshot() []SnapshotEntry {
	inTransit := make(map[string]float64, len(s.Products))
	for _, t := range s.TransitRecords {
		if t.IsOpen() {
			inTransit[t.ProductID] = dec(inTransit[t.ProductID]).Add(dec(t.RemainingQuantity)).InexactFloat64()
		}
	}

	entries := make([]SnapshotEntry, 0, len(s.Products))
	for _, p := range s.Products {
		entry := SnapshotEntry{
			Product:           *p.clone(),
			QuantityInTransit: inTransit[p.ID],
		}
		if rec := s.FindInventory(p.ID); rec != nil {
			r := *rec
			entry.Inventory = &r
		}
		entries = append(entries, entry)
	}
	return entries
}

// AddBarcode attaches a trimmed barcode to a product. It reports false
// without touching the product when the barcode is already attached.
func (s *State) AddBarcode(productID, barcode string, now time.Time) (bool, error) {
	if strings.TrimSpace(productID) == "" {
		return false, ErrProductIDRequired
	}
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return false, ErrBarcodeRequired
	}
	if utf8.RuneCountInString(barcode) > MaxBarcodeLength {
		return false, fmt.Errorf("%w: %d characters, limit %d", ErrBarcodeTooLong, utf8.RuneCountInString(barcode), MaxBarcodeLength)
	}

	product := s.FindProduct(productID)
	if product == nil {
		return false, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if product.HasBarcode(barcode) {
		return false, nil
	}

	product.Barcodes = append(product.Barcodes, barcode)
	product.UpdatedAt = now
	s.raise(&BarcodeAddedEvent{ProductID: product.ID, Barcode: barcode, AddedAt: now})
	return true, nil
}
