package domain

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reconciliation-service/internal/matching"
)

var (
	t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
	t2 = t0.Add(2 * time.Hour)
)

func newMatcher() *ProductMatcher {
	return NewProductMatcher(matching.DefaultOptions())
}

// addProduct appends a product; the first optional value is its SKU, the rest aliases
func addProduct(s *State, name string, skuAndAliases ...string) *Product {
	p := &Product{ID: NewID(), Name: name, Aliases: []string{}, Barcodes: []string{}, CreatedAt: t0, UpdatedAt: t0}
	if len(skuAndAliases) > 0 {
		p.SKU = skuAndAliases[0]
		p.Aliases = append(p.Aliases, skuAndAliases[1:]...)
	}
	s.Products = append(s.Products, p)
	return p
}

func addTransit(s *State, productID string, qty, cost float64, createdAt time.Time) *TransitRecord {
	tr := &TransitRecord{
		ID: NewID(), ProductID: productID, PurchaseOrderID: "po-1", SupplierID: "sup-1",
		Quantity: qty, RemainingQuantity: qty, UnitCostGBP: cost,
		Status: TransitInTransit, CreatedAt: createdAt, UpdatedAt: createdAt,
	}
	s.TransitRecords = append(s.TransitRecords, tr)
	return tr
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, TransitInTransit, StatusFor(5, 5))
	assert.Equal(t, TransitPartiallyReceived, StatusFor(5, 2))
	assert.Equal(t, TransitReceived, StatusFor(5, 0))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, 0.0, SanitizeQuantity(-1))
	assert.Equal(t, 0.0, SanitizeQuantity(0))
	assert.Equal(t, 0.0, SanitizeQuantity(math.NaN()))
	assert.Equal(t, 0.0, SanitizeQuantity(math.Inf(1)))
	assert.Equal(t, 2.5, SanitizeQuantity(2.5))

	assert.Equal(t, 0.0, SanitizeUnitCost(-0.01))
	assert.Equal(t, 0.0, SanitizeUnitCost(math.Inf(1)))
	assert.Equal(t, 0.0, SanitizeUnitCost(0))
	assert.Equal(t, 1.2346, SanitizeUnitCost(1.23456))
}

func TestProductMatcher_ExactBeatsFuzzy(t *testing.T) {
	s := NewState()
	fuzzyTwin := addProduct(s, "Organic Tomato Passata")
	skuHolder := addProduct(s, "Something Unrelated", "SKU-42")

	res := newMatcher().MatchOrCreate(s, "Organic Tomato Passata", " sku-42 ", "sup-1", t1)

	assert.Equal(t, MatchExact, res.Kind)
	assert.Same(t, skuHolder, res.Product)
	assert.Contains(t, skuHolder.Aliases, "Organic Tomato Passata")
	assert.Equal(t, "sup-1", skuHolder.SupplierID)
	assert.Equal(t, t1, skuHolder.UpdatedAt)
	assert.Equal(t, t0, fuzzyTwin.UpdatedAt)
}

func TestProductMatcher_ExactMatchesBarcodeAndSupplierSKU(t *testing.T) {
	s := NewState()
	p := addProduct(s, "Flour")
	p.Barcodes = []string{"5000157024671"}
	q := addProduct(s, "Sugar")
	q.SupplierSKU = "SUG-1"

	m := newMatcher()
	assert.Same(t, p, m.FindExact(s.Products, "5000157024671"))
	assert.Same(t, q, m.FindExact(s.Products, "sug-1"))
	assert.Nil(t, m.FindExact(s.Products, "   "))
}

func TestProductMatcher_FuzzyThreshold(t *testing.T) {
	s := NewState()
	p := addProduct(s, "Basmati Rice")
	m := newMatcher()

	// {basmati, rice} vs {basmati, rice, long, grain}: 2/4
	res := m.MatchOrCreate(s, "Basmati Rice Long Grain", "", "", t1)
	assert.Equal(t, MatchFuzzy, res.Kind)
	assert.Same(t, p, res.Product)
	assert.Equal(t, 0.5, res.Score)

	// {basmati, rice} vs {basmati, brown, wholegrain}: 1/4
	other := NewState()
	addProduct(other, "Basmati Rice")
	res = m.MatchOrCreate(other, "Basmati Brown Wholegrain", "", "", t1)
	assert.Equal(t, MatchCreated, res.Kind)
	assert.Len(t, other.Products, 2)
}

func TestProductMatcher_FuzzyMatchesNonLatinNames(t *testing.T) {
	s := NewState()
	buckwheat := addProduct(s, "Гречка ядрица")
	addProduct(s, "Smørrebrød Rye Bread")
	m := newMatcher()

	// {гречка, ядрица} vs {гречка, ядрица, 900г}: 2/3
	res := m.MatchOrCreate(s, "Гречка ядрица 900г", "", "", t1)
	assert.Equal(t, MatchFuzzy, res.Kind)
	assert.Same(t, buckwheat, res.Product)
	assert.InDelta(t, 2.0/3.0, res.Score, 1e-9)

	res = m.MatchOrCreate(s, "Молоко", "", "", t1)
	assert.Equal(t, MatchCreated, res.Kind)
	assert.Len(t, s.Products, 3)
}

func TestProductMatcher_FuzzyUsesAliasesAndFirstWinsTies(t *testing.T) {
	s := NewState()
	first := addProduct(s, "Cheddar Mature")
	addProduct(s, "Cheddar Mature")
	aliased := addProduct(s, "Cheese Block", "", "Red Leicester Wedge")

	m := newMatcher()
	p, score := m.FindFuzzy(s.Products, "Cheddar Mature")
	assert.Same(t, first, p)
	assert.Equal(t, 1.0, score)

	p, _ = m.FindFuzzy(s.Products, "red leicester wedge")
	assert.Same(t, aliased, p)
}

func TestProductMatcher_CreateSetsFields(t *testing.T) {
	s := NewState()
	res := newMatcher().MatchOrCreate(s, "  Jasmine Tea  ", " JT-9 ", "sup-7", t1)

	require.Equal(t, MatchCreated, res.Kind)
	p := res.Product
	assert.Equal(t, "Jasmine Tea", p.Name)
	assert.Equal(t, "JT-9", p.SKU)
	assert.Equal(t, "JT-9", p.SupplierSKU)
	assert.Equal(t, []string{"  Jasmine Tea  "}, p.Aliases)
	assert.Empty(t, p.Barcodes)
	assert.Equal(t, "sup-7", p.SupplierID)
	assert.Equal(t, t1, p.CreatedAt)
	assert.Len(t, s.Products, 1)
}

func TestProductMatcher_AliasNotDuplicatedAndSupplierKept(t *testing.T) {
	s := NewState()
	p := addProduct(s, "Oat Milk", "", "Oat Milk")
	p.SupplierID = "sup-old"

	newMatcher().MatchOrCreate(s, "Oat Milk", "", "sup-new", t1)
	assert.Equal(t, []string{"Oat Milk"}, p.Aliases)
	assert.Equal(t, "sup-old", p.SupplierID)
}

func TestSyncPurchaseOrder(t *testing.T) {
	s := NewState()
	existing := addProduct(s, "Extra Virgin Olive Oil", "EVOO-1")

	lines := []SyncLine{
		{LineID: "l1", Description: "Olive oil extra virgin", SupplierSKU: "evoo-1", Quantity: 12, UnitCostGBP: 4.56789},
		{LineID: "l2", Description: "   ", Quantity: 3, UnitCostGBP: 1},
		{LineID: "l3", Description: "Sea Salt Flakes", Quantity: 0, UnitCostGBP: 2},
		{LineID: "l4", Description: "Black Peppercorns", Quantity: math.NaN(), UnitCostGBP: 2},
		{LineID: "l5", Description: "Smoked Paprika", Quantity: 4, UnitCostGBP: -3},
	}

	res := s.SyncPurchaseOrder(newMatcher(), "sup-1", "po-9", lines, t1)

	assert.Equal(t, SyncResult{ProductsCreated: 3, ProductsMatched: 1, TransitCreated: 2}, res)
	assert.Len(t, s.Products, 4)
	require.Len(t, s.TransitRecords, 2)

	first := s.TransitRecords[0]
	assert.Equal(t, existing.ID, first.ProductID)
	assert.Equal(t, "po-9", first.PurchaseOrderID)
	assert.Equal(t, "l1", first.PurchaseOrderLineID)
	assert.Equal(t, 12.0, first.Quantity)
	assert.Equal(t, 12.0, first.RemainingQuantity)
	assert.Equal(t, 4.5679, first.UnitCostGBP)
	assert.Equal(t, TransitInTransit, first.Status)

	assert.Equal(t, 0.0, s.TransitRecords[1].UnitCostGBP)
	assert.True(t, s.HasTransitForPurchaseOrder("po-9"))

	events := s.PullEvents()
	assert.Len(t, events, 6)
	assert.Empty(t, s.PullEvents())
}

func TestSyncPurchaseOrder_IsNotIdempotent(t *testing.T) {
	s := NewState()
	lines := []SyncLine{{Description: "Yeast Sachet Dried", Quantity: 2, UnitCostGBP: 1}}
	m := newMatcher()

	s.SyncPurchaseOrder(m, "sup-1", "po-1", lines, t0)
	second := s.SyncPurchaseOrder(m, "sup-1", "po-1", lines, t1)

	assert.Equal(t, SyncResult{ProductsMatched: 1, TransitCreated: 1}, second)
	assert.Len(t, s.TransitRecords, 2)
}

func TestReceiveStock_FIFOAndWeightedAverage(t *testing.T) {
	s := NewState()
	p := addProduct(s, "Arborio Rice")
	// Inserted newest first; FIFO follows createdAt
	newer := addTransit(s, p.ID, 3, 3.0, t1)
	older := addTransit(s, p.ID, 5, 2.0, t0)

	res, err := s.ReceiveStock(p.ID, 6, t2)
	require.NoError(t, err)

	assert.Equal(t, 6.0, res.ReceivedQuantity)
	assert.Equal(t, 0.0, res.UnfulfilledQuantity)
	assert.Equal(t, 6.0, res.QuantityOnHand)
	assert.Equal(t, 2.1667, res.AverageCostGBP)
	assert.Equal(t, []string{older.ID, newer.ID}, res.AffectedTransitIDs)

	assert.Equal(t, 0.0, older.RemainingQuantity)
	assert.Equal(t, TransitReceived, older.Status)
	assert.Equal(t, 2.0, newer.RemainingQuantity)
	assert.Equal(t, TransitPartiallyReceived, newer.Status)
	assert.Equal(t, t2, newer.UpdatedAt)

	res, err = s.ReceiveStock(p.ID, 2, t2)
	require.NoError(t, err)
	assert.Equal(t, 8.0, res.QuantityOnHand)
	assert.Equal(t, 2.375, res.AverageCostGBP)
	assert.Equal(t, []string{newer.ID}, res.AffectedTransitIDs)
	assert.Equal(t, TransitReceived, newer.Status)
}

func TestReceiveStock_ReceiptsAcrossLayers(t *testing.T) {
	s := NewState()
	p := addProduct(s, "Jasmine Rice")
	addTransit(s, p.ID, 5, 2.0, t0)
	addTransit(s, p.ID, 3, 3.0, t1)

	res, err := s.ReceiveStock(p.ID, 5, t2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.AverageCostGBP)

	res, err = s.ReceiveStock(p.ID, 3, t2)
	require.NoError(t, err)
	assert.Equal(t, 8.0, res.QuantityOnHand)
	assert.Equal(t, 2.375, res.AverageCostGBP)
	assert.Empty(t, s.TransitForProduct(p.ID, true))
}

func TestReceiveStock_FractionalQuantitiesAreExact(t *testing.T) {
	s := NewState()
	p := addProduct(s, "Saffron Threads")
	tr := addTransit(s, p.ID, 0.3, 10, t0)

	_, err := s.ReceiveStock(p.ID, 0.1, t1)
	require.NoError(t, err)
	res, err := s.ReceiveStock(p.ID, 0.2, t2)
	require.NoError(t, err)

	assert.Equal(t, 0.3, res.QuantityOnHand)
	assert.Equal(t, 0.0, res.UnfulfilledQuantity)
	assert.Equal(t, 0.0, tr.RemainingQuantity)
	assert.Equal(t, TransitReceived, tr.Status)
}

func TestReceiveStock_PartialFulfilment(t *testing.T) {
	s := NewState()
	p := addProduct(s, "Capers")
	addTransit(s, p.ID, 2.5, 1.1, t0)

	res, err := s.ReceiveStock(p.ID, 4, t1)
	require.NoError(t, err)
	assert.Equal(t, 2.5, res.ReceivedQuantity)
	assert.Equal(t, 1.5, res.UnfulfilledQuantity)
	assert.Equal(t, 1.1, res.AverageCostGBP)
}

func TestReceiveStock_TiesKeepInsertionOrder(t *testing.T) {
	s := NewState()
	p := addProduct(s, "Lentils")
	a := addTransit(s, p.ID, 1, 1, t0)
	b := addTransit(s, p.ID, 1, 5, t0)

	res, err := s.ReceiveStock(p.ID, 1, t1)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, res.AffectedTransitIDs)
	assert.Equal(t, 1.0, res.AverageCostGBP)
	assert.Equal(t, TransitInTransit, b.Status)
}

func TestReceiveStock_Errors(t *testing.T) {
	s := NewState()
	p := addProduct(s, "Chickpeas")
	drained := addTransit(s, p.ID, 1, 1, t0)
	drained.RemainingQuantity = 0
	drained.Status = TransitReceived

	tests := []struct {
		name      string
		productID string
		quantity  float64
		expected  error
	}{
		{"empty product id", " ", 1, ErrProductIDRequired},
		{"zero quantity", p.ID, 0, ErrInvalidQuantity},
		{"negative quantity", p.ID, -2, ErrInvalidQuantity},
		{"nan quantity", p.ID, math.NaN(), ErrInvalidQuantity},
		{"infinite quantity", p.ID, math.Inf(1), ErrInvalidQuantity},
		{"unknown product", "missing", 1, ErrProductNotFound},
		{"nothing in transit", p.ID, 1, ErrInsufficientTransit},
		{"nothing in transit large request", p.ID, 1000, ErrInsufficientTransit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ReceiveStock(tt.productID, tt.quantity, t1)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
	assert.Empty(t, s.InventoryRecords)
	assert.Empty(t, s.PullEvents())
}

func TestSnapshot(t *testing.T) {
	s := NewState()
	a := addProduct(s, "Almonds")
	b := addProduct(s, "Walnuts")
	addTransit(s, a.ID, 4, 2, t0)
	addTransit(s, a.ID, 6, 2, t1)
	_, err := s.ReceiveStock(a.ID, 5, t2)
	require.NoError(t, err)

	first := s.Snapshot()
	second := s.Snapshot()
	assert.Equal(t, first, second)

	require.Len(t, first, 2)
	assert.Equal(t, a.ID, first[0].Product.ID)
	assert.Equal(t, 5.0, first[0].QuantityInTransit)
	require.NotNil(t, first[0].Inventory)
	assert.Equal(t, 5.0, first[0].Inventory.QuantityOnHand)

	assert.Equal(t, b.ID, first[1].Product.ID)
	assert.Nil(t, first[1].Inventory)
	assert.Equal(t, 0.0, first[1].QuantityInTransit)

	first[0].Product.Aliases = append(first[0].Product.Aliases, "mutated")
	assert.NotContains(t, a.Aliases, "mutated")
}

func TestAddBarcode(t *testing.T) {
	s := NewState()
	p := addProduct(s, "Honey")

	added, err := s.AddBarcode(p.ID, "  0123456789012 ", t1)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"0123456789012"}, p.Barcodes)
	assert.Equal(t, t1, p.UpdatedAt)

	added, err = s.AddBarcode(p.ID, "0123456789012", t2)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, []string{"0123456789012"}, p.Barcodes)
	assert.Equal(t, t1, p.UpdatedAt)
	assert.Len(t, s.PullEvents(), 1)

	_, err = s.AddBarcode(p.ID, "   ", t2)
	assert.ErrorIs(t, err, ErrBarcodeRequired)
	_, err = s.AddBarcode(p.ID, strings.Repeat("9", MaxBarcodeLength+1), t2)
	assert.ErrorIs(t, err, ErrBarcodeTooLong)
	_, err = s.AddBarcode(p.ID, strings.Repeat("9", MaxBarcodeLength), t2)
	assert.NoError(t, err)
	_, err = s.AddBarcode("", "1", t2)
	assert.ErrorIs(t, err, ErrProductIDRequired)
	_, err = s.AddBarcode("missing", "1", t2)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestClone_IsDeep(t *testing.T) {
	s := NewState()
	p := addProduct(s, "Butter", "", "Salted Butter")
	tr := addTransit(s, p.ID, 2, 1, t0)
	_, _, err := s.SavePurchaseOrder(PurchaseOrder{ID: "po-1", SupplierID: "sup-1", Lines: []PurchaseOrderLine{{Description: "Butter"}}}, t0)
	require.NoError(t, err)

	c := s.Clone()
	c.Products[0].Aliases[0] = "changed"
	c.TransitRecords[0].RemainingQuantity = 0
	c.PurchaseOrders[0].Lines[0].Description = "changed"

	assert.Equal(t, "Salted Butter", p.Aliases[0])
	assert.Equal(t, 2.0, tr.RemainingQuantity)
	assert.Equal(t, "Butter", s.PurchaseOrders[0].Lines[0].Description)
}

func TestSavePurchaseOrder(t *testing.T) {
	s := NewState()

	po, created, err := s.SavePurchaseOrder(PurchaseOrder{ID: "po-1", SupplierID: "sup-1", Lines: []PurchaseOrderLine{{Description: "A"}, {ID: "x", Description: "B"}}}, t0)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "po-1-1", po.Lines[0].ID)
	assert.Equal(t, "x", po.Lines[1].ID)

	_, created, err = s.SavePurchaseOrder(PurchaseOrder{ID: "po-1", SupplierID: "sup-1", Reference: "REF"}, t1)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, s.PurchaseOrders, 1)
	assert.Equal(t, "REF", s.PurchaseOrders[0].Reference)
	assert.Equal(t, t0, s.PurchaseOrders[0].CreatedAt)

	_, _, err = s.SavePurchaseOrder(PurchaseOrder{SupplierID: "sup-1"}, t1)
	assert.ErrorIs(t, err, ErrPurchaseOrderIDRequired)
	_, _, err = s.SavePurchaseOrder(PurchaseOrder{ID: "po-2"}, t1)
	assert.ErrorIs(t, err, ErrSupplierIDRequired)

	assert.Len(t, s.UnsyncedPurchaseOrders(), 1)
}

func TestUpsertSupplier(t *testing.T) {
	s := NewState()
	_, err := s.UpsertSupplier("sup-1", "", t0)
	require.NoError(t, err)
	sup, err := s.UpsertSupplier("sup-1", "Acme Foods", t1)
	require.NoError(t, err)
	assert.Equal(t, "Acme Foods", sup.Name)
	assert.Len(t, s.Suppliers, 1)

	_, err = s.UpsertSupplier(" ", "x", t1)
	assert.ErrorIs(t, err, ErrSupplierIDRequired)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsValidationError(ErrBarcodeTooLong))
	assert.True(t, IsNotFoundError(ErrProductNotFound))
	assert.False(t, IsValidationError(ErrInsufficientTransit))
}
