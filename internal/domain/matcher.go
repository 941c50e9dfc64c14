package domain

import (
	"strings"
	"time"

	"github.com/wms-platform/reconciliation-service/internal/matching"
)

// MatchResult is the outcome of resolving one purchase-order line
type MatchResult struct {
	Product *Product
	Kind    MatchKind
	Score   float64
}

// ProductMatcher resolves free-text purchase-order lines to catalog products
type ProductMatcher struct {
	normalizer *matching.Normalizer
	threshold  float64
}

// NewProductMatcher creates a matcher from matching options
func NewProductMatcher(opts matching.Options) *ProductMatcher {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = matching.DefaultThreshold
	}
	return &ProductMatcher{
		normalizer: matching.NewNormalizer(opts),
		threshold:  threshold,
	}
}

// Threshold returns the minimum accepted fuzzy score
func (m *ProductMatcher) Threshold() float64 {
	return m.threshold
}

// FindExact returns the first product whose SKU, supplier SKU or any barcode
// equals sku, ignoring case
func (m *ProductMatcher) FindExact(products []*Product, sku string) *Product {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil
	}
	for _, p := range products {
		if equalKey(p.SKU, sku) || equalKey(p.SupplierSKU, sku) {
			return p
		}
		for _, b := range p.Barcodes {
			if equalKey(b, sku) {
				return p
			}
		}
	}
	return nil
}

func equalKey(stored, sku string) bool {
	return stored != "" && strings.EqualFold(strings.TrimSpace(stored), sku)
}

// FindFuzzy returns the product whose name or alias best matches the
// description. Ties keep the earlier product. Scores below the threshold
// yield nil.
func (m *ProductMatcher) FindFuzzy(products []*Product, description string) (*Product, float64) {
	tokens := m.normalizer.Tokens(description)
	if len(tokens) == 0 {
		return nil, 0
	}

	var best *Product
	bestScore := 0.0
	for _, p := range products {
		score := matching.Jaccard(tokens, m.normalizer.Tokens(p.Name))
		for _, alias := range p.Aliases {
			if s := matching.Jaccard(tokens, m.normalizer.Tokens(alias)); s > score {
				score = s
			}
		}
		if score > bestScore {
			best, bestScore = p, score
		}
	}

	if best == nil || bestScore < m.threshold {
		return nil, bestScore
	}
	return best, bestScore
}

// MatchOrCreate resolves a line to a product in s, creating one when nothing
// matches. A matched product learns the description as an alias and adopts
// the supplier if it has none.
func (m *ProductMatcher) MatchOrCreate(s *State, description, supplierSKU, supplierID string, now time.Time) MatchResult {
	if p := m.FindExact(s.Products, supplierSKU); p != nil {
		learn(p, description, supplierID, now)
		return MatchResult{Product: p, Kind: MatchExact, Score: 1}
	}

	if p, score := m.FindFuzzy(s.Products, description); p != nil {
		learn(p, description, supplierID, now)
		return MatchResult{Product: p, Kind: MatchFuzzy, Score: score}
	}

	sku := strings.TrimSpace(supplierSKU)
	p := &Product{
		ID:          NewID(),
		Name:        strings.TrimSpace(description),
		SKU:         sku,
		SupplierSKU: sku,
		Barcodes:    []string{},
		Aliases:     []string{description},
		SupplierID:  supplierID,
		Tags:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.Products = append(s.Products, p)
	return MatchResult{Product: p, Kind: MatchCreated}
}

func learn(p *Product, description, supplierID string, now time.Time) {
	if !p.HasAlias(description) {
		p.Aliases = append(p.Aliases, description)
	}
	if p.SupplierID == "" && supplierID != "" {
		p.SupplierID = supplierID
	}
	p.UpdatedAt = now
}
