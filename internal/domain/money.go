package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// CostScale is the number of decimal places kept on unit and average costs
const CostScale = 4

// RoundCost rounds a cost to CostScale places, half away from zero
func RoundCost(v float64) float64 {
	return decimal.NewFromFloat(v).Round(CostScale).InexactFloat64()
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// IsValidQuantity reports whether v is usable as a received quantity
func IsValidQuantity(v float64) bool {
	return isFinite(v) && v > 0
}

// SanitizeQuantity maps anything but a finite positive number to zero
func SanitizeQuantity(v float64) float64 {
	if !IsValidQuantity(v) {
		return 0
	}
	return v
}

// SanitizeUnitCost maps anything but a finite non-negative number to zero
// and rounds the rest
func SanitizeUnitCost(v float64) float64 {
	if !isFinite(v) || v < 0 {
		return 0
	}
	return RoundCost(v)
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// WeightedAverageCost blends existing on-hand value with incoming value.
// A zero resulting quantity averages to zero.
func WeightedAverageCost(onHand, averageCost, received, incomingValue float64) float64 {
	newOnHand := dec(onHand).Add(dec(received))
	if newOnHand.IsZero() {
		return 0
	}
	total := dec(onHand).Mul(dec(averageCost)).Add(dec(incomingValue))
	return total.Div(newOnHand).Round(CostScale).InexactFloat64()
}
