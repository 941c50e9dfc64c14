package domain

import "errors"

// Validation errors
var (
	ErrInvalidQuantity         = errors.New("quantity must be a finite number greater than zero")
	ErrProductIDRequired       = errors.New("product id is required")
	ErrBarcodeRequired         = errors.New("barcode is required")
	ErrBarcodeTooLong          = errors.New("barcode exceeds maximum length")
	ErrSupplierIDRequired      = errors.New("supplier id is required")
	ErrPurchaseOrderIDRequired = errors.New("purchase order id is required")
)

// Lookup errors
var (
	ErrProductNotFound       = errors.New("product not found")
	ErrPurchaseOrderNotFound = errors.New("purchase order not found")
)

// ErrInsufficientTransit is returned when a product has nothing in transit to receive
var ErrInsufficientTransit = errors.New("no in-transit quantity available to receive")

// IsValidationError reports whether err is caused by malformed input
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidQuantity,
		ErrProductIDRequired,
		ErrBarcodeRequired,
		ErrBarcodeTooLong,
		ErrSupplierIDRequired,
		ErrPurchaseOrderIDRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFoundError reports whether err is caused by a missing entity
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrPurchaseOrderNotFound)
}

// IsInsufficientTransit reports whether err is an empty-transit receipt failure
func IsInsufficientTransit(err error) bool {
	return errors.Is(err, ErrInsufficientTransit)
}
