package supplier

import (
	"context"
	"errors"
)

var (
	// Offer errors
	ErrOfferInvalidSKU         = errors.New("supplier: invalid internal SKU")
	ErrOfferInvalidSupplierID  = errors.New("supplier: invalid supplier ID")
	ErrOfferInvalidSupplierSKU = errors.New("supplier: invalid supplier SKU")
	ErrOfferNegativeCost       = errors.New("supplier: cost cannot be negative")
	ErrOfferNegativeStock      = errors.New("supplier: stock quantity cannot be negative")
	ErrOfferInvalidMOQ         = errors.New("supplier: MOQ must be at least 1")
	ErrOfferInvalidLeadTime    = errors.New("supplier: invalid lead time")
	ErrOfferNotFound           = errors.New("supplier: offer not found")
	ErrOfferAlreadyExists      = errors.New("supplier: offer already exists for supplier SKU")

	// Supplier errors
	ErrSupplierInvalidCode = errors.New("supplier: invalid supplier code")
	ErrSupplierInvalidName = errors.New("supplier: invalid supplier name")
	ErrSupplierInvalidType = errors.New("supplier: invalid adapter type")
	ErrSupplierNotFound    = errors.New("supplier: supplier not found")

	// Adapter errors
	ErrAdapterNotConfigured   = errors.New("supplier: adapter not configured")
	ErrAdapterUnavailable     = errors.New("supplier: adapter temporarily unavailable")
	ErrAdapterRequestFailed   = errors.New("supplier: adapter request failed")
	ErrAdapterInvalidResponse = errors.New("supplier: invalid adapter response")
	ErrAdapterRateLimited     = errors.New("supplier: adapter rate limited")
	ErrOrderNotFound          = errors.New("supplier: supplier order not found")
)

// IsTransientAdapterError reports whether an adapter error is worth retrying.
func IsTransientAdapterError(err error) bool {
	return errors.Is(err, ErrAdapterUnavailable) ||
		errors.Is(err, ErrAdapterRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}
