package routing

import (
	"errors"
	"fmt"
)

// Reason explains why a line could not be routed
type Reason string

const (
	ReasonNoSupplierFound      Reason = "NO_SUPPLIER_FOUND"
	ReasonInsufficientStock    Reason = "INSUFFICIENT_STOCK"
	ReasonBelowMOQ             Reason = "BELOW_MOQ"
	ReasonReservationRetryable Reason = "RESERVATION_RETRYABLE"
)

// Message returns a human-readable description of the reason
func (r Reason) Message() string {
	switch r {
	case ReasonNoSupplierFound:
		return "No active supplier offers this SKU"
	case ReasonInsufficientStock:
		return "No available supplier with sufficient stock"
	case ReasonBelowMOQ:
		return "Quantity is below every eligible supplier's minimum order quantity"
	case ReasonReservationRetryable:
		return "Stock reservation hit a transient conflict; retry the order"
	default:
		return string(r)
	}
}

var (
	ErrNoSupplierFound   = errors.New("routing: no supplier found")
	ErrInsufficientStock = errors.New("routing: insufficient stock")
	ErrBelowMOQ          = errors.New("routing: below minimum order quantity")
	ErrInvalidLine       = errors.New("routing: invalid order line")
)

var reasonErrors = map[Reason]error{
	ReasonNoSupplierFound:   ErrNoSupplierFound,
	ReasonInsufficientStock: ErrInsufficientStock,
	ReasonBelowMOQ:          ErrBelowMOQ,
}

// Reject builds the error returned when hard filters eliminate every offer
func Reject(reason Reason, sku string, quantity int) error {
	base, ok := reasonErrors[reason]
	if !ok {
		base = fmt.Errorf("routing: %s", reason)
	}
	return fmt.Errorf("%w: sku %s quantity %d", base, sku, quantity)
}

// ReasonOf extracts the business reason from a rejection.
// It returns false for infrastructure errors, which must propagate.
func ReasonOf(err error) (Reason, bool) {
	for reason, base := range reasonErrors {
		if errors.Is(err, base) {
			return reason, true
		}
	}
	return "", false
}
