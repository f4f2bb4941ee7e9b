package reservation

import (
	"errors"
	"fmt"

	"github.com/printhub/fulfillment/internal/domain/shared"
)

var (
	ErrInvalidKind       = errors.New("reservation: invalid resource kind")
	ErrInvalidResourceID = errors.New("reservation: invalid resource ID")
	ErrInvalidAmount     = errors.New("reservation: amount must be positive")
	ErrInvalidTransition = errors.New("reservation: invalid state transition")
	ErrRecordNotFound    = errors.New("reservation: record not found")
	ErrUnknownResource   = errors.New("reservation: unknown resource")

	ErrInvalidHistoryFilter = errors.New("reservation: invalid history filter")

	// ErrDuplicateSequence is returned by a SequenceStore when another writer
	// already holds the candidate number.
	ErrDuplicateSequence = errors.New("reservation: sequence number already taken")
)

var (
	// ErrRetryable marks transient store failures (lock timeout, deadlock,
	// serialization failure). Callers may retry after re-validating.
	ErrRetryable = fmt.Errorf("reservation: transient store failure: %w", shared.ErrConcurrencyConflict)

	// ErrConcurrencyExhausted is returned when sequence assignment runs out of attempts
	ErrConcurrencyExhausted = fmt.Errorf("reservation: sequence assignment retries exhausted: %w", shared.ErrConcurrencyConflict)
)

// IsValidationError reports whether err is an input problem rejected before any write
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrInvalidResourceID) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnknownResource) ||
		errors.Is(err, ErrInvalidHistoryFilter)
}
