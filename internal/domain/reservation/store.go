package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BoundedStore performs transactional check-and-reserve.
//
// ReserveWithinBound must, inside one atomic unit: lock the counter, re-read
// the committed total, apply Decide, and on success persist rec as committed.
// A denied decision leaves no writes behind. Lock timeouts, deadlocks and
// serialization failures are returned as ErrRetryable, never as a denial.
type BoundedStore interface {
	ReserveWithinBound(ctx context.Context, rec *Record) (*Decision, error)

	// CheckWithinBound computes the same decision without writing
	CheckWithinBound(ctx context.Context, kind Kind, resourceID string, amount decimal.Decimal) (*Decision, error)

	// CommittedTotal sums committed bounded records for a counter
	CommittedTotal(ctx context.Context, kind Kind, resourceID string) (decimal.Decimal, error)
}

// SequenceStore supports optimistic sequence assignment.
// Correctness comes from the uniqueness constraint on (kind, resourceID, amount).
type SequenceStore interface {
	// MaxSequence returns the highest sequence ever assigned (0 when none)
	MaxSequence(ctx context.Context, kind Kind, resourceID string) (int64, error)

	// InsertSequence persists rec as committed, or returns ErrDuplicateSequence
	InsertSequence(ctx context.Context, rec *Record) error
}

// HistoryFilter narrows a record history query. Zero fields are unconstrained;
// From is inclusive and To exclusive.
type HistoryFilter struct {
	State  State
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// Normalize applies the default page size and rejects unusable filters
func (f HistoryFilter) Normalize() (HistoryFilter, error) {
	switch f.State {
	case "", StateCommitted, StateReleased:
	default:
		return f, ErrInvalidHistoryFilter
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return f, ErrInvalidHistoryFilter
	}
	if f.Offset < 0 || f.Limit < 0 {
		return f, ErrInvalidHistoryFilter
	}
	if f.Limit == 0 {
		f.Limit = DefaultHistoryLimit
	}
	f.Limit = min(f.Limit, MaxHistoryLimit)
	return f, nil
}

// RecordStore reads and releases records of either strategy
type RecordStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// History returns one page of a counter's records, newest first, and the
	// number of records matching filter across all pages
	History(ctx context.Context, kind Kind, resourceID string, filter HistoryFilter) ([]Record, int64, error)

	// Release moves a committed record to released. For bounded stock records
	// the claimed units are returned to the offer in the same atomic unit.
	Release(ctx context.Context, id uuid.UUID) (*Record, error)
}

// Store is the full ledger persistence port
type Store interface {
	BoundedStore
	SequenceStore
	RecordStore
}

// BoundRepository manages configured counter limits
type BoundRepository interface {
	FindBound(ctx context.Context, kind Kind, resourceID string) (*Bound, error)
	SetLimit(ctx context.Context, kind Kind, resourceID string, limit decimal.Decimal) error
	SetBlocked(ctx context.Context, kind Kind, resourceID string, blocked bool) error
}
