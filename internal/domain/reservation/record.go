package reservation

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind names the counter a record claims against
type Kind string

const (
	// KindCredit counts a customer's outstanding debt against the credit limit
	KindCredit Kind = "credit"
	// KindStock counts units taken from a supplier offer's stock
	KindStock Kind = "stock"
	// KindAssetVersion assigns version numbers to design assets
	KindAssetVersion Kind = "asset_version"
)

// Validate checks the kind is a usable identifier
func (k Kind) Validate() error {
	s := string(k)
	if s == "" || len(s) > 50 || strings.TrimSpace(s) != s {
		return ErrInvalidKind
	}
	return nil
}

// Strategy is the contention-control strategy a record was written under
type Strategy string

const (
	StrategyBounded  Strategy = "bounded"
	StrategySequence Strategy = "sequence"
)

// State is the lifecycle state of a record
type State string

const (
	StateReserved  State = "reserved"
	StateCommitted State = "committed"
	StateReleased  State = "released"
	StateFailed    State = "failed"
)

// Record is one claim against a shared counter.
// For StrategySequence the Amount is the assigned sequence number itself.
type Record struct {
	ID         uuid.UUID
	Kind       Kind
	ResourceID string
	Strategy   Strategy
	Amount     decimal.Decimal
	State      State
	Reference  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ReleasedAt *time.Time
}

func newRecord(kind Kind, resourceID string, strategy Strategy, amount decimal.Decimal, reference string) (*Record, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return nil, ErrInvalidResourceID
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	now := time.Now()
	return &Record{
		ID:         uuid.New(),
		Kind:       kind,
		ResourceID: resourceID,
		Strategy:   strategy,
		Amount:     amount,
		State:      StateReserved,
		Reference:  reference,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// NewBoundedRecord creates a reserved claim of amount against a bounded counter
func NewBoundedRecord(kind Kind, resourceID string, amount decimal.Decimal, reference string) (*Record, error) {
	return newRecord(kind, resourceID, StrategyBounded, amount, reference)
}

// NewSequenceRecord creates a reserved claim on sequence number seq
func NewSequenceRecord(kind Kind, resourceID string, seq int64, reference string) (*Record, error) {
	return newRecord(kind, resourceID, StrategySequence, decimal.NewFromInt(seq), reference)
}

// Sequence returns the assigned sequence number of a sequence record
func (r *Record) Sequence() int64 {
	return r.Amount.IntPart()
}

// Commit moves a reserved record to committed
func (r *Record) Commit() error {
	if r.State != StateReserved {
		return ErrInvalidTransition
	}
	r.State = StateCommitted
	r.UpdatedAt = time.Now()
	return nil
}

// Release moves a committed record to released
func (r *Record) Release() error {
	if r.State != StateCommitted {
		return ErrInvalidTransition
	}
	now := time.Now()
	r.State = StateReleased
	r.ReleasedAt = &now
	r.UpdatedAt = now
	return nil
}

// Fail marks a reserved record as lost to a conflict; failed records are never persisted
func (r *Record) Fail() {
	if r.State == StateReserved {
		r.State = StateFailed
		r.UpdatedAt = time.Now()
	}
}

// CountsAgainstBound returns true if the record currently consumes capacity
func (r *Record) CountsAgainstBound() bool {
	return r.Strategy == StrategyBounded && r.State == StateCommitted
}
