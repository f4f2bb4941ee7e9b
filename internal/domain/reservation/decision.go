package reservation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decision is the outcome of a bounded check, computed inside the store's
// atomic unit from freshly read values.
type Decision struct {
	Allowed   bool            `json:"allowed"`
	Blocked   bool            `json:"blocked"`
	Bound     decimal.Decimal `json:"bound"`
	Committed decimal.Decimal `json:"committed"`
	Requested decimal.Decimal `json:"requested"`
	Available decimal.Decimal `json:"available"`
	Shortfall decimal.Decimal `json:"shortfall"`
	Record    *Record         `json:"record,omitempty"`
}

// Decide applies the bound rule: allowed iff not blocked and committed+requested <= bound.
func Decide(bound, committed, requested decimal.Decimal, blocked bool) *Decision {
	available := bound.Sub(committed)
	if available.IsNegative() {
		available = decimal.Zero
	}
	d := &Decision{
		Blocked:   blocked,
		Bound:     bound,
		Committed: committed,
		Requested: requested,
		Available: available,
		Shortfall: decimal.Zero,
	}
	if blocked {
		return d
	}
	if committed.Add(requested).GreaterThan(bound) {
		d.Shortfall = committed.Add(requested).Sub(bound)
		return d
	}
	d.Allowed = true
	return d
}

// Bound is the configured limit of a counter (for example a customer's credit limit).
// Stock counters use the offer's remaining stock as their bound and have no Bound row.
type Bound struct {
	Kind       Kind
	ResourceID string
	Limit      decimal.Decimal
	Blocked    bool
	UpdatedAt  time.Time
}
