package routing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outcome is the logged result of routing one line
type Outcome struct {
	ID         uuid.UUID
	Reference  string
	SKU        string
	Quantity   int
	SupplierID *uuid.UUID
	OfferID    *uuid.UUID
	Success    bool
	Reason     Reason
	CreatedAt  time.Time
}

// OutcomesFromPlan derives one outcome per plan line.
// Reservation failures carry the supplier whose offer was selected.
func OutcomesFromPlan(reference string, plan *Plan, attributed map[int]uuid.UUID) []Outcome {
	now := time.Now()
	outcomes := make([]Outcome, 0, plan.LineCount())
	for _, r := range plan.Routes() {
		supplierID := r.SupplierID
		for _, it := range r.Items {
			offerID := it.OfferID
			outcomes = append(outcomes, Outcome{
				ID:         uuid.New(),
				Reference:  reference,
				SKU:        it.InternalSKU,
				Quantity:   it.Quantity,
				SupplierID: &supplierID,
				OfferID:    &offerID,
				Success:    true,
				CreatedAt:  now,
			})
		}
	}
	for i, u := range plan.Unroutable {
		o := Outcome{
			ID:        uuid.New(),
			Reference: reference,
			SKU:       u.SKU,
			Quantity:  u.Quantity,
			Reason:    u.Reason,
			CreatedAt: now,
		}
		if sid, ok := attributed[i]; ok {
			o.SupplierID = &sid
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// SupplierTally counts outcomes attributed to one supplier
type SupplierTally struct {
	SupplierID uuid.UUID
	Routed     int64
	Failed     int64
}

// OutcomeAggregate is the raw roll-up of outcomes in a time window
type OutcomeAggregate struct {
	Requests   int64
	Lines      int64
	Successful int64
	Failed     int64
	Suppliers  []SupplierTally
	Reasons    map[Reason]int64
}

// OutcomeRepository persists and aggregates routing outcomes
type OutcomeRepository interface {
	SaveBatch(ctx context.Context, outcomes []Outcome) error
	Aggregate(ctx context.Context, from, to time.Time) (*OutcomeAggregate, error)
}
