package routing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/printhub/fulfillment/internal/domain/routing"
	"github.com/printhub/fulfillment/internal/domain/shared"
	"github.com/printhub/fulfillment/internal/infrastructure/telemetry"
)

// StatisticsQuery selects the half-open window [From, To)
type StatisticsQuery struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SupplierStatistics is the routing distribution for one supplier
type SupplierStatistics struct {
	SupplierID   uuid.UUID `json:"supplier_id"`
	SupplierName string    `json:"supplier_name"`
	Routed       int64     `json:"routed"`
	Failed       int64     `json:"failed"`
}

// RoutingStatistics summarizes routing outcomes over a window
type RoutingStatistics struct {
	From             time.Time                `json:"from"`
	To               time.Time                `json:"to"`
	TotalRequests    int64                    `json:"total_requests"`
	TotalLines       int64                    `json:"total_lines"`
	SuccessfulRoutes int64                    `json:"successful_routes"`
	FailedRoutes     int64                    `json:"failed_routes"`
	Suppliers        []SupplierStatistics     `json:"suppliers"`
	FailureReasons   map[routing.Reason]int64 `json:"failure_reasons"`
}

// GetStatistics aggregates logged routing outcomes
func (e *Engine) GetStatistics(ctx context.Context, q StatisticsQuery) (*RoutingStatistics, error) {
	if e.outcomes == nil {
		return nil, shared.NewDomainError("STATISTICS_DISABLED", "routing outcome log is not configured")
	}
	if q.From.IsZero() || q.To.IsZero() || !q.From.Before(q.To) {
		return nil, shared.NewValidationError("statistics window requires from < to")
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "routing", "get_statistics")
	defer span.End()

	agg, err := e.outcomes.Aggregate(ctx, q.From, q.To)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	stats := &RoutingStatistics{
		From:             q.From,
		To:               q.To,
		TotalRequests:    agg.Requests,
		TotalLines:       agg.Lines,
		SuccessfulRoutes: agg.Successful,
		FailedRoutes:     agg.Failed,
		Suppliers:        make([]SupplierStatistics, 0, len(agg.Suppliers)),
		FailureReasons:   make(map[routing.Reason]int64, len(agg.Reasons)),
	}
	for reason, n := range agg.Reasons {
		stats.FailureReasons[reason] = n
	}

	if len(agg.Suppliers) > 0 {
		ids := make([]uuid.UUID, 0, len(agg.Suppliers))
		for _, t := range agg.Suppliers {
			ids = append(ids, t.SupplierID)
		}
		names, err := e.suppliers.FindByIDs(ctx, ids)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		for _, t := range agg.Suppliers {
			s := SupplierStatistics{SupplierID: t.SupplierID, Routed: t.Routed, Failed: t.Failed}
			if sup, ok := names[t.SupplierID]; ok {
				s.SupplierName = sup.Name
			}
			stats.Suppliers = append(stats.Suppliers, s)
		}
	}

	telemetry.SetOK(span)
	return stats, nil
}
