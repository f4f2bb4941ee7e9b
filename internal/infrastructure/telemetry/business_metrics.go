// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// FulfillmentMetrics records routing, reservation and supply sync activity.
// A nil *FulfillmentMetrics is valid and records nothing.
type FulfillmentMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	routingLinesTotal    *Counter
	routingPlanDuration  *Histogram
	reservationsTotal    *Counter
	sequenceRetriesTotal *Counter
	syncOffersTotal      *Counter
	syncLastRun          *Gauge
	webhookEventsTotal   *Counter
}

// FulfillmentMetricsConfig holds configuration for fulfillment metrics.
type FulfillmentMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewFulfillmentMetrics creates the fulfillment instruments on cfg.Meter.
func NewFulfillmentMetrics(cfg FulfillmentMetricsConfig) (*FulfillmentMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	fm := &FulfillmentMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	// Routing metrics
	fm.routingLinesTotal, err = NewCounter(
		cfg.Meter,
		"routing_lines_total",
		"Order lines processed by the routing engine",
		"{lines}",
	)
	if err != nil {
		return nil, err
	}

	fm.routingPlanDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "routing_plan_duration_seconds",
		Description: "Time to build a routing plan",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	// Reservation metrics
	fm.reservationsTotal, err = NewCounter(
		cfg.Meter,
		"reservations_total",
		"Reservation ledger decisions",
		"{reservations}",
	)
	if err != nil {
		return nil, err
	}

	fm.sequenceRetriesTotal, err = NewCounter(
		cfg.Meter,
		"sequence_retries_total",
		"Sequence assignments retried after a duplicate",
		"{retries}",
	)
	if err != nil {
		return nil, err
	}

	// Supply sync metrics
	fm.syncOffersTotal, err = NewCounter(
		cfg.Meter,
		"sync_offers_total",
		"Supplier offers processed by sync runs",
		"{offers}",
	)
	if err != nil {
		return nil, err
	}

	fm.syncLastRun, err = NewGauge(
		cfg.Meter,
		"sync_last_run_timestamp",
		"Unix time of the last completed sync run",
		"s",
	)
	if err != nil {
		return nil, err
	}

	fm.webhookEventsTotal, err = NewCounter(
		cfg.Meter,
		"supplier_webhook_events_total",
		"Supplier webhook events received",
		"{events}",
	)
	if err != nil {
		return nil, err
	}

	return fm, nil
}

// =============================================================================
// Routing
// =============================================================================

// RecordRoutedLine counts one routed or unroutable line. reason is empty for routed lines.
func (fm *FulfillmentMetrics) RecordRoutedLine(ctx context.Context, routed bool, reason string) {
	if fm == nil {
		return
	}
	outcome := "routed"
	if !routed {
		outcome = "unroutable"
	}
	fm.routingLinesTotal.Inc(ctx, AttrOutcome.String(outcome), AttrReason.String(reason))
}

// RecordPlanDuration records how long one RouteOrder call took
func (fm *FulfillmentMetrics) RecordPlanDuration(ctx context.Context, d time.Duration) {
	if fm == nil {
		return
	}
	fm.routingPlanDuration.RecordDuration(ctx, d)
}

// =============================================================================
// Reservations
// =============================================================================

// ReservationOutcome labels a ledger decision
type ReservationOutcome string

const (
	ReservationAllowed   ReservationOutcome = "allowed"
	ReservationDenied    ReservationOutcome = "denied"
	ReservationRetryable ReservationOutcome = "retryable"
	ReservationExhausted ReservationOutcome = "exhausted"
	ReservationFailed    ReservationOutcome = "error"
)

// RecordReservation counts one ledger decision
func (fm *FulfillmentMetrics) RecordReservation(ctx context.Context, kind, strategy string, outcome ReservationOutcome) {
	if fm == nil {
		return
	}
	fm.reservationsTotal.Inc(ctx,
		AttrKind.String(kind),
		AttrStrategy.String(strategy),
		AttrOutcome.String(string(outcome)),
	)
}

// RecordSequenceRetry counts one lost sequence race
func (fm *FulfillmentMetrics) RecordSequenceRetry(ctx context.Context, kind string) {
	if fm == nil {
		return
	}
	fm.sequenceRetriesTotal.Inc(ctx, AttrKind.String(kind))
}

// =============================================================================
// Supply sync
// =============================================================================

// RecordSyncRun counts the offers touched by one sync run and stamps its completion time
func (fm *FulfillmentMetrics) RecordSyncRun(ctx context.Context, kind string, updated, failed, skipped int) {
	if fm == nil {
		return
	}
	k := AttrKind.String(kind)
	fm.syncOffersTotal.Add(ctx, int64(updated), k, AttrOutcome.String("updated"))
	fm.syncOffersTotal.Add(ctx, int64(failed), k, AttrOutcome.String("error"))
	fm.syncOffersTotal.Add(ctx, int64(skipped), k, AttrOutcome.String("skipped"))
	fm.syncLastRun.Record(ctx, time.Now().Unix(), k)
}

// RecordWebhookEvent counts one supplier webhook event
func (fm *FulfillmentMetrics) RecordWebhookEvent(ctx context.Context, eventType, outcome string) {
	if fm == nil {
		return
	}
	fm.webhookEventsTotal.Inc(ctx, AttrEventType.String(eventType), AttrOutcome.String(outcome))
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewFulfillmentMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// =============================================================================
// Attribute Key Constants
// =============================================================================

// Fulfillment attribute keys
var (
	AttrOutcome   = attribute.Key("outcome")
	AttrReason    = attribute.Key("reason")
	AttrKind      = attribute.Key("kind")
	AttrStrategy  = attribute.Key("strategy")
	AttrEventType = attribute.Key("event_type")
)
