// Package reservation coordinates claims against shared bounded counters.
//
// Two strategies are offered. Reserve (bounded) serializes writers on a row
// lock and re-checks the bound inside the transaction. AssignSequence
// (optimistic) proposes max+1 and lets a unique index arbitrate, retrying
// with jitter when another writer wins.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/domain/reservation"
	"github.com/printhub/fulfillment/internal/domain/shared"
	"github.com/printhub/fulfillment/internal/infrastructure/telemetry"
)

// Sequence assignment defaults
const (
	DefaultSequenceAttempts = 5
	DefaultJitterMin        = 5 * time.Millisecond
	DefaultJitterMax        = 15 * time.Millisecond
)

// Config tunes the ledger
type Config struct {
	SequenceAttempts int
	JitterMin        time.Duration
	JitterMax        time.Duration
}

// DefaultConfig returns the ledger defaults
func DefaultConfig() Config {
	return Config{
		SequenceAttempts: DefaultSequenceAttempts,
		JitterMin:        DefaultJitterMin,
		JitterMax:        DefaultJitterMax,
	}
}

// Option configures a Ledger
type Option func(*Ledger)

// WithConfig overrides DefaultConfig; non-positive fields keep their default
func WithConfig(cfg Config) Option {
	return func(l *Ledger) {
		if cfg.SequenceAttempts > 0 {
			l.cfg.SequenceAttempts = cfg.SequenceAttempts
		}
		if cfg.JitterMin > 0 {
			l.cfg.JitterMin = cfg.JitterMin
		}
		if cfg.JitterMax >= l.cfg.JitterMin {
			l.cfg.JitterMax = cfg.JitterMax
		}
	}
}

// WithMetrics records reservation counters
func WithMetrics(m *telemetry.FulfillmentMetrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// ReserveInput is a bounded claim request
type ReserveInput struct {
	Kind       reservation.Kind `json:"kind"`
	ResourceID string           `json:"resource_id"`
	Amount     decimal.Decimal  `json:"amount"`
	Reference  string           `json:"reference"`
}

// Ledger is the entry point for every reservation
type Ledger struct {
	store   reservation.Store
	metrics *telemetry.FulfillmentMetrics
	logger  *zap.Logger
	cfg     Config
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewLedger creates a ledger over store
func NewLedger(store reservation.Store, logger *zap.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		store:  store,
		logger: logger.Named("reservation"),
		cfg:    DefaultConfig(),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve claims input.Amount against its counter in one atomic unit.
// A denial is a normal result (Allowed=false), not an error. Transient lock
// failures return reservation.ErrRetryable and are not retried here.
func (l *Ledger) Reserve(ctx context.Context, input ReserveInput) (*reservation.Decision, error) {
	rec, err := reservation.NewBoundedRecord(input.Kind, input.ResourceID, input.Amount, input.Reference)
	if err != nil {
		return nil, validationError(err)
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "reservation", "reserve",
		telemetry.WithAttribute("reservation.kind", string(rec.Kind)),
		telemetry.WithAttribute("reservation.resource_id", rec.ResourceID),
	)
	defer span.End()

	decision, err := l.store.ReserveWithinBound(ctx, rec)
	if err != nil {
		l.recordFailure(ctx, rec.Kind, reservation.StrategyBounded, err)
		telemetry.RecordError(span, err)
		if errors.Is(err, reservation.ErrUnknownResource) || errors.Is(err, reservation.ErrInvalidAmount) {
			return nil, validationError(err)
		}
		return nil, err
	}

	if decision.Allowed {
		l.metrics.RecordReservation(ctx, string(rec.Kind), string(reservation.StrategyBounded), telemetry.ReservationAllowed)
	} else {
		l.metrics.RecordReservation(ctx, string(rec.Kind), string(reservation.StrategyBounded), telemetry.ReservationDenied)
		l.logger.Info("Reservation denied",
			zap.String("kind", string(rec.Kind)),
			zap.String("resource_id", rec.ResourceID),
			zap.String("requested", rec.Amount.String()),
			zap.String("shortfall", decision.Shortfall.String()),
			zap.Bool("blocked", decision.Blocked),
		)
	}
	telemetry.SetAttributes(span, "reservation.allowed", decision.Allowed)
	telemetry.SetOK(span)
	return decision, nil
}

// Check computes the decision Reserve would make, without writing
func (l *Ledger) Check(ctx context.Context, kind reservation.Kind, resourceID string, amount decimal.Decimal) (*reservation.Decision, error) {
	// a throwaway record runs the same input validation as Reserve
	if _, err := reservation.NewBoundedRecord(kind, resourceID, amount, ""); err != nil {
		return nil, validationError(err)
	}
	decision, err := l.store.CheckWithinBound(ctx, kind, resourceID, amount)
	if err != nil {
		if errors.Is(err, reservation.ErrUnknownResource) {
			return nil, validationError(err)
		}
		return nil, err
	}
	return decision, nil
}

// AssignSequence reserves the next number of a sequence counter.
// It reads the current max, proposes max+1 and retries with random jitter
// when a concurrent writer already took that number.
func (l *Ledger) AssignSequence(ctx context.Context, kind reservation.Kind, resourceID, reference string) (*reservation.Record, error) {
	if _, err := reservation.NewSequenceRecord(kind, resourceID, 1, reference); err != nil {
		return nil, validationError(err)
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "reservation", "assign_sequence",
		telemetry.WithAttribute("reservation.kind", string(kind)),
		telemetry.WithAttribute("reservation.resource_id", resourceID),
	)
	defer span.End()

	for attempt := 1; attempt <= l.cfg.SequenceAttempts; attempt++ {
		if attempt > 1 {
			l.metrics.RecordSequenceRetry(ctx, string(kind))
			if err := l.sleep(ctx, l.jitter()); err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}
		}

		current, err := l.store.MaxSequence(ctx, kind, resourceID)
		if err != nil {
			l.recordFailure(ctx, kind, reservation.StrategySequence, err)
			telemetry.RecordError(span, err)
			return nil, err
		}

		rec, err := reservation.NewSequenceRecord(kind, resourceID, current+1, reference)
		if err != nil {
			return nil, validationError(err)
		}
		err = l.store.InsertSequence(ctx, rec)
		if err == nil {
			l.metrics.RecordReservation(ctx, string(kind), string(reservation.StrategySequence), telemetry.ReservationAllowed)
			telemetry.SetAttributes(span, "reservation.sequence", rec.Sequence(), "reservation.attempts", attempt)
			telemetry.SetOK(span)
			return rec, nil
		}

		rec.Fail()
		if !errors.Is(err, reservation.ErrDuplicateSequence) {
			l.recordFailure(ctx, kind, reservation.StrategySequence, err)
			telemetry.RecordError(span, err)
			return nil, err
		}
		l.logger.Debug("Sequence number taken by a concurrent writer",
			zap.String("kind", string(kind)),
			zap.String("resource_id", resourceID),
			zap.Int64("candidate", rec.Sequence()),
			zap.Int("attempt", attempt),
		)
		telemetry.AddEvent(span, "sequence_conflict", "reservation.sequence", rec.Sequence(), "reservation.attempt", attempt)
	}

	l.metrics.RecordReservation(ctx, string(kind), string(reservation.StrategySequence), telemetry.ReservationExhausted)
	l.logger.Warn("Sequence assignment retries exhausted",
		zap.String("kind", string(kind)),
		zap.String("resource_id", resourceID),
		zap.Int("attempts", l.cfg.SequenceAttempts),
	)
	err := fmt.Errorf("%s/%s after %d attempts: %w", kind, resourceID, l.cfg.SequenceAttempts, reservation.ErrConcurrencyExhausted)
	telemetry.RecordError(span, err)
	return nil, err
}

// Release returns a committed record's claim. Sequence numbers are never reused.
func (l *Ledger) Release(ctx context.Context, recordID uuid.UUID) (*reservation.Record, error) {
	rec, err := l.store.Release(ctx, recordID)
	if err != nil {
		return nil, err
	}
	l.logger.Info("Reservation released",
		zap.String("record_id", rec.ID.String()),
		zap.String("kind", string(rec.Kind)),
		zap.String("resource_id", rec.ResourceID),
		zap.String("amount", rec.Amount.String()),
	)
	return rec, nil
}

// Get returns a record by ID
func (l *Ledger) Get(ctx context.Context, recordID uuid.UUID) (*reservation.Record, error) {
	return l.store.FindByID(ctx, recordID)
}

// History returns a page of a counter's records, newest first, with the total match count
func (l *Ledger) History(ctx context.Context, kind reservation.Kind, resourceID string, filter reservation.HistoryFilter) ([]reservation.Record, int64, error) {
	if err := kind.Validate(); err != nil {
		return nil, 0, err
	}
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return nil, 0, reservation.ErrInvalidResourceID
	}
	filter, err := filter.Normalize()
	if err != nil {
		return nil, 0, err
	}
	return l.store.History(ctx, kind, resourceID, filter)
}

// Outstanding sums the committed bounded claims on a counter
func (l *Ledger) Outstanding(ctx context.Context, kind reservation.Kind, resourceID string) (decimal.Decimal, error) {
	return l.store.CommittedTotal(ctx, kind, resourceID)
}

func (l *Ledger) jitter() time.Duration {
	span := l.cfg.JitterMax - l.cfg.JitterMin
	if span <= 0 {
		return l.cfg.JitterMin
	}
	return l.cfg.JitterMin + rand.N(span+1)
}

func (l *Ledger) recordFailure(ctx context.Context, kind reservation.Kind, strategy reservation.Strategy, err error) {
	outcome := telemetry.ReservationFailed
	if errors.Is(err, reservation.ErrRetryable) {
		outcome = telemetry.ReservationRetryable
		l.logger.Warn("Reservation hit a transient store conflict",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
	l.metrics.RecordReservation(ctx, string(kind), string(strategy), outcome)
}

func validationError(err error) error {
	return fmt.Errorf("%w: %w", shared.ErrValidation, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
