// Package routing implements supplier selection and order routing.
package routing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/domain/reservation"
	"github.com/printhub/fulfillment/internal/domain/routing"
	"github.com/printhub/fulfillment/internal/domain/shared"
	"github.com/printhub/fulfillment/internal/domain/supplier"
	"github.com/printhub/fulfillment/internal/infrastructure/telemetry"
)

// StockReserver claims and returns offer stock through the reservation ledger
type StockReserver interface {
	ReserveOffer(ctx context.Context, offerID uuid.UUID, quantity int, reference string) (*reservation.Decision, error)
	Release(ctx context.Context, recordID uuid.UUID) (*reservation.Record, error)
}

// Config tunes the engine
type Config struct {
	// StoreRetries is how many times an offer store read is retried before giving up
	StoreRetries int
	// StoreRetryBackoff is the first retry delay; it doubles per attempt
	StoreRetryBackoff time.Duration
	// InventoryTimeout bounds each adapter call made by CheckInventoryAcrossSuppliers
	InventoryTimeout time.Duration
	// InventoryConcurrency caps parallel adapter calls
	InventoryConcurrency int
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		StoreRetries:         3,
		StoreRetryBackoff:    50 * time.Millisecond,
		InventoryTimeout:     5 * time.Second,
		InventoryConcurrency: 8,
	}
}

// Option configures an Engine
type Option func(*Engine)

// WithConfig overrides DefaultConfig
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithStockReserver enables stock reservation for RouteOrder calls that ask for it
func WithStockReserver(r StockReserver) Option {
	return func(e *Engine) {
		e.stock = r
	}
}

// WithAdapters sets the resolver used by CheckInventoryAcrossSuppliers
func WithAdapters(r supplier.AdapterResolver) Option {
	return func(e *Engine) {
		e.adapters = r
	}
}

// WithOutcomeLog persists per-line outcomes for statistics
func WithOutcomeLog(repo routing.OutcomeRepository) Option {
	return func(e *Engine) {
		e.outcomes = repo
	}
}

// WithMetrics records routing counters
func WithMetrics(m *telemetry.FulfillmentMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine selects suppliers for order lines.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	offers    supplier.OfferReader
	suppliers supplier.SupplierRepository
	stock     StockReserver
	adapters  supplier.AdapterResolver
	outcomes  routing.OutcomeRepository
	metrics   *telemetry.FulfillmentMetrics
	validate  *validator.Validate
	logger    *zap.Logger
	cfg       Config
}

// NewEngine creates a routing engine
func NewEngine(offers supplier.OfferReader, suppliers supplier.SupplierRepository, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		offers:    offers,
		suppliers: suppliers,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.Named("routing"),
		cfg:       DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Selection is the offer chosen for a line, with its supplier
type Selection struct {
	Offer    *supplier.Offer
	Supplier *supplier.Supplier
}

// RouteOrderInput is one order to route
type RouteOrderInput struct {
	Reference string         `json:"reference" validate:"max=100"`
	Lines     []routing.Line `json:"lines" validate:"dive"`
	Reserve   bool           `json:"reserve"`
}

// ---------------------------------------------------------------------------
// Selection
// ---------------------------------------------------------------------------

// SelectSupplier picks the offer that should fulfill quantity units of sku.
// Business rejections are returned as routing errors carrying a Reason; see routing.ReasonOf.
func (e *Engine) SelectSupplier(ctx context.Context, sku string, quantity int) (*Selection, error) {
	line := routing.Line{SKU: strings.TrimSpace(sku), Quantity: quantity}
	if err := e.validateLine(line); err != nil {
		return nil, err
	}

	offer, err := e.selectOffer(ctx, line)
	if err != nil {
		return nil, err
	}

	found, err := e.suppliers.FindByIDs(ctx, []uuid.UUID{offer.SupplierID})
	if err != nil {
		return nil, err
	}
	s, ok := found[offer.SupplierID]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", offer.ID, supplier.ErrSupplierNotFound)
	}
	return &Selection{Offer: offer, Supplier: s}, nil
}

func (e *Engine) selectOffer(ctx context.Context, line routing.Line) (*supplier.Offer, error) {
	offers, err := e.loadOffers(ctx, line.SKU)
	if err != nil {
		return nil, err
	}
	return ChooseOffer(offers, line)
}

// ChooseOffer applies the hard filters in order and returns the best survivor.
// offers must be in insertion order; equal-ranked offers keep that order.
func ChooseOffer(offers []supplier.Offer, line routing.Line) (*supplier.Offer, error) {
	if len(offers) == 0 {
		return nil, routing.Reject(routing.ReasonNoSupplierFound, line.SKU, line.Quantity)
	}

	stocked := make([]*supplier.Offer, 0, len(offers))
	for i := range offers {
		if offers[i].CanFulfill(line.Quantity) {
			stocked = append(stocked, &offers[i])
		}
	}
	if len(stocked) == 0 {
		return nil, routing.Reject(routing.ReasonInsufficientStock, line.SKU, line.Quantity)
	}

	eligible := slices.DeleteFunc(stocked, func(o *supplier.Offer) bool {
		return !o.AcceptsQuantity(line.Quantity)
	})
	if len(eligible) == 0 {
		return nil, routing.Reject(routing.ReasonBelowMOQ, line.SKU, line.Quantity)
	}

	slices.SortStableFunc(eligible, supplier.CompareOffers)
	return eligible[0], nil
}

// loadOffers reads active offers, retrying transient store failures with backoff
func (e *Engine) loadOffers(ctx context.Context, sku string) ([]supplier.Offer, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.cfg.StoreRetryBackoff
	policy.RandomizationFactor = 0
	policy.Multiplier = 2

	attempt := 0
	offers, err := backoff.Retry(ctx, func() ([]supplier.Offer, error) {
		attempt++
		return e.offers.FindActiveBySKU(ctx, sku)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(max(e.cfg.StoreRetries, 0)+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			e.logger.Warn("Retrying offer store read",
				zap.String("sku", sku),
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("routing: offer store unavailable after %d attempts: %w", attempt, err)
	}
	return offers, nil
}

func (e *Engine) validateLine(line routing.Line) error {
	if err := e.validate.Struct(line); err != nil {
		return shared.NewValidationError(fmt.Sprintf("invalid line (sku %q, quantity %d)", line.SKU, line.Quantity))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Order routing
// ---------------------------------------------------------------------------

// RouteOrder routes every line of an order. Business failures are collected
// into the plan's unroutable items; only infrastructure failures are returned
// as errors, after any stock reserved by this call has been released.
func (e *Engine) RouteOrder(ctx context.Context, input RouteOrderInput) (*routing.Plan, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "routing", "route_order",
		telemetry.WithAttribute("order.reference", input.Reference),
		telemetry.WithAttribute("order.lines", len(input.Lines)),
	)
	defer span.End()
	started := time.Now()

	input.Lines = slices.Clone(input.Lines)
	for i := range input.Lines {
		input.Lines[i].SKU = strings.TrimSpace(input.Lines[i].SKU)
	}
	if err := e.validate.Struct(input); err != nil {
		return nil, shared.NewValidationError("invalid order: " + err.Error())
	}
	if input.Reserve && e.stock == nil {
		return nil, shared.NewValidationError("stock reservation is not configured")
	}

	// Lines are settled in order so a reservation made for one line is
	// visible to the selection of the next.
	type settled struct {
		offer  *supplier.Offer
		item   routing.RouteItem
		reason routing.Reason
	}
	results := make([]settled, len(input.Lines))
	var reserved []uuid.UUID
	var supplierIDs []uuid.UUID

	for i, line := range input.Lines {
		offer, err := e.selectOffer(ctx, line)
		if err != nil {
			reason, ok := routing.ReasonOf(err)
			if !ok {
				e.releaseAll(ctx, reserved)
				telemetry.RecordError(span, err)
				return nil, err
			}
			results[i].reason = reason
			continue
		}

		results[i].offer = offer
		results[i].item = routing.RouteItem{
			InternalSKU: line.SKU,
			SupplierSKU: offer.SupplierSKU,
			OfferID:     offer.ID,
			Quantity:    line.Quantity,
			Cost:        offer.Cost,
			LeadTime:    offer.LeadTime,
		}

		if input.Reserve {
			recordID, reason, err := e.reserveLine(ctx, offer, line, input.Reference)
			if err != nil {
				e.releaseAll(ctx, reserved)
				telemetry.RecordError(span, err)
				return nil, err
			}
			if reason != "" {
				results[i].reason = reason
				continue
			}
			reserved = append(reserved, recordID)
			results[i].item.ReservationID = &recordID
		}

		if !slices.Contains(supplierIDs, offer.SupplierID) {
			supplierIDs = append(supplierIDs, offer.SupplierID)
		}
	}

	var suppliers map[uuid.UUID]*supplier.Supplier
	if len(supplierIDs) > 0 {
		found, err := e.suppliers.FindByIDs(ctx, supplierIDs)
		if err != nil {
			e.releaseAll(ctx, reserved)
			telemetry.RecordError(span, err)
			return nil, err
		}
		suppliers = found
	}

	plan := routing.NewPlan()
	attributed := make(map[int]uuid.UUID)
	for i, line := range input.Lines {
		r := results[i]
		if r.reason != "" {
			if r.offer != nil {
				attributed[len(plan.Unroutable)] = r.offer.SupplierID
			}
			plan.AddUnroutable(line, r.reason)
			continue
		}
		name := ""
		if s, ok := suppliers[r.offer.SupplierID]; ok {
			name = s.Name
		}
		plan.AddRouted(r.offer.SupplierID, name, r.item)
	}

	e.recordOutcomes(ctx, input.Reference, plan, attributed)
	e.metrics.RecordPlanDuration(ctx, time.Since(started))
	telemetry.SetAttributes(span,
		"plan.routed", plan.RoutedLineCount(),
		"plan.unroutable", len(plan.Unroutable),
	)
	telemetry.SetOK(span)
	return plan, nil
}

// reserveLine claims stock for a routed line. A non-empty reason means the line
// must be reported unroutable; an error means the whole call must fail.
func (e *Engine) reserveLine(ctx context.Context, offer *supplier.Offer, line routing.Line, reference string) (uuid.UUID, routing.Reason, error) {
	decision, err := e.stock.ReserveOffer(ctx, offer.ID, line.Quantity, reference)
	switch {
	case err == nil && decision.Allowed:
		return decision.Record.ID, "", nil
	case err == nil:
		return uuid.Nil, routing.ReasonInsufficientStock, nil
	case errors.Is(err, reservation.ErrRetryable):
		e.logger.Warn("Stock reservation hit a transient conflict",
			zap.String("sku", line.SKU),
			zap.String("offer_id", offer.ID.String()),
			zap.Error(err),
		)
		return uuid.Nil, routing.ReasonReservationRetryable, nil
	case errors.Is(err, reservation.ErrUnknownResource):
		return uuid.Nil, routing.ReasonInsufficientStock, nil
	default:
		return uuid.Nil, "", fmt.Errorf("reserve stock for %s: %w", line.SKU, err)
	}
}

func (e *Engine) releaseAll(ctx context.Context, recordIDs []uuid.UUID) {
	for _, id := range recordIDs {
		if _, err := e.stock.Release(context.WithoutCancel(ctx), id); err != nil {
			e.logger.Error("Failed to release stock reservation after routing failure",
				zap.String("record_id", id.String()),
				zap.Error(err),
			)
		}
	}
}

func (e *Engine) recordOutcomes(ctx context.Context, reference string, plan *routing.Plan, attributed map[int]uuid.UUID) {
	for _, r := range plan.Routes() {
		for range r.Items {
			e.metrics.RecordRoutedLine(ctx, true, "")
		}
	}
	for _, u := range plan.Unroutable {
		e.metrics.RecordRoutedLine(ctx, false, string(u.Reason))
	}

	if e.outcomes == nil || plan.LineCount() == 0 {
		return
	}
	outcomes := routing.OutcomesFromPlan(reference, plan, attributed)
	if err := e.outcomes.SaveBatch(ctx, outcomes); err != nil {
		e.logger.Error("Failed to record routing outcomes",
			zap.String("reference", reference),
			zap.Int("lines", len(outcomes)),
			zap.Error(err),
		)
	}
}
