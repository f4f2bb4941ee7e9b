// Package supplysync keeps supplier offers in line with what each supplier
// reports, from scheduled resyncs and from inbound webhooks.
package supplysync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/domain/shared"
	"github.com/printhub/fulfillment/internal/domain/supplier"
	"github.com/printhub/fulfillment/internal/infrastructure/telemetry"
)

// Kind names a sync job
type Kind string

const (
	KindInventory Kind = "inventory"
	KindPricing   Kind = "pricing"
	KindCatalog   Kind = "catalog"
)

// IsValid returns true for a known sync kind
func (k Kind) IsValid() bool {
	switch k {
	case KindInventory, KindPricing, KindCatalog:
		return true
	default:
		return false
	}
}

// ErrUnknownKind is returned for sync kinds other than inventory, pricing and catalog
var ErrUnknownKind = errors.New("supplysync: unknown sync kind")

// SyncResult counts what one sync run did. Per-offer failures are counted
// in Errors and never abort the run.
type SyncResult struct {
	SupplierID  uuid.UUID `json:"supplier_id"`
	Kind        Kind      `json:"kind"`
	Updated     int       `json:"updated"`
	Errors      int       `json:"errors"`
	Skipped     int       `json:"skipped"`
	New         int       `json:"new"`
	SnapshotKey string    `json:"snapshot_key,omitempty"`
}

// SyncAllResult aggregates a run over every active supplier
type SyncAllResult struct {
	Kind            Kind         `json:"kind"`
	Suppliers       int          `json:"suppliers"`
	FailedSuppliers int          `json:"failed_suppliers"`
	Results         []SyncResult `json:"results"`
}

// CatalogSnapshot is a raw supplier catalog as fetched
type CatalogSnapshot struct {
	SupplierID   uuid.UUID                 `json:"supplier_id"`
	SupplierCode string                    `json:"supplier_code"`
	FetchedAt    time.Time                 `json:"fetched_at"`
	Products     []supplier.CatalogProduct `json:"products"`
}

// CatalogArchive stores catalog snapshots and returns where it put them
type CatalogArchive interface {
	Archive(ctx context.Context, snapshot CatalogSnapshot) (string, error)
}

// Config tunes the sync service
type Config struct {
	// AdapterRetries is how many extra attempts an adapter call gets before the offer is marked in error.
	// Negative values are treated as zero.
	AdapterRetries int
	// RetryBackoff is the first retry delay; it doubles per attempt
	RetryBackoff time.Duration
	// AdapterTimeout bounds each adapter call
	AdapterTimeout time.Duration
	// IdempotencyTTL is how long webhook event IDs are remembered
	IdempotencyTTL time.Duration
}

// DefaultConfig returns the sync defaults
func DefaultConfig() Config {
	return Config{
		AdapterRetries: 2,
		RetryBackoff:   200 * time.Millisecond,
		AdapterTimeout: 10 * time.Second,
		IdempotencyTTL: shared.DefaultIdempotencyConfig().TTL,
	}
}

// Option configures a Service
type Option func(*Service)

// WithConfig overrides DefaultConfig
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithArchive stores every fetched catalog
func WithArchive(a CatalogArchive) Option {
	return func(s *Service) {
		s.archive = a
	}
}

// WithIdempotencyStore de-duplicates webhook deliveries by event ID
func WithIdempotencyStore(store shared.IdempotencyStore) Option {
	return func(s *Service) {
		s.idempotency = store
	}
}

// WithForwarder receives order status webhooks
func WithForwarder(f StatusForwarder) Option {
	return func(s *Service) {
		s.forwarder = f
	}
}

// WithMetrics records sync counters
func WithMetrics(m *telemetry.FulfillmentMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service runs supplier syncs and applies supplier webhooks
type Service struct {
	suppliers   supplier.SupplierRepository
	offers      supplier.OfferRepository
	adapters    supplier.AdapterResolver
	archive     CatalogArchive
	idempotency shared.IdempotencyStore
	forwarder   StatusForwarder
	metrics     *telemetry.FulfillmentMetrics
	validate    *validator.Validate
	logger      *zap.Logger
	cfg         Config
	now         func() time.Time
}

// NewService creates a new sync service
func NewService(
	suppliers supplier.SupplierRepository,
	offers supplier.OfferRepository,
	adapters supplier.AdapterResolver,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		suppliers: suppliers,
		offers:    offers,
		adapters:  adapters,
		validate:  validator.New(),
		logger:    logger.Named("supplysync"),
		cfg:       DefaultConfig(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------------------------------------------------------------------
// Scheduled syncs
// ---------------------------------------------------------------------------

// Sync runs one sync kind for one supplier
func (s *Service) Sync(ctx context.Context, kind Kind, supplierID uuid.UUID) (*SyncResult, error) {
	switch kind {
	case KindInventory:
		return s.SyncInventory(ctx, supplierID)
	case KindPricing:
		return s.SyncPricing(ctx, supplierID)
	case KindCatalog:
		return s.SyncCatalog(ctx, supplierID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// SyncInventory refreshes stock and availability of every offer of a supplier.
// Offers currently in error are included so a recovered supplier returns to routing.
func (s *Service) SyncInventory(ctx context.Context, supplierID uuid.UUID) (*SyncResult, error) {
	sup, adapter, err := s.resolve(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "supplysync", "sync_inventory",
		telemetry.WithAttribute("supplier.code", sup.Code))
	defer span.End()

	offers, err := s.offers.FindBySupplier(ctx, supplierID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &SyncResult{SupplierID: supplierID, Kind: KindInventory}
	for i := range offers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		offer := &offers[i]

		var status *supplier.InventoryStatus
		err := s.withRetry(ctx, func(callCtx context.Context) error {
			var callErr error
			status, callErr = adapter.CheckInventory(callCtx, offer.SupplierSKU)
			return callErr
		})
		if err == nil && status == nil {
			err = fmt.Errorf("%w: no inventory status", supplier.ErrAdapterInvalidResponse)
		}
		if err == nil {
			err = offer.ApplyInventory(status.Available, status.Quantity)
		}
		if err != nil {
			s.failOffer(ctx, offer, err)
			result.Errors++
			continue
		}

		offer.MarkSynced(s.now())
		if err := s.offers.UpdateInventory(ctx, offer); err != nil {
			s.logger.Error("Failed to save synced inventory",
				zap.String("offer_id", offer.ID.String()),
				zap.Error(err),
			)
			result.Errors++
			continue
		}
		result.Updated++
	}

	s.finish(ctx, sup, result)
	telemetry.SetOK(span)
	return result, nil
}

// SyncPricing fetches the supplier catalog once and updates the cost of every
// mapped offer. Offers absent from the catalog are counted as skipped.
func (s *Service) SyncPricing(ctx context.Context, supplierID uuid.UUID) (*SyncResult, error) {
	sup, adapter, err := s.resolve(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "supplysync", "sync_pricing",
		telemetry.WithAttribute("supplier.code", sup.Code))
	defer span.End()

	products, err := s.fetchCatalog(ctx, adapter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	bySKU := make(map[string]supplier.CatalogProduct, len(products))
	for _, p := range products {
		bySKU[p.SKU] = p
	}

	offers, err := s.offers.FindBySupplier(ctx, supplierID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &SyncResult{SupplierID: supplierID, Kind: KindPricing}
	for i := range offers {
		offer := &offers[i]
		product, ok := bySKU[offer.SupplierSKU]
		if !ok {
			result.Skipped++
			continue
		}
		oldCost := offer.Cost
		if err := offer.ApplyCost(product.Cost); err != nil {
			s.failOffer(ctx, offer, err)
			result.Errors++
			continue
		}
		offer.MarkSynced(s.now())
		if err := s.offers.UpdateCost(ctx, offer); err != nil {
			s.logger.Error("Failed to save synced price",
				zap.String("offer_id", offer.ID.String()),
				zap.Error(err),
			)
			result.Errors++
			continue
		}
		if !oldCost.Equal(product.Cost) {
			s.logger.Info("Supplier price changed",
				zap.String("sku", offer.SKU),
				zap.String("old_cost", oldCost.String()),
				zap.String("new_cost", product.Cost.String()),
			)
		}
		result.Updated++
	}

	s.finish(ctx, sup, result)
	telemetry.SetOK(span)
	return result, nil
}

// SyncCatalog fetches the supplier catalog, refreshes every mapped offer and
// counts unmapped products as New. Offers are never created automatically;
// a new product needs an internal SKU mapping first.
func (s *Service) SyncCatalog(ctx context.Context, supplierID uuid.UUID) (*SyncResult, error) {
	sup, adapter, err := s.resolve(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "supplysync", "sync_catalog",
		telemetry.WithAttribute("supplier.code", sup.Code))
	defer span.End()

	products, err := s.fetchCatalog(ctx, adapter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	result := &SyncResult{SupplierID: supplierID, Kind: KindCatalog}

	if s.archive != nil {
		key, err := s.archive.Archive(ctx, CatalogSnapshot{
			SupplierID:   sup.ID,
			SupplierCode: sup.Code,
			FetchedAt:    s.now(),
			Products:     products,
		})
		if err != nil {
			s.logger.Warn("Failed to archive catalog snapshot",
				zap.String("supplier", sup.Code),
				zap.Error(err),
			)
		} else {
			result.SnapshotKey = key
		}
	}

	for _, product := range products {
		offer, err := s.offers.FindBySupplierSKU(ctx, supplierID, product.SKU)
		if errors.Is(err, supplier.ErrOfferNotFound) {
			s.logger.Info("New supplier product found",
				zap.String("supplier", sup.Code),
				zap.String("supplier_sku", product.SKU),
				zap.String("name", product.Name),
			)
			result.New++
			continue
		}
		if err != nil {
			s.logger.Error("Failed to look up offer for catalog product",
				zap.String("supplier_sku", product.SKU),
				zap.Error(err),
			)
			result.Errors++
			continue
		}

		err = offer.ApplyCost(product.Cost)
		if err == nil {
			err = offer.ApplyInventory(product.Available, max(product.StockQuantity, 0))
		}
		if err != nil {
			s.failOffer(ctx, offer, err)
			result.Errors++
			continue
		}
		offer.MarkSynced(s.now())
		if err := s.offers.UpdateCatalogEntry(ctx, offer); err != nil {
			s.logger.Error("Failed to save synced catalog product",
				zap.String("offer_id", offer.ID.String()),
				zap.Error(err),
			)
			result.Errors++
			continue
		}
		result.Updated++
	}

	s.finish(ctx, sup, result)
	telemetry.SetOK(span)
	return result, nil
}

// SyncAll runs kind for every active supplier. A supplier that fails as a
// whole is logged and counted; the others still run.
func (s *Service) SyncAll(ctx context.Context, kind Kind) (*SyncAllResult, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	suppliers, err := s.suppliers.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	out := &SyncAllResult{Kind: kind, Suppliers: len(suppliers), Results: make([]SyncResult, 0, len(suppliers))}
	for _, sup := range suppliers {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		res, err := s.Sync(ctx, kind, sup.ID)
		if err != nil {
			out.FailedSuppliers++
			s.logger.Error("Supplier sync failed",
				zap.String("kind", string(kind)),
				zap.String("supplier", sup.Code),
				zap.Error(err),
			)
			continue
		}
		out.Results = append(out.Results, *res)
	}

	s.logger.Info("Sync run finished",
		zap.String("kind", string(kind)),
		zap.Int("suppliers", out.Suppliers),
		zap.Int("failed_suppliers", out.FailedSuppliers),
	)
	return out, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *Service) resolve(ctx context.Context, supplierID uuid.UUID) (*supplier.Supplier, supplier.Adapter, error) {
	sup, err := s.suppliers.FindByID(ctx, supplierID)
	if err != nil {
		return nil, nil, err
	}
	adapter, err := s.adapters.AdapterFor(sup)
	if err != nil {
		return nil, nil, fmt.Errorf("supplier %s: %w", sup.Code, err)
	}
	return sup, adapter, nil
}

func (s *Service) fetchCatalog(ctx context.Context, adapter supplier.Adapter) ([]supplier.CatalogProduct, error) {
	var products []supplier.CatalogProduct
	err := s.withRetry(ctx, func(callCtx context.Context) error {
		var callErr error
		products, callErr = adapter.GetProductCatalog(callCtx)
		return callErr
	})
	return products, err
}

// withRetry runs call under the adapter timeout, retrying with exponential backoff
func (s *Service) withRetry(ctx context.Context, call func(context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryBackoff
	policy.RandomizationFactor = 0
	policy.Multiplier = 2

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.callWithTimeout(ctx, call)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(max(s.cfg.AdapterRetries, 0)+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Debug("Retrying supplier adapter call",
				zap.Duration("retry_in", next),
				zap.Error(err),
			)
		}),
	)
	return err
}

func (s *Service) callWithTimeout(ctx context.Context, call func(context.Context) error) error {
	if s.cfg.AdapterTimeout <= 0 {
		return call(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.AdapterTimeout)
	defer cancel()
	return call(callCtx)
}

// failOffer takes an offer out of routing after its sync failed
func (s *Service) failOffer(ctx context.Context, offer *supplier.Offer, cause error) {
	s.logger.Error("Offer sync failed",
		zap.String("sku", offer.SKU),
		zap.String("supplier_sku", offer.SupplierSKU),
		zap.Error(cause),
	)
	offer.MarkSyncError(cause, s.now())
	if err := s.offers.UpdateSyncStatus(ctx, offer); err != nil {
		s.logger.Error("Failed to mark offer sync error",
			zap.String("offer_id", offer.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) finish(ctx context.Context, sup *supplier.Supplier, result *SyncResult) {
	s.metrics.RecordSyncRun(ctx, string(result.Kind), result.Updated, result.Errors, result.Skipped)
	s.logger.Info("Supplier sync complete",
		zap.String("kind", string(result.Kind)),
		zap.String("supplier", sup.Code),
		zap.Int("updated", result.Updated),
		zap.Int("errors", result.Errors),
		zap.Int("skipped", result.Skipped),
		zap.Int("new", result.New),
	)

	now := s.now()
	sup.LastSyncedAt = &now
	sup.UpdatedAt = now
	if err := s.suppliers.Save(ctx, sup); err != nil {
		s.logger.Warn("Failed to record supplier sync time",
			zap.String("supplier", sup.Code),
			zap.Error(err),
		)
	}
}
