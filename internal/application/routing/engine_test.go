package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/domain/reservation"
	"github.com/printhub/fulfillment/internal/domain/routing"
	"github.com/printhub/fulfillment/internal/domain/shared"
	"github.com/printhub/fulfillment/internal/domain/supplier"
)

// fakeOfferReader serves offers per SKU in insertion order and can fail the
// first N reads to exercise the retry path.
type fakeOfferReader struct {
	mu       sync.Mutex
	bySKU    map[string][]supplier.Offer
	failNext int
	failErr  error
	reads    int
}

func newFakeOfferReader(offers ...supplier.Offer) *fakeOfferReader {
	r := &fakeOfferReader{bySKU: make(map[string][]supplier.Offer)}
	for _, o := range offers {
		r.bySKU[o.SKU] = append(r.bySKU[o.SKU], o)
	}
	return r
}

func (r *fakeOfferReader) FindByID(_ context.Context, id uuid.UUID) (*supplier.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, offers := range r.bySKU {
		for i := range offers {
			if offers[i].ID == id {
				o := offers[i]
				return &o, nil
			}
		}
	}
	return nil, supplier.ErrOfferNotFound
}

func (r *fakeOfferReader) FindActiveBySKU(_ context.Context, sku string) ([]supplier.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if r.failNext > 0 {
		r.failNext--
		return nil, r.failErr
	}
	var out []supplier.Offer
	for _, o := range r.bySKU[sku] {
		if o.SyncStatus == supplier.SyncStatusActive {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeOfferReader) FindBySupplier(_ context.Context, supplierID uuid.UUID) ([]supplier.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []supplier.Offer
	for _, offers := range r.bySKU {
		for _, o := range offers {
			if o.SupplierID == supplierID {
				out = append(out, o)
			}
		}
	}
	return out, nil
}

func (r *fakeOfferReader) FindBySupplierSKU(_ context.Context, supplierID uuid.UUID, supplierSKU string) (*supplier.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, offers := range r.bySKU {
		for i := range offers {
			if offers[i].SupplierID == supplierID && offers[i].SupplierSKU == supplierSKU {
				o := offers[i]
				return &o, nil
			}
		}
	}
	return nil, supplier.ErrOfferNotFound
}

// decrementStock mimics a committed stock reservation
func (r *fakeOfferReader) decrementStock(offerID uuid.UUID, qty int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sku, offers := range r.bySKU {
		for i := range offers {
			if offers[i].ID == offerID {
				if offers[i].StockQuantity < qty {
					return false
				}
				r.bySKU[sku][i].StockQuantity -= qty
				return true
			}
		}
	}
	return false
}

// MockSupplierRepository is a mock implementation of supplier.SupplierRepository
type MockSupplierRepository struct {
	mock.Mock
}

func (m *MockSupplierRepository) FindByID(ctx context.Context, id uuid.UUID) (*supplier.Supplier, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*supplier.Supplier), args.Error(1)
}

func (m *MockSupplierRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*supplier.Supplier, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*supplier.Supplier), args.Error(1)
}

func (m *MockSupplierRepository) FindActive(ctx context.Context) ([]supplier.Supplier, error) {
	args := m.Called(ctx)
	return args.Get(0).([]supplier.Supplier), args.Error(1)
}

func (m *MockSupplierRepository) Save(ctx context.Context, s *supplier.Supplier) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

// MockStockReserver is a mock implementation of StockReserver
type MockStockReserver struct {
	mock.Mock
}

func (m *MockStockReserver) ReserveOffer(ctx context.Context, offerID uuid.UUID, quantity int, reference string) (*reservation.Decision, error) {
	args := m.Called(ctx, offerID, quantity, reference)
	if fn, ok := args.Get(0).(func(context.Context, uuid.UUID, int, string) (*reservation.Decision, error)); ok {
		return fn(ctx, offerID, quantity, reference)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Decision), args.Error(1)
}

func (m *MockStockReserver) Release(ctx context.Context, recordID uuid.UUID) (*reservation.Record, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Record), args.Error(1)
}

// MockOutcomeRepository is a mock implementation of routing.OutcomeRepository
type MockOutcomeRepository struct {
	mock.Mock
}

func (m *MockOutcomeRepository) SaveBatch(ctx context.Context, outcomes []routing.Outcome) error {
	args := m.Called(ctx, outcomes)
	return args.Error(0)
}

func (m *MockOutcomeRepository) Aggregate(ctx context.Context, from, to time.Time) (*routing.OutcomeAggregate, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*routing.OutcomeAggregate), args.Error(1)
}

// Test fixtures

func newTestSupplier(t *testing.T, code, name string) *supplier.Supplier {
	t.Helper()
	s, err := supplier.NewSupplier(code, name, supplier.AdapterTypeManual)
	require.NoError(t, err)
	return s
}

func newTestOffer(t *testing.T, sku string, s *supplier.Supplier, terms supplier.OfferTerms) supplier.Offer {
	t.Helper()
	if terms.LeadTime.Max == 0 {
		terms.LeadTime = supplier.LeadTime{Min: 2, Max: 5, Unit: supplier.LeadTimeUnitDays}
	}
	o, err := supplier.NewOffer(sku, s.ID, s.Code+"-"+sku, terms)
	require.NoError(t, err)
	return *o
}

func supplierIndex(ss ...*supplier.Supplier) map[uuid.UUID]*supplier.Supplier {
	out := make(map[uuid.UUID]*supplier.Supplier, len(ss))
	for _, s := range ss {
		out[s.ID] = s
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.StoreRetryBackoff = time.Millisecond
	cfg.InventoryTimeout = 200 * time.Millisecond
	return cfg
}

// mugFixture is the MUG-01 catalog: A is cheaper but has MOQ 3, B is preferred
type mugFixture struct {
	a, b           *supplier.Supplier
	offerA, offerB supplier.Offer
	offers         *fakeOfferReader
	suppliers      *MockSupplierRepository
}

func newMugFixture(t *testing.T) *mugFixture {
	t.Helper()
	a := newTestSupplier(t, "SUP-A", "Supplier A")
	b := newTestSupplier(t, "SUP-B", "Supplier B")
	offerA := newTestOffer(t, "MUG-01", a, supplier.OfferTerms{
		Cost: decimal.NewFromInt(10), StockQuantity: 5, IsAvailable: true, MOQ: 3,
	})
	offerB := newTestOffer(t, "MUG-01", b, supplier.OfferTerms{
		Cost: decimal.NewFromInt(12), StockQuantity: 10, IsAvailable: true, MOQ: 1, IsPreferred: true,
	})
	repo := new(MockSupplierRepository)
	repo.On("FindByIDs", mock.Anything, mock.Anything).Return(supplierIndex(a, b), nil)
	return &mugFixture{
		a: a, b: b, offerA: offerA, offerB: offerB,
		offers:    newFakeOfferReader(offerA, offerB),
		suppliers: repo,
	}
}

// ---------------------------------------------------------------------------
// SelectSupplier
// ---------------------------------------------------------------------------

func TestSelectSupplier_PreferredBeatsCheaper(t *testing.T) {
	f := newMugFixture(t)
	engine := NewEngine(f.offers, f.suppliers, zap.NewNop(), WithConfig(testConfig()))

	sel, err := engine.SelectSupplier(context.Background(), "MUG-01", 4)

	require.NoError(t, err)
	assert.Equal(t, f.offerB.ID, sel.Offer.ID)
	assert.Equal(t, "Supplier B", sel.Supplier.Name)
}

func TestSelectSupplier_MOQExcludesCheaperOffer(t *testing.T) {
	f := newMugFixture(t)
	engine := NewEngine(f.offers, f.suppliers, zap.NewNop(), WithConfig(testConfig()))

	sel, err := engine.SelectSupplier(context.Background(), "MUG-01", 2)

	require.NoError(t, err)
	assert.Equal(t, f.b.ID, sel.Supplier.ID)

	plan, err := engine.RouteOrder(context.Background(), RouteOrderInput{
		Reference: "ORD-2",
		Lines:     []routing.Line{{SKU: "MUG-01", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Empty(t, plan.Unroutable)
	assert.Equal(t, 1, plan.RoutedLineCount())
}

func TestSelectSupplier_Rejections(t *testing.T) {
	f := newMugFixture(t)
	engine := NewEngine(f.offers, f.suppliers, zap.NewNop(), WithConfig(testConfig()))
	ctx := context.Background()

	_, err := engine.SelectSupplier(ctx, "NOPE-01", 1)
	reason, ok := routing.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, routing.ReasonNoSupplierFound, reason)

	_, err = engine.SelectSupplier(ctx, "MUG-01", 11)
	reason, ok = routing.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, routing.ReasonInsufficientStock, reason)
	assert.ErrorIs(t, err, routing.ErrInsufficientStock)
}

func TestSelectSupplier_BelowMOQWhenEveryStockedOfferRejectsQuantity(t *testing.T) {
	s := newTestSupplier(t, "SUP-C", "Supplier C")
	offers := newFakeOfferReader(newTestOffer(t, "BAG-01", s, supplier.OfferTerms{
		Cost: decimal.NewFromInt(3), StockQuantity: 100, IsAvailable: true, MOQ: 10,
	}))
	engine := NewEngine(offers, new(MockSupplierRepository), zap.NewNop(), WithConfig(testConfig()))

	_, err := engine.SelectSupplier(context.Background(), "BAG-01", 4)

	assert.ErrorIs(t, err, routing.ErrBelowMOQ)
}

func TestSelectSupplier_Validation(t *testing.T) {
	engine := NewEngine(newFakeOfferReader(), new(MockSupplierRepository), zap.NewNop())

	for _, tc := range []struct {
		name string
		sku  string
		qty  int
	}{
		{"empty sku", "  ", 1},
		{"zero quantity", "MUG-01", 0},
		{"negative quantity", "MUG-01", -2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.SelectSupplier(context.Background(), tc.sku, tc.qty)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestSelectSupplier_RetriesTransientStoreFailure(t *testing.T) {
	f := newMugFixture(t)
	f.offers.failNext = 2
	f.offers.failErr = errors.New("connection reset")
	engine := NewEngine(f.offers, f.suppliers, zap.NewNop(), WithConfig(testConfig()))

	sel, err := engine.SelectSupplier(context.Background(), "MUG-01", 4)

	require.NoError(t, err)
	assert.Equal(t, f.offerB.ID, sel.Offer.ID)
	assert.Equal(t, 3, f.offers.reads)
}

func TestSelectSupplier_StoreUnavailableIsNotARejection(t *testing.T) {
	f := newMugFixture(t)
	f.offers.failNext = 10
	f.offers.failErr = errors.New("connection refused")
	engine := NewEngine(f.offers, f.suppliers, zap.NewNop(), WithConfig(testConfig()))

	_, err := engine.SelectSupplier(context.Background(), "MUG-01", 4)

	require.Error(t, err)
	_, isRejection := routing.ReasonOf(err)
	assert.False(t, isRejection)
	assert.Contains(t, err.Error(), "after 4 attempts")
}

func TestSelectSupplier_NegativeStoreRetriesTriesOnce(t *testing.T) {
	f := newMugFixture(t)
	f.offers.failNext = 10
	f.offers.failErr = errors.New("connection refused")
	cfg := testConfig()
	cfg.StoreRetries = -1
	engine := NewEngine(f.offers, f.suppliers, zap.NewNop(), WithConfig(cfg))

	_, err := engine.SelectSupplier(context.Background(), "MUG-01", 4)

	require.Error(t, err)
	assert.Equal(t, 1, f.offers.reads)
	assert.Contains(t, err.Error(), "after 1 attempts")
}

func TestChooseOffer_TieKeepsInsertionOrder(t *testing.T) {
	a := newTestSupplier(t, "SUP-A", "A")
	b := newTestSupplier(t, "SUP-B", "B")
	terms := supplier.OfferTerms{Cost: decimal.NewFromInt(5), StockQuantity: 10, IsAvailable: true}
	first := newTestOffer(t, "TEE-01", a, terms)
	second := newTestOffer(t, "TEE-01", b, terms)

	got, err := ChooseOffer([]supplier.Offer{first, second}, routing.Line{SKU: "TEE-01", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = ChooseOffer([]supplier.Offer{second, first}, routing.Line{SKU: "TEE-01", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

// ---------------------------------------------------------------------------
// RouteOrder
// ---------------------------------------------------------------------------

func TestRouteOrder_MixedPlan(t *testing.T) {
	f := newMugFixture(t)
	outcomes := new(MockOutcomeRepository)
	outcomes.On("SaveBatch", mock.Anything, mock.MatchedBy(func(o []routing.Outcome) bool {
		return len(o) == 3
	})).Return(nil)
	engine := NewEngine(f.offers, f.suppliers, zap.NewNop(), WithConfig(testConfig()), WithOutcomeLog(outcomes))

	plan, err := engine.RouteOrder(context.Background(), RouteOrderInput{
		Reference: "ORD-1",
		Lines: []routing.Line{
			{SKU: " MUG-01 ", Quantity: 4},
			{SKU: "NOPE-01", Quantity: 1},
			{SKU: "MUG-01", Quantity: 50},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, plan.LineCount())
	require.Len(t, plan.Routes(), 1)
	route := plan.Routes()[0]
	assert.Equal(t, f.b.ID, route.SupplierID)
	assert.Equal(t, "Supplier B", route.SupplierName)
	assert.Equal(t, "MUG-01", route.Items[0].InternalSKU)
	assert.Equal(t, f.offerB.SupplierSKU, route.Items[0].SupplierSKU)

	require.Len(t, plan.Unroutable, 2)
	assert.Equal(t, routing.ReasonNoSupplierFound, plan.Unroutable[0].Reason)
	assert.Equal(t, routing.ReasonInsufficientStock, plan.Unroutable[1].Reason)
	outcomes.AssertExpectations(t)
}

func TestRouteOrder_OutcomeLogFailureDoesNotFailRouting(t *testing.T) {
	f := newMugFixture(t)
	outcomes := new(MockOutcomeRepository)
	outcomes.On("SaveBatch", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	engine := NewEngine(f.offers, f.suppliers, zap.NewNop(), WithConfig(testConfig()), WithOutcomeLog(outcomes))

	plan, err := engine.RouteOrder(context.Background(), RouteOrderInput{
		Lines: []routing.Line{{SKU: "MUG-01", Quantity: 1}},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, plan.RoutedLineCount())
}

func TestRouteOrder_EmptyOrderSkipsSupplierLookup(t *testing.T) {
	repo := new(MockSupplierRepository)
	engine := NewEngine(newFakeOfferReader(), repo, zap.NewNop())

	plan, err := engine.RouteOrder(context.Background(), RouteOrderInput{Reference: "ORD-0"})

	require.NoError(t, err)
	assert.Zero(t, plan.LineCount())
	repo.AssertNotCalled(t, "FindByIDs", mock.Anything, mock.Anything)
}

func TestRouteOrder_InvalidLineRejectsWholeOrder(t *testing.T) {
	f := newMugFixture(t)
	engine := NewEngine(f.offers, f.suppliers, zap.NewNop())

	_, err := engine.RouteOrder(context.Background(), RouteOrderInput{
		Lines: []routing.Line{{SKU: "MUG-01", Quantity: 1}, {SKU: "MUG-01", Quantity: 0}},
	})

	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestRouteOrder_ReserveRequiresReserver(t *testing.T) {
	f := newMugFixture(t)
	engine := NewEngine(f.offers, f.suppliers, zap.NewNop())

	_, err := engine.RouteOrder(context.Background(), RouteOrderInput{
		Lines:   []routing.Line{{SKU: "MUG-01", Quantity: 1}},
		Reserve: true,
	})

	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestRouteOrder_ReservationsSeeEarlierLines(t *testing.T) {
	f := newMugFixture(t)
	stock := new(MockStockReserver)
	stock.On("ReserveOffer", mock.Anything, mock.Anything, mock.Anything, "ORD-7").
		Return(func(_ context.Context, offerID uuid.UUID, qty int, _ string) (*reservation.Decision, error) {
			if !f.offers.decrementStock(offerID, qty) {
				return &reservation.Decision{Allowed: false}, nil
			}
			return &reservation.Decision{Allowed: true, Record: &reservation.Record{ID: uuid.New()}}, nil
		})
	engine := NewEngine(f.offers, f.suppliers, zap.NewNop(), WithConfig(testConfig()), WithStockReserver(stock))

	// B has 10 and A has 5 with MOQ 3: the second line no longer fits B
	plan, err := engine.RouteOrder(context.Background(), RouteOrderInput{
		Reference: "ORD-7",
		Reserve:   true,
		Lines: []routing.Line{
			{SKU: "MUG-01", Quantity: 8},
			{SKU: "MUG-01", Quantity: 4},
		},
	})

	require.NoError(t, err)
	require.Len(t, plan.Routes(), 2)
	rb, ok := plan.Route(f.b.ID)
	require.True(t, ok)
	assert.Equal(t, 8, rb.Items[0].Quantity)
	assert.NotNil(t, rb.Items[0].ReservationID)
	ra, ok := plan.Route(f.a.ID)
	require.True(t, ok)
	assert.Equal(t, 4, ra.Items[0].Quantity)
}

func TestRouteOrder_ReservationOutcomes(t *testing.T) {
	f := newMugFixture(t)
	stock := new(MockStockReserver)
	stock.On("ReserveOffer", mock.Anything, f.offerB.ID, 1, mock.Anything).
		Return(&reservation.Decision{Allowed: false}, nil).Once()
	stock.On("ReserveOffer", mock.Anything, f.offerB.ID, 2, mock.Anything).
		Return(nil, reservation.ErrRetryable).Once()
	outcomes := new(MockOutcomeRepository)
	var saved []routing.Outcome
	outcomes.On("SaveBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(1).([]routing.Outcome) }).
		Return(nil)
	engine := NewEngine(f.offers, f.suppliers, zap.NewNop(),
		WithConfig(testConfig()), WithStockReserver(stock), WithOutcomeLog(outcomes))

	plan, err := engine.RouteOrder(context.Background(), RouteOrderInput{
		Reference: "ORD-8",
		Reserve:   true,
		Lines:     []routing.Line{{SKU: "MUG-01", Quantity: 1}, {SKU: "MUG-01", Quantity: 2}},
	})

	require.NoError(t, err)
	assert.Empty(t, plan.Routes())
	require.Len(t, plan.Unroutable, 2)
	assert.Equal(t, routing.ReasonInsufficientStock, plan.Unroutable[0].Reason)
	assert.Equal(t, routing.ReasonReservationRetryable, plan.Unroutable[1].Reason)

	require.Len(t, saved, 2)
	for _, o := range saved {
		require.NotNil(t, o.SupplierID)
		assert.Equal(t, f.b.ID, *o.SupplierID)
	}
	stock.AssertExpectations(t)
}

func TestRouteOrder_InfrastructureFailureReleasesReservations(t *testing.T) {
	f := newMugFixture(t)
	first := uuid.New()
	stock := new(MockStockReserver)
	stock.On("ReserveOffer", mock.Anything, f.offerB.ID, 1, mock.Anything).
		Return(&reservation.Decision{Allowed: true, Record: &reservation.Record{ID: first}}, nil).Once()
	stock.On("ReserveOffer", mock.Anything, f.offerB.ID, 2, mock.Anything).
		Return(nil, errors.New("connection reset")).Once()
	stock.On("Release", mock.Anything, first).Return(&reservation.Record{ID: first}, nil).Once()
	engine := NewEngine(f.offers, f.suppliers, zap.NewNop(), WithConfig(testConfig()), WithStockReserver(stock))

	_, err := engine.RouteOrder(context.Background(), RouteOrderInput{
		Reserve: true,
		Lines:   []routing.Line{{SKU: "MUG-01", Quantity: 1}, {SKU: "MUG-01", Quantity: 2}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserve stock for MUG-01")
	stock.AssertExpectations(t)
}

func TestRouteOrder_SupplierLookupFailureReleasesReservations(t *testing.T) {
	f := newMugFixture(t)
	recordID := uuid.New()
	stock := new(MockStockReserver)
	stock.On("ReserveOffer", mock.Anything, f.offerB.ID, 1, mock.Anything).
		Return(&reservation.Decision{Allowed: true, Record: &reservation.Record{ID: recordID}}, nil)
	stock.On("Release", mock.Anything, recordID).Return(nil, reservation.ErrInvalidTransition)
	repo := new(MockSupplierRepository)
	repo.On("FindByIDs", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))
	engine := NewEngine(f.offers, repo, zap.NewNop(), WithConfig(testConfig()), WithStockReserver(stock))

	_, err := engine.RouteOrder(context.Background(), RouteOrderInput{
		Reserve: true,
		Lines:   []routing.Line{{SKU: "MUG-01", Quantity: 1}},
	})

	require.Error(t, err)
	stock.AssertCalled(t, "Release", mock.Anything, recordID)
}

// ---------------------------------------------------------------------------
// Properties over randomized catalogs
// ---------------------------------------------------------------------------

func randomCatalog(t *testing.T, faker *gofakeit.Faker, skus []string) (*fakeOfferReader, *MockSupplierRepository) {
	t.Helper()
	var suppliers []*supplier.Supplier
	for i := 0; i < 4; i++ {
		suppliers = append(suppliers, newTestSupplier(t, faker.LetterN(6), faker.Company()))
	}
	reader := newFakeOfferReader()
	for _, sku := range skus {
		for _, s := range suppliers {
			if faker.IntRange(0, 3) == 0 {
				continue
			}
			o := newTestOffer(t, sku, s, supplier.OfferTerms{
				Cost:          decimal.NewFromInt(int64(faker.IntRange(1, 4))),
				StockQuantity: faker.IntRange(0, 20),
				IsAvailable:   faker.IntRange(0, 4) > 0,
				IsPreferred:   faker.IntRange(0, 4) == 0,
				Priority:      faker.IntRange(0, 2),
				MOQ:           faker.IntRange(1, 5),
				LeadTime:      supplier.LeadTime{Min: faker.IntRange(1, 3), Max: 5, Unit: supplier.LeadTimeUnitDays},
			})
			reader.bySKU[sku] = append(reader.bySKU[sku], o)
		}
	}
	repo := new(MockSupplierRepository)
	repo.On("FindByIDs", mock.Anything, mock.Anything).Return(supplierIndex(suppliers...), nil)
	return reader, repo
}

func TestRouteOrder_EveryLineIsAccountedForAndRoutingIsDeterministic(t *testing.T) {
	faker := gofakeit.New(20240611)
	skus := []string{"MUG-01", "TEE-01", "CAP-01", "BAG-01", "PIN-01"}

	for round := 0; round < 25; round++ {
		reader, repo := randomCatalog(t, faker, skus)
		engine := NewEngine(reader, repo, zap.NewNop(), WithConfig(testConfig()))

		var lines []routing.Line
		for i := faker.IntRange(1, 8); i > 0; i-- {
			lines = append(lines, routing.Line{
				SKU:      skus[faker.IntRange(0, len(skus)-1)],
				Quantity: faker.IntRange(1, 12),
			})
		}
		input := RouteOrderInput{Reference: faker.UUID(), Lines: lines}

		first, err := engine.RouteOrder(context.Background(), input)
		require.NoError(t, err)
		second, err := engine.RouteOrder(context.Background(), input)
		require.NoError(t, err)

		assert.Equal(t, len(lines), first.RoutedLineCount()+len(first.Unroutable), "round %d", round)
		assert.Equal(t, first.Routes(), second.Routes(), "round %d", round)
		assert.Equal(t, first.Unroutable, second.Unroutable, "round %d", round)

		for _, r := range first.Routes() {
			for _, it := range r.Items {
				offer, err := reader.FindByID(context.Background(), it.OfferID)
				require.NoError(t, err)
				assert.True(t, offer.CanFulfill(it.Quantity))
				assert.True(t, offer.AcceptsQuantity(it.Quantity))
			}
		}
	}
}

// ---------------------------------------------------------------------------
// GetStatistics
// ---------------------------------------------------------------------------

func TestGetStatistics(t *testing.T) {
	a := newTestSupplier(t, "SUP-A", "Supplier A")
	gone := uuid.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	outcomes := new(MockOutcomeRepository)
	outcomes.On("Aggregate", mock.Anything, from, to).Return(&routing.OutcomeAggregate{
		Requests: 3, Lines: 7, Successful: 5, Failed: 2,
		Suppliers: []routing.SupplierTally{
			{SupplierID: a.ID, Routed: 5, Failed: 1},
			{SupplierID: gone, Routed: 0, Failed: 1},
		},
		Reasons: map[routing.Reason]int64{routing.ReasonInsufficientStock: 2},
	}, nil)
	repo := new(MockSupplierRepository)
	repo.On("FindByIDs", mock.Anything, []uuid.UUID{a.ID, gone}).Return(supplierIndex(a), nil)
	engine := NewEngine(newFakeOfferReader(), repo, zap.NewNop(), WithOutcomeLog(outcomes))

	stats, err := engine.GetStatistics(context.Background(), StatisticsQuery{From: from, To: to})

	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalRequests)
	assert.EqualValues(t, 7, stats.TotalLines)
	assert.EqualValues(t, 5, stats.SuccessfulRoutes)
	assert.EqualValues(t, 2, stats.FailedRoutes)
	require.Len(t, stats.Suppliers, 2)
	assert.Equal(t, "Supplier A", stats.Suppliers[0].SupplierName)
	assert.Empty(t, stats.Suppliers[1].SupplierName)
	assert.EqualValues(t, 2, stats.FailureReasons[routing.ReasonInsufficientStock])
}

func TestGetStatistics_InvalidWindow(t *testing.T) {
	engine := NewEngine(newFakeOfferReader(), new(MockSupplierRepository), zap.NewNop(),
		WithOutcomeLog(new(MockOutcomeRepository)))
	now := time.Now()

	_, err := engine.GetStatistics(context.Background(), StatisticsQuery{From: now, To: now})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = engine.GetStatistics(context.Background(), StatisticsQuery{To: now})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
