package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/domain/shared"
	"github.com/printhub/fulfillment/internal/domain/supplier"
)

// stubAdapter answers CheckInventory from a fixed table
type stubAdapter struct {
	inventory map[string]*supplier.InventoryStatus
	err       error
	delay     time.Duration
	nilStatus bool
}

func (a *stubAdapter) Type() supplier.AdapterType { return supplier.AdapterTypeManual }

func (a *stubAdapter) GetProductCatalog(context.Context) ([]supplier.CatalogProduct, error) {
	return nil, nil
}

func (a *stubAdapter) CheckInventory(ctx context.Context, supplierSKU string) (*supplier.InventoryStatus, error) {
	if a.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.delay):
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	if a.nilStatus {
		return nil, nil
	}
	if inv, ok := a.inventory[supplierSKU]; ok {
		return inv, nil
	}
	return supplier.UnavailableInventory(), nil
}

func (a *stubAdapter) CreateOrder(context.Context, supplier.OrderRequest) (*supplier.SupplierOrder, error) {
	return nil, supplier.ErrAdapterNotConfigured
}

func (a *stubAdapter) GetOrderStatus(context.Context, string) (*supplier.OrderStatus, error) {
	return nil, supplier.ErrOrderNotFound
}

func (a *stubAdapter) CancelOrder(context.Context, string) error {
	return supplier.ErrOrderNotFound
}

type stubResolver map[string]supplier.Adapter

func (r stubResolver) AdapterFor(s *supplier.Supplier) (supplier.Adapter, error) {
	if a, ok := r[s.Code]; ok {
		return a, nil
	}
	return nil, supplier.ErrAdapterNotConfigured
}

func TestCheckInventoryAcrossSuppliers(t *testing.T) {
	a := newTestSupplier(t, "SUP-A", "Supplier A")
	b := newTestSupplier(t, "SUP-B", "Supplier B")
	c := newTestSupplier(t, "SUP-C", "Supplier C")
	d := newTestSupplier(t, "SUP-D", "Supplier D")
	terms := supplier.OfferTerms{Cost: decimal.NewFromInt(5), StockQuantity: 1, IsAvailable: true}
	offers := newFakeOfferReader(
		newTestOffer(t, "MUG-01", a, terms),
		newTestOffer(t, "MUG-01", b, terms),
		newTestOffer(t, "MUG-01", c, terms),
		newTestOffer(t, "MUG-01", d, terms),
	)
	repo := new(MockSupplierRepository)
	repo.On("FindByIDs", mock.Anything, mock.Anything).Return(supplierIndex(a, b, c, d), nil)

	lead := supplier.LeadTime{Min: 2, Max: 7, Unit: supplier.LeadTimeUnitDays}
	resolver := stubResolver{
		"SUP-A": &stubAdapter{inventory: map[string]*supplier.InventoryStatus{
			"SUP-A-MUG-01": {Available: true, Quantity: 40, LeadTime: lead},
		}},
		"SUP-B": &stubAdapter{err: supplier.ErrAdapterUnavailable},
		"SUP-C": &stubAdapter{},
		"SUP-D": &stubAdapter{delay: time.Second},
	}
	engine := NewEngine(offers, repo, zap.NewNop(), WithConfig(testConfig()), WithAdapters(resolver))

	summary, err := engine.CheckInventoryAcrossSuppliers(context.Background(), " MUG-01 ")

	require.NoError(t, err)
	assert.Equal(t, "MUG-01", summary.SKU)
	assert.Equal(t, 40, summary.TotalAvailable)

	require.Len(t, summary.Suppliers, 2)
	assert.Equal(t, a.ID, summary.Suppliers[0].SupplierID)
	assert.Equal(t, "Supplier A", summary.Suppliers[0].SupplierName)
	assert.Equal(t, lead, summary.Suppliers[0].LeadTime)
	assert.Equal(t, c.ID, summary.Suppliers[1].SupplierID)
	assert.False(t, summary.Suppliers[1].Available)

	require.Len(t, summary.Failed, 2)
	assert.Equal(t, b.ID, summary.Failed[0].SupplierID)
	assert.Equal(t, d.ID, summary.Failed[1].SupplierID)
	assert.Contains(t, summary.Failed[1].Error, "deadline exceeded")
}

func TestCheckInventoryAcrossSuppliers_NilStatusFailsOnlyThatSupplier(t *testing.T) {
	a := newTestSupplier(t, "SUP-A", "Supplier A")
	b := newTestSupplier(t, "SUP-B", "Supplier B")
	terms := supplier.OfferTerms{Cost: decimal.NewFromInt(5), StockQuantity: 1, IsAvailable: true}
	offers := newFakeOfferReader(
		newTestOffer(t, "MUG-01", a, terms),
		newTestOffer(t, "MUG-01", b, terms),
	)
	repo := new(MockSupplierRepository)
	repo.On("FindByIDs", mock.Anything, mock.Anything).Return(supplierIndex(a, b), nil)
	resolver := stubResolver{
		"SUP-A": &stubAdapter{nilStatus: true},
		"SUP-B": &stubAdapter{inventory: map[string]*supplier.InventoryStatus{
			"SUP-B-MUG-01": {Available: true, Quantity: 9},
		}},
	}
	engine := NewEngine(offers, repo, zap.NewNop(), WithConfig(testConfig()), WithAdapters(resolver))

	summary, err := engine.CheckInventoryAcrossSuppliers(context.Background(), "MUG-01")

	require.NoError(t, err)
	assert.Equal(t, 9, summary.TotalAvailable)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, a.ID, summary.Failed[0].SupplierID)
	assert.Contains(t, summary.Failed[0].Error, "invalid adapter response")
}

func TestCheckInventoryAcrossSuppliers_NoOffers(t *testing.T) {
	repo := new(MockSupplierRepository)
	repo.On("FindByIDs", mock.Anything, mock.Anything).Return(supplierIndex(), nil)
	engine := NewEngine(newFakeOfferReader(), repo, zap.NewNop(), WithAdapters(stubResolver{}))

	summary, err := engine.CheckInventoryAcrossSuppliers(context.Background(), "NOPE-01")

	require.NoError(t, err)
	assert.Zero(t, summary.TotalAvailable)
	assert.Empty(t, summary.Suppliers)
	assert.Empty(t, summary.Failed)
}

func TestCheckInventoryAcrossSuppliers_Guards(t *testing.T) {
	engine := NewEngine(newFakeOfferReader(), new(MockSupplierRepository), zap.NewNop())

	_, err := engine.CheckInventoryAcrossSuppliers(context.Background(), "MUG-01")
	assert.True(t, errors.Is(err, supplier.ErrAdapterNotConfigured))

	engine = NewEngine(newFakeOfferReader(), new(MockSupplierRepository), zap.NewNop(), WithAdapters(stubResolver{}))
	_, err = engine.CheckInventoryAcrossSuppliers(context.Background(), "")
	assert.ErrorIs(t, err, shared.ErrValidation)
}
