package suppliers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/printhub/fulfillment/internal/domain/supplier"
)

// ManualAdapter serves suppliers without an API. Their stock and prices are
// maintained by hand in the offer catalog, so the catalog is the source of truth
// and orders are placed out of band.
type ManualAdapter struct {
	offers     supplier.OfferReader
	supplierID uuid.UUID
}

// NewManualAdapter creates a manual adapter bound to one supplier
func NewManualAdapter(offers supplier.OfferReader, supplierID uuid.UUID) *ManualAdapter {
	return &ManualAdapter{offers: offers, supplierID: supplierID}
}

// Type returns the adapter type
func (a *ManualAdapter) Type() supplier.AdapterType {
	return supplier.AdapterTypeManual
}

// GetProductCatalog lists the supplier's stored offers
func (a *ManualAdapter) GetProductCatalog(ctx context.Context) ([]supplier.CatalogProduct, error) {
	offers, err := a.offers.FindBySupplier(ctx, a.supplierID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", supplier.ErrAdapterUnavailable, err)
	}
	products := make([]supplier.CatalogProduct, 0, len(offers))
	for _, o := range offers {
		products = append(products, supplier.CatalogProduct{
			SKU:           o.SupplierSKU,
			Name:          o.SKU,
			Cost:          o.Cost,
			Available:     o.IsAvailable,
			StockQuantity: o.StockQuantity,
		})
	}
	return products, nil
}

// CheckInventory reports the stored stock of an offer
func (a *ManualAdapter) CheckInventory(ctx context.Context, supplierSKU string) (*supplier.InventoryStatus, error) {
	offer, err := a.offers.FindBySupplierSKU(ctx, a.supplierID, supplierSKU)
	if errors.Is(err, supplier.ErrOfferNotFound) {
		return supplier.UnavailableInventory(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", supplier.ErrAdapterUnavailable, err)
	}
	return &supplier.InventoryStatus{
		Available: offer.IsAvailable && offer.StockQuantity > 0,
		Quantity:  offer.StockQuantity,
		LeadTime:  offer.LeadTime,
	}, nil
}

// CreateOrder is not supported; manual suppliers receive orders out of band
func (a *ManualAdapter) CreateOrder(ctx context.Context, req supplier.OrderRequest) (*supplier.SupplierOrder, error) {
	return nil, fmt.Errorf("%w: manual supplier takes orders out of band", supplier.ErrAdapterNotConfigured)
}

// GetOrderStatus always reports the order as unknown
func (a *ManualAdapter) GetOrderStatus(ctx context.Context, orderID string) (*supplier.OrderStatus, error) {
	return nil, supplier.ErrOrderNotFound
}

// CancelOrder always reports the order as unknown
func (a *ManualAdapter) CancelOrder(ctx context.Context, orderID string) error {
	return supplier.ErrOrderNotFound
}
