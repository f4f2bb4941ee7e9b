package supplier

import (
	"context"

	"github.com/google/uuid"
)

// SupplierRepository is the keyed lookup table for suppliers
type SupplierRepository interface {
	// FindByID finds a supplier by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Supplier, error)

	// FindByIDs resolves a set of suppliers in one query, keyed by ID
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Supplier, error)

	// FindActive returns all active suppliers ordered by code
	FindActive(ctx context.Context) ([]Supplier, error)

	// Save creates or updates a supplier
	Save(ctx context.Context, s *Supplier) error
}

// OfferReader reads offers without side effects
type OfferReader interface {
	// FindByID finds an offer by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Offer, error)

	// FindActiveBySKU returns active offers for an internal SKU in insertion order
	FindActiveBySKU(ctx context.Context, sku string) ([]Offer, error)

	// FindBySupplier returns every offer of a supplier in insertion order
	FindBySupplier(ctx context.Context, supplierID uuid.UUID) ([]Offer, error)

	// FindBySupplierSKU finds the offer keyed by (supplierID, supplierSKU)
	FindBySupplierSKU(ctx context.Context, supplierID uuid.UUID, supplierSKU string) (*Offer, error)
}

// OfferWriter writes offers
type OfferWriter interface {
	// Create inserts a new offer; a duplicate (supplierID, supplierSKU) returns ErrOfferAlreadyExists
	Create(ctx context.Context, offer *Offer) error

	// UpdateInventory writes stock, availability and sync status. Only call it
	// with a stock figure the supplier just reported; reservations decrement
	// stock in place and an older snapshot would undo them.
	UpdateInventory(ctx context.Context, offer *Offer) error

	// UpdateCost writes cost and sync status, leaving stock alone
	UpdateCost(ctx context.Context, offer *Offer) error

	// UpdateCatalogEntry writes cost, stock, availability and sync status
	// from a freshly fetched catalog product
	UpdateCatalogEntry(ctx context.Context, offer *Offer) error

	// UpdateSyncStatus writes sync status, last error and last sync time only
	UpdateSyncStatus(ctx context.Context, offer *Offer) error
}

// OfferRepository is the SupplierCatalogStore
type OfferRepository interface {
	OfferReader
	OfferWriter
}
