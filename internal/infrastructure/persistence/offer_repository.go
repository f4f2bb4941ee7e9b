package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printhub/fulfillment/internal/domain/supplier"
	"github.com/printhub/fulfillment/internal/infrastructure/persistence/models"
)

// GormOfferRepository implements supplier.OfferRepository using GORM.
// Reads are ordered by insert_seq so equal-ranked offers keep their insertion order.
type GormOfferRepository struct {
	db *gorm.DB
}

// NewGormOfferRepository creates a new GormOfferRepository
func NewGormOfferRepository(db *gorm.DB) *GormOfferRepository {
	return &GormOfferRepository{db: db}
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// FindByID finds an offer by its ID
func (r *GormOfferRepository) FindByID(ctx context.Context, id uuid.UUID) (*supplier.Offer, error) {
	var model models.OfferModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, supplier.ErrOfferNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveBySKU returns the active offers for an internal SKU
func (r *GormOfferRepository) FindActiveBySKU(ctx context.Context, sku string) ([]supplier.Offer, error) {
	var offerModels []models.OfferModel
	if err := r.db.WithContext(ctx).
		Where("sku = ? AND sync_status = ?", sku, supplier.SyncStatusActive).
		Order("insert_seq ASC").
		Find(&offerModels).Error; err != nil {
		return nil, err
	}
	return toOffers(offerModels), nil
}

// FindBySupplier returns every offer of a supplier
func (r *GormOfferRepository) FindBySupplier(ctx context.Context, supplierID uuid.UUID) ([]supplier.Offer, error) {
	var offerModels []models.OfferModel
	if err := r.db.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Order("insert_seq ASC").
		Find(&offerModels).Error; err != nil {
		return nil, err
	}
	return toOffers(offerModels), nil
}

// FindBySupplierSKU finds the offer keyed by the supplier's own SKU
func (r *GormOfferRepository) FindBySupplierSKU(ctx context.Context, supplierID uuid.UUID, supplierSKU string) (*supplier.Offer, error) {
	var model models.OfferModel
	if err := r.db.WithContext(ctx).
		Where("supplier_id = ? AND supplier_sku = ?", supplierID, supplierSKU).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, supplier.ErrOfferNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// Create inserts a new offer
func (r *GormOfferRepository) Create(ctx context.Context, offer *supplier.Offer) error {
	if err := r.db.WithContext(ctx).Create(models.OfferModelFromDomain(offer)).Error; err != nil {
		if isUniqueViolation(err) {
			return supplier.ErrOfferAlreadyExists
		}
		return err
	}
	return nil
}

// UpdateInventory writes a freshly reported stock figure and availability.
// Routing preferences (preferred, priority, MOQ) are never touched by sync.
func (r *GormOfferRepository) UpdateInventory(ctx context.Context, offer *supplier.Offer) error {
	return r.updateColumns(ctx, offer, map[string]any{
		"stock_quantity": offer.StockQuantity,
		"is_available":   offer.IsAvailable,
	})
}

// UpdateCost writes a new supplier cost. Stock is left alone so concurrent
// reservations are not undone.
func (r *GormOfferRepository) UpdateCost(ctx context.Context, offer *supplier.Offer) error {
	return r.updateColumns(ctx, offer, map[string]any{
		"cost": offer.Cost,
	})
}

// UpdateCatalogEntry writes cost, stock and availability from one catalog product
func (r *GormOfferRepository) UpdateCatalogEntry(ctx context.Context, offer *supplier.Offer) error {
	return r.updateColumns(ctx, offer, map[string]any{
		"cost":           offer.Cost,
		"stock_quantity": offer.StockQuantity,
		"is_available":   offer.IsAvailable,
	})
}

// UpdateSyncStatus writes only the sync bookkeeping columns
func (r *GormOfferRepository) UpdateSyncStatus(ctx context.Context, offer *supplier.Offer) error {
	return r.updateColumns(ctx, offer, map[string]any{})
}

func (r *GormOfferRepository) updateColumns(ctx context.Context, offer *supplier.Offer, columns map[string]any) error {
	columns["sync_status"] = offer.SyncStatus
	columns["last_sync_error"] = offer.LastSyncError
	columns["last_synced_at"] = offer.LastSyncedAt
	columns["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.OfferModel{}).
		Where("id = ?", offer.ID).
		Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return supplier.ErrOfferNotFound
	}
	return nil
}

func toOffers(offerModels []models.OfferModel) []supplier.Offer {
	offers := make([]supplier.Offer, len(offerModels))
	for i, model := range offerModels {
		offers[i] = *model.ToDomain()
	}
	return offers
}

// Ensure GormOfferRepository implements OfferRepository
var _ supplier.OfferRepository = (*GormOfferRepository)(nil)
