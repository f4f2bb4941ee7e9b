package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printhub/fulfillment/internal/domain/supplier"
	"github.com/printhub/fulfillment/internal/infrastructure/persistence/models"
)

// GormSupplierRepository implements supplier.SupplierRepository using GORM
type GormSupplierRepository struct {
	db *gorm.DB
}

// NewGormSupplierRepository creates a new GormSupplierRepository
func NewGormSupplierRepository(db *gorm.DB) *GormSupplierRepository {
	return &GormSupplierRepository{db: db}
}

// FindByID finds a supplier by its ID
func (r *GormSupplierRepository) FindByID(ctx context.Context, id uuid.UUID) (*supplier.Supplier, error) {
	var model models.SupplierModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, supplier.ErrSupplierNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs resolves suppliers in one query. Unknown IDs are simply absent from the map.
func (r *GormSupplierRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*supplier.Supplier, error) {
	result := make(map[uuid.UUID]*supplier.Supplier, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var supplierModels []models.SupplierModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&supplierModels).Error; err != nil {
		return nil, err
	}
	for i := range supplierModels {
		s := supplierModels[i].ToDomain()
		result[s.ID] = s
	}
	return result, nil
}

// FindActive returns active suppliers ordered by code
func (r *GormSupplierRepository) FindActive(ctx context.Context) ([]supplier.Supplier, error) {
	var supplierModels []models.SupplierModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", supplier.StatusActive).
		Order("code ASC").
		Find(&supplierModels).Error; err != nil {
		return nil, err
	}
	suppliers := make([]supplier.Supplier, len(supplierModels))
	for i, model := range supplierModels {
		suppliers[i] = *model.ToDomain()
	}
	return suppliers, nil
}

// Save creates or updates a supplier
func (r *GormSupplierRepository) Save(ctx context.Context, s *supplier.Supplier) error {
	return r.db.WithContext(ctx).Save(models.SupplierModelFromDomain(s)).Error
}

// Ensure GormSupplierRepository implements SupplierRepository
var _ supplier.SupplierRepository = (*GormSupplierRepository)(nil)
