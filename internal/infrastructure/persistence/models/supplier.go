package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printhub/fulfillment/internal/domain/supplier"
)

// SupplierModel is the persistence model for the Supplier entity.
type SupplierModel struct {
	BaseModel
	Code         string               `gorm:"type:varchar(50);not null;uniqueIndex:uq_suppliers_code"`
	Name         string               `gorm:"type:varchar(200);not null"`
	Type         supplier.AdapterType `gorm:"type:varchar(20);not null"`
	Status       supplier.Status      `gorm:"type:varchar(20);not null;default:'active';index"`
	LastSyncedAt *time.Time
}

// TableName returns the table name for GORM
func (SupplierModel) TableName() string {
	return "suppliers"
}

// ToDomain converts the persistence model to a domain Supplier
func (m *SupplierModel) ToDomain() *supplier.Supplier {
	return &supplier.Supplier{
		BaseEntity:   m.BaseModel.ToDomain(),
		Code:         m.Code,
		Name:         m.Name,
		Type:         m.Type,
		Status:       m.Status,
		LastSyncedAt: m.LastSyncedAt,
	}
}

// FromDomain populates the model from a domain Supplier
func (m *SupplierModel) FromDomain(s *supplier.Supplier) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.Code = s.Code
	m.Name = s.Name
	m.Type = s.Type
	m.Status = s.Status
	m.LastSyncedAt = s.LastSyncedAt
}

// SupplierModelFromDomain creates a model from a domain Supplier
func SupplierModelFromDomain(s *supplier.Supplier) *SupplierModel {
	m := &SupplierModel{}
	m.FromDomain(s)
	return m
}

// OfferModel is the persistence model for the supplier Offer entity.
// InsertSeq is assigned by the database and pins routing ties to insertion order.
type OfferModel struct {
	BaseModel
	InsertSeq     int64               `gorm:"column:insert_seq;->"`
	SKU           string              `gorm:"column:sku;type:varchar(100);not null;index:idx_supplier_offers_sku"`
	SupplierID    uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:uq_supplier_offers_supplier_sku,priority:1"`
	SupplierSKU   string              `gorm:"column:supplier_sku;type:varchar(100);not null;uniqueIndex:uq_supplier_offers_supplier_sku,priority:2"`
	Cost          decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	StockQuantity int                 `gorm:"not null;default:0"`
	IsAvailable   bool                `gorm:"not null;default:true"`
	IsPreferred   bool                `gorm:"not null;default:false"`
	Priority      int                 `gorm:"not null;default:0"`
	MOQ           int                 `gorm:"column:moq;not null;default:1"`
	LeadTimeMin   int                 `gorm:"not null;default:0"`
	LeadTimeMax   int                 `gorm:"not null;default:0"`
	LeadTimeUnit  string              `gorm:"type:varchar(10);not null;default:'days'"`
	SyncStatus    supplier.SyncStatus `gorm:"type:varchar(20);not null;default:'active'"`
	LastSyncError string              `gorm:"type:text"`
	LastSyncedAt  *time.Time
}

// TableName returns the table name for GORM
func (OfferModel) TableName() string {
	return "supplier_offers"
}

// ToDomain converts the persistence model to a domain Offer
func (m *OfferModel) ToDomain() *supplier.Offer {
	return &supplier.Offer{
		BaseEntity:    m.BaseModel.ToDomain(),
		SKU:           m.SKU,
		SupplierID:    m.SupplierID,
		SupplierSKU:   m.SupplierSKU,
		Cost:          m.Cost,
		StockQuantity: m.StockQuantity,
		IsAvailable:   m.IsAvailable,
		IsPreferred:   m.IsPreferred,
		Priority:      m.Priority,
		MOQ:           m.MOQ,
		LeadTime: supplier.LeadTime{
			Min:  m.LeadTimeMin,
			Max:  m.LeadTimeMax,
			Unit: supplier.LeadTimeUnit(m.LeadTimeUnit),
		},
		SyncStatus:    m.SyncStatus,
		LastSyncError: m.LastSyncError,
		LastSyncedAt:  m.LastSyncedAt,
	}
}

// FromDomain populates the model from a domain Offer
func (m *OfferModel) FromDomain(o *supplier.Offer) {
	m.FromDomainBaseEntity(o.BaseEntity)
	m.SKU = o.SKU
	m.SupplierID = o.SupplierID
	m.SupplierSKU = o.SupplierSKU
	m.Cost = o.Cost
	m.StockQuantity = o.StockQuantity
	m.IsAvailable = o.IsAvailable
	m.IsPreferred = o.IsPreferred
	m.Priority = o.Priority
	m.MOQ = o.MOQ
	m.LeadTimeMin = o.LeadTime.Min
	m.LeadTimeMax = o.LeadTime.Max
	m.LeadTimeUnit = string(o.LeadTime.Unit)
	m.SyncStatus = o.SyncStatus
	m.LastSyncError = o.LastSyncError
	m.LastSyncedAt = o.LastSyncedAt
}

// OfferModelFromDomain creates a model from a domain Offer
func OfferModelFromDomain(o *supplier.Offer) *OfferModel {
	m := &OfferModel{}
	m.FromDomain(o)
	return m
}
