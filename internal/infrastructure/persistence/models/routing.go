package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/printhub/fulfillment/internal/domain/routing"
)

// RoutingOutcomeModel is the persistence model for logged routing outcomes
type RoutingOutcomeModel struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key"`
	Reference  string         `gorm:"type:varchar(100);index"`
	SKU        string         `gorm:"column:sku;type:varchar(100);not null"`
	Quantity   int            `gorm:"not null"`
	SupplierID *uuid.UUID     `gorm:"type:uuid;index"`
	OfferID    *uuid.UUID     `gorm:"type:uuid"`
	Success    bool           `gorm:"not null"`
	Reason     routing.Reason `gorm:"type:varchar(50)"`
	CreatedAt  time.Time      `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (RoutingOutcomeModel) TableName() string {
	return "routing_outcomes"
}

// RoutingOutcomeModelFromDomain creates a model from a domain Outcome
func RoutingOutcomeModelFromDomain(o routing.Outcome) RoutingOutcomeModel {
	return RoutingOutcomeModel{
		ID:         o.ID,
		Reference:  o.Reference,
		SKU:        o.SKU,
		Quantity:   o.Quantity,
		SupplierID: o.SupplierID,
		OfferID:    o.OfferID,
		Success:    o.Success,
		Reason:     o.Reason,
		CreatedAt:  o.CreatedAt,
	}
}

// ToDomain converts the persistence model to a domain Outcome
func (m *RoutingOutcomeModel) ToDomain() routing.Outcome {
	return routing.Outcome{
		ID:         m.ID,
		Reference:  m.Reference,
		SKU:        m.SKU,
		Quantity:   m.Quantity,
		SupplierID: m.SupplierID,
		OfferID:    m.OfferID,
		Success:    m.Success,
		Reason:     m.Reason,
		CreatedAt:  m.CreatedAt,
	}
}
