package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/printhub/fulfillment/internal/domain/shared"
)

// BaseModel carries the identity and audit columns shared by suppliers and offers
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain returns the domain BaseEntity for the row
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

// FromDomainBaseEntity copies e into the model. A zero UpdatedAt falls back to CreatedAt
// so rows written before the first Touch still satisfy the not-null column.
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
}
