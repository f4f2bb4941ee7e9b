package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printhub/fulfillment/internal/domain/reservation"
)

// ReservationRecordModel is the persistence model for ledger records.
// Sequence records are additionally guarded by the partial unique index
// uq_reservation_sequence (kind, resource_id, amount) WHERE strategy = 'sequence',
// created by migration.
type ReservationRecordModel struct {
	ID         uuid.UUID            `gorm:"type:uuid;primary_key"`
	Kind       reservation.Kind     `gorm:"type:varchar(50);not null;index:idx_reservation_records_resource,priority:1"`
	ResourceID string               `gorm:"type:varchar(100);not null;index:idx_reservation_records_resource,priority:2"`
	Strategy   reservation.Strategy `gorm:"type:varchar(20);not null"`
	Amount     decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	State      reservation.State    `gorm:"type:varchar(20);not null;index"`
	Reference  string               `gorm:"type:varchar(100)"`
	CreatedAt  time.Time            `gorm:"not null"`
	UpdatedAt  time.Time            `gorm:"not null"`
	ReleasedAt *time.Time
}

// TableName returns the table name for GORM
func (ReservationRecordModel) TableName() string {
	return "reservation_records"
}

// ToDomain converts the persistence model to a domain Record
func (m *ReservationRecordModel) ToDomain() *reservation.Record {
	return &reservation.Record{
		ID:         m.ID,
		Kind:       m.Kind,
		ResourceID: m.ResourceID,
		Strategy:   m.Strategy,
		Amount:     m.Amount,
		State:      m.State,
		Reference:  m.Reference,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		ReleasedAt: m.ReleasedAt,
	}
}

// ReservationRecordModelFromDomain creates a model from a domain Record
func ReservationRecordModelFromDomain(r *reservation.Record) *ReservationRecordModel {
	return &ReservationRecordModel{
		ID:         r.ID,
		Kind:       r.Kind,
		ResourceID: r.ResourceID,
		Strategy:   r.Strategy,
		Amount:     r.Amount,
		State:      r.State,
		Reference:  r.Reference,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		ReleasedAt: r.ReleasedAt,
	}
}

// ReservationBoundModel is the persistence model for configured counter limits.
// Its row is the lock target of bounded reservations.
type ReservationBoundModel struct {
	Kind       reservation.Kind `gorm:"type:varchar(50);primaryKey"`
	ResourceID string           `gorm:"type:varchar(100);primaryKey"`
	Limit      decimal.Decimal  `gorm:"column:bound_limit;type:decimal(18,4);not null"`
	Blocked    bool             `gorm:"not null;default:false"`
	UpdatedAt  time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReservationBoundModel) TableName() string {
	return "reservation_bounds"
}

// ToDomain converts the persistence model to a domain Bound
func (m *ReservationBoundModel) ToDomain() *reservation.Bound {
	return &reservation.Bound{
		Kind:       m.Kind,
		ResourceID: m.ResourceID,
		Limit:      m.Limit,
		Blocked:    m.Blocked,
		UpdatedAt:  m.UpdatedAt,
	}
}
