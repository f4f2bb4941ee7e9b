package supplier

import (
	"strings"
	"time"

	"github.com/printhub/fulfillment/internal/domain/shared"
)

// AdapterType identifies which adapter implementation talks to a supplier
type AdapterType string

const (
	// AdapterTypePrintful is a Printful-compatible REST API
	AdapterTypePrintful AdapterType = "printful"
	// AdapterTypeManual is a supplier managed by hand (no API)
	AdapterTypeManual AdapterType = "manual"
)

// IsValid returns true if the adapter type is known
func (t AdapterType) IsValid() bool {
	switch t {
	case AdapterTypePrintful, AdapterTypeManual:
		return true
	default:
		return false
	}
}

// Status is the operational status of a supplier
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Supplier is an external fulfillment partner.
type Supplier struct {
	shared.BaseEntity
	Code         string
	Name         string
	Type         AdapterType
	Status       Status
	LastSyncedAt *time.Time
}

// NewSupplier creates an active supplier
func NewSupplier(code, name string, adapterType AdapterType) (*Supplier, error) {
	s := &Supplier{
		BaseEntity: shared.NewBaseEntity(),
		Code:       strings.TrimSpace(code),
		Name:       strings.TrimSpace(name),
		Type:       adapterType,
		Status:     StatusActive,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate validates the supplier
func (s *Supplier) Validate() error {
	if s.Code == "" {
		return ErrSupplierInvalidCode
	}
	if s.Name == "" {
		return ErrSupplierInvalidName
	}
	if !s.Type.IsValid() {
		return ErrSupplierInvalidType
	}
	return nil
}

// IsActive returns true if the supplier takes part in routing and sync
func (s *Supplier) IsActive() bool {
	return s.Status == StatusActive
}

// Deactivate takes the supplier out of rotation
func (s *Supplier) Deactivate() {
	s.Status = StatusInactive
	s.Touch(time.Now())
}

// MarkSynced records a completed sync run
func (s *Supplier) MarkSynced(at time.Time) {
	s.LastSyncedAt = &at
	s.Touch(at)
}
