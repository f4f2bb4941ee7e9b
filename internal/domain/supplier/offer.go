package supplier

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printhub/fulfillment/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// LeadTime
// ---------------------------------------------------------------------------

// LeadTimeUnit is the unit a supplier quotes lead times in
type LeadTimeUnit string

const (
	LeadTimeUnitDays  LeadTimeUnit = "days"
	LeadTimeUnitHours LeadTimeUnit = "hours"
)

// LeadTime is a supplier-quoted fulfillment window
type LeadTime struct {
	Min  int          `json:"min"`
	Max  int          `json:"max"`
	Unit LeadTimeUnit `json:"unit"`
}

// NewLeadTime creates a lead time, defaulting the unit to days
func NewLeadTime(minimum, maximum int, unit LeadTimeUnit) (LeadTime, error) {
	if unit == "" {
		unit = LeadTimeUnitDays
	}
	lt := LeadTime{Min: minimum, Max: maximum, Unit: unit}
	if err := lt.Validate(); err != nil {
		return LeadTime{}, err
	}
	return lt, nil
}

// Validate checks min <= max and both non-negative
func (lt LeadTime) Validate() error {
	if lt.Min < 0 || lt.Max < 0 || lt.Min > lt.Max {
		return ErrOfferInvalidLeadTime
	}
	switch lt.Unit {
	case LeadTimeUnitDays, LeadTimeUnitHours:
		return nil
	default:
		return ErrOfferInvalidLeadTime
	}
}

// ---------------------------------------------------------------------------
// SyncStatus
// ---------------------------------------------------------------------------

// SyncStatus reflects recent adapter reachability for an offer
type SyncStatus string

const (
	SyncStatusActive SyncStatus = "active"
	SyncStatusError  SyncStatus = "error"
)

// ---------------------------------------------------------------------------
// Offer Entity
// ---------------------------------------------------------------------------

// Offer is one supplier's terms for one internal SKU.
// Offers are never hard-deleted; they are switched off through SyncStatus or IsAvailable.
type Offer struct {
	shared.BaseEntity
	SKU           string
	SupplierID    uuid.UUID
	SupplierSKU   string
	Cost          decimal.Decimal
	StockQuantity int
	IsAvailable   bool
	IsPreferred   bool
	Priority      int
	MOQ           int
	LeadTime      LeadTime
	SyncStatus    SyncStatus
	LastSyncError string
	LastSyncedAt  *time.Time
}

// OfferTerms holds the mutable commercial terms used to create an offer
type OfferTerms struct {
	Cost          decimal.Decimal
	StockQuantity int
	IsAvailable   bool
	IsPreferred   bool
	Priority      int
	MOQ           int
	LeadTime      LeadTime
}

// NewOffer creates a new active offer mapping an internal SKU to a supplier SKU
func NewOffer(sku string, supplierID uuid.UUID, supplierSKU string, terms OfferTerms) (*Offer, error) {
	if terms.MOQ == 0 {
		terms.MOQ = 1
	}
	if terms.LeadTime.Unit == "" {
		terms.LeadTime.Unit = LeadTimeUnitDays
	}
	o := &Offer{
		BaseEntity:    shared.NewBaseEntity(),
		SKU:           strings.TrimSpace(sku),
		SupplierID:    supplierID,
		SupplierSKU:   strings.TrimSpace(supplierSKU),
		Cost:          terms.Cost,
		StockQuantity: terms.StockQuantity,
		IsAvailable:   terms.IsAvailable,
		IsPreferred:   terms.IsPreferred,
		Priority:      terms.Priority,
		MOQ:           terms.MOQ,
		LeadTime:      terms.LeadTime,
		SyncStatus:    SyncStatusActive,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate validates the offer invariants
func (o *Offer) Validate() error {
	if o.SKU == "" {
		return ErrOfferInvalidSKU
	}
	if o.SupplierID == uuid.Nil {
		return ErrOfferInvalidSupplierID
	}
	if o.SupplierSKU == "" {
		return ErrOfferInvalidSupplierSKU
	}
	if o.Cost.IsNegative() {
		return ErrOfferNegativeCost
	}
	if o.StockQuantity < 0 {
		return ErrOfferNegativeStock
	}
	if o.MOQ < 1 {
		return ErrOfferInvalidMOQ
	}
	return o.LeadTime.Validate()
}

// IsActive returns true if the offer takes part in routing
func (o *Offer) IsActive() bool {
	return o.SyncStatus == SyncStatusActive
}

// CanFulfill returns true if the offer is available with enough stock for quantity
func (o *Offer) CanFulfill(quantity int) bool {
	return o.IsAvailable && o.StockQuantity >= quantity
}

// AcceptsQuantity returns true if quantity meets the offer's MOQ
func (o *Offer) AcceptsQuantity(quantity int) bool {
	return quantity >= o.MOQ
}

// ApplyInventory overwrites availability and stock with the supplier's view
func (o *Offer) ApplyInventory(available bool, quantity int) error {
	if quantity < 0 {
		return ErrOfferNegativeStock
	}
	o.IsAvailable = available
	o.StockQuantity = quantity
	o.Touch(time.Now())
	return nil
}

// ApplyCost overwrites the unit cost with the supplier's view
func (o *Offer) ApplyCost(cost decimal.Decimal) error {
	if cost.IsNegative() {
		return ErrOfferNegativeCost
	}
	o.Cost = cost
	o.Touch(time.Now())
	return nil
}

// MarkSynced records a successful sync and clears any previous error
func (o *Offer) MarkSynced(at time.Time) {
	o.SyncStatus = SyncStatusActive
	o.LastSyncError = ""
	o.LastSyncedAt = &at
	o.Touch(at)
}

// MarkSyncError takes the offer out of routing until the next successful sync
func (o *Offer) MarkSyncError(err error, at time.Time) {
	o.SyncStatus = SyncStatusError
	if err != nil {
		o.LastSyncError = err.Error()
	}
	o.Touch(at)
}

// CompareOffers orders offers for routing: preferred first, then lower priority
// number, then lower cost, then shorter minimum lead time. Offers that tie on
// all four keys compare equal; callers sort stably to keep store order.
func CompareOffers(a, b *Offer) int {
	if a.IsPreferred != b.IsPreferred {
		if a.IsPreferred {
			return -1
		}
		return 1
	}
	if a.Priority != b.Priority {
		if a.Priority < b.Priority {
			return -1
		}
		return 1
	}
	if c := a.Cost.Cmp(b.Cost); c != 0 {
		return c
	}
	switch {
	case a.LeadTime.Min < b.LeadTime.Min:
		return -1
	case a.LeadTime.Min > b.LeadTime.Min:
		return 1
	default:
		return 0
	}
}
