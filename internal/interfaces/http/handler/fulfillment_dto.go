package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/printhub/fulfillment/internal/domain/reservation"
	"github.com/printhub/fulfillment/internal/domain/supplier"
	"github.com/printhub/fulfillment/internal/infrastructure/scheduler"
)

// OfferResponse represents a supplier offer in API responses
type OfferResponse struct {
	ID            string            `json:"id"`
	SKU           string            `json:"sku"`
	SupplierID    string            `json:"supplier_id"`
	SupplierSKU   string            `json:"supplier_sku"`
	Cost          decimal.Decimal   `json:"cost"`
	StockQuantity int               `json:"stock_quantity"`
	IsAvailable   bool              `json:"is_available"`
	IsPreferred   bool              `json:"is_preferred"`
	Priority      int               `json:"priority"`
	MOQ           int               `json:"moq"`
	LeadTime      supplier.LeadTime `json:"lead_time"`
	SyncStatus    string            `json:"sync_status"`
	LastSyncError string            `json:"last_sync_error,omitempty"`
	LastSyncedAt  *time.Time        `json:"last_synced_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// SupplierResponse represents a supplier in API responses
type SupplierResponse struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// SelectionResponse is the offer chosen for one line
type SelectionResponse struct {
	Offer    OfferResponse    `json:"offer"`
	Supplier SupplierResponse `json:"supplier"`
}

// RecordResponse represents a reservation record
type RecordResponse struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	ResourceID string          `json:"resource_id"`
	Strategy   string          `json:"strategy"`
	Amount     decimal.Decimal `json:"amount"`
	State      string          `json:"state"`
	Reference  string          `json:"reference,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	ReleasedAt *time.Time      `json:"released_at,omitempty"`
}

// DecisionResponse is the outcome of a bounded check or reservation
type DecisionResponse struct {
	Allowed   bool            `json:"allowed"`
	Blocked   bool            `json:"blocked"`
	Bound     decimal.Decimal `json:"bound"`
	Committed decimal.Decimal `json:"committed"`
	Requested decimal.Decimal `json:"requested"`
	Available decimal.Decimal `json:"available"`
	Shortfall decimal.Decimal `json:"shortfall"`
	Record    *RecordResponse `json:"record,omitempty"`
}

// SyncJobResponse represents a queued or finished sync job
type SyncJobResponse struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	SupplierID      *string    `json:"supplier_id,omitempty"`
	Trigger         string     `json:"trigger"`
	Status          string     `json:"status"`
	Error           string     `json:"error,omitempty"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	RetryCount      int        `json:"retry_count"`
	MaxRetries      int        `json:"max_retries"`
	NextRetryAt     *time.Time `json:"next_retry_at,omitempty"`
	Updated         int        `json:"updated"`
	Failed          int        `json:"failed"`
	Skipped         int        `json:"skipped"`
	FailedSuppliers int        `json:"failed_suppliers"`
}

func toOfferResponse(o *supplier.Offer) OfferResponse {
	return OfferResponse{
		ID:            o.ID.String(),
		SKU:           o.SKU,
		SupplierID:    o.SupplierID.String(),
		SupplierSKU:   o.SupplierSKU,
		Cost:          o.Cost,
		StockQuantity: o.StockQuantity,
		IsAvailable:   o.IsAvailable,
		IsPreferred:   o.IsPreferred,
		Priority:      o.Priority,
		MOQ:           o.MOQ,
		LeadTime:      o.LeadTime,
		SyncStatus:    string(o.SyncStatus),
		LastSyncError: o.LastSyncError,
		LastSyncedAt:  o.LastSyncedAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func toSupplierResponse(s *supplier.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:           s.ID.String(),
		Code:         s.Code,
		Name:         s.Name,
		Type:         string(s.Type),
		Status:       string(s.Status),
		LastSyncedAt: s.LastSyncedAt,
	}
}

func toRecordResponse(r *reservation.Record) RecordResponse {
	return RecordResponse{
		ID:         r.ID.String(),
		Kind:       string(r.Kind),
		ResourceID: r.ResourceID,
		Strategy:   string(r.Strategy),
		Amount:     r.Amount,
		State:      string(r.State),
		Reference:  r.Reference,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		ReleasedAt: r.ReleasedAt,
	}
}

func toDecisionResponse(d *reservation.Decision) DecisionResponse {
	resp := DecisionResponse{
		Allowed:   d.Allowed,
		Blocked:   d.Blocked,
		Bound:     d.Bound,
		Committed: d.Committed,
		Requested: d.Requested,
		Available: d.Available,
		Shortfall: d.Shortfall,
	}
	if d.Record != nil {
		rec := toRecordResponse(d.Record)
		resp.Record = &rec
	}
	return resp
}

func toSyncJobResponse(j scheduler.SupplySyncJob) SyncJobResponse {
	resp := SyncJobResponse{
		ID:              j.ID.String(),
		Kind:            string(j.Kind),
		Trigger:         j.Trigger,
		Status:          string(j.Status),
		Error:           j.Error,
		SubmittedAt:     j.SubmittedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		RetryCount:      j.RetryCount,
		MaxRetries:      j.MaxRetries,
		NextRetryAt:     j.NextRetryAt,
		Updated:         j.Updated,
		Failed:          j.Failed,
		Skipped:         j.Skipped,
		FailedSuppliers: j.FailedSuppliers,
	}
	if j.SupplierID != nil {
		id := j.SupplierID.String()
		resp.SupplierID = &id
	}
	return resp
}

func toSyncJobResponses(jobs []scheduler.SupplySyncJob) []SyncJobResponse {
	out := make([]SyncJobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toSyncJobResponse(j))
	}
	return out
}

