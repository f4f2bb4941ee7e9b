package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	reservationapp "github.com/printhub/fulfillment/internal/application/reservation"
	"github.com/printhub/fulfillment/internal/domain/reservation"
)

// ReservationLedger is the reservation ledger as seen by the API
type ReservationLedger interface {
	Reserve(ctx context.Context, input reservationapp.ReserveInput) (*reservation.Decision, error)
	Check(ctx context.Context, kind reservation.Kind, resourceID string, amount decimal.Decimal) (*reservation.Decision, error)
	AssignSequence(ctx context.Context, kind reservation.Kind, resourceID, reference string) (*reservation.Record, error)
	Release(ctx context.Context, recordID uuid.UUID) (*reservation.Record, error)
	Get(ctx context.Context, recordID uuid.UUID) (*reservation.Record, error)
	Outstanding(ctx context.Context, kind reservation.Kind, resourceID string) (decimal.Decimal, error)
}

// ReservationHandler handles bounded reservations and sequence assignment
type ReservationHandler struct {
	BaseHandler
	ledger ReservationLedger
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(ledger ReservationLedger) *ReservationHandler {
	return &ReservationHandler{ledger: ledger}
}

// ReserveRequest represents a bounded claim against a counter
type ReserveRequest struct {
	Kind       string          `json:"kind" binding:"required,max=50"`
	ResourceID string          `json:"resource_id" binding:"required,max=200"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference" binding:"max=200"`
}

// CheckRequest asks whether a claim would fit without taking it
type CheckRequest struct {
	Kind       string          `json:"kind" binding:"required,max=50"`
	ResourceID string          `json:"resource_id" binding:"required,max=200"`
	Amount     decimal.Decimal `json:"amount"`
}

// SequenceRequest asks for the next number of a per-resource sequence
type SequenceRequest struct {
	Kind       string `json:"kind" binding:"required,max=50"`
	ResourceID string `json:"resource_id" binding:"required,max=200"`
	Reference  string `json:"reference" binding:"max=200"`
}

// OutstandingQuery names one counter
type OutstandingQuery struct {
	Kind       string `form:"kind" binding:"required,max=50"`
	ResourceID string `form:"resource_id" binding:"required,max=200"`
}

// SequenceResponse is an assigned sequence number with its record
type SequenceResponse struct {
	Sequence int64          `json:"sequence"`
	Record   RecordResponse `json:"record"`
}

// OutstandingResponse is the committed total of one counter
type OutstandingResponse struct {
	Kind        string          `json:"kind"`
	ResourceID  string          `json:"resource_id"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// Reserve places a bounded claim. A granted claim answers 201 with its
// record; a denied one answers 200 with allowed=false and the shortfall.
//
// POST /reservations
func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	decision, err := h.ledger.Reserve(c.Request.Context(), reservationapp.ReserveInput{
		Kind:       reservation.Kind(req.Kind),
		ResourceID: req.ResourceID,
		Amount:     req.Amount,
		Reference:  req.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Decision(c, decision)
}

// Check evaluates a claim against the current bound without taking it.
//
// POST /reservations/check
func (h *ReservationHandler) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	decision, err := h.ledger.Check(c.Request.Context(), reservation.Kind(req.Kind), req.ResourceID, req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toDecisionResponse(decision))
}

// Get returns one reservation record.
//
// GET /reservations/:id
func (h *ReservationHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid reservation ID format")
		return
	}

	rec, err := h.ledger.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRecordResponse(rec))
}

// Release hands a claim back to its counter.
//
// POST /reservations/:id/release
func (h *ReservationHandler) Release(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid reservation ID format")
		return
	}

	rec, err := h.ledger.Release(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRecordResponse(rec))
}

// Outstanding returns the committed total of one counter.
//
// GET /reservations/outstanding?kind=&resource_id=
func (h *ReservationHandler) Outstanding(c *gin.Context) {
	var q OutstandingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	total, err := h.ledger.Outstanding(c.Request.Context(), reservation.Kind(q.Kind), q.ResourceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, OutstandingResponse{
		Kind:        q.Kind,
		ResourceID:  q.ResourceID,
		Outstanding: total,
	})
}

// AssignSequence hands out the next number of a resource's sequence.
//
// POST /sequences
func (h *ReservationHandler) AssignSequence(c *gin.Context) {
	var req SequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	rec, err := h.ledger.AssignSequence(c.Request.Context(), reservation.Kind(req.Kind), req.ResourceID, req.Reference)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, SequenceResponse{
		Sequence: rec.Sequence(),
		Record:   toRecordResponse(rec),
	})
}

// VersionAssigner hands out gap-free asset version numbers
type VersionAssigner interface {
	NextVersion(ctx context.Context, resourceID, reference string) (int64, error)
}

// VersionHandler assigns design asset versions
type VersionHandler struct {
	BaseHandler
	versions VersionAssigner
}

// NewVersionHandler creates a new VersionHandler
func NewVersionHandler(versions VersionAssigner) *VersionHandler {
	return &VersionHandler{versions: versions}
}

// NextVersionRequest optionally tags the new version with a caller reference
type NextVersionRequest struct {
	Reference string `json:"reference" binding:"max=200"`
}

// VersionResponse is a newly assigned asset version
type VersionResponse struct {
	AssetID string `json:"asset_id"`
	Version int64  `json:"version"`
}

// Next assigns the next version of an asset. The body is optional.
//
// POST /assets/:assetId/versions
func (h *VersionHandler) Next(c *gin.Context) {
	var req NextVersionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	assetID := c.Param("assetId")
	version, err := h.versions.NextVersion(c.Request.Context(), assetID, req.Reference)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, VersionResponse{AssetID: assetID, Version: version})
}

// Decision answers a reservation attempt: 201 when granted, 200 when denied
func (h *BaseHandler) Decision(c *gin.Context, d *reservation.Decision) {
	if d.Allowed {
		h.Created(c, toDecisionResponse(d))
		return
	}
	h.Success(c, toDecisionResponse(d))
}
