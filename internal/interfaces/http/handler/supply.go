package handler

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/application/supplysync"
	"github.com/printhub/fulfillment/internal/domain/supplier"
	"github.com/printhub/fulfillment/internal/infrastructure/logger"
	"github.com/printhub/fulfillment/internal/infrastructure/scheduler"
)

const (
	// WebhookEventIDHeader carries the delivery ID when the body has none
	WebhookEventIDHeader = "X-Webhook-Event-ID"

	defaultJobHistoryLimit = 20
	maxJobHistoryLimit     = 100
)

// SupplyService covers offer registration and webhook intake
type SupplyService interface {
	RegisterOffer(ctx context.Context, input supplysync.RegisterOfferInput) (*supplier.Offer, error)
	HandleWebhook(ctx context.Context, event supplysync.WebhookEvent) (string, error)
}

// SyncScheduler queues background sync jobs
type SyncScheduler interface {
	ScheduleSync(kind supplysync.Kind, supplierID *uuid.UUID, trigger string) (uuid.UUID, error)
	GetJobHistory(limit int) []scheduler.SupplySyncJob
	GetJob(id uuid.UUID) (scheduler.SupplySyncJob, error)
}

// SupplyHandler handles offer, sync and supplier webhook endpoints
type SupplyHandler struct {
	BaseHandler
	supply    SupplyService
	scheduler SyncScheduler
}

// NewSupplyHandler creates a new SupplyHandler
func NewSupplyHandler(supply SupplyService, sched SyncScheduler) *SupplyHandler {
	return &SupplyHandler{supply: supply, scheduler: sched}
}

// LeadTimeRequest is a fulfillment lead time range
type LeadTimeRequest struct {
	Min  int    `json:"min" binding:"gte=0"`
	Max  int    `json:"max" binding:"gtefield=Min"`
	Unit string `json:"unit" binding:"omitempty,oneof=days hours"`
}

// RegisterOfferRequest maps an internal SKU to a supplier SKU
type RegisterOfferRequest struct {
	SKU           string          `json:"sku" binding:"required,max=100,sku"`
	SupplierID    string          `json:"supplier_id" binding:"required,uuid"`
	SupplierSKU   string          `json:"supplier_sku" binding:"required,max=100,sku"`
	Cost          decimal.Decimal `json:"cost"`
	StockQuantity int             `json:"stock_quantity" binding:"gte=0"`
	IsAvailable   bool            `json:"is_available"`
	IsPreferred   bool            `json:"is_preferred"`
	Priority      int             `json:"priority"`
	MOQ           int             `json:"moq" binding:"gte=0"`
	LeadTime      LeadTimeRequest `json:"lead_time"`
}

// WebhookRequest is one supplier delivery
type WebhookRequest struct {
	ID      string          `json:"id" binding:"max=200"`
	Type    string          `json:"type" binding:"required,max=100"`
	Payload json.RawMessage `json:"payload"`
}

// WebhookResponse reports what happened to a delivery
type WebhookResponse struct {
	EventID string `json:"event_id,omitempty"`
	Outcome string `json:"outcome"`
}

// ScheduleSyncResponse identifies a queued job
type ScheduleSyncResponse struct {
	JobID string `json:"job_id"`
	Kind  string `json:"kind"`
}

// RegisterOffer creates a supplier offer.
//
// POST /offers
func (h *SupplyHandler) RegisterOffer(c *gin.Context) {
	var req RegisterOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	unit := supplier.LeadTimeUnit(req.LeadTime.Unit)
	if unit == "" {
		unit = supplier.LeadTimeUnitDays
	}

	offer, err := h.supply.RegisterOffer(c.Request.Context(), supplysync.RegisterOfferInput{
		SKU:           req.SKU,
		SupplierID:    uuid.MustParse(req.SupplierID),
		SupplierSKU:   req.SupplierSKU,
		Cost:          req.Cost,
		StockQuantity: req.StockQuantity,
		IsAvailable:   req.IsAvailable,
		IsPreferred:   req.IsPreferred,
		Priority:      req.Priority,
		MOQ:           req.MOQ,
		LeadTime: supplier.LeadTime{
			Min:  req.LeadTime.Min,
			Max:  req.LeadTime.Max,
			Unit: unit,
		},
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toOfferResponse(offer))
}

// ScheduleSync queues a sync of one kind. With supplier_id only that
// supplier is synced, otherwise every active one.
//
// POST /sync/:kind?supplier_id=
func (h *SupplyHandler) ScheduleSync(c *gin.Context) {
	kind := supplysync.Kind(c.Param("kind"))

	var supplierID *uuid.UUID
	if raw := c.Query("supplier_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid supplier ID format")
			return
		}
		supplierID = &id
	}

	jobID, err := h.scheduler.ScheduleSync(kind, supplierID, "api")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, ScheduleSyncResponse{JobID: jobID.String(), Kind: string(kind)})
}

// ListJobs returns the most recent sync jobs, newest first.
//
// GET /sync/jobs?limit=
func (h *SupplyHandler) ListJobs(c *gin.Context) {
	limit := defaultJobHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(n, maxJobHistoryLimit)
	}

	jobs := h.scheduler.GetJobHistory(limit)
	h.List(c, toSyncJobResponses(jobs), int64(len(jobs)), limit)
}

// GetJob returns one sync job.
//
// GET /sync/jobs/:id
func (h *SupplyHandler) GetJob(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	job, err := h.scheduler.GetJob(id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSyncJobResponse(job))
}

// Webhook accepts a push from a supplier. Redeliveries of an applied event
// are acknowledged as duplicates.
//
// POST /webhooks/suppliers/:supplierId
func (h *SupplyHandler) Webhook(c *gin.Context) {
	supplierID, ok := parseUUIDParam(c, "supplierId")
	if !ok {
		h.BadRequest(c, "Invalid supplier ID format")
		return
	}

	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	if req.ID == "" {
		req.ID = c.GetHeader(WebhookEventIDHeader)
	}

	ctx := logger.WithSupplierID(c.Request.Context(), supplierID.String())
	outcome, err := h.supply.HandleWebhook(ctx, supplysync.WebhookEvent{
		ID:         req.ID,
		SupplierID: supplierID,
		Type:       req.Type,
		Payload:    req.Payload,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	logger.L(ctx).Debug("Webhook handled",
		zap.String("event_id", req.ID),
		zap.String("type", req.Type),
		zap.String("outcome", outcome),
	)
	h.Success(c, WebhookResponse{EventID: req.ID, Outcome: outcome})
}
