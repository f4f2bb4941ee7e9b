package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	reservationapp "github.com/printhub/fulfillment/internal/application/reservation"
	"github.com/printhub/fulfillment/internal/domain/reservation"
)

// CreditService manages customer credit on top of the ledger
type CreditService interface {
	SetLimit(ctx context.Context, customerID string, limit decimal.Decimal) error
	Block(ctx context.Context, customerID string) error
	Unblock(ctx context.Context, customerID string) error
	CheckCredit(ctx context.Context, customerID string, amount decimal.Decimal) (*reservation.Decision, error)
	ReserveCredit(ctx context.Context, customerID string, amount decimal.Decimal, reference string) (*reservation.Decision, error)
	RecordPayment(ctx context.Context, recordID uuid.UUID) (*reservation.Record, error)
	Status(ctx context.Context, customerID string) (*reservationapp.CreditStatus, error)
	History(ctx context.Context, customerID string, filter reservation.HistoryFilter) ([]reservation.Record, int64, error)
}

// CreditHandler handles customer credit endpoints
type CreditHandler struct {
	BaseHandler
	credit CreditService
}

// NewCreditHandler creates a new CreditHandler
func NewCreditHandler(credit CreditService) *CreditHandler {
	return &CreditHandler{credit: credit}
}

// UpdateCreditRequest sets a customer's limit and, optionally, the block flag
type UpdateCreditRequest struct {
	Limit   decimal.Decimal `json:"limit"`
	Blocked *bool           `json:"blocked"`
}

// CreditAmountRequest is an amount checked or reserved against credit
type CreditAmountRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference" binding:"max=200"`
}

// CreditHistoryQuery filters a customer's credit history; from/to are RFC 3339
type CreditHistoryQuery struct {
	State  string    `form:"state" binding:"omitempty,oneof=committed released"`
	From   time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To     time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit  int       `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset int       `form:"offset" binding:"omitempty,min=0"`
}

// Update sets the credit limit of a customer.
//
// PUT /credit/customers/:customerId
func (h *CreditHandler) Update(c *gin.Context) {
	customerID := c.Param("customerId")
	var req UpdateCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.credit.SetLimit(ctx, customerID, req.Limit); err != nil {
		h.HandleError(c, err)
		return
	}
	if req.Blocked != nil {
		var err error
		if *req.Blocked {
			err = h.credit.Block(ctx, customerID)
		} else {
			err = h.credit.Unblock(ctx, customerID)
		}
		if err != nil {
			h.HandleError(c, err)
			return
		}
	}

	h.respondStatus(c, customerID)
}

// Get returns limit, outstanding and available credit.
//
// GET /credit/customers/:customerId
func (h *CreditHandler) Get(c *gin.Context) {
	h.respondStatus(c, c.Param("customerId"))
}

// Check evaluates an amount against available credit.
//
// POST /credit/customers/:customerId/check
func (h *CreditHandler) Check(c *gin.Context) {
	var req CreditAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	decision, err := h.credit.CheckCredit(c.Request.Context(), c.Param("customerId"), req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toDecisionResponse(decision))
}

// Reserve claims credit for an order.
//
// POST /credit/customers/:customerId/reserve
func (h *CreditHandler) Reserve(c *gin.Context) {
	var req CreditAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	decision, err := h.credit.ReserveCredit(c.Request.Context(), c.Param("customerId"), req.Amount, req.Reference)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Decision(c, decision)
}

// RecordPayment settles a credit reservation and frees its amount.
//
// POST /credit/payments/:recordId
func (h *CreditHandler) RecordPayment(c *gin.Context) {
	id, ok := parseUUIDParam(c, "recordId")
	if !ok {
		h.BadRequest(c, "Invalid record ID format")
		return
	}

	rec, err := h.credit.RecordPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRecordResponse(rec))
}

// History lists a customer's credit reservations and payments, newest first.
// state=committed gives open debt, state=released gives paid amounts.
//
// GET /credit/customers/:customerId/history?state=&from=&to=&limit=&offset=
func (h *CreditHandler) History(c *gin.Context) {
	var q CreditHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	filter, err := reservation.HistoryFilter{
		State:  reservation.State(q.State),
		From:   q.From,
		To:     q.To,
		Limit:  q.Limit,
		Offset: q.Offset,
	}.Normalize()
	if err != nil {
		h.BadRequest(c, "from must be before to")
		return
	}

	records, total, err := h.credit.History(c.Request.Context(), c.Param("customerId"), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]RecordResponse, len(records))
	for i := range records {
		out[i] = toRecordResponse(&records[i])
	}
	h.List(c, out, total, filter.Limit)
}

func (h *CreditHandler) respondStatus(c *gin.Context, customerID string) {
	status, err := h.credit.Status(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}
