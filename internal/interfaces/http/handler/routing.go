package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	routingapp "github.com/printhub/fulfillment/internal/application/routing"
	"github.com/printhub/fulfillment/internal/domain/routing"
)

// defaultStatisticsWindow applies when a statistics request names no window
const defaultStatisticsWindow = 7 * 24 * time.Hour

// RoutingService is the routing engine as seen by the API
type RoutingService interface {
	SelectSupplier(ctx context.Context, sku string, quantity int) (*routingapp.Selection, error)
	RouteOrder(ctx context.Context, input routingapp.RouteOrderInput) (*routing.Plan, error)
	CheckInventoryAcrossSuppliers(ctx context.Context, sku string) (*routingapp.InventorySummary, error)
	GetStatistics(ctx context.Context, q routingapp.StatisticsQuery) (*routingapp.RoutingStatistics, error)
}

// RoutingHandler handles order routing endpoints
type RoutingHandler struct {
	BaseHandler
	engine RoutingService
	now    func() time.Time
}

// NewRoutingHandler creates a new RoutingHandler
func NewRoutingHandler(engine RoutingService) *RoutingHandler {
	return &RoutingHandler{engine: engine, now: time.Now}
}

// RouteLineRequest is one order line
type RouteLineRequest struct {
	SKU      string `json:"sku" binding:"required,max=100,sku"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

// RouteOrderRequest represents a request to route an order across suppliers
type RouteOrderRequest struct {
	Reference string             `json:"reference" binding:"max=100"`
	Lines     []RouteLineRequest `json:"lines" binding:"required,min=1,dive"`
	Reserve   bool               `json:"reserve"`
}

// SelectSupplierQuery are the query parameters of a single-line selection
type SelectSupplierQuery struct {
	SKU      string `form:"sku" binding:"required,max=100,sku"`
	Quantity int    `form:"quantity" binding:"required,gt=0"`
}

// StatisticsQueryParams bounds a statistics request; both ends are RFC 3339
type StatisticsQueryParams struct {
	From string `form:"from"`
	To   string `form:"to"`
}

// RouteOrder routes every line of an order and returns the plan.
// Lines that cannot be placed are listed as unroutable; the request still succeeds.
//
// POST /routing/plan
func (h *RoutingHandler) RouteOrder(c *gin.Context) {
	var req RouteOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	input := routingapp.RouteOrderInput{
		Reference: req.Reference,
		Lines:     make([]routing.Line, 0, len(req.Lines)),
		Reserve:   req.Reserve,
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, routing.Line{SKU: l.SKU, Quantity: l.Quantity})
	}

	plan, err := h.engine.RouteOrder(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}

// SelectSupplier returns the offer that would fulfill one SKU and quantity.
//
// GET /routing/select?sku=&quantity=
func (h *RoutingHandler) SelectSupplier(c *gin.Context) {
	var q SelectSupplierQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	sel, err := h.engine.SelectSupplier(c.Request.Context(), q.SKU, q.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, SelectionResponse{
		Offer:    toOfferResponse(sel.Offer),
		Supplier: toSupplierResponse(sel.Supplier),
	})
}

// CheckInventory asks every supplier offering a SKU for live stock.
//
// GET /routing/inventory/:sku
func (h *RoutingHandler) CheckInventory(c *gin.Context) {
	summary, err := h.engine.CheckInventoryAcrossSuppliers(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// GetStatistics aggregates routing outcomes over a window.
// Without from/to the last seven days are reported.
//
// GET /routing/statistics?from=&to=
func (h *RoutingHandler) GetStatistics(c *gin.Context) {
	var params StatisticsQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.BindError(c, err)
		return
	}

	q := routingapp.StatisticsQuery{To: h.now().UTC()}
	if params.To != "" {
		to, err := time.Parse(time.RFC3339, params.To)
		if err != nil {
			h.BadRequest(c, "to must be an RFC 3339 timestamp")
			return
		}
		q.To = to
	}
	q.From = q.To.Add(-defaultStatisticsWindow)
	if params.From != "" {
		from, err := time.Parse(time.RFC3339, params.From)
		if err != nil {
			h.BadRequest(c, "from must be an RFC 3339 timestamp")
			return
		}
		q.From = from
	}

	stats, err := h.engine.GetStatistics(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
