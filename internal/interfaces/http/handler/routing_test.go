package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	routingapp "github.com/printhub/fulfillment/internal/application/routing"
	"github.com/printhub/fulfillment/internal/domain/routing"
	"github.com/printhub/fulfillment/internal/domain/shared"
	"github.com/printhub/fulfillment/internal/domain/supplier"
	"github.com/printhub/fulfillment/internal/interfaces/http/dto"
)

func setupRoutingRouter(svc RoutingService, now time.Time) *gin.Engine {
	h := NewRoutingHandler(svc)
	h.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/routing/plan", h.RouteOrder)
	r.GET("/routing/select", h.SelectSupplier)
	r.GET("/routing/inventory/:sku", h.CheckInventory)
	r.GET("/routing/statistics", h.GetStatistics)
	return r
}

func TestRoutingHandler_RouteOrder(t *testing.T) {
	svc := new(mockRoutingService)
	r := setupRoutingRouter(svc, time.Now())

	supplierID := uuid.New()
	plan := routing.NewPlan()
	plan.AddRouted(supplierID, "Printful", routing.RouteItem{
		InternalSKU: "TSHIRT-BLK-M",
		SupplierSKU: "PF-4011",
		OfferID:     uuid.New(),
		Quantity:    3,
		Cost:        decimal.RequireFromString("7.50"),
	})
	plan.AddUnroutable(routing.Line{SKU: "MUG-11OZ", Quantity: 1}, routing.ReasonNoSupplierFound)

	svc.On("RouteOrder", mock.Anything, routingapp.RouteOrderInput{
		Reference: "ORD-1001",
		Lines: []routing.Line{
			{SKU: "TSHIRT-BLK-M", Quantity: 3},
			{SKU: "MUG-11OZ", Quantity: 1},
		},
	}).Return(plan, nil)

	w := doRequest(t, r, http.MethodPost, "/routing/plan", map[string]any{
		"reference": "ORD-1001",
		"lines": []map[string]any{
			{"sku": "TSHIRT-BLK-M", "quantity": 3},
			{"sku": "MUG-11OZ", "quantity": 1},
		},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	resp, data := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.EqualValues(t, 1, data["supplier_count"])
	assert.Len(t, data["routes"], 1)
	assert.Len(t, data["unroutable_items"], 1)
	svc.AssertExpectations(t)
}

func TestRoutingHandler_RouteOrder_Validation(t *testing.T) {
	tests := []struct {
		name string
		body any
		code string
	}{
		{name: "no lines", body: map[string]any{"lines": []any{}}, code: dto.ErrCodeValidation},
		{name: "zero quantity", body: map[string]any{"lines": []map[string]any{{"sku": "A", "quantity": 0}}}, code: dto.ErrCodeValidation},
		{name: "malformed body", body: `{"lines": [`, code: dto.ErrCodeInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockRoutingService)
			r := setupRoutingRouter(svc, time.Now())

			w := doRequest(t, r, http.MethodPost, "/routing/plan", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp, _ := decodeResponse(t, w)
			assert.Equal(t, tt.code, resp.Error.Code)
			svc.AssertNotCalled(t, "RouteOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestRoutingHandler_SelectSupplier(t *testing.T) {
	svc := new(mockRoutingService)
	r := setupRoutingRouter(svc, time.Now())

	sup, err := supplier.NewSupplier("printful", "Printful", supplier.AdapterTypePrintful)
	assert.NoError(t, err)
	lt, err := supplier.NewLeadTime(2, 5, supplier.LeadTimeUnitDays)
	assert.NoError(t, err)
	offer, err := supplier.NewOffer("TSHIRT-BLK-M", sup.ID, "PF-4011", supplier.OfferTerms{
		Cost:          decimal.RequireFromString("7.50"),
		StockQuantity: 40,
		IsAvailable:   true,
		MOQ:           1,
		LeadTime:      lt,
	})
	assert.NoError(t, err)

	svc.On("SelectSupplier", mock.Anything, "TSHIRT-BLK-M", 3).
		Return(&routingapp.Selection{Offer: offer, Supplier: sup}, nil)

	w := doRequest(t, r, http.MethodGet, "/routing/select?sku=TSHIRT-BLK-M&quantity=3", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	_, data := decodeResponse(t, w)
	offerData := data["offer"].(map[string]any)
	supplierData := data["supplier"].(map[string]any)
	assert.Equal(t, "PF-4011", offerData["supplier_sku"])
	assert.Equal(t, "7.5", offerData["cost"])
	assert.Equal(t, "Printful", supplierData["name"])
}

func TestRoutingHandler_SelectSupplier_Rejections(t *testing.T) {
	tests := []struct {
		reason routing.Reason
		code   string
	}{
		{routing.ReasonNoSupplierFound, dto.ErrCodeNoSupplierFound},
		{routing.ReasonInsufficientStock, dto.ErrCodeInsufficientStock},
		{routing.ReasonBelowMOQ, dto.ErrCodeBelowMOQ},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			svc := new(mockRoutingService)
			r := setupRoutingRouter(svc, time.Now())
			svc.On("SelectSupplier", mock.Anything, "MUG-11OZ", 2).
				Return(nil, routing.Reject(tt.reason, "MUG-11OZ", 2))

			w := doRequest(t, r, http.MethodGet, "/routing/select?sku=MUG-11OZ&quantity=2", nil)

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			resp, _ := decodeResponse(t, w)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.reason.Message(), resp.Error.Message)
		})
	}
}

func TestRoutingHandler_SelectSupplier_MissingQuantity(t *testing.T) {
	svc := new(mockRoutingService)
	r := setupRoutingRouter(svc, time.Now())

	w := doRequest(t, r, http.MethodGet, "/routing/select?sku=MUG-11OZ", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "SelectSupplier", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoutingHandler_CheckInventory(t *testing.T) {
	svc := new(mockRoutingService)
	r := setupRoutingRouter(svc, time.Now())

	summary := &routingapp.InventorySummary{
		SKU:            "TSHIRT-BLK-M",
		TotalAvailable: 120,
		Suppliers: []routingapp.SupplierInventory{
			{SupplierID: uuid.New(), SupplierName: "Printful", Available: true, Quantity: 120},
		},
		Failed: []routingapp.InventoryFailure{
			{SupplierID: uuid.New(), Error: "supplier: adapter temporarily unavailable"},
		},
	}
	svc.On("CheckInventoryAcrossSuppliers", mock.Anything, "TSHIRT-BLK-M").Return(summary, nil)

	w := doRequest(t, r, http.MethodGet, "/routing/inventory/TSHIRT-BLK-M", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	_, data := decodeResponse(t, w)
	assert.EqualValues(t, 120, data["total_available"])
	assert.Len(t, data["failed"], 1)
}

func TestRoutingHandler_GetStatistics(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("explicit window", func(t *testing.T) {
		svc := new(mockRoutingService)
		r := setupRoutingRouter(svc, now)
		from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

		svc.On("GetStatistics", mock.Anything, routingapp.StatisticsQuery{From: from, To: to}).
			Return(&routingapp.RoutingStatistics{From: from, To: to, TotalRequests: 4}, nil)

		w := doRequest(t, r, http.MethodGet, "/routing/statistics?from=2026-03-01T00:00:00Z&to=2026-03-02T00:00:00Z", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		_, data := decodeResponse(t, w)
		assert.EqualValues(t, 4, data["total_requests"])
	})

	t.Run("defaults to last seven days", func(t *testing.T) {
		svc := new(mockRoutingService)
		r := setupRoutingRouter(svc, now)

		svc.On("GetStatistics", mock.Anything, routingapp.StatisticsQuery{From: now.Add(-7 * 24 * time.Hour), To: now}).
			Return(&routingapp.RoutingStatistics{}, nil)

		w := doRequest(t, r, http.MethodGet, "/routing/statistics", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		svc := new(mockRoutingService)
		r := setupRoutingRouter(svc, now)

		w := doRequest(t, r, http.MethodGet, "/routing/statistics?from=yesterday", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("outcome log disabled", func(t *testing.T) {
		svc := new(mockRoutingService)
		r := setupRoutingRouter(svc, now)
		svc.On("GetStatistics", mock.Anything, mock.Anything).
			Return(nil, shared.NewDomainError("STATISTICS_DISABLED", "routing outcome log is not configured"))

		w := doRequest(t, r, http.MethodGet, "/routing/statistics", nil)

		assert.Equal(t, http.StatusNotImplemented, w.Code)
		resp, _ := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeNotConfigured, resp.Error.Code)
	})
}
