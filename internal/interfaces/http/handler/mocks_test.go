package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	reservationapp "github.com/printhub/fulfillment/internal/application/reservation"
	routingapp "github.com/printhub/fulfillment/internal/application/routing"
	"github.com/printhub/fulfillment/internal/application/supplysync"
	"github.com/printhub/fulfillment/internal/domain/reservation"
	"github.com/printhub/fulfillment/internal/domain/routing"
	"github.com/printhub/fulfillment/internal/domain/supplier"
	"github.com/printhub/fulfillment/internal/infrastructure/scheduler"
	"github.com/printhub/fulfillment/internal/interfaces/http/dto"
	"github.com/printhub/fulfillment/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// ---------------------------------------------------------------------------
// Routing
// ---------------------------------------------------------------------------

type mockRoutingService struct {
	mock.Mock
}

func (m *mockRoutingService) SelectSupplier(ctx context.Context, sku string, quantity int) (*routingapp.Selection, error) {
	args := m.Called(ctx, sku, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*routingapp.Selection), args.Error(1)
}

func (m *mockRoutingService) RouteOrder(ctx context.Context, input routingapp.RouteOrderInput) (*routing.Plan, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*routing.Plan), args.Error(1)
}

func (m *mockRoutingService) CheckInventoryAcrossSuppliers(ctx context.Context, sku string) (*routingapp.InventorySummary, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*routingapp.InventorySummary), args.Error(1)
}

func (m *mockRoutingService) GetStatistics(ctx context.Context, q routingapp.StatisticsQuery) (*routingapp.RoutingStatistics, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*routingapp.RoutingStatistics), args.Error(1)
}

// ---------------------------------------------------------------------------
// Reservation
// ---------------------------------------------------------------------------

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Reserve(ctx context.Context, input reservationapp.ReserveInput) (*reservation.Decision, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Decision), args.Error(1)
}

func (m *mockLedger) Check(ctx context.Context, kind reservation.Kind, resourceID string, amount decimal.Decimal) (*reservation.Decision, error) {
	args := m.Called(ctx, kind, resourceID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Decision), args.Error(1)
}

func (m *mockLedger) AssignSequence(ctx context.Context, kind reservation.Kind, resourceID, reference string) (*reservation.Record, error) {
	args := m.Called(ctx, kind, resourceID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Record), args.Error(1)
}

func (m *mockLedger) Release(ctx context.Context, recordID uuid.UUID) (*reservation.Record, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Record), args.Error(1)
}

func (m *mockLedger) Get(ctx context.Context, recordID uuid.UUID) (*reservation.Record, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Record), args.Error(1)
}

func (m *mockLedger) Outstanding(ctx context.Context, kind reservation.Kind, resourceID string) (decimal.Decimal, error) {
	args := m.Called(ctx, kind, resourceID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type mockVersionAssigner struct {
	mock.Mock
}

func (m *mockVersionAssigner) NextVersion(ctx context.Context, resourceID, reference string) (int64, error) {
	args := m.Called(ctx, resourceID, reference)
	return args.Get(0).(int64), args.Error(1)
}

// ---------------------------------------------------------------------------
// Credit
// ---------------------------------------------------------------------------

type mockCreditService struct {
	mock.Mock
}

func (m *mockCreditService) SetLimit(ctx context.Context, customerID string, limit decimal.Decimal) error {
	return m.Called(ctx, customerID, limit).Error(0)
}

func (m *mockCreditService) Block(ctx context.Context, customerID string) error {
	return m.Called(ctx, customerID).Error(0)
}

func (m *mockCreditService) Unblock(ctx context.Context, customerID string) error {
	return m.Called(ctx, customerID).Error(0)
}

func (m *mockCreditService) CheckCredit(ctx context.Context, customerID string, amount decimal.Decimal) (*reservation.Decision, error) {
	args := m.Called(ctx, customerID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Decision), args.Error(1)
}

func (m *mockCreditService) ReserveCredit(ctx context.Context, customerID string, amount decimal.Decimal, reference string) (*reservation.Decision, error) {
	args := m.Called(ctx, customerID, amount, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Decision), args.Error(1)
}

func (m *mockCreditService) RecordPayment(ctx context.Context, recordID uuid.UUID) (*reservation.Record, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Record), args.Error(1)
}

func (m *mockCreditService) Status(ctx context.Context, customerID string) (*reservationapp.CreditStatus, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservationapp.CreditStatus), args.Error(1)
}

func (m *mockCreditService) History(ctx context.Context, customerID string, filter reservation.HistoryFilter) ([]reservation.Record, int64, error) {
	args := m.Called(ctx, customerID, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]reservation.Record), args.Get(1).(int64), args.Error(2)
}

// ---------------------------------------------------------------------------
// Supply
// ---------------------------------------------------------------------------

type mockSupplyService struct {
	mock.Mock
}

func (m *mockSupplyService) RegisterOffer(ctx context.Context, input supplysync.RegisterOfferInput) (*supplier.Offer, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*supplier.Offer), args.Error(1)
}

func (m *mockSupplyService) HandleWebhook(ctx context.Context, event supplysync.WebhookEvent) (string, error) {
	args := m.Called(ctx, event)
	return args.String(0), args.Error(1)
}

type mockSyncScheduler struct {
	mock.Mock
}

func (m *mockSyncScheduler) ScheduleSync(kind supplysync.Kind, supplierID *uuid.UUID, trigger string) (uuid.UUID, error) {
	args := m.Called(kind, supplierID, trigger)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockSyncScheduler) GetJobHistory(limit int) []scheduler.SupplySyncJob {
	return m.Called(limit).Get(0).([]scheduler.SupplySyncJob)
}

func (m *mockSyncScheduler) GetJob(id uuid.UUID) (scheduler.SupplySyncJob, error) {
	args := m.Called(id)
	return args.Get(0).(scheduler.SupplySyncJob), args.Error(1)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping() error { return p.err }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serveRequest(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return serveRequest(r, newJSONRequest(t, method, path, body))
}

func decimalOf(s string) any {
	want := decimal.RequireFromString(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) (dto.Response, map[string]any) {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, _ := resp.Data.(map[string]any)
	return resp, data
}
