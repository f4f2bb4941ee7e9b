package suppliers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/printhub/fulfillment/internal/domain/supplier"
	"github.com/printhub/fulfillment/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum accepted response body (10MB)
const maxResponseSize = 10 * 1024 * 1024

// errNotFound marks a 404 internally; callers translate it per operation
var errNotFound = errors.New("printful: resource not found")

// PrintfulAdapter implements supplier.Adapter for Printful's REST API.
// Printful prints on demand, so a known product is always reported in stock.
type PrintfulAdapter struct {
	config     *PrintfulConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewPrintfulAdapter creates a Printful adapter with the given configuration
func NewPrintfulAdapter(config *PrintfulConfig, logger *zap.Logger) (*PrintfulAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &PrintfulAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(limit, config.Burst),
		logger:  logger.With(zap.String("adapter", string(supplier.AdapterTypePrintful))),
	}, nil
}

// Type returns the adapter type
func (a *PrintfulAdapter) Type() supplier.AdapterType {
	return supplier.AdapterTypePrintful
}

// GetProductCatalog lists the Printful catalog
func (a *PrintfulAdapter) GetProductCatalog(ctx context.Context) ([]supplier.CatalogProduct, error) {
	var resp printfulEnvelope[[]PrintfulProduct]
	if err := a.doJSON(ctx, http.MethodGet, "/products", nil, &resp); err != nil {
		return nil, err
	}

	products := make([]supplier.CatalogProduct, 0, len(resp.Result))
	for _, p := range resp.Result {
		products = append(products, supplier.CatalogProduct{
			SKU:           FormatSKU(p.ID),
			Name:          strings.TrimSpace(p.Title),
			Cost:          ParseDecimal(p.Price),
			Available:     !p.IsDiscontinued,
			StockQuantity: a.onDemandStock(!p.IsDiscontinued),
		})
	}
	return products, nil
}

// CheckInventory looks up a store product. Unknown products are unavailable.
func (a *PrintfulAdapter) CheckInventory(ctx context.Context, supplierSKU string) (*supplier.InventoryStatus, error) {
	id, err := ParseSKU(supplierSKU)
	if err != nil {
		a.logger.Warn("Malformed supplier SKU, marking as unavailable",
			zap.String("supplier_sku", supplierSKU))
		return supplier.UnavailableInventory(), nil
	}

	var resp printfulEnvelope[PrintfulSyncProduct]
	err = a.doJSON(ctx, http.MethodGet, "/store/products/"+strconv.FormatInt(id, 10), nil, &resp)
	if errors.Is(err, errNotFound) {
		a.logger.Warn("Product not found, marking as unavailable",
			zap.String("supplier_sku", supplierSKU))
		return supplier.UnavailableInventory(), nil
	}
	if err != nil {
		return nil, err
	}

	return &supplier.InventoryStatus{
		Available: true,
		Quantity:  a.config.OnDemandQuantity,
		LeadTime: supplier.LeadTime{
			Min:  a.config.DefaultLeadTimeMin,
			Max:  a.config.DefaultLeadTimeMax,
			Unit: supplier.LeadTimeUnitDays,
		},
	}, nil
}

// CreateOrder places an order
func (a *PrintfulAdapter) CreateOrder(ctx context.Context, req supplier.OrderRequest) (*supplier.SupplierOrder, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", supplier.ErrAdapterRequestFailed)
	}
	if req.Recipient.Address1 == "" || req.Recipient.CountryCode == "" {
		return nil, fmt.Errorf("%w: shipping address is required", supplier.ErrAdapterRequestFailed)
	}

	body := PrintfulOrderRequest{
		ExternalID: req.ExternalID,
		Recipient:  PrintfulRecipient(req.Recipient),
		Items:      make([]PrintfulOrderItem, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		variantID, err := ParseSKU(it.SupplierSKU)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", supplier.ErrAdapterRequestFailed, err)
		}
		body.Items = append(body.Items, PrintfulOrderItem{VariantID: variantID, Quantity: it.Quantity})
	}

	var resp printfulEnvelope[PrintfulOrder]
	if err := a.doJSON(ctx, http.MethodPost, "/orders", body, &resp); err != nil {
		return nil, err
	}

	order := &supplier.SupplierOrder{
		ID:        strconv.FormatInt(resp.Result.ID, 10),
		Status:    MapPrintfulStatus(resp.Result.Status),
		Items:     make([]supplier.OrderItem, 0, len(resp.Result.Items)),
		CreatedAt: time.Unix(resp.Result.Created, 0).UTC(),
	}
	for _, it := range resp.Result.Items {
		order.Items = append(order.Items, supplier.OrderItem{
			SupplierSKU: FormatSKU(it.VariantID),
			Quantity:    it.Quantity,
			Cost:        ParseDecimal(it.Price),
		})
	}
	a.logger.Info("Created supplier order", zap.String("order_id", order.ID))
	return order, nil
}

// GetOrderStatus fetches an order with its first shipment
func (a *PrintfulAdapter) GetOrderStatus(ctx context.Context, orderID string) (*supplier.OrderStatus, error) {
	var resp printfulEnvelope[PrintfulOrder]
	err := a.doJSON(ctx, http.MethodGet, "/orders/"+orderID, nil, &resp)
	if errors.Is(err, errNotFound) {
		return nil, supplier.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	status := &supplier.OrderStatus{
		ID:     orderID,
		Status: MapPrintfulStatus(resp.Result.Status),
	}
	if len(resp.Result.Shipments) > 0 {
		sh := resp.Result.Shipments[0]
		status.TrackingNumber = sh.TrackingNumber
		status.TrackingURL = sh.TrackingURL
		if sh.ShipDate != "" {
			if d, err := time.Parse(time.DateOnly, sh.ShipDate); err == nil {
				status.EstimatedDelivery = &d
			}
		}
		if sh.ShippedAt > 0 {
			d := time.Unix(sh.ShippedAt, 0).UTC()
			status.ActualDelivery = &d
		}
	}
	return status, nil
}

// CancelOrder cancels an order
func (a *PrintfulAdapter) CancelOrder(ctx context.Context, orderID string) error {
	err := a.doJSON(ctx, http.MethodDelete, "/orders/"+orderID, nil, nil)
	if errors.Is(err, errNotFound) {
		return supplier.ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	a.logger.Info("Cancelled supplier order", zap.String("order_id", orderID))
	return nil
}

func (a *PrintfulAdapter) onDemandStock(available bool) int {
	if !available {
		return 0
	}
	return a.config.OnDemandQuantity
}

// doJSON performs a rate-limited request and decodes the JSON response into out
func (a *PrintfulAdapter) doJSON(ctx context.Context, method, path string, in, out any) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "printful "+method,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("http.request.method", method),
		telemetry.WithAttribute("url.path", path),
	)
	defer func() {
		if err != nil && !errors.Is(err, errNotFound) {
			telemetry.RecordError(span, err)
		}
		span.End()
	}()

	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", supplier.ErrAdapterRateLimited, err)
	}

	var reqBody io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("printful: failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.APIBaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("printful: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", supplier.ErrAdapterUnavailable, ctxErr)
		}
		return fmt.Errorf("%w: %v", supplier.ErrAdapterUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", supplier.ErrAdapterUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", supplier.ErrAdapterRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", supplier.ErrAdapterUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: HTTP %d: %s", supplier.ErrAdapterRequestFailed, resp.StatusCode, errorMessage(body))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", supplier.ErrAdapterInvalidResponse, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var env printfulEnvelope[json.RawMessage]
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		return env.Error.Message
	}
	return http.StatusText(http.StatusBadRequest)
}

// MapPrintfulStatus maps a Printful order status to the normalized state.
// Unknown statuses are treated as pending.
func MapPrintfulStatus(status string) supplier.OrderState {
	switch status {
	case "draft", "onhold":
		return supplier.OrderStatePending
	case "pending":
		return supplier.OrderStateConfirmed
	case "failed", "canceled":
		return supplier.OrderStateCancelled
	case "inprocess":
		return supplier.OrderStateInProduction
	case "partial":
		return supplier.OrderStateShipped
	case "fulfilled":
		return supplier.OrderStateDelivered
	default:
		return supplier.OrderStatePending
	}
}

// FormatSKU builds a supplier SKU from a numeric Printful ID
func FormatSKU(id int64) string {
	return SKUPrefix + strconv.FormatInt(id, 10)
}

// ParseSKU extracts the numeric Printful ID from a supplier SKU.
// The prefix is optional.
func ParseSKU(sku string) (int64, error) {
	raw := strings.TrimPrefix(sku, SKUPrefix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("printful: invalid supplier SKU %q", sku)
	}
	return id, nil
}

// ParseDecimal parses a price string, returning zero when malformed
func ParseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
