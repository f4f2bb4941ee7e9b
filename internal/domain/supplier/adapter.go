package supplier

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Adapter value objects
// ---------------------------------------------------------------------------

// CatalogProduct is one product as listed by a supplier
type CatalogProduct struct {
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Cost          decimal.Decimal `json:"cost"`
	Available     bool            `json:"available"`
	StockQuantity int             `json:"stock_quantity"`
}

// InventoryStatus is a supplier's live stock report for one supplier SKU
type InventoryStatus struct {
	Available bool     `json:"available"`
	Quantity  int      `json:"quantity"`
	LeadTime  LeadTime `json:"lead_time"`
}

// UnavailableInventory is returned for supplier SKUs the supplier does not know
func UnavailableInventory() *InventoryStatus {
	return &InventoryStatus{
		Available: false,
		Quantity:  0,
		LeadTime:  LeadTime{Min: 0, Max: 0, Unit: LeadTimeUnitDays},
	}
}

// OrderState is the normalized state of a supplier order
type OrderState string

const (
	OrderStatePending      OrderState = "pending"
	OrderStateConfirmed    OrderState = "confirmed"
	OrderStateInProduction OrderState = "in_production"
	OrderStateShipped      OrderState = "shipped"
	OrderStateDelivered    OrderState = "delivered"
	OrderStateCancelled    OrderState = "cancelled"
)

// OrderItem is a line in a supplier order
type OrderItem struct {
	SupplierSKU string          `json:"supplier_sku"`
	Quantity    int             `json:"quantity"`
	Cost        decimal.Decimal `json:"cost"`
}

// Recipient is the shipping destination of a supplier order
type Recipient struct {
	Name        string `json:"name"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	StateCode   string `json:"state_code,omitempty"`
	CountryCode string `json:"country_code"`
	Zip         string `json:"zip"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

// OrderRequest is what we send a supplier to place an order
type OrderRequest struct {
	ExternalID string      `json:"external_id"`
	Recipient  Recipient   `json:"recipient"`
	Items      []OrderItem `json:"items"`
}

// SupplierOrder is the supplier's acknowledgement of a placed order
type SupplierOrder struct {
	ID        string      `json:"id"`
	Status    OrderState  `json:"status"`
	Items     []OrderItem `json:"items"`
	CreatedAt time.Time   `json:"created_at"`
}

// OrderStatus is the supplier's current view of an order
type OrderStatus struct {
	ID                string     `json:"id"`
	Status            OrderState `json:"status"`
	TrackingNumber    string     `json:"tracking_number,omitempty"`
	TrackingURL       string     `json:"tracking_url,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`
}

// ---------------------------------------------------------------------------
// Adapter port
// ---------------------------------------------------------------------------

// Adapter is the port every supplier integration implements.
// All methods honour the deadline carried by ctx.
type Adapter interface {
	// Type returns which adapter implementation this is
	Type() AdapterType

	// GetProductCatalog lists the supplier's sellable products
	GetProductCatalog(ctx context.Context) ([]CatalogProduct, error)

	// CheckInventory reports live stock for a supplier SKU.
	// An unknown SKU yields UnavailableInventory and a nil error.
	CheckInventory(ctx context.Context, supplierSKU string) (*InventoryStatus, error)

	// CreateOrder places an order with the supplier
	CreateOrder(ctx context.Context, req OrderRequest) (*SupplierOrder, error)

	// GetOrderStatus fetches an order's status; unknown orders return ErrOrderNotFound
	GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error)

	// CancelOrder cancels an order; unknown orders return ErrOrderNotFound
	CancelOrder(ctx context.Context, orderID string) error
}

// AdapterResolver resolves the adapter bound to a supplier
type AdapterResolver interface {
	AdapterFor(s *Supplier) (Adapter, error)
}
