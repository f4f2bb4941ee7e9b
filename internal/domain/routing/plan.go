package routing

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printhub/fulfillment/internal/domain/supplier"
)

// Line is one ordered SKU and quantity
type Line struct {
	SKU      string `json:"sku" validate:"required,max=100"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

// RouteItem is a line assigned to a supplier
type RouteItem struct {
	InternalSKU   string            `json:"internal_sku"`
	SupplierSKU   string            `json:"supplier_sku"`
	OfferID       uuid.UUID         `json:"offer_id"`
	Quantity      int               `json:"quantity"`
	Cost          decimal.Decimal   `json:"cost"`
	LeadTime      supplier.LeadTime `json:"lead_time"`
	ReservationID *uuid.UUID        `json:"reservation_id,omitempty"`
}

// Route groups the items one supplier fulfills
type Route struct {
	SupplierID   uuid.UUID   `json:"supplier_id"`
	SupplierName string      `json:"supplier_name"`
	Items        []RouteItem `json:"items"`
}

// UnroutableItem is a line no supplier could take
type UnroutableItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Reason   Reason `json:"reason"`
	Message  string `json:"message"`
}

// Plan is the result of routing one order. Each input line lands exactly once,
// either in a route or in Unroutable. Plans are derived values and never persisted.
type Plan struct {
	routes     []*Route
	index      map[uuid.UUID]int
	Unroutable []UnroutableItem
}

// NewPlan creates an empty plan
func NewPlan() *Plan {
	return &Plan{
		routes:     make([]*Route, 0),
		index:      make(map[uuid.UUID]int),
		Unroutable: make([]UnroutableItem, 0),
	}
}

// AddRouted appends item to the supplier's bucket, creating it on first use
func (p *Plan) AddRouted(supplierID uuid.UUID, supplierName string, item RouteItem) {
	i, ok := p.index[supplierID]
	if !ok {
		p.routes = append(p.routes, &Route{
			SupplierID:   supplierID,
			SupplierName: supplierName,
			Items:        make([]RouteItem, 0, 1),
		})
		i = len(p.routes) - 1
		p.index[supplierID] = i
	}
	p.routes[i].Items = append(p.routes[i].Items, item)
}

// AddUnroutable records a line that could not be routed
func (p *Plan) AddUnroutable(line Line, reason Reason) {
	p.Unroutable = append(p.Unroutable, UnroutableItem{
		SKU:      line.SKU,
		Quantity: line.Quantity,
		Reason:   reason,
		Message:  reason.Message(),
	})
}

// Routes returns the supplier buckets in first-use order
func (p *Plan) Routes() []*Route {
	return p.routes
}

// Route returns the bucket of one supplier
func (p *Plan) Route(supplierID uuid.UUID) (*Route, bool) {
	i, ok := p.index[supplierID]
	if !ok {
		return nil, false
	}
	return p.routes[i], true
}

// RoutedLineCount counts lines assigned to some supplier
func (p *Plan) RoutedLineCount() int {
	n := 0
	for _, r := range p.routes {
		n += len(r.Items)
	}
	return n
}

// LineCount counts every line in the plan
func (p *Plan) LineCount() int {
	return p.RoutedLineCount() + len(p.Unroutable)
}

// TotalCost sums cost * quantity over routed items
func (p *Plan) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, r := range p.routes {
		for _, it := range r.Items {
			total = total.Add(it.Cost.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}
	return total
}

// MarshalJSON renders routes as an array in first-use order
func (p *Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Routes          []*Route         `json:"routes"`
		UnroutableItems []UnroutableItem `json:"unroutable_items"`
		SupplierCount   int              `json:"supplier_count"`
		TotalCost       decimal.Decimal  `json:"total_cost"`
	}{
		Routes:          p.routes,
		UnroutableItems: p.Unroutable,
		SupplierCount:   len(p.routes),
		TotalCost:       p.TotalCost(),
	})
}
