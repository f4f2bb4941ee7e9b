package suppliers

// Printful API wire types. Every response is wrapped in an envelope carrying
// an HTTP-like code and either a result or an error object.

// printfulEnvelope is the common response wrapper
type printfulEnvelope[T any] struct {
	Code   int            `json:"code"`
	Result T              `json:"result"`
	Error  *printfulError `json:"error,omitempty"`
}

type printfulError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// PrintfulProduct is one entry of the product catalog
type PrintfulProduct struct {
	ID             int64  `json:"id"`
	Type           string `json:"type"`
	TypeName       string `json:"type_name"`
	Title          string `json:"title"`
	Brand          string `json:"brand"`
	Model          string `json:"model"`
	Image          string `json:"image"`
	VariantCount   int    `json:"variant_count"`
	Currency       string `json:"currency"`
	Price          string `json:"price,omitempty"`
	IsDiscontinued bool   `json:"is_discontinued"`
}

// PrintfulSyncProduct is the store product returned by the inventory lookup
type PrintfulSyncProduct struct {
	SyncProduct struct {
		ID         int64  `json:"id"`
		ExternalID string `json:"external_id"`
		Name       string `json:"name"`
		Variants   int    `json:"variants"`
		Synced     int    `json:"synced"`
	} `json:"sync_product"`
	SyncVariants []struct {
		ID          int64  `json:"id"`
		VariantID   int64  `json:"variant_id"`
		RetailPrice string `json:"retail_price"`
		IsIgnored   bool   `json:"is_ignored"`
	} `json:"sync_variants"`
}

// PrintfulRecipient is the shipping address of an order
type PrintfulRecipient struct {
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

// PrintfulOrderItem is a line of an order request or response
type PrintfulOrderItem struct {
	ID         int64  `json:"id,omitempty"`
	VariantID  int64  `json:"variant_id"`
	ExternalID string `json:"external_id,omitempty"`
	Quantity   int    `json:"quantity"`
	Price      string `json:"price,omitempty"`
	Name       string `json:"name,omitempty"`
}

// PrintfulOrderRequest is the body of POST /orders
type PrintfulOrderRequest struct {
	ExternalID string              `json:"external_id,omitempty"`
	Recipient  PrintfulRecipient   `json:"recipient"`
	Items      []PrintfulOrderItem `json:"items"`
}

// PrintfulShipment is one shipment of an order
type PrintfulShipment struct {
	ID             int64  `json:"id"`
	Carrier        string `json:"carrier"`
	Service        string `json:"service"`
	TrackingNumber string `json:"tracking_number"`
	TrackingURL    string `json:"tracking_url"`
	Created        int64  `json:"created"`
	ShipDate       string `json:"ship_date"`
	ShippedAt      int64  `json:"shipped_at"`
	Reshipment     bool   `json:"reshipment"`
}

// PrintfulOrder is an order as returned by the API
type PrintfulOrder struct {
	ID         int64               `json:"id"`
	ExternalID string              `json:"external_id"`
	Status     string              `json:"status"`
	Shipping   string              `json:"shipping"`
	Created    int64               `json:"created"`
	Updated    int64               `json:"updated"`
	Items      []PrintfulOrderItem `json:"items"`
	Shipments  []PrintfulShipment  `json:"shipments"`
}
