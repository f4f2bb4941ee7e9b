package suppliers

import (
	"errors"
	"time"
)

// PrintfulConfig holds configuration for a Printful-compatible supplier API
type PrintfulConfig struct {
	// APIKey is the bearer token issued by the supplier
	APIKey string
	// APIBaseURL is the base URL of the REST API
	APIBaseURL string
	// Timeout bounds every HTTP request
	Timeout time.Duration
	// RequestsPerSecond caps outbound request rate; zero disables limiting
	RequestsPerSecond float64
	// Burst is the rate limiter bucket size
	Burst int
	// DefaultLeadTimeMin and DefaultLeadTimeMax are quoted for print-on-demand stock
	DefaultLeadTimeMin int
	DefaultLeadTimeMax int
	// OnDemandQuantity is reported as available stock for known products
	OnDemandQuantity int
}

const (
	// PrintfulProductionAPIURL is the production API endpoint
	PrintfulProductionAPIURL = "https://api.printful.com"

	// SKUPrefix prefixes numeric Printful identifiers in supplier SKUs
	SKUPrefix = "PRINTFUL-"

	defaultPrintfulTimeout = 30 * time.Second
)

// Errors for Printful configuration
var (
	ErrPrintfulConfigMissingAPIKey = errors.New("printful: api key is required")
	ErrPrintfulConfigInvalidLead   = errors.New("printful: invalid default lead time")
)

// NewPrintfulConfig creates a configuration with production defaults
func NewPrintfulConfig(apiKey string) *PrintfulConfig {
	return &PrintfulConfig{
		APIKey:             apiKey,
		APIBaseURL:         PrintfulProductionAPIURL,
		Timeout:            defaultPrintfulTimeout,
		RequestsPerSecond:  2,
		Burst:              5,
		DefaultLeadTimeMin: 2,
		DefaultLeadTimeMax: 7,
		OnDemandQuantity:   999,
	}
}

// Validate validates the configuration and fills defaults
func (c *PrintfulConfig) Validate() error {
	if c.APIKey == "" {
		return ErrPrintfulConfigMissingAPIKey
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = PrintfulProductionAPIURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultPrintfulTimeout
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.DefaultLeadTimeMin == 0 && c.DefaultLeadTimeMax == 0 {
		c.DefaultLeadTimeMin, c.DefaultLeadTimeMax = 2, 7
	}
	if c.DefaultLeadTimeMin < 0 || c.DefaultLeadTimeMax < c.DefaultLeadTimeMin {
		return ErrPrintfulConfigInvalidLead
	}
	if c.OnDemandQuantity <= 0 {
		c.OnDemandQuantity = 999
	}
	return nil
}
