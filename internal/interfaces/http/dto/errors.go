package dto

import "net/http"

// API error codes, formatted ERR_<CATEGORY>[_<DETAIL>]
const (
	ErrCodeInternal      = "ERR_INTERNAL"
	ErrCodeTimeout       = "ERR_TIMEOUT"
	ErrCodeNotConfigured = "ERR_NOT_CONFIGURED"

	// Request shape
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeValidation   = "ERR_VALIDATION"

	// Resources
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"

	// Routing and reservation outcomes
	ErrCodeInvalidState      = "ERR_INVALID_STATE"
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"
	ErrCodeNoSupplierFound   = "ERR_NO_SUPPLIER_FOUND"
	ErrCodeBelowMOQ          = "ERR_BELOW_MOQ"

	// Supplier APIs
	ErrCodeAdapter            = "ERR_SUPPLIER_ADAPTER"
	ErrCodeAdapterUnavailable = "ERR_SUPPLIER_UNAVAILABLE"

	// Back-pressure
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	ErrCodeQueueFull   = "ERR_QUEUE_FULL"
)

// ErrorCodeHTTPStatus maps each API error code to its HTTP status
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:      http.StatusInternalServerError,
	ErrCodeTimeout:       http.StatusGatewayTimeout,
	ErrCodeNotConfigured: http.StatusNotImplemented,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Rejected business outcomes answer 422
	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock: http.StatusUnprocessableEntity,
	ErrCodeNoSupplierFound:   http.StatusUnprocessableEntity,
	ErrCodeBelowMOQ:          http.StatusUnprocessableEntity,

	ErrCodeAdapter:            http.StatusBadGateway,
	ErrCodeAdapterUnavailable: http.StatusBadGateway,

	ErrCodeRateLimited: http.StatusTooManyRequests,
	ErrCodeQueueFull:   http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the status for code, 500 when the code is unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodes translates shared.DomainError codes into API codes
var DomainErrorCodes = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"INSUFFICIENT_STOCK":   ErrCodeInsufficientStock,
	"UPSTREAM_UNAVAILABLE": ErrCodeAdapterUnavailable,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
	"STATISTICS_DISABLED":  ErrCodeNotConfigured,
}

// NormalizeErrorCode turns a domain code into its API code. API codes and
// unknown codes pass through unchanged.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodes[code]; ok {
		return apiCode
	}
	return code
}
