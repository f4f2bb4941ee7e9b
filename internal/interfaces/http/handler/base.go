package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/application/supplysync"
	"github.com/printhub/fulfillment/internal/domain/reservation"
	"github.com/printhub/fulfillment/internal/domain/routing"
	"github.com/printhub/fulfillment/internal/domain/shared"
	"github.com/printhub/fulfillment/internal/domain/supplier"
	"github.com/printhub/fulfillment/internal/infrastructure/logger"
	"github.com/printhub/fulfillment/internal/infrastructure/scheduler"
	"github.com/printhub/fulfillment/internal/interfaces/http/dto"
	"github.com/printhub/fulfillment/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID set by the RequestID middleware
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// parseUUIDParam reads a path parameter as a UUID
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	return id, err == nil
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// List sends a success response with a total count
func (h *BaseHandler) List(c *gin.Context, data any, total int64, limit int) {
	c.JSON(http.StatusOK, dto.NewListResponse(data, total, limit))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 for work queued in the background
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.Set(middleware.ErrorCodeKey, code)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// BindError answers a failed ShouldBind*: field errors get a detailed
// validation response, oversized bodies a 413, malformed bodies a plain 400.
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	if middleware.IsBodyTooLarge(err) {
		middleware.AbortBodyTooLarge(c)
		return
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		middleware.HandleValidationError(c, err)
		return
	}
	h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Malformed request body: "+err.Error())
}

// reasonCodes maps routing rejections to API error codes
var reasonCodes = map[routing.Reason]string{
	routing.ReasonNoSupplierFound:   dto.ErrCodeNoSupplierFound,
	routing.ReasonInsufficientStock: dto.ErrCodeInsufficientStock,
	routing.ReasonBelowMOQ:          dto.ErrCodeBelowMOQ,
}

// HandleError maps application errors to HTTP responses. Anything it does
// not recognize is logged and answered with a generic 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code, message := classify(err)
	status := dto.GetHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		logger.L(c.Request.Context()).Error("Request failed",
			zap.String("code", code),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	h.Error(c, status, code, message)
}

func classify(err error) (code, message string) {
	if reason, ok := routing.ReasonOf(err); ok {
		return reasonCodes[reason], reason.Message()
	}

	switch {
	case reservation.IsValidationError(err),
		errors.Is(err, routing.ErrInvalidLine),
		errors.Is(err, supplysync.ErrUnknownKind):
		return dto.ErrCodeValidation, err.Error()

	case errors.Is(err, reservation.ErrRecordNotFound),
		errors.Is(err, supplier.ErrSupplierNotFound),
		errors.Is(err, supplier.ErrOfferNotFound),
		errors.Is(err, scheduler.ErrJobNotFound):
		return dto.ErrCodeNotFound, err.Error()

	case errors.Is(err, supplier.ErrOfferAlreadyExists):
		return dto.ErrCodeAlreadyExists, err.Error()

	case errors.Is(err, reservation.ErrInvalidTransition):
		return dto.ErrCodeInvalidState, err.Error()

	case errors.Is(err, scheduler.ErrJobQueueFull),
		errors.Is(err, scheduler.ErrSchedulerNotRunning):
		return dto.ErrCodeQueueFull, "Sync queue cannot take more work, retry later"

	case supplier.IsTransientAdapterError(err) && !errors.Is(err, context.DeadlineExceeded):
		return dto.ErrCodeAdapterUnavailable, err.Error()

	case errors.Is(err, supplier.ErrAdapterRequestFailed),
		errors.Is(err, supplier.ErrAdapterInvalidResponse),
		errors.Is(err, supplier.ErrAdapterNotConfigured):
		return dto.ErrCodeAdapter, err.Error()

	case errors.Is(err, context.DeadlineExceeded):
		return dto.ErrCodeTimeout, "Request timed out"
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return dto.NormalizeErrorCode(domainErr.Code), err.Error()
	}
	return dto.ErrCodeInternal, "An unexpected error occurred"
}
