package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printhub/fulfillment/internal/interfaces/http/dto"
)

const bodyTooLargeMessage = "Request body exceeds maximum allowed size"

// BodyLimit answers 413 when the declared Content-Length is over maxBytes.
// Chunked bodies are wrapped in http.MaxBytesReader, so binding them fails
// with an error IsBodyTooLarge recognizes. A non-positive maxBytes disables
// the check.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		return passThrough
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			AbortBodyTooLarge(c)
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// IsBodyTooLarge reports whether err came from reading past the body limit
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// AbortBodyTooLarge writes the 413 envelope and stops the chain
func AbortBodyTooLarge(c *gin.Context) {
	c.Set(ErrorCodeKey, dto.ErrCodeBadRequest)
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
		dto.NewErrorResponseWithRequestID(dto.ErrCodeBadRequest, bodyTooLargeMessage, getRequestID(c)))
}
