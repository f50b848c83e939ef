package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jettr/tock/internal/shared/id"
)

// RequestIDHeader is the header carrying the request identifier.
const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the gin context key the identifier is stored under.
const RequestIDKey = "request_id"

// RequestID attaches a request identifier to every request, reusing the
// client's when it sent one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = id.NewRequestID()
		}
		c.Set(RequestIDKey, rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Next()
	}
}
