package middleware

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clausea/clausea/internal/pkg/logutil"
)

const RequestIDHeader = "X-Request-Id"

// RequestID tags every request with an id and attaches a request-scoped
// logger to the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = newRequestID()
		}
		c.Writer.Header().Set(RequestIDHeader, id)
		logger := logutil.GetLogger(c.Request.Context()).With(zap.String("request_id", id))
		c.Request = c.Request.WithContext(logutil.WithLogger(c.Request.Context(), logger))
		c.Next()
	}
}

func newRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
