package api

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kubecraft/kubecraft/internal/metrics"
)

// requestIDHeader carries the request correlation id in both directions.
const requestIDHeader = "X-Request-ID"

// ctxKeyRequestID is the gin context key the correlation id is stored under.
const ctxKeyRequestID = "requestID"

// requestID assigns every request a correlation id, honoring one supplied by
// the caller, and echoes it in the response.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// accessLog emits one structured line per completed request.
func accessLog(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Infow("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"requestID", c.GetString(ctxKeyRequestID),
		)
	}
}

// observe records per-route request metrics. Unmatched paths collapse into a
// single label value so the route cardinality stays bounded.
func observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordAPIRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}

// recovery converts handler panics into plain 500 responses.
func recovery(log *zap.SugaredLogger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		log.Errorw("handler panicked", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
	})
}

// apiKeyAuth rejects requests whose X-API-Key header does not match key.
// The comparison is constant time.
func apiKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Invalid API Key"})
			return
		}
		c.Next()
	}
}
