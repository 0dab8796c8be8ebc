package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kendall-kelly/memorial-diamonds-api/logger"
	"github.com/kendall-kelly/memorial-diamonds-api/services"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags every request with an id, reusing the caller's when present.
func RequestID(logg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(requestIDHeader, reqID)
		c.Set("request_id", reqID)

		if logg != nil {
			c.Request = c.Request.WithContext(logg.WithRequestID(c.Request.Context(), reqID))
		}
		c.Next()
	}
}

// Logging writes one structured line when a request completes.
func Logging(logg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if logg == nil {
			return
		}
		status := c.Writer.Status()
		ctx := logg.WithFields(c.Request.Context(), map[string]any{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if operator, ok := c.Get(ContextOperator); ok {
			ctx = logg.WithOperator(ctx, operator.(string))
		}
		switch {
		case status >= http.StatusInternalServerError:
			var err error
			if last := c.Errors.Last(); last != nil {
				err = last
			}
			logg.Error(ctx, "request.complete", err)
		case status >= http.StatusBadRequest:
			logg.Warn(ctx, "request.complete")
		default:
			logg.Info(ctx, "request.complete")
		}
	}
}

// Metrics records request counts and latency per route template.
func Metrics(metrics *services.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
