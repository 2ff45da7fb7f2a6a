package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GinMiddleware tags every request with an id and logs it on completion.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader("X-Request-Id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-Id", requestID)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if uid, ok := c.Get("user_id"); ok {
			fields = append(fields, zap.Any("user_id", uid))
		}
		if last := c.Errors.Last(); last != nil {
			fields = append(fields, zap.Error(last.Err))
		}

		log := FromContext(c.Request.Context())
		switch {
		case route == "/metrics" || route == "/health":
			log.Debug("http_request", fields...)
		case status >= http.StatusInternalServerError:
			log.Error("http_request", fields...)
		default:
			log.Info("http_request", fields...)
		}
	}
}
