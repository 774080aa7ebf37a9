package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccessLog records API requests. Reads are logged at debug so polling
// clients do not flood the log.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if !strings.HasPrefix(path, "/api/") {
			return
		}
		method := strings.ToUpper(c.Request.Method)
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		}
		if user := strings.TrimSpace(c.GetHeader(userHeader)); user != "" {
			fields = append(fields, zap.String("user_id", user))
		}

		switch {
		case status >= 500:
			logger.Error("http request", fields...)
		case status >= 400:
			logger.Warn("http request", fields...)
		case method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions:
			logger.Debug("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
	}
}
