package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Yair4430/CertiGranja-2.0/pkg/logger"
)

// RequestLogger logs every request once it completes. Health probes are
// logged at debug level.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"latency_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
		}
		if query != "" {
			attrs = append(attrs, "query", redactToken(c, query))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			logger.Error(ctx, "request completed", attrs...)
		case status >= 400:
			logger.Warn(ctx, "request completed", attrs...)
		case path == "/health":
			logger.Debug(ctx, "request completed", attrs...)
		default:
			logger.Info(ctx, "request completed", attrs...)
		}
	}
}

// redactToken hides a token passed in the query string.
func redactToken(c *gin.Context, raw string) string {
	if c.Query("token") == "" {
		return raw
	}
	q := c.Request.URL.Query()
	q.Set("token", "REDACTED")
	return q.Encode()
}
