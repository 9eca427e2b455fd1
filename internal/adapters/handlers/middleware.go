package handlers

import (
	"net/http"
	"time"

	"github.com/iwtcode/abbAdapter/internal/middleware/logging"

	"github.com/gin-gonic/gin"
)

// LoggingMiddleware пишет начало и завершение запроса. Запросы к skipPath
// (сбор метрик) логируются только на уровне debug.
func LoggingMiddleware(parentLogger *logging.Logger, skipPath string) gin.HandlerFunc {
	logger := parentLogger.WithPrefix("HTTP")

	return func(c *gin.Context) {
		if c.Request.URL.Path == skipPath {
			c.Next()
			logger.Debug("Metrics scraped", "status", c.Writer.Status())
			return
		}
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		logger.Info("Request started",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"remote_addr", c.Request.RemoteAddr,
		)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		logger.Info("Request completed",
			"status", status,
			"latency", latency,
			"client_ip", c.ClientIP(),
		)
	}
}
