package middleware

import (
	"time"

	"stocksync/internal/logger"

	"github.com/gin-gonic/gin"
)

func Logger(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		switch {
		case status >= 500:
			logger.Error("%s %s %d %s %s", c.Request.Method, c.Request.URL.Path, status, time.Since(start), c.ClientIP())
		case c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics":
			logger.Debug("%s %s %d %s %s", c.Request.Method, c.Request.URL.Path, status, time.Since(start), c.ClientIP())
		default:
			logger.Info("%s %s %d %s %s", c.Request.Method, c.Request.URL.Path, status, time.Since(start), c.ClientIP())
		}
	}
}
