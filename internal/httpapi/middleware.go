package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Recovery turns any uncaught panic at the HTTP boundary into a 500
// response carrying the request's correlation id.
func Recovery(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		correlationID := c.GetString("correlation_id")
		logger.WithFields(logrus.Fields{
			"correlation_id": correlationID,
			"panic":          recovered,
		}).Error("panic recovered")
		c.JSON(500, gin.H{"error": "internal server error", "correlation_id": correlationID})
	})
}

// CorrelationID assigns a request-scoped id used by Recovery and Logger,
// and echoed back in every blocked/error response.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Correlation-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("correlation_id", id)
		c.Writer.Header().Set("X-Correlation-ID", id)
		c.Next()
	}
}

// Logger emits one structured entry per request.
func Logger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.WithFields(logrus.Fields{
			"method":         c.Request.Method,
			"path":           path,
			"status":         c.Writer.Status(),
			"latency_ms":     time.Since(start).Milliseconds(),
			"client_ip":      c.ClientIP(),
			"correlation_id": c.GetString("correlation_id"),
		}).Info("request")
	}
}

// CORS applies a fixed policy: wildcard origin, a small fixed method set.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Correlation-ID, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// APIKeyAuth gates /stats behind a static key. Intake endpoints are
// public and do not use this middleware.
func APIKeyAuth(validKeys map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" || !validKeys[key] {
			c.JSON(401, gin.H{"error": "missing or invalid API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}
