package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
)

// observe logs each request and records it in the HTTP metrics
func (s *Server) observe() gin.HandlerFunc {
	log := logger.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		s.metrics.HTTPRequest(c.Request.Method, route, c.Writer.Status(), elapsed)

		if route == "/health" || route == "/metrics" {
			return
		}
		log.Info("HTTP request",
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"elapsed", elapsed,
		)
	}
}

// requireUUID rejects requests whose path parameter is not a UUID
func requireUUID(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := uuid.Parse(c.Param(param)); err != nil {
			writeError(c, apperrors.NewValidationError(param+" must be a UUID"))
			c.Abort()
			return
		}
		c.Next()
	}
}
