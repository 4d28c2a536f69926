package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/chatstream/component"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// overall folds component statuses: any unhealthy wins, then degraded.
func overall(components []component.Health) component.HealthStatus {
	status := component.StatusHealthy
	for _, ch := range components {
		switch ch.Status {
		case component.StatusUnhealthy:
			return component.StatusUnhealthy
		case component.StatusDegraded:
			status = component.StatusDegraded
		}
	}
	return status
}

// Health reports service health including component statuses. Degraded
// components still answer 200.
func Health(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var components []component.Health
		if checker != nil {
			components = checker(c.Request.Context())
		}
		status := overall(components)

		httpStatus := http.StatusOK
		if status == component.StatusUnhealthy {
			httpStatus = http.StatusServiceUnavailable
		}
		c.JSON(httpStatus, gin.H{
			"status":     status,
			"service":    serviceName,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": components,
		})
	}
}
