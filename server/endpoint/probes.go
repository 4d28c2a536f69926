package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/chatstream/component"
)

// Liveness confirms the process is alive and able to serve HTTP.
func Liveness(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"service":   serviceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Readiness reports whether new streams should be sent here. Any component
// short of healthy holds readiness back and is listed under "waiting_on" with
// its message, so a draining session registry shows up by name.
func Readiness(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var components []component.Health
		if checker != nil {
			components = checker(c.Request.Context())
		}
		waiting := map[string]string{}
		for _, ch := range components {
			if ch.Status != component.StatusHealthy {
				waiting[ch.Name] = ch.Message
			}
		}

		body := gin.H{
			"status":    "ready",
			"service":   serviceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if len(waiting) > 0 {
			body["status"] = "not_ready"
			body["waiting_on"] = waiting
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		c.JSON(http.StatusOK, body)
	}
}
