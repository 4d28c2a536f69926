package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/chatstream/version"
)

var startTime = time.Now()

// InfoSource supplies the runtime details /info reports beside the build.
type InfoSource struct {
	// Providers lists the registered LLM providers.
	Providers func() []string
	// DefaultModel is the model used when a request names none.
	DefaultModel string
	// LiveSessions counts streams in flight.
	LiveSessions func() int
}

// Info reports build information, providers and live stream count.
func Info(serviceName string, src InfoSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"service":       serviceName,
			"build":         version.Get(),
			"default_model": src.DefaultModel,
			"uptime":        time.Since(startTime).Round(time.Second).String(),
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
		}
		if src.Providers != nil {
			body["providers"] = src.Providers()
		}
		if src.LiveSessions != nil {
			body["live_sessions"] = src.LiveSessions()
		}
		c.JSON(http.StatusOK, body)
	}
}
