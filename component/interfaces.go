package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a lifecycle-managed part of a chatstream binary: the HTTP
// server, the telemetry providers, the session registry.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description is a one-line summary a component reports when it starts.
type Description struct {
	// Type categorizes the component: "server", "telemetry", "provider".
	Type string
	// Details is a short human-readable configuration summary such as
	// "0.0.0.0:8080 h2c".
	Details string
}

// Describable is optionally implemented by components to report what they
// are in the startup log.
type Describable interface {
	Describe() Description
}
