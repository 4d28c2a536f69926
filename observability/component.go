package observability

import (
	"context"
	"errors"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/chatstream/component"
)

// Telemetry manages the meter and tracer providers as a component. When
// export is disabled Start does nothing and the global no-op providers stay
// in place.
type Telemetry struct {
	cfg         Config
	service     string
	version     string
	environment string

	mp *sdkmetric.MeterProvider
	tp *sdktrace.TracerProvider
}

var _ component.Component = (*Telemetry)(nil)

// NewTelemetry creates the telemetry component.
func NewTelemetry(cfg Config, service, version, environment string) *Telemetry {
	cfg.ApplyDefaults()
	return &Telemetry{cfg: cfg, service: service, version: version, environment: environment}
}

func (t *Telemetry) Name() string { return "telemetry" }

func (t *Telemetry) Start(ctx context.Context) error {
	if !t.cfg.Enabled {
		return nil
	}
	mp, err := InitMeter(ctx, t.cfg.MeterConfig(t.service, t.version, t.environment))
	if err != nil {
		return err
	}
	tp, err := InitTracer(ctx, t.cfg.TracerConfig(t.service, t.version, t.environment))
	if err != nil {
		_ = mp.Shutdown(ctx)
		return err
	}
	t.mp, t.tp = mp, tp
	return nil
}

func (t *Telemetry) Stop(ctx context.Context) error {
	var errs []error
	if t.tp != nil {
		errs = append(errs, t.tp.Shutdown(ctx))
	}
	if t.mp != nil {
		errs = append(errs, t.mp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (t *Telemetry) Health(ctx context.Context) component.Health {
	h := component.Health{Name: t.Name(), Status: component.StatusHealthy}
	if !t.cfg.Enabled {
		h.Message = "export disabled"
	}
	return h
}

func (t *Telemetry) Describe() component.Description {
	details := "disabled"
	if t.cfg.Enabled {
		details = "otlp http " + t.cfg.Endpoint
	}
	return component.Description{Type: "telemetry", Details: details}
}
