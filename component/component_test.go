package component

import (
	"context"
	"fmt"
	"testing"
)

// mockComponent implements Component for testing.
type mockComponent struct {
	name       string
	startErr   error
	stopErr    error
	health     Health
	startOrder *[]string
	stopOrder  *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	if m.startOrder != nil {
		*m.startOrder = append(*m.startOrder, m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	if m.stopOrder != nil {
		*m.stopOrder = append(*m.stopOrder, m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) Health {
	return m.health
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("expected non-nil registry")
	}
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	c := &mockComponent{name: "telemetry", health: Health{Name: "telemetry", Status: StatusHealthy}}

	if err := r.Register(c); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	c := &mockComponent{name: "telemetry"}
	r.Register(c)

	err := r.Register(&mockComponent{name: "telemetry"})
	if err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestGet(t *testing.T) {
	r := NewRegistry()
	c := &mockComponent{name: "telemetry"}
	r.Register(c)

	got := r.Get("telemetry")
	if got == nil {
		t.Fatal("expected to get registered component")
	}
	if got.Name() != "telemetry" {
		t.Errorf("expected 'telemetry', got %q", got.Name())
	}
}

func TestGetNotFound(t *testing.T) {
	r := NewRegistry()
	got := r.Get("missing")
	if got != nil {
		t.Error("expected nil for unregistered component")
	}
}

func TestStartAll(t *testing.T) {
	r := NewRegistry()
	order := []string{}

	r.Register(&mockComponent{
		name: "telemetry", startOrder: &order,
		health: Health{Name: "telemetry", Status: StatusHealthy},
	})
	r.Register(&mockComponent{
		name: "sessions", startOrder: &order,
		health: Health{Name: "sessions", Status: StatusHealthy},
	})

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}

	if len(order) != 2 {
		t.Fatalf("expected 2 starts, got %d", len(order))
	}
	if order[0] != "telemetry" || order[1] != "sessions" {
		t.Errorf("expected start order [telemetry, sessions], got %v", order)
	}
}

func TestStartAllError(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockComponent{name: "telemetry", startErr: fmt.Errorf("exporter unreachable")})

	err := r.StartAll(context.Background())
	if err == nil {
		t.Error("expected error from StartAll")
	}
}

func TestStopAllReverseOrder(t *testing.T) {
	r := NewRegistry()
	order := []string{}

	r.Register(&mockComponent{name: "telemetry", stopOrder: &order, health: Health{Name: "telemetry", Status: StatusHealthy}})
	r.Register(&mockComponent{name: "sessions", stopOrder: &order, health: Health{Name: "sessions", Status: StatusHealthy}})
	r.Register(&mockComponent{name: "http", stopOrder: &order, health: Health{Name: "http", Status: StatusHealthy}})

	r.StartAll(context.Background())
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}

	if len(order) != 3 {
		t.Fatalf("expected 3 stops, got %d", len(order))
	}
	if order[0] != "http" || order[1] != "sessions" || order[2] != "telemetry" {
		t.Errorf("expected reverse stop order [http, sessions, telemetry], got %v", order)
	}
}

func TestStopAllSkipsUnstarted(t *testing.T) {
	r := NewRegistry()
	order := []string{}
	r.Register(&mockComponent{name: "telemetry", stopOrder: &order})

	// Don't start, then stop
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("expected 0 stops for unstarted components, got %d", len(order))
	}
}

func TestStopAllWithErrors(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockComponent{
		name: "telemetry", stopErr: fmt.Errorf("stop failed"),
		health: Health{Name: "telemetry", Status: StatusHealthy},
	})
	r.StartAll(context.Background())

	err := r.StopAll(context.Background())
	if err == nil {
		t.Error("expected error from StopAll")
	}
}

func TestHealthAll(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockComponent{
		name:   "telemetry",
		health: Health{Name: "telemetry", Status: StatusHealthy, Message: "connected"},
	})
	r.Register(&mockComponent{
		name:   "sessions",
		health: Health{Name: "sessions", Status: StatusUnhealthy, Message: "timeout"},
	})

	results := r.HealthAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != StatusHealthy {
		t.Errorf("expected db healthy, got %s", results[0].Status)
	}
	if results[1].Status != StatusUnhealthy {
		t.Errorf("expected sessions unhealthy, got %s", results[1].Status)
	}
}

type describedComponent struct {
	mockComponent
	started bool
}

func (d *describedComponent) Start(ctx context.Context) error {
	d.started = true
	return nil
}

func (d *describedComponent) Describe() Description {
	return Description{Type: "server", Details: "127.0.0.1:8080 h2c"}
}

func TestStartAllDescribable(t *testing.T) {
	r := NewRegistry()
	d := &describedComponent{mockComponent: mockComponent{name: "http"}}
	if err := r.Register(d); err != nil {
		t.Fatal(err)
	}
	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if !d.started {
		t.Error("expected describable component to start")
	}
	var _ Describable = d
}

func TestAll(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockComponent{name: "telemetry"})
	r.Register(&mockComponent{name: "sessions"})
	r.Register(&mockComponent{name: "http"})

	all := r.All()
	if len(all) != 3 || all[0].Name() != "telemetry" || all[2].Name() != "http" {
		t.Errorf("unexpected order: %v", all)
	}
}
