// Package telemetry exposes OpenTelemetry metric instruments for
// storyroom. Instruments bind to the global MeterProvider, so the
// deployment decides whether anything is exported.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/veilcraft/storyroom"

// Metrics holds the instruments recorded by the registry and runner.
type Metrics struct {
	turnsApplied      metric.Int64Counter
	invalidActions    metric.Int64Counter
	sessionsStarted   metric.Int64Counter
	sessionsCompleted metric.Int64Counter
	activeSessions    metric.Int64UpDownCounter
}

var (
	global *Metrics
	once   sync.Once
)

// Get returns the process-wide metrics, creating them on first use.
// Instrument creation errors are swallowed; a nil instrument is never
// returned because the otel API falls back to no-op instruments.
func Get() *Metrics {
	once.Do(func() {
		meter := otel.Meter(meterName)
		m := &Metrics{}
		m.turnsApplied, _ = meter.Int64Counter("storyroom.turns.applied",
			metric.WithDescription("Accepted actions applied by the turn engine"))
		m.invalidActions, _ = meter.Int64Counter("storyroom.turns.invalid",
			metric.WithDescription("Actions rejected before mutating state"))
		m.sessionsStarted, _ = meter.Int64Counter("storyroom.sessions.started",
			metric.WithDescription("Sessions registered"))
		m.sessionsCompleted, _ = meter.Int64Counter("storyroom.sessions.completed",
			metric.WithDescription("Sessions that reached the done phase"))
		m.activeSessions, _ = meter.Int64UpDownCounter("storyroom.sessions.active",
			metric.WithDescription("Sessions currently held by the registry"))
		global = m
	})
	return global
}

// TurnApplied records one accepted action on the named branch.
func (m *Metrics) TurnApplied(ctx context.Context, branch string) {
	m.turnsApplied.Add(ctx, 1, metric.WithAttributes(attribute.String("branch", branch)))
}

// InvalidAction records a rejected action.
func (m *Metrics) InvalidAction(ctx context.Context) {
	m.invalidActions.Add(ctx, 1)
}

// SessionStarted records a new registration.
func (m *Metrics) SessionStarted(ctx context.Context) {
	m.sessionsStarted.Add(ctx, 1)
	m.activeSessions.Add(ctx, 1)
}

// SessionCompleted records a session reaching the done phase.
func (m *Metrics) SessionCompleted(ctx context.Context) {
	m.sessionsCompleted.Add(ctx, 1)
}

// SessionRemoved records a registry removal.
func (m *Metrics) SessionRemoved(ctx context.Context) {
	m.activeSessions.Add(ctx, -1)
}
