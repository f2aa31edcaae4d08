package session

import (
	"context"
	"time"

	"github.com/mychat/chatlink/pkg/chatlink/o11y"
)

// Metrics holds the instruments a Manager reports to. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Connection metrics
	connectAttempts    o11y.Counter   // Dials started, including retries
	connectFailures    o11y.Counter   // Dials that failed or endpoints that could not be built
	connectionsOpened  o11y.Counter   // Transports that reached the open state
	connectionOpen     o11y.Gauge     // 1 while a transport is open
	connectionDuration o11y.Histogram // Lifetime of open transports

	// Retry metrics
	reconnectsScheduled o11y.Counter // Retries scheduled after a lost transport
	budgetExhausted     o11y.Counter // Times the retry budget ran out

	// Frame metrics
	framesReceived o11y.Counter   // Decoded inbound frames, by type
	framesDropped  o11y.Counter   // Inbound frames dropped, by reason
	framesSent     o11y.Counter   // Outbound frames written, by type
	frameSize      o11y.Histogram // Frame size by direction
}

// NewMetrics creates the Manager instruments from provider. A nil provider
// yields nil Metrics.
func NewMetrics(provider o11y.MetricsProvider) *Metrics {
	if provider == nil {
		return nil
	}

	return &Metrics{
		connectAttempts:    provider.Counter("chatlink_connect_attempts_total"),
		connectFailures:    provider.Counter("chatlink_connect_failures_total"),
		connectionsOpened:  provider.Counter("chatlink_connections_opened_total"),
		connectionOpen:     provider.Gauge("chatlink_connection_open"),
		connectionDuration: provider.Histogram("chatlink_connection_duration_seconds"),

		reconnectsScheduled: provider.Counter("chatlink_reconnects_scheduled_total"),
		budgetExhausted:     provider.Counter("chatlink_reconnect_budget_exhausted_total"),

		framesReceived: provider.Counter("chatlink_frames_received_total"),
		framesDropped:  provider.Counter("chatlink_frames_dropped_total"),
		framesSent:     provider.Counter("chatlink_frames_sent_total"),
		frameSize:      provider.Histogram("chatlink_frame_size_bytes"),
	}
}

func (m *Metrics) recordConnectAttempt(ctx context.Context, retry bool) {
	if m == nil {
		return
	}
	kind := "initial"
	if retry {
		kind = "retry"
	}
	m.connectAttempts.Add(ctx, 1, o11y.Label{Key: "kind", Value: kind})
}

func (m *Metrics) recordConnectFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.connectFailures.Add(ctx, 1, o11y.Label{Key: "reason", Value: reason})
}

func (m *Metrics) recordOpen(ctx context.Context) {
	if m == nil {
		return
	}
	m.connectionsOpened.Add(ctx, 1)
	m.connectionOpen.Set(ctx, 1)
}

func (m *Metrics) recordClosed(ctx context.Context, openFor time.Duration) {
	if m == nil {
		return
	}
	m.connectionOpen.Set(ctx, 0)
	m.connectionDuration.Record(ctx, openFor.Seconds())
}

func (m *Metrics) recordReconnectScheduled(ctx context.Context) {
	if m == nil {
		return
	}
	m.reconnectsScheduled.Add(ctx, 1)
}

func (m *Metrics) recordBudgetExhausted(ctx context.Context) {
	if m == nil {
		return
	}
	m.budgetExhausted.Add(ctx, 1)
}

func (m *Metrics) recordFrameReceived(ctx context.Context, sizeBytes int, frameType string) {
	if m == nil {
		return
	}
	m.framesReceived.Add(ctx, 1, o11y.Label{Key: "type", Value: frameType})
	m.frameSize.Record(ctx, float64(sizeBytes), o11y.Label{Key: "direction", Value: "received"})
}

func (m *Metrics) recordFrameDropped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.framesDropped.Add(ctx, 1, o11y.Label{Key: "reason", Value: reason})
}

func (m *Metrics) recordFrameSent(ctx context.Context, sizeBytes int) {
	if m == nil {
		return
	}
	m.framesSent.Add(ctx, 1)
	m.frameSize.Record(ctx, float64(sizeBytes), o11y.Label{Key: "direction", Value: "sent"})
}
