package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/mychat/chatlink/pkg/chatlink/o11y"
	"go.uber.org/zap"
)

const (
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectInterval    = 3 * time.Second
	DefaultDialTimeout          = 30 * time.Second
	DefaultWriteQueueSize       = 64
)

// ManagerBuilder provides a fluent interface for building session managers.
type ManagerBuilder struct {
	endpoint          Endpoint
	logger            *zap.Logger
	handler           Handler
	dialer            Dialer
	scheduler         Scheduler
	maxAttempts       int
	reconnectInterval time.Duration
	dialTimeout       time.Duration
	writeQueueSize    int
	headers           http.Header
	metricsProvider   o11y.MetricsProvider
	tracingProvider   o11y.TracingProvider
}

// NewManager creates a new session manager builder.
func NewManager() *ManagerBuilder {
	return &ManagerBuilder{
		logger:            zap.NewNop(),
		dialer:            WebSocketDialer{},
		scheduler:         WallClock,
		maxAttempts:       DefaultMaxReconnectAttempts,
		reconnectInterval: DefaultReconnectInterval,
		dialTimeout:       DefaultDialTimeout,
		writeQueueSize:    DefaultWriteQueueSize,
	}
}

// WithEndpoint sets the session endpoint to connect to.
func (b *ManagerBuilder) WithEndpoint(endpoint Endpoint) *ManagerBuilder {
	b.endpoint = endpoint
	return b
}

// WithLogger sets the logger for the manager.
func (b *ManagerBuilder) WithLogger(logger *zap.Logger) *ManagerBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithHandler sets the handler that receives lifecycle callbacks and events.
func (b *ManagerBuilder) WithHandler(handler Handler) *ManagerBuilder {
	b.handler = handler
	return b
}

// WithDialer replaces the WebSocket dialer.
func (b *ManagerBuilder) WithDialer(dialer Dialer) *ManagerBuilder {
	if dialer != nil {
		b.dialer = dialer
	}
	return b
}

// WithScheduler replaces the clock used for reconnect delays.
func (b *ManagerBuilder) WithScheduler(scheduler Scheduler) *ManagerBuilder {
	if scheduler != nil {
		b.scheduler = scheduler
	}
	return b
}

// WithMaxReconnectAttempts sets the reconnect budget. Zero disables
// automatic reconnection; negative values are ignored. Default is 5.
func (b *ManagerBuilder) WithMaxReconnectAttempts(n int) *ManagerBuilder {
	if n >= 0 {
		b.maxAttempts = n
	}
	return b
}

// WithReconnectInterval sets the fixed delay before each retry. Default is 3s.
func (b *ManagerBuilder) WithReconnectInterval(d time.Duration) *ManagerBuilder {
	if d > 0 {
		b.reconnectInterval = d
	}
	return b
}

// WithDialTimeout sets the timeout for establishing a transport.
func (b *ManagerBuilder) WithDialTimeout(timeout time.Duration) *ManagerBuilder {
	if timeout > 0 {
		b.dialTimeout = timeout
	}
	return b
}

// WithWriteQueueSize sets how many outbound frames may be queued per
// transport before Send starts failing. Default is 64.
func (b *ManagerBuilder) WithWriteQueueSize(size int) *ManagerBuilder {
	if size > 0 {
		b.writeQueueSize = size
	}
	return b
}

// WithHeader sets an HTTP header sent with every handshake.
func (b *ManagerBuilder) WithHeader(key, value string) *ManagerBuilder {
	if b.headers == nil {
		b.headers = make(http.Header)
	}
	b.headers.Set(key, value)
	return b
}

// WithMetricsProvider enables metrics collection.
func (b *ManagerBuilder) WithMetricsProvider(provider o11y.MetricsProvider) *ManagerBuilder {
	b.metricsProvider = provider
	return b
}

// WithTracingProvider enables a span per dial.
func (b *ManagerBuilder) WithTracingProvider(provider o11y.TracingProvider) *ManagerBuilder {
	b.tracingProvider = provider
	return b
}

// Build creates and returns a new Manager with the configured options.
func (b *ManagerBuilder) Build() (*Manager, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	handler := b.handler
	if handler == nil {
		handler = HandlerFuncs{}
	}

	id := uuid.NewString()

	m := &Manager{
		id:             id,
		endpoint:       b.endpoint,
		logger:         b.logger.With(zap.String("session_id", b.endpoint.SessionID), zap.String("conn_id", id)),
		handler:        handler,
		dialer:         b.dialer,
		scheduler:      b.scheduler,
		maxAttempts:    b.maxAttempts,
		retryDelay:     b.reconnectInterval,
		dialTimeout:    b.dialTimeout,
		writeQueueSize: b.writeQueueSize,
		headers:        b.headers,
		metrics:        NewMetrics(b.metricsProvider),
		tracer:         b.tracingProvider,
		policy: backoff.WithMaxRetries(
			backoff.NewConstantBackOff(b.reconnectInterval),
			uint64(b.maxAttempts),
		),
		state: StateIdle,
	}

	return m, nil
}

// IsValid checks that all required configuration is present.
func (b *ManagerBuilder) IsValid() error {
	if b.endpoint.Host == "" {
		return fmt.Errorf("endpoint host is required")
	}

	if b.endpoint.SessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if b.logger == nil {
		b.logger = zap.NewNop()
	}

	if b.dialer == nil {
		b.dialer = WebSocketDialer{}
	}

	if b.scheduler == nil {
		b.scheduler = WallClock
	}

	return nil
}
