package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mychat/chatlink/pkg/chatlink/o11y"
	"github.com/mychat/chatlink/pkg/chatlink/protocol"
	"go.uber.org/zap"
)

var (
	// ErrNotOpen is returned by Send when no transport is open.
	ErrNotOpen = errors.New("session connection is not open")

	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("session manager is closed")

	// ErrWriteQueueFull is returned by Send when outbound frames are not
	// being drained fast enough.
	ErrWriteQueueFull = errors.New("write queue is full")
)

// Manager owns one logical chat session connection. It opens the session
// socket, decodes inbound frames into events for its Handler, and re-dials
// with a fixed delay when the transport is lost, up to a bounded number of
// attempts.
//
// A Manager holds at most one transport at a time. Close releases it and
// cancels any pending retry; callers must call Close when they are done.
type Manager struct {
	// Configuration
	id             string
	endpoint       Endpoint
	logger         *zap.Logger
	handler        Handler
	dialer         Dialer
	scheduler      Scheduler
	maxAttempts    int
	retryDelay     time.Duration
	dialTimeout    time.Duration
	writeQueueSize int
	headers        http.Header
	metrics        *Metrics
	tracer         o11y.TracingProvider

	// Connection state
	mu       sync.Mutex
	state    State
	attempts int
	policy   backoff.BackOff
	link     *link
	timer    Timer
	retrySeq uint64
	ctx      context.Context
	cancel   context.CancelFunc
}

// link is one transport and the goroutines serving it. Events from a link
// that is no longer Manager.link are discarded.
type link struct {
	conn     Conn
	ctx      context.Context
	cancel   context.CancelFunc
	writes   chan []byte
	openedAt time.Time

	// closed is set under Manager.mu when Close detaches the link. The
	// link's goroutine then reports the requested close.
	closed bool
}

// ID returns the random identifier of this manager, used in logs.
func (m *Manager) ID() string {
	return m.id
}

// Endpoint returns the configured endpoint.
func (m *Manager) Endpoint() Endpoint {
	return m.endpoint
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of retries made since the last open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect starts connecting and returns without waiting for the transport
// to open; the outcome is reported through the Handler.
//
// Connect is a no-op while a transport is connecting or open. While a retry
// is pending it cancels the delay and dials immediately. After Close it
// returns ErrClosed. Failures to build the endpoint URL are reported through
// OnError only and leave the manager disconnected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()

	switch m.state {
	case StateClosed:
		m.mu.Unlock()
		return ErrClosed
	case StateConnecting, StateOpen:
		m.mu.Unlock()
		m.logger.Debug("Connect ignored, session connection already active")
		return nil
	case StateReconnecting:
		m.stopTimerLocked()
	default:
		m.attempts = 0
		m.policy.Reset()
	}

	if m.cancel != nil {
		m.cancel()
	}
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.startLocked(false)
	return nil
}

// startLocked dials a new transport. It must be called with m.mu held and
// releases it.
func (m *Manager) startLocked(retry bool) {
	url, err := m.endpoint.URL()
	if err != nil {
		m.state = StateDisconnected
		m.mu.Unlock()

		m.metrics.recordConnectFailure(context.Background(), "endpoint")
		m.logger.Error("Cannot build session endpoint URL", zap.Error(err))
		m.handler.OnError(fmt.Errorf("invalid session endpoint: %w", err))
		return
	}

	l := &link{writes: make(chan []byte, m.writeQueueSize)}
	l.ctx, l.cancel = context.WithCancel(m.ctx)
	m.link = l
	m.state = StateConnecting
	attempt := m.attempts
	m.mu.Unlock()

	m.metrics.recordConnectAttempt(l.ctx, retry)
	m.logger.Info("Connecting to chat session",
		zap.String("url", m.endpoint.Redacted()),
		zap.Int("attempt", attempt),
	)

	go m.run(l, url)
}

// run serves one transport: dial, open, read until the transport ends,
// then hand over to the close path. All Handler calls for the transport are
// made from here.
func (m *Manager) run(l *link, url string) {
	conn, err := m.dial(l, url)
	if err != nil {
		m.metrics.recordConnectFailure(l.ctx, "dial")
		if m.isCurrent(l) {
			m.logger.Error("Failed to connect to chat session", zap.Error(err))
			m.handler.OnError(fmt.Errorf("failed to connect to WebSocket: %w", err))
		}
		m.transportClosed(l, err)
		return
	}

	m.mu.Lock()
	if m.link != l {
		closed := l.closed
		m.mu.Unlock()
		_ = conn.Close("client closed")
		if closed {
			m.handler.OnClose(CloseInfo{})
		}
		return
	}
	l.conn = conn
	l.openedAt = time.Now()
	m.state = StateOpen
	m.attempts = 0
	m.policy.Reset()
	m.mu.Unlock()

	m.metrics.recordOpen(l.ctx)
	m.logger.Info("Chat session connected", zap.String("url", m.endpoint.Redacted()))
	m.handler.OnOpen()

	go m.writeLoop(l)
	err = m.readLoop(l)

	m.metrics.recordClosed(context.Background(), time.Since(l.openedAt))

	var closeErr *CloseError
	if !errors.As(err, &closeErr) && m.isCurrent(l) {
		m.logger.Error("Chat session transport failed", zap.Error(err))
		m.handler.OnError(err)
	}

	m.transportClosed(l, err)
}

func (m *Manager) dial(l *link, url string) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(l.ctx, m.dialTimeout)
	defer cancel()

	dialCtx, span := o11y.StartSpan(dialCtx, m.tracer, "chatlink.session.dial")
	defer span.End()
	span.SetAttributes(
		o11y.Label{Key: "session.id", Value: m.endpoint.SessionID},
		o11y.Label{Key: "url", Value: m.endpoint.Redacted()},
	)

	var header http.Header
	if m.headers != nil {
		header = m.headers.Clone()
	}

	conn, err := m.dialer.Dial(dialCtx, url, header)
	if err != nil {
		span.SetStatus(o11y.SpanStatusError, err.Error())
		return nil, err
	}

	span.SetStatus(o11y.SpanStatusOK, "")
	return conn, nil
}

// readLoop processes incoming frames until the transport fails.
func (m *Manager) readLoop(l *link) error {
	for {
		data, err := l.conn.Read(l.ctx)
		if err != nil {
			return err
		}

		m.handleFrame(l, data)
	}
}

// writeLoop drains the outbound queue of one transport.
func (m *Manager) writeLoop(l *link) {
	for {
		select {
		case <-l.ctx.Done():
			return
		case data := <-l.writes:
			if err := l.conn.Write(l.ctx, data); err != nil {
				if l.ctx.Err() == nil {
					m.logger.Error("Failed to write to chat session", zap.Error(err))
					if m.isCurrent(l) {
						m.handler.OnError(fmt.Errorf("failed to write frame: %w", err))
					}
					// The reader sees the closed transport and drives the close path.
					_ = l.conn.Close("write failed")
				}
				return
			}
			m.metrics.recordFrameSent(l.ctx, len(data))
		}
	}
}

// handleFrame decodes one frame and dispatches it.
func (m *Manager) handleFrame(l *link, data []byte) {
	event, err := protocol.Decode(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownType) {
			m.metrics.recordFrameDropped(l.ctx, "unknown_type")
			m.logger.Debug("Ignoring frame of unknown type", zap.Error(err))
			return
		}
		m.metrics.recordFrameDropped(l.ctx, "malformed")
		m.logger.Warn("Dropping malformed frame", zap.Error(err), zap.Int("size", len(data)))
		return
	}

	m.metrics.recordFrameReceived(l.ctx, len(data), event.Type)

	if m.isCurrent(l) {
		m.handler.OnEvent(event)
	}
}

// transportClosed applies the retry policy after l ended.
func (m *Manager) transportClosed(l *link, cause error) {
	m.mu.Lock()
	if m.link != l {
		// Close already detached the link.
		closed := l.closed
		m.mu.Unlock()
		l.cancel()
		if closed {
			m.handler.OnClose(CloseInfo{})
		}
		return
	}
	m.link = nil
	l.cancel()

	info := CloseInfo{Err: cause}

	if m.ctx.Err() != nil {
		// The caller's context ended; retrying would fail the same way.
		m.state = StateDisconnected
		m.mu.Unlock()

		m.logger.Info("Chat session context done, not reconnecting", zap.Error(cause))
		m.handler.OnClose(info)
		return
	}

	delay := m.policy.NextBackOff()
	if delay == backoff.Stop {
		m.state = StateDisconnected
		info.Exhausted = true
		info.Attempt = m.attempts
	} else {
		m.attempts++
		m.state = StateReconnecting
		info.Reconnecting = true
		info.Attempt = m.attempts
		info.Delay = delay
	}
	m.mu.Unlock()

	if info.Exhausted {
		m.metrics.recordBudgetExhausted(context.Background())
		m.logger.Warn("Chat session lost, reconnect budget exhausted",
			zap.Int("max_attempts", m.maxAttempts),
			zap.Error(cause),
		)
	} else {
		m.metrics.recordReconnectScheduled(context.Background())
		m.logger.Info("Chat session lost, reconnecting",
			zap.Int("attempt", info.Attempt),
			zap.Int("max_attempts", m.maxAttempts),
			zap.Duration("delay", delay),
			zap.Error(cause),
		)
	}

	m.handler.OnClose(info)

	if info.Reconnecting {
		m.scheduleRetry(delay)
	}
}

// scheduleRetry arms the reconnect timer unless the handler already moved
// the manager out of StateReconnecting.
func (m *Manager) scheduleRetry(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateReconnecting || m.timer != nil {
		return
	}

	m.retrySeq++
	seq := m.retrySeq
	m.timer = m.scheduler.AfterFunc(delay, func() {
		m.retry(seq)
	})
}

func (m *Manager) retry(seq uint64) {
	m.mu.Lock()
	if m.state != StateReconnecting || m.retrySeq != seq {
		m.mu.Unlock()
		return
	}
	m.timer = nil

	m.startLocked(true)
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.retrySeq++
}

func (m *Manager) isCurrent(l *link) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.link == l
}

// Send queues cmd as a single frame. It fails with ErrNotOpen unless the
// transport is open. Send never blocks on the network.
func (m *Manager) Send(cmd protocol.Command) error {
	m.mu.Lock()
	l := m.link
	state := m.state
	m.mu.Unlock()

	if state != StateOpen || l == nil {
		m.logger.Warn("Cannot send, chat session is not open",
			zap.String("type", cmd.Type),
			zap.Stringer("state", state),
		)
		return ErrNotOpen
	}

	data, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}

	select {
	case <-l.ctx.Done():
		return ErrNotOpen
	default:
	}

	select {
	case l.writes <- data:
		return nil
	default:
		m.logger.Warn("Dropping outbound frame, write queue is full", zap.String("type", cmd.Type))
		return ErrWriteQueueFull
	}
}

// SendTextMessage sends a text chat message.
func (m *Manager) SendTextMessage(content string) error {
	return m.Send(protocol.TextMessage(content))
}

// SendTypingStatus sends a typing indicator.
func (m *Manager) SendTypingStatus(isTyping bool) error {
	return m.Send(protocol.Typing(isTyping))
}

// Close cancels any pending retry, closes the live transport and moves the
// manager to StateClosed. It is safe to call more than once and before
// Connect. If a connection was active, OnClose is called once with a
// CloseInfo whose Err is nil; no callbacks follow.
//
// When a transport is connecting or open, that OnClose is made from the
// transport's goroutine after its last OnEvent, so it may arrive after
// Close returns. Otherwise it is made before Close returns.
func (m *Manager) Close() error {
	m.mu.Lock()
	prev := m.state
	if prev == StateClosed {
		m.mu.Unlock()
		return nil
	}

	m.state = StateClosed
	m.stopTimerLocked()

	l := m.link
	m.link = nil

	var conn Conn
	if l != nil {
		conn = l.conn
		l.closed = true
	}

	cancel := m.cancel
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close("client closed"); err != nil {
			m.logger.Debug("Error closing chat session transport", zap.Error(err))
		}
	}
	if l != nil {
		l.cancel()
	}
	if cancel != nil {
		cancel()
	}

	if prev.active() {
		m.logger.Info("Chat session closed")
		if l == nil {
			m.handler.OnClose(CloseInfo{})
		}
	}

	return nil
}
