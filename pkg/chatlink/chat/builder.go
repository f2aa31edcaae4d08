package chat

import (
	"fmt"
	"time"

	"github.com/mychat/chatlink/pkg/chatlink/protocol"
	"github.com/mychat/chatlink/pkg/chatlink/session"
	"go.uber.org/zap"
)

// RoomBuilder provides a fluent interface for building rooms.
type RoomBuilder struct {
	manager        *session.ManagerBuilder
	history        HistoryFetcher
	historyTimeout time.Duration
	logger         *zap.Logger
	next           session.Handler
	onMessage      func(protocol.ChatMessage)
	onTyping       func(protocol.TypingStatus)
	onSessionEnd   func(*protocol.SessionEnd)
}

// NewRoom creates a new room builder.
func NewRoom() *RoomBuilder {
	return &RoomBuilder{
		historyTimeout: DefaultHistoryTimeout,
		logger:         zap.NewNop(),
	}
}

// WithManager sets the builder of the session manager the room drives. The
// room installs itself as the manager's handler; use WithHandler to receive
// the raw callbacks as well.
func (b *RoomBuilder) WithManager(manager *session.ManagerBuilder) *RoomBuilder {
	b.manager = manager
	return b
}

// WithHistory enables history loading and backfill after reconnects.
func (b *RoomBuilder) WithHistory(history HistoryFetcher) *RoomBuilder {
	b.history = history
	return b
}

// WithHistoryTimeout bounds each backfill fetch.
func (b *RoomBuilder) WithHistoryTimeout(timeout time.Duration) *RoomBuilder {
	if timeout > 0 {
		b.historyTimeout = timeout
	}
	return b
}

// WithHandler sets a handler that receives every session callback after the
// room has processed it.
func (b *RoomBuilder) WithHandler(handler session.Handler) *RoomBuilder {
	b.next = handler
	return b
}

// OnMessage sets the callback for new messages, live or backfilled.
func (b *RoomBuilder) OnMessage(f func(protocol.ChatMessage)) *RoomBuilder {
	b.onMessage = f
	return b
}

// OnTyping sets the callback for peer typing indicators.
func (b *RoomBuilder) OnTyping(f func(protocol.TypingStatus)) *RoomBuilder {
	b.onTyping = f
	return b
}

// OnSessionEnd sets the callback for the server's end-of-session event. The
// argument is nil when the event carried no payload.
func (b *RoomBuilder) OnSessionEnd(f func(*protocol.SessionEnd)) *RoomBuilder {
	b.onSessionEnd = f
	return b
}

// WithLogger sets the logger for the room.
func (b *RoomBuilder) WithLogger(logger *zap.Logger) *RoomBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Build creates the Room and its Manager.
func (b *RoomBuilder) Build() (*Room, error) {
	if b.manager == nil {
		return nil, fmt.Errorf("session manager is required")
	}

	r := &Room{
		history:        b.history,
		historyTimeout: b.historyTimeout,
		logger:         b.logger,
		next:           b.next,
		onMessage:      b.onMessage,
		onTyping:       b.onTyping,
		onSessionEnd:   b.onSessionEnd,
		seen:           make(map[protocol.ID]struct{}),
	}

	m, err := b.manager.WithHandler(r).Build()
	if err != nil {
		return nil, err
	}

	r.manager = m
	r.logger = r.logger.With(zap.String("session_id", m.Endpoint().SessionID))

	return r, nil
}
