package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mychat/chatlink/pkg/chatlink/protocol"
	"github.com/mychat/chatlink/pkg/chatlink/session"
	"go.uber.org/zap"
)

// DefaultHistoryTimeout bounds one history fetch.
const DefaultHistoryTimeout = 10 * time.Second

// HistoryFetcher returns the stored messages of a session, oldest first.
type HistoryFetcher interface {
	History(ctx context.Context, sessionID string) ([]protocol.ChatMessage, error)
}

// Room is one chat session as seen by a participant: a session Manager plus
// the ordered message log it feeds.
//
// After the transport is re-established the Room fetches the session
// history and merges the messages missed during the outage before any new
// frame is dispatched.
type Room struct {
	manager        *session.Manager
	history        HistoryFetcher
	historyTimeout time.Duration
	logger         *zap.Logger

	next         session.Handler
	onMessage    func(protocol.ChatMessage)
	onTyping     func(protocol.TypingStatus)
	onSessionEnd func(*protocol.SessionEnd)

	mu     sync.Mutex
	log    []protocol.ChatMessage
	seen   map[protocol.ID]struct{}
	opens  int
	ended  bool
	typing *protocol.TypingStatus
}

// Manager returns the underlying session manager.
func (r *Room) Manager() *session.Manager {
	return r.manager
}

// SessionID returns the session this room is bound to.
func (r *Room) SessionID() string {
	return r.manager.Endpoint().SessionID
}

// State returns the connection state.
func (r *Room) State() session.State {
	return r.manager.State()
}

// Connect opens the session connection.
func (r *Room) Connect(ctx context.Context) error {
	return r.manager.Connect(ctx)
}

// Close closes the session connection. The message log is kept.
func (r *Room) Close() error {
	return r.manager.Close()
}

// SendText sends a text message.
func (r *Room) SendText(content string) error {
	return r.manager.SendTextMessage(content)
}

// SendContent sends a message of any content type, such as an uploaded
// file URL with ContentImage.
func (r *Room) SendContent(contentType protocol.ContentType, content string) error {
	if !contentType.Valid() {
		return fmt.Errorf("invalid content type %q", contentType)
	}
	return r.manager.Send(protocol.ContentMessage(contentType, content))
}

// SendTyping sends a typing indicator.
func (r *Room) SendTyping(isTyping bool) error {
	return r.manager.SendTypingStatus(isTyping)
}

// Messages returns a copy of the message log.
func (r *Room) Messages() []protocol.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.ChatMessage(nil), r.log...)
}

// Ended reports whether the server announced the end of the session.
func (r *Room) Ended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

// PeerTyping returns the last typing status received, if any.
func (r *Room) PeerTyping() (protocol.TypingStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.typing == nil {
		return protocol.TypingStatus{}, false
	}
	return *r.typing, true
}

// LoadHistory fetches the session history and merges it into the log. It
// returns the number of messages added.
func (r *Room) LoadHistory(ctx context.Context) (int, error) {
	if r.history == nil {
		return 0, fmt.Errorf("no history source configured")
	}

	msgs, err := r.history.History(ctx, r.SessionID())
	if err != nil {
		return 0, fmt.Errorf("failed to load history: %w", err)
	}

	added := r.merge(msgs)
	for _, msg := range added {
		r.emitMessage(msg)
	}
	return len(added), nil
}

// OnOpen implements session.Handler.OnOpen
func (r *Room) OnOpen() {
	r.mu.Lock()
	r.opens++
	reopened := r.opens > 1
	r.mu.Unlock()

	if reopened && r.history != nil {
		r.backfill()
	}

	if r.next != nil {
		r.next.OnOpen()
	}
}

// OnEvent implements session.Handler.OnEvent
func (r *Room) OnEvent(event protocol.Event) {
	switch event.Type {
	case protocol.TypeMessage:
		if event.Message != nil && r.append(*event.Message) {
			r.emitMessage(*event.Message)
		}
	case protocol.TypeTyping:
		if event.Typing != nil {
			status := *event.Typing
			r.mu.Lock()
			r.typing = &status
			r.mu.Unlock()

			if r.onTyping != nil {
				r.onTyping(status)
			}
		}
	case protocol.TypeSessionEnd:
		r.mu.Lock()
		r.ended = true
		r.mu.Unlock()

		r.logger.Info("Chat session ended by server")
		if r.onSessionEnd != nil {
			r.onSessionEnd(event.SessionEnd)
		}
	}

	if r.next != nil {
		r.next.OnEvent(event)
	}
}

// OnError implements session.Handler.OnError
func (r *Room) OnError(err error) {
	if r.next != nil {
		r.next.OnError(err)
	}
}

// OnClose implements session.Handler.OnClose
func (r *Room) OnClose(info session.CloseInfo) {
	if r.next != nil {
		r.next.OnClose(info)
	}
}

func (r *Room) backfill() {
	ctx, cancel := context.WithTimeout(context.Background(), r.historyTimeout)
	defer cancel()

	n, err := r.LoadHistory(ctx)
	if err != nil {
		r.logger.Warn("History backfill failed", zap.Error(err))
		if r.next != nil {
			r.next.OnError(err)
		}
		return
	}

	r.logger.Info("History backfill complete", zap.Int("added", n))
}

func (r *Room) emitMessage(msg protocol.ChatMessage) {
	if r.onMessage != nil {
		r.onMessage(msg)
	}
}

// append adds a live message to the end of the log. It reports false for a
// message whose ID is already logged.
func (r *Room) append(msg protocol.ChatMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !msg.ID.IsZero() {
		if _, dup := r.seen[msg.ID]; dup {
			return false
		}
		r.seen[msg.ID] = struct{}{}
	}

	r.log = append(r.log, msg)
	return true
}

// merge inserts stored messages that are not logged yet, keeping the log
// ordered by ID where IDs are known. It returns the messages added.
func (r *Room) merge(msgs []protocol.ChatMessage) []protocol.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	var added []protocol.ChatMessage
	for _, msg := range msgs {
		if msg.ID.IsZero() {
			continue
		}
		if _, dup := r.seen[msg.ID]; dup {
			continue
		}
		r.seen[msg.ID] = struct{}{}
		r.log = insertByID(r.log, msg)
		added = append(added, msg)
	}
	return added
}

// insertByID places msg before the first logged message with a larger ID.
func insertByID(log []protocol.ChatMessage, msg protocol.ChatMessage) []protocol.ChatMessage {
	for i, m := range log {
		if !m.ID.IsZero() && msg.ID.Less(m.ID) {
			log = append(log, protocol.ChatMessage{})
			copy(log[i+1:], log[i:])
			log[i] = msg
			return log
		}
	}
	return append(log, msg)
}
