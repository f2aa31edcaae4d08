package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/mychat/chatlink/pkg/chatlink/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const welcomeFrame = `{"type":"message","payload":{"id":1,"session_id":42,"content_type":"text","content":"welcome"}}`

// chatServer serves /ws/chat/{id}. The first connection greets, reads one
// frame and closes with StatusGoingAway; later ones greet and stay open.
type chatServer struct {
	connections atomic.Int32

	mu       sync.Mutex
	paths    []string
	tokens   []string
	received []string
}

func (s *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, ChatPathPrefix) {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	s.paths = append(s.paths, r.URL.Path)
	s.tokens = append(s.tokens, r.URL.Query().Get("token"))
	s.mu.Unlock()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	n := s.connections.Add(1)
	ctx := r.Context()

	if err := conn.Write(ctx, websocket.MessageText, []byte(welcomeFrame)); err != nil {
		return
	}

	if n == 1 {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, string(data))
		s.mu.Unlock()

		_ = conn.Close(websocket.StatusGoingAway, "restarting")
		return
	}

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func (s *chatServer) receivedFrames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func TestManagerWebSocket(t *testing.T) {
	server := &chatServer{}
	ts := httptest.NewServer(server)
	defer ts.Close()

	endpoint, err := EndpointFromOrigin(ts.URL, "42", "abc")
	require.NoError(t, err)

	handler := &recorder{}
	var m *Manager
	handler.onEvent = func(event protocol.Event) {
		if event.Message != nil && event.Message.Content == "welcome" {
			_ = m.SendTextMessage("hi")
		}
	}

	m, err = NewManager().
		WithEndpoint(endpoint).
		WithLogger(zaptest.NewLogger(t)).
		WithHandler(handler).
		WithReconnectInterval(20 * time.Millisecond).
		WithDialTimeout(5 * time.Second).
		Build()
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))

	require.Eventually(t, func() bool { return handler.openCount() == 2 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(handler.eventList()) == 2 }, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{`{"type":"message","payload":{"content_type":"text","content":"hi"}}`}, server.receivedFrames())

	closes := handler.closeList()
	require.Len(t, closes, 1)
	assert.True(t, closes[0].Reconnecting)
	var closeErr *CloseError
	require.ErrorAs(t, closes[0].Err, &closeErr)
	assert.Equal(t, int(websocket.StatusGoingAway), closeErr.Code)
	assert.Equal(t, "restarting", closeErr.Reason)

	server.mu.Lock()
	assert.Equal(t, []string{"/ws/chat/42", "/ws/chat/42"}, server.paths)
	assert.Equal(t, []string{"abc", "abc"}, server.tokens)
	server.mu.Unlock()

	require.NoError(t, m.Close())
	assert.Equal(t, StateClosed, m.State())
	require.Eventually(t, func() bool { return len(handler.closeList()) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, handler.closeList()[1].Requested())
}
