package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mychat/chatlink/pkg/chatlink/chat"
	"github.com/mychat/chatlink/pkg/chatlink/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ chat.HistoryFetcher = (*Client)(nil)

func writeEnvelope(w http.ResponseWriter, status, code int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": msg, "data": data})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := NewClient().WithBaseURL(ts.URL + "/api/").WithToken("abc").Build()
	require.NoError(t, err)
	return client
}

func TestClientBuilder(t *testing.T) {
	t.Run("origin derives the api root", func(t *testing.T) {
		tests := map[string]string{
			"https://chat.example.com":          "https://chat.example.com/api",
			"http://localhost:8080/some/page":   "http://localhost:8080/api",
			"wss://chat.example.com":            "https://chat.example.com/api",
			"ws://127.0.0.1:9000/ws/chat/1?t=x": "http://127.0.0.1:9000/api",
		}
		for origin, expected := range tests {
			client, err := NewClient().WithOrigin(origin).Build()
			require.NoError(t, err, origin)
			assert.Equal(t, expected, client.BaseURL())
		}
	})

	t.Run("base URL is required", func(t *testing.T) {
		_, err := NewClient().Build()
		assert.ErrorContains(t, err, "base URL is required")
	})

	t.Run("invalid origin", func(t *testing.T) {
		_, err := NewClient().WithOrigin("not a url").Build()
		assert.ErrorContains(t, err, "invalid origin")
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := NewClient().WithBaseURL("ftp://example.com/api").Build()
		assert.ErrorContains(t, err, "unsupported scheme")
	})

	t.Run("default values", func(t *testing.T) {
		builder := NewClient()
		assert.Equal(t, DefaultTimeout, builder.timeout)
		assert.NotNil(t, builder.logger)

		builder.WithTimeout(0).WithLogger(nil).WithHTTPClient(nil)
		assert.Equal(t, DefaultTimeout, builder.timeout)
		assert.NotNil(t, builder.logger)
		assert.Nil(t, builder.client)
	})
}

func TestClientRequests(t *testing.T) {
	t.Run("start session", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/chat/start/17", r.URL.Path)
			assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
			_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
			assert.NoError(t, err)
			writeEnvelope(w, 200, 200, "ok", map[string]any{"session_id": 42})
		})

		id, err := client.StartSession(context.Background(), 17)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), id)
	})

	t.Run("start session that already exists", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, 400, 400, "session exists", map[string]any{"session_id": 42})
		})

		id, err := client.StartSession(context.Background(), 17)
		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 400, apiErr.Code)
		assert.Equal(t, "session exists", apiErr.Msg)
		assert.Equal(t, uint64(42), id)
	})

	t.Run("order session", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/chat/order/17/session", r.URL.Path)
			writeEnvelope(w, 200, 200, "ok", map[string]any{"session_id": 42})
		})

		id, err := client.GetOrderSession(context.Background(), 17)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), id)
	})

	t.Run("send message", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/chat/session/42/message", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			assert.JSONEq(t, `{"content":"hello","sender_type":"user","content_type":"text"}`, string(body))

			writeEnvelope(w, 200, 200, "sent", map[string]any{
				"id": 9, "session_id": 42, "sender_type": "user",
				"content_type": "text", "content": "hello",
				"created_at": "2024-05-01T10:00:00Z",
			})
		})

		msg, err := client.SendMessage(context.Background(), "42", MessageRequest{Content: "hello", SenderType: "user"})
		require.NoError(t, err)
		assert.Equal(t, protocol.ID("9"), msg.ID)
		assert.Equal(t, "hello", msg.Content)
		require.NotNil(t, msg.CreatedAt)
		assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), msg.CreatedAt.UTC())
	})

	t.Run("send message rejects unknown content type", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := client.SendMessage(context.Background(), "42", MessageRequest{Content: "x", ContentType: "sticker"})
		assert.ErrorContains(t, err, "invalid content type")
	})

	t.Run("end session", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/chat/end/42", r.URL.Path)
			writeEnvelope(w, 200, 200, "ended", map[string]any{"duration": 125})
		})

		d, err := client.EndSession(context.Background(), "42")
		require.NoError(t, err)
		assert.Equal(t, 125*time.Second, d)
	})

	t.Run("list sessions", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/chat/sessions", r.URL.Path)
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "5", r.URL.Query().Get("page_size"))
			writeEnvelope(w, 200, 200, "ok", map[string]any{
				"sessions": []map[string]any{{"id": 42, "order_id": 17, "status": 1, "duration": 60}},
				"total":    6,
			})
		})

		page, err := client.ListSessions(context.Background(), Page{Page: 2, PageSize: 5})
		require.NoError(t, err)
		require.Len(t, page.Sessions, 1)
		assert.Equal(t, uint64(42), page.Sessions[0].ID)
		assert.Equal(t, "active", page.Sessions[0].StatusText())
		assert.Equal(t, int64(6), page.Total)
	})

	t.Run("default paging sends no query", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.URL.RawQuery)
			writeEnvelope(w, 200, 200, "ok", map[string]any{"sessions": []any{}, "total": 0})
		})

		_, err := client.ListSessions(context.Background(), Page{})
		require.NoError(t, err)
	})
}

func TestClientErrors(t *testing.T) {
	t.Run("envelope error code", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, 403, 403, "forbidden", nil)
		})

		_, err := client.GetMessages(context.Background(), "42", Page{})
		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 403, apiErr.Status)
		assert.Equal(t, 403, apiErr.Code)
		assert.Equal(t, "api error 403: forbidden", apiErr.Error())
	})

	t.Run("HTTP error without envelope", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		})

		_, err := client.ListSessions(context.Background(), Page{})
		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadGateway, apiErr.Status)
		assert.Equal(t, 0, apiErr.Code)
	})

	t.Run("OK status with garbage body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		})

		_, err := client.ListSessions(context.Background(), Page{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid response")
	})

	t.Run("transport failure", func(t *testing.T) {
		client, err := NewClient().
			WithBaseURL("http://example.invalid/api").
			WithHTTPClient(doerFunc(func(*http.Request) (*http.Response, error) {
				return nil, errors.New("dial refused")
			})).
			Build()
		require.NoError(t, err)

		_, err = client.EndSession(context.Background(), "42")
		assert.ErrorContains(t, err, "dial refused")
	})
}

func TestClientHistory(t *testing.T) {
	const total = 250

	var (
		mu    sync.Mutex
		pages []int
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/messages/42", r.URL.Path)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		mu.Lock()
		pages = append(pages, page)
		mu.Unlock()

		// Newest page first, each page oldest first.
		var msgs []map[string]any
		for i := max(total-page*size+1, 1); i <= total-(page-1)*size; i++ {
			msgs = append(msgs, map[string]any{
				"id": i, "content_type": "text", "content": fmt.Sprintf("m%d", i),
			})
		}
		writeEnvelope(w, 200, 200, "ok", map[string]any{"messages": msgs, "total": total})
	})

	history, err := client.History(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, history, total)
	mu.Lock()
	assert.Equal(t, []int{1, 2, 3}, pages)
	mu.Unlock()
	for i, msg := range history {
		require.Equal(t, protocol.ID(strconv.Itoa(i+1)), msg.ID, "position %d", i)
	}
	assert.Equal(t, "m1", history[0].Content)
	assert.Equal(t, "m250", history[total-1].Content)
	assert.Equal(t, protocol.ContentText, history[0].ContentType)
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}
