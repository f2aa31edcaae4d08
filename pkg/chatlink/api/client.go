package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mychat/chatlink/pkg/chatlink/protocol"
	"go.uber.org/zap"
)

// CodeOK is the envelope code of a successful response.
const CodeOK = 200

// HistoryPageSize is the page size History uses when walking a session.
const HistoryPageSize = 100

// Error is a failed API call: either a non-OK envelope code or an HTTP
// error status without a parseable envelope.
type Error struct {
	Status int    // HTTP status code
	Code   int    // envelope code, 0 if the body was not an envelope
	Msg    string // envelope message or HTTP status text
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("api error %d: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("api error: HTTP %d: %s", e.Status, e.Msg)
}

// envelope is the response wrapper used by every endpoint.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Client calls the chat REST API.
type Client struct {
	base   *url.URL
	token  string
	client Doer
	logger *zap.Logger
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// StartSession starts the chat session for a paid order and returns its ID.
// If the order already has a session the returned error is an *Error and
// the existing session ID is returned alongside it.
func (c *Client) StartSession(ctx context.Context, orderID uint64) (uint64, error) {
	var data struct {
		SessionID uint64 `json:"session_id"`
	}
	err := c.do(ctx, http.MethodPost, "chat/start/"+strconv.FormatUint(orderID, 10), nil, nil, &data)
	return data.SessionID, err
}

// GetOrderSession returns the ID of the session belonging to an order.
func (c *Client) GetOrderSession(ctx context.Context, orderID uint64) (uint64, error) {
	var data struct {
		SessionID uint64 `json:"session_id"`
	}
	if err := c.do(ctx, http.MethodGet, "chat/order/"+strconv.FormatUint(orderID, 10)+"/session", nil, nil, &data); err != nil {
		return 0, err
	}
	return data.SessionID, nil
}

// SendMessage stores a message through the REST API instead of the socket.
func (c *Client) SendMessage(ctx context.Context, sessionID string, req MessageRequest) (*protocol.ChatMessage, error) {
	if req.ContentType == "" {
		req.ContentType = protocol.ContentText
	}
	if !req.ContentType.Valid() {
		return nil, fmt.Errorf("invalid content type %q", req.ContentType)
	}

	var msg protocol.ChatMessage
	if err := c.do(ctx, http.MethodPost, "chat/session/"+url.PathEscape(sessionID)+"/message", nil, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMessages returns one page of a session's messages. Page 1 holds the
// newest messages; within a page they are ordered oldest first.
func (c *Client) GetMessages(ctx context.Context, sessionID string, page Page) (*MessagePage, error) {
	var data MessagePage
	if err := c.do(ctx, http.MethodGet, "chat/messages/"+url.PathEscape(sessionID), page.query(), nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// EndSession ends a session and returns its billed duration.
func (c *Client) EndSession(ctx context.Context, sessionID string) (time.Duration, error) {
	var data struct {
		Duration int `json:"duration"`
	}
	if err := c.do(ctx, http.MethodPost, "chat/end/"+url.PathEscape(sessionID), nil, nil, &data); err != nil {
		return 0, err
	}
	return time.Duration(data.Duration) * time.Second, nil
}

// ListSessions returns one page of the caller's sessions, newest first.
func (c *Client) ListSessions(ctx context.Context, page Page) (*SessionPage, error) {
	var data SessionPage
	if err := c.do(ctx, http.MethodGet, "chat/sessions", page.query(), nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// History returns every message of a session, oldest first.
func (c *Client) History(ctx context.Context, sessionID string) ([]protocol.ChatMessage, error) {
	var (
		pages [][]protocol.ChatMessage
		count int
	)

	for page := 1; ; page++ {
		p, err := c.GetMessages(ctx, sessionID, Page{Page: page, PageSize: HistoryPageSize})
		if err != nil {
			return nil, err
		}

		pages = append(pages, p.Messages)
		count += len(p.Messages)

		if len(p.Messages) < HistoryPageSize || int64(count) >= p.Total {
			break
		}
	}

	// Pages arrive newest first.
	all := make([]protocol.ChatMessage, 0, count)
	for i := len(pages) - 1; i >= 0; i-- {
		all = append(all, pages[i]...)
	}
	return all, nil
}

func (p Page) query() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(p.PageSize))
	}
	return q
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = path.Join(u.Path, endpoint)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	logger := c.logger.With(
		zap.String("method", method),
		zap.String("path", u.Path),
		zap.String("request_id", requestID),
	)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		logger.Error("API request failed", zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, u.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w", method, u.Path, err)
	}

	logger.Debug("API request completed",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Code == 0 {
		if resp.StatusCode >= 300 {
			return &Error{Status: resp.StatusCode, Msg: http.StatusText(resp.StatusCode)}
		}
		if err == nil {
			err = fmt.Errorf("missing envelope code")
		}
		return fmt.Errorf("%s %s: invalid response: %w", method, u.Path, err)
	}

	// Some failures still carry data, such as the existing session ID.
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil && env.Code == CodeOK {
			return fmt.Errorf("%s %s: failed to decode data: %w", method, u.Path, err)
		}
	}

	if env.Code != CodeOK {
		logger.Warn("API call rejected", zap.Int("code", env.Code), zap.String("msg", env.Msg))
		return &Error{Status: resp.StatusCode, Code: env.Code, Msg: env.Msg}
	}

	return nil
}
