package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
)

// Conn is one open transport channel. Read is only ever called from a
// single goroutine, Write from another; Close may be called concurrently
// with both.
type Conn interface {
	// Read blocks for the next frame.
	Read(ctx context.Context) ([]byte, error)
	// Write sends data as a single text frame.
	Write(ctx context.Context, data []byte) error
	// Close closes the transport with a normal closure status.
	Close(reason string) error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// CloseError is returned by Conn.Read when the peer closed the transport
// with a close frame. It is an orderly close, not a transport error.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("closed by peer: status %d: %s", e.Code, e.Reason)
}

// WebSocketDialer dials with github.com/coder/websocket.
type WebSocketDialer struct {
	// HTTPClient is used for the handshake. Nil uses http.DefaultClient.
	HTTPClient *http.Client
	// ReadLimit is the maximum inbound frame size in bytes. Zero keeps the
	// library default.
	ReadLimit int64
}

// Dial implements Dialer.
func (d WebSocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	opts := &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: header,
	}

	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, err
	}

	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}

	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		var closeErr websocket.CloseError
		if errors.As(err, &closeErr) {
			return nil, &CloseError{Code: int(closeErr.Code), Reason: closeErr.Reason}
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close(reason string) error {
	return c.conn.Close(websocket.StatusNormalClosure, reason)
}
