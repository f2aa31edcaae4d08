package session

import (
	"fmt"
	"net/url"
	"strings"
)

// ChatPathPrefix is the path under which session sockets are served.
const ChatPathPrefix = "/ws/chat/"

// Endpoint identifies the chat session socket to connect to. It replaces
// everything a browser page would read from its own location and storage.
type Endpoint struct {
	Host      string // host[:port] serving the socket
	Secure    bool   // use wss instead of ws
	SessionID string // opaque session identifier
	Token     string // bearer token, always sent as the "token" query parameter
}

// EndpointFromOrigin derives Host and Secure from a page origin such as
// "https://chat.example.com". ws and wss origins are accepted as well.
func EndpointFromOrigin(origin, sessionID, token string) (Endpoint, error) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid origin %q: %w", origin, err)
	}

	var secure bool
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		secure = true
	case "http", "ws":
		secure = false
	default:
		return Endpoint{}, fmt.Errorf("invalid origin %q: unsupported scheme %q", origin, u.Scheme)
	}

	if u.Host == "" {
		return Endpoint{}, fmt.Errorf("invalid origin %q: missing host", origin)
	}

	return Endpoint{
		Host:      u.Host,
		Secure:    secure,
		SessionID: sessionID,
		Token:     token,
	}, nil
}

// URL builds {ws|wss}://{host}/ws/chat/{sessionId}?token={token}.
func (e Endpoint) URL() (string, error) {
	u, err := e.build(e.Token)
	if err != nil {
		return "", err
	}
	return u, nil
}

// Redacted is URL with the token masked, for logging.
func (e Endpoint) Redacted() string {
	token := ""
	if e.Token != "" {
		token = "xxxxx"
	}
	u, err := e.build(token)
	if err != nil {
		return "<invalid endpoint>"
	}
	return u
}

func (e Endpoint) build(token string) (string, error) {
	if e.Host == "" {
		return "", fmt.Errorf("endpoint host is required")
	}
	if e.SessionID == "" {
		return "", fmt.Errorf("endpoint session ID is required")
	}

	scheme := "ws"
	if e.Secure {
		scheme = "wss"
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     e.Host,
		Path:     ChatPathPrefix + e.SessionID,
		RawQuery: url.Values{"token": {token}}.Encode(),
	}

	s := u.String()

	// url.URL.String does not validate the host, parsing it back does.
	if _, err := url.Parse(s); err != nil {
		return "", fmt.Errorf("invalid endpoint URL: %w", err)
	}

	return s, nil
}
