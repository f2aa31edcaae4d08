package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultTimeout = 15 * time.Second

// Doer is the *http.Client interface
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientBuilder provides a fluent interface for building REST clients.
type ClientBuilder struct {
	baseURL string
	token   string
	client  Doer
	timeout time.Duration
	logger  *zap.Logger
	err     error
}

// NewClient creates a new REST client builder.
func NewClient() *ClientBuilder {
	return &ClientBuilder{
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
}

// WithBaseURL sets the API root, e.g. "https://chat.example.com/api".
func (b *ClientBuilder) WithBaseURL(baseURL string) *ClientBuilder {
	b.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return b
}

// WithOrigin derives the API root from a page origin by appending "/api".
func (b *ClientBuilder) WithOrigin(origin string) *ClientBuilder {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Host == "" {
		b.err = fmt.Errorf("invalid origin %q", origin)
		return b
	}

	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}

	b.baseURL = u.Scheme + "://" + u.Host + "/api"
	return b
}

// WithToken sets the bearer token sent in the Authorization header.
func (b *ClientBuilder) WithToken(token string) *ClientBuilder {
	b.token = token
	return b
}

// WithHTTPClient replaces the HTTP client. The timeout set with WithTimeout
// is not applied to a caller-supplied client.
func (b *ClientBuilder) WithHTTPClient(client Doer) *ClientBuilder {
	if client != nil {
		b.client = client
	}
	return b
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func (b *ClientBuilder) WithTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.timeout = timeout
	}
	return b
}

// WithLogger sets the logger for the client.
func (b *ClientBuilder) WithLogger(logger *zap.Logger) *ClientBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Build creates and returns a new Client with the configured options.
func (b *ClientBuilder) Build() (*Client, error) {
	if b.err != nil {
		return nil, b.err
	}

	if b.baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	base, err := url.Parse(b.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL: unsupported scheme %q", base.Scheme)
	}

	client := b.client
	if client == nil {
		client = &http.Client{Timeout: b.timeout}
	}

	return &Client{
		base:   base,
		token:  b.token,
		client: client,
		logger: b.logger,
	}, nil
}
