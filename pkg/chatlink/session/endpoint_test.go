package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint Endpoint
		expected string
	}{
		{
			name:     "plain page uses ws",
			endpoint: Endpoint{Host: "chat.example.com", SessionID: "42", Token: "abc"},
			expected: "ws://chat.example.com/ws/chat/42?token=abc",
		},
		{
			name:     "secure page uses wss",
			endpoint: Endpoint{Host: "chat.example.com", Secure: true, SessionID: "42", Token: "abc"},
			expected: "wss://chat.example.com/ws/chat/42?token=abc",
		},
		{
			name:     "host with port",
			endpoint: Endpoint{Host: "localhost:8080", SessionID: "7", Token: "t"},
			expected: "ws://localhost:8080/ws/chat/7?token=t",
		},
		{
			name:     "empty token keeps the query",
			endpoint: Endpoint{Host: "chat.example.com", SessionID: "42"},
			expected: "ws://chat.example.com/ws/chat/42?token=",
		},
		{
			name:     "token is query escaped",
			endpoint: Endpoint{Host: "chat.example.com", SessionID: "42", Token: "a b&c"},
			expected: "ws://chat.example.com/ws/chat/42?token=a+b%26c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := tt.endpoint.URL()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, url)
		})
	}
}

func TestEndpointURLErrors(t *testing.T) {
	t.Run("missing host", func(t *testing.T) {
		_, err := Endpoint{SessionID: "42"}.URL()
		assert.Error(t, err)
	})

	t.Run("missing session", func(t *testing.T) {
		_, err := Endpoint{Host: "chat.example.com"}.URL()
		assert.Error(t, err)
	})

	t.Run("invalid host", func(t *testing.T) {
		_, err := Endpoint{Host: "bad host", SessionID: "42"}.URL()
		assert.Error(t, err)
	})
}

func TestEndpointRedacted(t *testing.T) {
	e := Endpoint{Host: "chat.example.com", Secure: true, SessionID: "42", Token: "secret"}
	assert.Equal(t, "wss://chat.example.com/ws/chat/42?token=xxxxx", e.Redacted())
	assert.NotContains(t, e.Redacted(), "secret")

	assert.Equal(t, "ws://chat.example.com/ws/chat/42?token=", Endpoint{Host: "chat.example.com", SessionID: "42"}.Redacted())
	assert.Equal(t, "<invalid endpoint>", Endpoint{}.Redacted())
}

func TestEndpointFromOrigin(t *testing.T) {
	tests := []struct {
		origin string
		host   string
		secure bool
	}{
		{"https://chat.example.com", "chat.example.com", true},
		{"http://chat.example.com", "chat.example.com", false},
		{"wss://chat.example.com:8443", "chat.example.com:8443", true},
		{"ws://127.0.0.1:9000", "127.0.0.1:9000", false},
		{"  HTTPS://chat.example.com/some/page  ", "chat.example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			e, err := EndpointFromOrigin(tt.origin, "42", "abc")
			require.NoError(t, err)
			assert.Equal(t, tt.host, e.Host)
			assert.Equal(t, tt.secure, e.Secure)
			assert.Equal(t, "42", e.SessionID)
			assert.Equal(t, "abc", e.Token)
		})
	}

	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := EndpointFromOrigin("ftp://chat.example.com", "42", "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported scheme")
	})

	t.Run("missing host", func(t *testing.T) {
		_, err := EndpointFromOrigin("https://", "42", "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "missing host")
	})
}
