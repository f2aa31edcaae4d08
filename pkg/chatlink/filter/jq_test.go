package filter

import (
	"context"
	"testing"

	"github.com/mychat/chatlink/pkg/chatlink/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func messageEvent(content, senderType string) protocol.Event {
	return protocol.Event{
		Type: protocol.TypeMessage,
		Message: &protocol.ChatMessage{
			ID:          "7",
			SenderType:  senderType,
			ContentType: protocol.ContentText,
			Content:     content,
		},
	}
}

func TestCompile(t *testing.T) {
	t.Run("empty query yields nil filter", func(t *testing.T) {
		f, err := Compile("", nil)
		require.NoError(t, err)
		assert.Nil(t, f)
		assert.Equal(t, ".", f.String())
	})

	t.Run("parse error", func(t *testing.T) {
		_, err := Compile(".[", nil)
		assert.ErrorContains(t, err, "failed to parse jq query")
	})

	t.Run("unknown variable fails to compile", func(t *testing.T) {
		_, err := Compile("$topic", nil)
		assert.ErrorContains(t, err, "failed to compile jq query")
	})
}

func TestFilterApply(t *testing.T) {
	ctx := context.Background()

	t.Run("nil filter passes the wire form through", func(t *testing.T) {
		var f *Filter
		out := f.Apply(ctx, messageEvent("hi", "user"), "42")
		require.Len(t, out, 1)
		assert.Equal(t, map[string]any{
			"type": "message",
			"payload": map[string]any{
				"id":           float64(7),
				"sender_type":  "user",
				"content_type": "text",
				"content":      "hi",
			},
		}, out[0])
	})

	t.Run("field extraction", func(t *testing.T) {
		f, err := Compile(".payload.content", zaptest.NewLogger(t))
		require.NoError(t, err)

		assert.Equal(t, []any{"hi"}, f.Apply(ctx, messageEvent("hi", "user"), "42"))
	})

	t.Run("select on $type suppresses other events", func(t *testing.T) {
		f, err := Compile(`select($type == "message") | .payload.content`, nil)
		require.NoError(t, err)

		typing := protocol.Event{Type: protocol.TypeTyping, Typing: &protocol.TypingStatus{IsTyping: true}}
		assert.Empty(t, f.Apply(ctx, typing, "42"))
		assert.Equal(t, []any{"hello"}, f.Apply(ctx, messageEvent("hello", "counselor"), "42"))
	})

	t.Run("session variable", func(t *testing.T) {
		f, err := Compile(`{session: $session, type: $type}`, nil)
		require.NoError(t, err)

		out := f.Apply(ctx, protocol.Event{Type: protocol.TypeSessionEnd}, "42")
		assert.Equal(t, []any{map[string]any{"session": "42", "type": "session_end"}}, out)
	})

	t.Run("multiple results", func(t *testing.T) {
		f, err := Compile(`.payload.content, .payload.sender_type`, nil)
		require.NoError(t, err)

		assert.Equal(t, []any{"hi", "user"}, f.Apply(ctx, messageEvent("hi", "user"), "42"))
	})

	t.Run("runtime error returns the event unchanged", func(t *testing.T) {
		f, err := Compile(`.payload.content | tonumber`, zaptest.NewLogger(t))
		require.NoError(t, err)

		out := f.Apply(ctx, messageEvent("not a number", "user"), "42")
		require.Len(t, out, 1)
		generic, ok := out[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "message", generic["type"])
	})
}
