package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Frame type tags. These correspond to the "type" field in wire frames.
const (
	// Bidirectional
	TypeMessage = "message" // Chat message
	TypeTyping  = "typing"  // Typing indicator

	// Server to client
	TypeSessionEnd = "session_end" // The counseling session was ended
)

// ContentType is the kind of content carried by a chat message.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentFile  ContentType = "file"
	ContentVoice ContentType = "voice"
	ContentVideo ContentType = "video"
)

// Valid reports whether c is one of the known content types.
func (c ContentType) Valid() bool {
	switch c {
	case ContentText, ContentImage, ContentFile, ContentVoice, ContentVideo:
		return true
	}
	return false
}

var (
	// ErrMalformedFrame is returned by Decode when a frame is not valid JSON
	// or its payload does not match its type.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownType is returned by Decode for well-formed frames whose type
	// tag is not recognized. Such frames are meant to be ignored.
	ErrUnknownType = errors.New("unknown frame type")
)

// WireFrame is the JSON envelope of every frame.
type WireFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ChatMessage is the payload of a "message" frame. Only ContentType and
// Content are always present; the rest is filled in by the server.
type ChatMessage struct {
	ID          ID          `json:"id,omitempty"`
	SessionID   ID          `json:"session_id,omitempty"`
	SenderID    ID          `json:"sender_id,omitempty"`
	SenderType  string      `json:"sender_type,omitempty"`
	ContentType ContentType `json:"content_type"`
	Content     string      `json:"content"`
	FileURL     string      `json:"file_url,omitempty"`
	CreatedAt   *time.Time  `json:"created_at,omitempty"`
}

// TypingStatus is the payload of a "typing" frame.
type TypingStatus struct {
	UserID   ID   `json:"user_id,omitempty"`
	IsTyping bool `json:"is_typing"`
}

// SessionEnd is the optional payload of a "session_end" frame.
type SessionEnd struct {
	SessionID ID     `json:"session_id,omitempty"`
	Duration  int    `json:"duration,omitempty"` // seconds
	Reason    string `json:"reason,omitempty"`
}

// Event is a decoded inbound frame. Exactly one of the payload pointers is
// set for "message" and "typing" events; SessionEnd may be nil for
// "session_end" events that carry no payload.
type Event struct {
	Type       string
	Message    *ChatMessage
	Typing     *TypingStatus
	SessionEnd *SessionEnd
}

// MarshalJSON renders the event back into its wire shape.
func (e Event) MarshalJSON() ([]byte, error) {
	out := struct {
		Type    string `json:"type"`
		Payload any    `json:"payload,omitempty"`
	}{Type: e.Type}

	switch {
	case e.Message != nil:
		out.Payload = e.Message
	case e.Typing != nil:
		out.Payload = e.Typing
	case e.SessionEnd != nil:
		out.Payload = e.SessionEnd
	}

	return json.Marshal(out)
}

// Decode parses a single inbound frame.
func Decode(data []byte) (Event, error) {
	var frame WireFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	event := Event{Type: frame.Type}

	switch frame.Type {
	case TypeMessage:
		var msg ChatMessage
		if err := decodePayload(frame.Payload, &msg, true); err != nil {
			return Event{}, err
		}
		event.Message = &msg
	case TypeTyping:
		var status TypingStatus
		if err := decodePayload(frame.Payload, &status, true); err != nil {
			return Event{}, err
		}
		event.Typing = &status
	case TypeSessionEnd:
		if hasPayload(frame.Payload) {
			var end SessionEnd
			if err := decodePayload(frame.Payload, &end, false); err != nil {
				return Event{}, err
			}
			event.SessionEnd = &end
		}
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownType, frame.Type)
	}

	return event, nil
}

func hasPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func decodePayload(raw json.RawMessage, into any, required bool) error {
	if !hasPayload(raw) {
		if required {
			return fmt.Errorf("%w: missing payload", ErrMalformedFrame)
		}
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("%w: bad payload: %v", ErrMalformedFrame, err)
	}
	return nil
}

// Command is an outbound frame built by the caller.
type Command struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// MessagePayload is the payload of an outbound "message" command.
type MessagePayload struct {
	ContentType ContentType `json:"content_type"`
	Content     string      `json:"content"`
}

// TypingPayload is the payload of an outbound "typing" command.
type TypingPayload struct {
	IsTyping bool `json:"is_typing"`
}

// TextMessage builds a text chat message command.
func TextMessage(content string) Command {
	return ContentMessage(ContentText, content)
}

// ContentMessage builds a chat message command with an explicit content type.
// For non-text content the content is usually an uploaded file URL.
func ContentMessage(contentType ContentType, content string) Command {
	return Command{
		Type: TypeMessage,
		Payload: MessagePayload{
			ContentType: contentType,
			Content:     content,
		},
	}
}

// Typing builds a typing indicator command.
func Typing(isTyping bool) Command {
	return Command{
		Type:    TypeTyping,
		Payload: TypingPayload{IsTyping: isTyping},
	}
}

// Encode serializes a command into a single frame.
func Encode(cmd Command) ([]byte, error) {
	if cmd.Type == "" {
		return nil, fmt.Errorf("command type is required")
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	return data, nil
}
