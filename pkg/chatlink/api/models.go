package api

import (
	"time"

	"github.com/mychat/chatlink/pkg/chatlink/protocol"
)

// Session status codes as reported by the backend.
const (
	SessionPending  = 0
	SessionActive   = 1
	SessionEnded    = 2
	SessionTimedOut = 3
)

// Session is a chat session between a user and a counselor.
type Session struct {
	ID          uint64     `json:"id"`
	OrderID     uint64     `json:"order_id"`
	UserID      uint64     `json:"user_id"`
	CounselorID uint64     `json:"counselor_id"`
	Status      int        `json:"status"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Duration    int        `json:"duration"`
	Price       float64    `json:"price"`
	TotalAmount float64    `json:"total_amount"`
	CreatedAt   time.Time  `json:"created_at"`
}

// StatusText returns a short name for the session status.
func (s Session) StatusText() string {
	switch s.Status {
	case SessionPending:
		return "pending"
	case SessionActive:
		return "active"
	case SessionEnded:
		return "ended"
	case SessionTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Page selects one page of a listing. Zero values use the server defaults.
type Page struct {
	Page     int
	PageSize int
}

// MessageRequest is the body of SendMessage.
type MessageRequest struct {
	Content     string               `json:"content"`
	SenderType  string               `json:"sender_type,omitempty"`
	ContentType protocol.ContentType `json:"content_type,omitempty"`
	FileURL     string               `json:"file_url,omitempty"`
}

// MessagePage is one page of session history.
type MessagePage struct {
	Messages []protocol.ChatMessage `json:"messages"`
	Total    int64                  `json:"total"`
}

// SessionPage is one page of the caller's sessions.
type SessionPage struct {
	Sessions []Session `json:"sessions"`
	Total    int64     `json:"total"`
}
