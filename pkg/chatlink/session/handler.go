package session

import (
	"time"

	"github.com/mychat/chatlink/pkg/chatlink/protocol"
)

// CloseInfo describes why OnClose was called.
type CloseInfo struct {
	// Err is the transport error or *CloseError that ended the connection.
	// It is nil when the connection was ended by Manager.Close, and may be
	// nil for a transport that ended without reporting a cause.
	Err error

	// Reconnecting is true when a retry has been scheduled after Delay.
	Reconnecting bool
	Delay        time.Duration

	// Attempt is the number of the scheduled retry (1-based), or the number
	// of retries already used when Exhausted is true.
	Attempt int

	// Exhausted is true when the reconnect budget is used up and the
	// manager gave up.
	Exhausted bool
}

// Requested reports whether the close was asked for by the caller.
func (i CloseInfo) Requested() bool {
	return i.Err == nil && !i.Reconnecting && !i.Exhausted
}

// Handler receives connection lifecycle callbacks. Calls for one transport
// are made from a single goroutine, in the order the transport delivered
// them, and include the OnClose that follows Manager.Close while that
// transport is live. Handlers may call Send and Close.
type Handler interface {
	OnOpen()
	OnEvent(event protocol.Event)
	OnError(err error)
	OnClose(info CloseInfo)
}

// HandlerFuncs adapts optional functions to a Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Open  func()
	Event func(event protocol.Event)
	Error func(err error)
	Close func(info CloseInfo)
}

// OnOpen implements Handler.OnOpen
func (h HandlerFuncs) OnOpen() {
	if h.Open != nil {
		h.Open()
	}
}

// OnEvent implements Handler.OnEvent
func (h HandlerFuncs) OnEvent(event protocol.Event) {
	if h.Event != nil {
		h.Event(event)
	}
}

// OnError implements Handler.OnError
func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

// OnClose implements Handler.OnClose
func (h HandlerFuncs) OnClose(info CloseInfo) {
	if h.Close != nil {
		h.Close(info)
	}
}
