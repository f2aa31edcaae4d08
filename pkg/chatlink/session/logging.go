package session

import (
	"github.com/mychat/chatlink/pkg/chatlink/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingHandler wraps another Handler and logs every callback.
// If the wrapped handler is nil, it acts as a standalone logging handler.
type LoggingHandler struct {
	wrapped  Handler
	logger   *zap.Logger
	logLevel zapcore.Level
}

// NewLoggingHandler creates a LoggingHandler around wrapped.
func NewLoggingHandler(wrapped Handler, logger *zap.Logger, logLevel zapcore.Level) *LoggingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingHandler{
		wrapped:  wrapped,
		logger:   logger,
		logLevel: logLevel,
	}
}

// OnOpen implements Handler.OnOpen
func (l *LoggingHandler) OnOpen() {
	l.logger.Log(l.logLevel, "Session connection opened")

	if l.wrapped != nil {
		l.wrapped.OnOpen()
	}
}

// OnEvent implements Handler.OnEvent
func (l *LoggingHandler) OnEvent(event protocol.Event) {
	fields := []zap.Field{zap.String("type", event.Type)}
	switch {
	case event.Message != nil:
		fields = append(fields,
			zap.String("content_type", string(event.Message.ContentType)),
			zap.Int("content_length", len(event.Message.Content)),
		)
	case event.Typing != nil:
		fields = append(fields, zap.Bool("is_typing", event.Typing.IsTyping))
	}
	l.logger.Log(l.logLevel, "Session event received", fields...)

	if l.wrapped != nil {
		l.wrapped.OnEvent(event)
	}
}

// OnError implements Handler.OnError
func (l *LoggingHandler) OnError(err error) {
	l.logger.Log(l.logLevel, "Session connection error", zap.Error(err))

	if l.wrapped != nil {
		l.wrapped.OnError(err)
	}
}

// OnClose implements Handler.OnClose
func (l *LoggingHandler) OnClose(info CloseInfo) {
	l.logger.Log(l.logLevel, "Session connection closed",
		zap.Bool("requested", info.Requested()),
		zap.Bool("reconnecting", info.Reconnecting),
		zap.Bool("exhausted", info.Exhausted),
		zap.Int("attempt", info.Attempt),
		zap.Duration("delay", info.Delay),
		zap.NamedError("cause", info.Err),
	)

	if l.wrapped != nil {
		l.wrapped.OnClose(info)
	}
}
