package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/mychat/chatlink/pkg/chatlink/filter"
	"github.com/mychat/chatlink/pkg/chatlink/protocol"
	"go.uber.org/zap"
)

// eventPrinter writes events as JSON lines after passing them through a filter.
type eventPrinter struct {
	out       io.Writer
	filter    *filter.Filter
	sessionID string
	logger    *zap.Logger

	mu sync.Mutex
}

func newEventPrinter(out io.Writer, f *filter.Filter, sessionID string, logger *zap.Logger) *eventPrinter {
	return &eventPrinter{
		out:       out,
		filter:    f,
		sessionID: sessionID,
		logger:    logger,
	}
}

func (p *eventPrinter) Print(ctx context.Context, event protocol.Event) {
	results := p.filter.Apply(ctx, event, p.sessionID)

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, result := range results {
		p.writeLine(event.Type, result)
	}
}

func (p *eventPrinter) PrintMessage(ctx context.Context, msg protocol.ChatMessage) {
	p.Print(ctx, protocol.Event{Type: protocol.TypeMessage, Message: &msg})
}

func (p *eventPrinter) writeLine(eventType string, value any) {
	// Bare strings print as-is so ".payload.content" reads naturally.
	if s, ok := value.(string); ok {
		fmt.Fprintln(p.out, s)
		return
	}

	jsonBytes, err := json.Marshal(value)
	if err != nil {
		fmt.Fprintf(p.out, "%s\t<error marshaling JSON: %v>\n", eventType, err)
		p.logger.Warn("Failed to marshal event to JSON",
			zap.String("type", eventType),
			zap.Error(err))
		return
	}
	fmt.Fprintln(p.out, string(jsonBytes))
}
