// Package filter projects chat session events through a jq query.
package filter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/mychat/chatlink/pkg/chatlink/protocol"
	"go.uber.org/zap"
)

// Filter is a compiled jq query over events in their wire form.
//
// The query has access to the following variables:
//   - $type: the event type ("message", "typing" or "session_end")
//   - $session: the session ID as a string
//
// A nil *Filter passes every event through unchanged.
type Filter struct {
	query  string
	code   *gojq.Code
	logger *zap.Logger
}

// Compile parses and compiles query. An empty query yields a nil Filter.
//
// Example queries:
//
//	select($type == "message") | .payload.content
//	select(.payload.sender_type != "user")
//	{type: $type, session: $session, text: .payload.content}
func Compile(query string, logger *zap.Logger) (*Filter, error) {
	if query == "" {
		return nil, nil
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq query '%s': %w", query, err)
	}

	code, err := gojq.Compile(parsed, gojq.WithVariables([]string{"$type", "$session"}))
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq query '%s': %w", query, err)
	}

	return &Filter{query: query, code: code, logger: logger}, nil
}

// String returns the source query.
func (f *Filter) String() string {
	if f == nil {
		return "."
	}
	return f.query
}

// Apply runs the query on event and returns every result. No results means
// the event is filtered out. If the query fails at runtime the event is
// returned unchanged.
func (f *Filter) Apply(ctx context.Context, event protocol.Event, sessionID string) []any {
	input, err := toGeneric(event)
	if err != nil {
		// Events always marshal; keep the typed value if one ever does not.
		return []any{event}
	}

	if f == nil {
		return []any{input}
	}

	iter := f.code.RunWithContext(ctx, input, event.Type, sessionID)

	var results []any
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}

		if execErr, isErr := result.(error); isErr {
			f.logger.Error("jq filter: execution error",
				zap.String("jq_query", f.query),
				zap.String("type", event.Type),
				zap.Error(execErr))
			return []any{input}
		}

		results = append(results, result)
	}

	return results
}

// toGeneric converts event to the maps and slices gojq operates on.
func toGeneric(event protocol.Event) (any, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
