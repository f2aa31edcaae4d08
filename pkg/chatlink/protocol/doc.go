// Package protocol defines the JSON frames exchanged with the chat session
// WebSocket endpoint.
//
// Every frame is a JSON object with a "type" tag and a type-specific
// "payload". The server sends "message", "typing" and "session_end" frames;
// the client sends "message" and "typing" commands. Commands are
// fire-and-forget: the server never acknowledges them.
package protocol
