// Package api is a client for the chat REST endpoints that accompany the
// session socket: starting and ending sessions, listing them, and paging
// through message history. Every response is wrapped in a
// {"code","msg","data"} envelope; a code other than 200 is returned as *Error.
package api
