// Package kit carries the transport plumbing shared by savoir services:
// the Endpoint abstraction, request-scoped context keys, and MCP tool
// registration.
//
// An Endpoint is a transport-agnostic operation. The same endpoint can be
// mounted as an HTTP handler in cmd and as an MCP tool, keeping business
// logic out of transport code.
package kit

import "context"

// Endpoint is a single transport-agnostic operation.
type Endpoint func(ctx context.Context, request any) (any, error)

type contextKey string

const (
	// RequestIDKey carries the per-request correlation ID.
	RequestIDKey contextKey = "kit_request_id"
	// TransportKey carries the transport name ("http", "mcp").
	TransportKey contextKey = "kit_transport"
)

// WithRequestID returns a context carrying the request correlation ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID returns the request correlation ID, or "" when absent.
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

// WithTransport returns a context carrying the transport name.
func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

// GetTransport returns the transport name, defaulting to "http".
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}
