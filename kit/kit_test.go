package kit

import (
	"context"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	// WHAT: Request ID survives a context round trip.
	ctx := WithRequestID(context.Background(), "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("got %q", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("absent: got %q", got)
	}
}

func TestTransportDefault(t *testing.T) {
	// WHAT: Transport defaults to "http" when unset.
	if got := GetTransport(context.Background()); got != "http" {
		t.Errorf("default: got %q", got)
	}
	ctx := WithTransport(context.Background(), "mcp")
	if got := GetTransport(ctx); got != "mcp" {
		t.Errorf("got %q", got)
	}
}
