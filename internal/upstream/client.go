// Package upstream drives the connection to the upstream MCP server, in
// either of the two wire transports, behind one uniform interface so the
// session bridge never needs to know which variant it is talking to.
package upstream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/relaymcp/relaymcp/internal/config"
	"github.com/relaymcp/relaymcp/internal/frame"
)

// ErrUpstreamUnavailable indicates the upstream could not be reached at all
// (connection refused, DNS failure, TLS failure).
var ErrUpstreamUnavailable = errors.New("upstream: unavailable")

// ErrHandshakeFailed indicates the transport-specific handshake did not
// complete in time, e.g. no endpoint event for the SSE variant.
var ErrHandshakeFailed = errors.New("upstream: handshake failed")

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("upstream: closed")

// Client is the uniform surface over either upstream transport variant.
// Send may be called concurrently: neither the bridge nor the
// implementations serialize calls, so frames sent at the same time may
// reach the upstream in either order.
type Client interface {
	// Connect establishes the transport-specific connection. Returns
	// ErrUpstreamUnavailable or ErrHandshakeFailed on failure.
	Connect(ctx context.Context) error
	// Send delivers a request or notification upstream. Returns once the
	// frame has been written, not once a reply arrives.
	Send(ctx context.Context, f *frame.Frame) error
	// Frames yields frames arriving from upstream, in receipt order, until
	// Close.
	Frames() <-chan *frame.Frame
	// Close is idempotent and causes Frames to drain and close.
	Close() error
}

// DefaultConnectTimeout bounds the upstream connect phase when New is
// given a non-positive timeout, per spec.md §5.
const DefaultConnectTimeout = 10 * time.Second

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// New constructs the Client variant named by mode against endpointURL.
func New(mode config.TransportMode, endpointURL string, connectTimeout time.Duration) (Client, error) {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	switch mode {
	case config.ModeSSE:
		return newSSEClient(endpointURL, connectTimeout), nil
	case config.ModeStreamable:
		return newStreamableClient(endpointURL, connectTimeout), nil
	default:
		return nil, errors.New("upstream: unknown transport mode " + string(mode))
	}
}
