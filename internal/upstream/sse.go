package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/relaymcp/relaymcp/internal/frame"
	"github.com/relaymcp/relaymcp/internal/logx"
)

// sseClient implements Client against an upstream speaking SSE: a GET
// stream that first advertises an endpoint event, then carries message
// events, paired with POSTs to the learned endpoint to send frames.
type sseClient struct {
	sseURL         string
	connectTimeout time.Duration
	httpClient     *http.Client

	mu          sync.Mutex
	messagePath string // absolute URL resolved from the endpoint event
	closed      bool
	cancel      context.CancelFunc

	frames chan *frame.Frame
	once   sync.Once
}

func newSSEClient(sseURL string, connectTimeout time.Duration) *sseClient {
	return &sseClient{
		sseURL:         sseURL,
		connectTimeout: connectTimeout,
		httpClient:     newHTTPClient(0), // streaming GET must not be subject to a fixed total timeout
		frames:         make(chan *frame.Frame, 16),
	}
}

func (c *sseClient) Connect(ctx context.Context) error {
	// ctx and connectTimeout bound only the handshake; the stream then lives until Close.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	handshakeTimer := time.AfterFunc(c.connectTimeout, cancel)
	stopWatch := context.AfterFunc(ctx, cancel)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.sseURL, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		timedOut := ctx.Err() == nil && streamCtx.Err() != nil
		cancel()
		if timedOut {
			return ErrHandshakeFailed
		}
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return fmt.Errorf("%w: upstream SSE status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	endpointCh := make(chan string, 1)
	go c.readLoop(resp.Body, endpointCh)

	select {
	case path := <-endpointCh:
		handshakeTimer.Stop()
		stopWatch()
		u, err := resolveRelative(c.sseURL, path)
		if err != nil {
			cancel()
			return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
		}
		c.mu.Lock()
		c.messagePath = u
		c.mu.Unlock()
		return nil
	case <-streamCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrHandshakeFailed
	}
}

func (c *sseClient) readLoop(body io.ReadCloser, endpointCh chan string) {
	defer close(c.frames)
	defer func() { _ = body.Close() }()

	dec := frame.NewSSEDecoder(body, func(err error) {
		logx.Log.Warn().Err(err).Msg("upstream sse: malformed record")
	})
	endpointSent := false
	for {
		ev, err := dec.Next()
		if err != nil {
			if err != io.EOF {
				logx.Log.Debug().Err(err).Msg("upstream sse: stream ended")
			}
			return
		}
		switch {
		case ev.Event == "endpoint" && !endpointSent:
			endpointSent = true
			endpointCh <- string(ev.Data)
		case ev.Event == "message":
			f, err := frame.Decode(ev.Data)
			if err != nil {
				logx.Log.Warn().Err(err).Msg("upstream sse: malformed frame")
				continue
			}
			c.frames <- f
		case ev.Event == "" && ev.Data == nil:
			// heartbeat comment; nothing to do
		default:
			logx.Log.Debug().Str("event", ev.Event).Msg("upstream sse: unrecognized event")
		}
	}
}

func (c *sseClient) Send(ctx context.Context, f *frame.Frame) error {
	c.mu.Lock()
	path := c.messagePath
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if path == "" {
		return ErrHandshakeFailed
	}

	payload, err := frame.Encode(f)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("upstream sse: post status %d", resp.StatusCode)
	}
	return nil
}

func (c *sseClient) Frames() <-chan *frame.Frame { return c.frames }

func (c *sseClient) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
	return nil
}

func resolveRelative(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
