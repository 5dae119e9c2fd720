package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/relaymcp/relaymcp/internal/frame"
	"github.com/relaymcp/relaymcp/internal/logx"
)

// streamableClient implements Client against an upstream speaking
// streamable HTTP: each Send opens its own POST whose response body is an
// NDJSON stream, and all such streams funnel into one shared Frames
// channel. connect is trivial; there is no persistent connection to hold.
type streamableClient struct {
	url        string
	httpClient *http.Client

	mu      sync.Mutex
	closed  bool
	inFlight sync.WaitGroup

	frames chan *frame.Frame
	once   sync.Once
}

func newStreamableClient(url string, connectTimeout time.Duration) *streamableClient {
	return &streamableClient{
		url:        url,
		httpClient: newHTTPClient(0),
		frames:     make(chan *frame.Frame, 16),
	}
}

func (c *streamableClient) Connect(ctx context.Context) error {
	return nil
}

func (c *streamableClient) Send(ctx context.Context, f *frame.Frame) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.inFlight.Add(1)
	c.mu.Unlock()
	defer c.inFlight.Done()

	payload, err := frame.Encode(f)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		_ = resp.Body.Close()
		return fmt.Errorf("upstream streamable: post status %d", resp.StatusCode)
	}

	dec := frame.NewNDJSONDecoder(resp.Body, func(err error) {
		logx.Log.Warn().Err(err).Msg("upstream streamable: malformed line")
	})
	for {
		fr, err := dec.Next()
		if err != nil {
			_ = resp.Body.Close()
			if err != io.EOF {
				logx.Log.Debug().Err(err).Msg("upstream streamable: response ended")
			}
			return nil
		}
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			_ = resp.Body.Close()
			return nil
		}
		c.frames <- fr
	}
}

func (c *streamableClient) Frames() <-chan *frame.Frame { return c.frames }

func (c *streamableClient) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		go func() {
			c.inFlight.Wait()
			close(c.frames)
		}()
	})
	return nil
}
