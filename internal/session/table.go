// Package session owns the process-wide session table: the single
// concurrency-safe structure shared across frontend connections, per
// spec.md §5. Nothing outside this package ever holds the underlying map.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/relaymcp/relaymcp/internal/frame"
)

// Transport tags a side of a session with the wire format it speaks.
type Transport string

const (
	TransportSSE        Transport = "sse"
	TransportStreamable Transport = "streamable"
)

// FrontendWriter is the write side of a downstream stream: writing a frame
// to the frontend. Implemented separately by the SSE and streamable-HTTP
// listeners.
type FrontendWriter interface {
	// WriteFrame writes one JSON-RPC frame (already wire-encoded for this
	// transport) to the frontend connection. Implementations serialize
	// concurrent calls themselves, per spec.md §5 ordering guarantees.
	WriteFrame(data []byte) error
	// Close ends the frontend connection. Idempotent.
	Close() error
}

// Upstream is the subset of upstream.Client the bridge needs once a
// session is bound: send a frame, and close. Any upstream.Client value
// satisfies this structurally, so this package does not import upstream.
type Upstream interface {
	Send(ctx context.Context, f *frame.Frame) error
	Close() error
}

// Session is one downstream client's logical conversation with the proxy.
type Session struct {
	ID        string
	CreatedAt time.Time

	FrontendTransport Transport
	UpstreamTransport Transport

	mu       sync.Mutex
	frontend FrontendWriter
	upstream Upstream
	alive    bool

	// StopHeartbeat, if set, cancels the session's heartbeat scheduler.
	// Nil for transports that do not run one (streamable-HTTP).
	StopHeartbeat func()
}

// NewSession constructs a session in the Admitting state (alive, no
// upstream bound yet).
func NewSession(id string, frontendTransport Transport, frontend FrontendWriter) *Session {
	return &Session{
		ID:                id,
		CreatedAt:         time.Now(),
		FrontendTransport: frontendTransport,
		frontend:          frontend,
		alive:             true,
	}
}

// BindUpstream attaches the upstream handle once upstream.connect succeeds.
func (s *Session) BindUpstream(transport Transport, up Upstream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpstreamTransport = transport
	s.upstream = up
}

// UpstreamHandle returns the bound upstream, or nil if the session has not
// reached Active yet.
func (s *Session) UpstreamHandle() Upstream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upstream
}

// WriteFrontend writes a frame to this session's frontend, or returns
// ErrClosed if the session has already been torn down.
func (s *Session) WriteFrontend(data []byte) error {
	s.mu.Lock()
	alive := s.alive
	fw := s.frontend
	s.mu.Unlock()
	if !alive || fw == nil {
		return ErrClosed
	}
	return fw.WriteFrame(data)
}

// Close tears the session down. Idempotent: a second call is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	s.alive = false
	fw := s.frontend
	up := s.upstream
	stop := s.StopHeartbeat
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if up != nil {
		_ = up.Close()
	}
	if fw != nil {
		_ = fw.Close()
	}
}

// Alive reports whether the session is still active.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// ErrClosed indicates an operation was attempted on a session that has
// already been closed and removed from the table.
var ErrClosed = errors.New("session: closed")

// ErrNotFound indicates a lookup missed, per spec.md §6's 404 case.
var ErrNotFound = errors.New("session: not found")

// Table is the process-wide, concurrency-safe session table. The zero value
// is not usable; construct with NewTable.
type Table struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewTable constructs an empty table.
func NewTable() *Table {
	return &Table{sessions: make(map[string]*Session)}
}

// Insert adds s to the table. Called on frontend connection admission.
func (t *Table) Insert(s *Session) {
	t.mu.Lock()
	t.sessions[s.ID] = s
	t.mu.Unlock()
}

// Lookup returns the session for id, or ErrNotFound.
func (t *Table) Lookup(id string) (*Session, error) {
	t.mu.RLock()
	s, ok := t.sessions[id]
	t.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete removes id from the table. It does not close the session; callers
// delete first, then close the session handles, matching spec.md's
// invariant that a session is removed from the table before its frontend
// handle is closed -- see Remove for the combined operation most callers
// want.
func (t *Table) Delete(id string) {
	t.mu.Lock()
	delete(t.sessions, id)
	t.mu.Unlock()
}

// Remove deletes id from the table and then closes its session, satisfying
// spec.md's invariant ordering in one call.
func (t *Table) Remove(id string) {
	t.mu.Lock()
	s, ok := t.sessions[id]
	delete(t.sessions, id)
	t.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Len reports the number of live sessions, for the /health endpoint.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
