// Package frontend accepts downstream clients in either wire transport and
// presents a uniform accept/send/close surface to the session bridge, per
// spec.md §4.3.
package frontend

import (
	"net/http"

	"github.com/relaymcp/relaymcp/internal/frame"
	"github.com/relaymcp/relaymcp/internal/session"
)

// Accepted pairs a frontend frame with the session it arrived on. The
// listeners in this package do not build it: they pass the session and the
// frame to OnFrame as separate arguments.
type Accepted struct {
	Session *session.Session
	Frame   *frame.Frame
}

// Listener is the uniform surface both transport variants expose to the
// session bridge. Unlike upstream.Client, a Listener is process-wide: it
// owns many sessions, not one.
type Listener interface {
	// Routes returns the http.Handler to mount for this listener's paths.
	Routes() http.Handler
	// Shutdown tells the listener to stop accepting new sessions. The SSE
	// listener also ends every stream it still holds; the streamable-HTTP
	// listener does not end requests already in flight.
	Shutdown()
}

// OnAccept is invoked once per new session, before any frame has been
// forwarded, so the caller can allocate the upstream side.
type OnAccept func(s *session.Session)

// OnFrame is invoked once per JSON-RPC frame received from a session's
// frontend connection.
type OnFrame func(s *session.Session, f *frame.Frame)

// OnSessionEnd is invoked when a session's frontend connection ends, for
// whatever reason, so the bridge can tear down the matching upstream side.
type OnSessionEnd func(s *session.Session)
