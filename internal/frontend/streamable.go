package frontend

import (
	"bytes"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/relaymcp/relaymcp/internal/frame"
	"github.com/relaymcp/relaymcp/internal/logx"
	"github.com/relaymcp/relaymcp/internal/session"
)

// StreamableListener binds the single POST <http_path> route. Each request
// mints an ephemeral session that lives exactly as long as the request's
// held response, per spec.md §4.3.
type StreamableListener struct {
	httpPath string
	table    *session.Table

	onAccept OnAccept
	onFrame  OnFrame
	onEnd    OnSessionEnd

	mu       sync.Mutex
	shutdown bool
}

func NewStreamableListener(httpPath string, table *session.Table, onAccept OnAccept, onFrame OnFrame, onEnd OnSessionEnd) *StreamableListener {
	return &StreamableListener{httpPath: httpPath, table: table, onAccept: onAccept, onFrame: onFrame, onEnd: onEnd}
}

func (l *StreamableListener) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post(l.httpPath, l.handleRequest)
	return r
}

func (l *StreamableListener) Shutdown() {
	l.mu.Lock()
	l.shutdown = true
	l.mu.Unlock()
}

func (l *StreamableListener) handleRequest(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	down := l.shutdown
	l.mu.Unlock()
	if down {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	f, err := frame.Decode(body)
	if err != nil {
		logx.Log.Warn().Err(err).Msg("frontend streamable: malformed post body")
		http.Error(w, "malformed json", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	id := session.NewID()
	sw := newStreamableWriter(w, flusher, f.ID)
	sess := session.NewSession(id, session.TransportStreamable, sw)
	l.table.Insert(sess)
	defer l.table.Remove(id)

	if l.onAccept != nil {
		l.onAccept(sess)
	}
	if l.onFrame != nil {
		l.onFrame(sess, f)
	}

	select {
	case <-sw.done:
	case <-r.Context().Done():
	}
	if l.onEnd != nil {
		l.onEnd(sess)
	}
}

// streamableWriter is the session.FrontendWriter for one held POST
// response: it NDJSON-encodes each payload and, once a frame carrying the
// request's own id has been written, signals the handler to close the
// response.
type streamableWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	wantID  []byte
	done    chan struct{}
	once    sync.Once
}

func newStreamableWriter(w http.ResponseWriter, flusher http.Flusher, wantID []byte) *streamableWriter {
	return &streamableWriter{w: w, flusher: flusher, wantID: wantID, done: make(chan struct{})}
}

func (s *streamableWriter) WriteFrame(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return io.ErrClosedPipe
	default:
	}
	if _, err := s.w.Write(frame.EncodeNDJSON(data)); err != nil {
		return err
	}
	s.flusher.Flush()

	if f, err := frame.Decode(data); err == nil && len(s.wantID) > 0 && bytes.Equal(f.ID, s.wantID) {
		s.signalDone()
	}
	return nil
}

func (s *streamableWriter) Close() error {
	s.signalDone()
	return nil
}

func (s *streamableWriter) signalDone() {
	s.once.Do(func() { close(s.done) })
}
