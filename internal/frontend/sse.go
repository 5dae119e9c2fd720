package frontend

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/relaymcp/relaymcp/internal/frame"
	"github.com/relaymcp/relaymcp/internal/logx"
	"github.com/relaymcp/relaymcp/internal/session"
)

// HeartbeatInterval is the period between :ping comments on a live SSE
// stream, per spec.md §4.3.
const HeartbeatInterval = 30 * time.Second

// SSEListener binds the GET <sse_path> stream route and the
// POST <message_path>/<session_id> route.
type SSEListener struct {
	ssePath     string
	messagePath string
	table       *session.Table

	onAccept OnAccept
	onFrame  OnFrame
	onEnd    OnSessionEnd

	mu       sync.Mutex
	shutdown bool
	writers  map[string]*sseWriter
}

// NewSSEListener constructs a listener bound to ssePath and messagePath
// (messagePath is the prefix; the session id is appended as the next path
// segment).
func NewSSEListener(ssePath, messagePath string, table *session.Table, onAccept OnAccept, onFrame OnFrame, onEnd OnSessionEnd) *SSEListener {
	return &SSEListener{
		ssePath:     ssePath,
		messagePath: strings.TrimSuffix(messagePath, "/"),
		table:       table,
		onAccept:    onAccept,
		onFrame:     onFrame,
		onEnd:       onEnd,
		writers:     map[string]*sseWriter{},
	}
}

func (l *SSEListener) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get(l.ssePath, l.handleStream)
	r.Post(l.messagePath+"/{sessionID}", l.handleMessage)
	return r
}

func (l *SSEListener) Shutdown() {
	l.mu.Lock()
	l.shutdown = true
	writers := make([]*sseWriter, 0, len(l.writers))
	for _, w := range l.writers {
		writers = append(writers, w)
	}
	l.mu.Unlock()
	for _, w := range writers {
		w.requestClose()
	}
}

func (l *SSEListener) handleStream(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	if l.shutdown {
		l.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	l.mu.Unlock()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	id := session.NewID()
	sw := newSSEWriter(w, flusher)
	sess := session.NewSession(id, session.TransportSSE, sw)

	l.mu.Lock()
	l.writers[id] = sw
	l.mu.Unlock()
	l.table.Insert(sess)

	endpoint := frame.EncodeSSEEndpoint(l.messagePath[1:] + "/" + id)
	if _, err := w.Write(endpoint); err != nil {
		l.endSession(sess)
		return
	}
	flusher.Flush()

	if l.onAccept != nil {
		l.onAccept(sess)
	}

	ticker := time.NewTicker(HeartbeatInterval)
	stop := make(chan struct{})
	sess.StopHeartbeat = func() {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			l.endSession(sess)
			return
		case <-sw.closed:
			l.endSession(sess)
			return
		case <-stop:
			l.endSession(sess)
			return
		case <-ticker.C:
			if err := sw.writeRaw(frame.EncodeSSEHeartbeat()); err != nil {
				l.endSession(sess)
				return
			}
		}
	}
}

func (l *SSEListener) endSession(sess *session.Session) {
	l.table.Remove(sess.ID)
	l.mu.Lock()
	delete(l.writers, sess.ID)
	l.mu.Unlock()
	if l.onEnd != nil {
		l.onEnd(sess)
	}
}

func (l *SSEListener) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, err := l.table.Lookup(id)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Session not found"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	f, err := frame.Decode(body)
	if err != nil {
		logx.Log.Warn().Str("session", id).Err(err).Msg("frontend sse: malformed post body")
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if l.onFrame != nil {
		l.onFrame(sess, f)
	}
	w.WriteHeader(http.StatusAccepted)
}

// sseWriter is the session.FrontendWriter for one held GET response: it
// serializes writes and SSE-frames each payload as a "message" event.
type sseWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  chan struct{}
	once    sync.Once
}

func newSSEWriter(w http.ResponseWriter, flusher http.Flusher) *sseWriter {
	return &sseWriter{w: w, flusher: flusher, closed: make(chan struct{})}
}

func (s *sseWriter) WriteFrame(data []byte) error {
	return s.writeRaw(frame.EncodeSSEMessage(data))
}

func (s *sseWriter) writeRaw(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return io.ErrClosedPipe
	default:
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) Close() error {
	s.requestClose()
	return nil
}

func (s *sseWriter) requestClose() {
	s.once.Do(func() { close(s.closed) })
}
