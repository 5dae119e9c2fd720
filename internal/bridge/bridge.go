// Package bridge couples a frontend session to an upstream client and
// routes frames in both directions, per spec.md §4.4. It is the only
// package that knows about both frontend and upstream at once; listeners
// and upstream clients never reference each other directly.
package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/relaymcp/relaymcp/internal/config"
	"github.com/relaymcp/relaymcp/internal/frame"
	"github.com/relaymcp/relaymcp/internal/logx"
	"github.com/relaymcp/relaymcp/internal/metrics"
	"github.com/relaymcp/relaymcp/internal/session"
	"github.com/relaymcp/relaymcp/internal/upstream"
)

// Bridge owns the mapping from a session's Active lifecycle to the
// upstream.Client it drives, and runs the upstream-to-frontend pump for
// each session it admits.
type Bridge struct {
	outputMode     config.TransportMode
	endpoint       string
	connectTimeout time.Duration
}

// New constructs a Bridge that dials endpoint using outputMode for every
// session it is handed.
func New(outputMode config.TransportMode, endpoint string, connectTimeout time.Duration) *Bridge {
	return &Bridge{outputMode: outputMode, endpoint: endpoint, connectTimeout: connectTimeout}
}

// Admit moves a freshly accepted session from Admitting to Connecting, then
// to Active or Closing depending on whether the upstream connect succeeds.
// It is the listener's OnAccept callback, and it blocks until the session
// reaches Active or Closing. The SSE listener advertises its message
// endpoint before calling OnAccept, so a POST can reach Route while the
// session is still Connecting; Route answers such a request with -32603 and
// drops such a notification.
func (b *Bridge) Admit(sess *session.Session) {
	b.connect(sess)
}

func (b *Bridge) connect(sess *session.Session) {
	client, err := upstream.New(b.outputMode, b.endpoint, b.connectTimeout)
	if err != nil {
		b.failConnect(sess, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.connectTimeout)
	start := time.Now()
	err = client.Connect(ctx)
	elapsed := time.Since(start)
	cancel()
	if err != nil {
		metrics.UpstreamConnectFailures.Inc()
		b.failConnect(sess, err)
		return
	}
	metrics.UpstreamConnectSeconds.Observe(elapsed.Seconds())

	sess.BindUpstream(upstreamTransport(b.outputMode), client)
	metrics.ActiveSessions.WithLabelValues(string(sess.FrontendTransport), string(b.outputMode)).Inc()
	go b.pumpUpstreamToFrontend(sess, client)
}

func (b *Bridge) failConnect(sess *session.Session, err error) {
	logx.Log.Warn().Str("session", sess.ID).Err(err).Msg("bridge: upstream connect failed")
	errFrame := frame.NewError(nil, frame.CodeInternalError, "upstream connect failed", err.Error())
	payload, encErr := frame.Encode(errFrame)
	if encErr == nil {
		_ = sess.WriteFrontend(payload)
	}
	sess.Close()
}

func (b *Bridge) pumpUpstreamToFrontend(sess *session.Session, client upstream.Client) {
	defer func() {
		metrics.ActiveSessions.WithLabelValues(string(sess.FrontendTransport), string(b.outputMode)).Dec()
	}()
	for f := range client.Frames() {
		payload, err := frame.Encode(f)
		if err != nil {
			logx.Log.Warn().Str("session", sess.ID).Err(err).Msg("bridge: failed to encode upstream frame")
			continue
		}
		if err := sess.WriteFrontend(payload); err != nil {
			logx.Log.Debug().Str("session", sess.ID).Err(err).Msg("bridge: frontend write failed, ending session")
			sess.Close()
			return
		}
		metrics.FramesForwarded.WithLabelValues("upstream-to-frontend").Inc()
	}
}

// Route handles a frame received from the frontend: forward verbatim to
// the bound upstream, or reply with -32600 and drop it if it is neither a
// request nor a notification. It is the listener's OnFrame callback.
func (b *Bridge) Route(sess *session.Session, f *frame.Frame) {
	kind := f.Classify()
	if kind != frame.KindRequest && kind != frame.KindNotification {
		b.replyInvalidRequest(sess, f)
		return
	}

	up := sess.UpstreamHandle()
	if up == nil {
		b.replyUpstreamUnavailable(sess, f)
		return
	}

	// Send is not bounded by connectTimeout: per spec.md §5, individual
	// frame forwards are not timed out at this layer, only the upstream
	// connect phase is. A streaming upstream response can legitimately
	// run far longer than the connect timeout.
	if err := up.Send(context.Background(), f); err != nil {
		b.replySendFailure(sess, f, err)
		return
	}
	metrics.FramesForwarded.WithLabelValues("frontend-to-upstream").Inc()
}

func (b *Bridge) replyInvalidRequest(sess *session.Session, f *frame.Frame) {
	metrics.DecodeErrors.Inc()
	errFrame := frame.NewError(invalidRequestID(f), frame.CodeInvalidRequest, "Invalid Request", nil)
	payload, err := frame.Encode(errFrame)
	if err != nil {
		return
	}
	_ = sess.WriteFrontend(payload)
}

func (b *Bridge) replyUpstreamUnavailable(sess *session.Session, f *frame.Frame) {
	if !f.HasID() {
		logx.Log.Warn().Str("session", sess.ID).Msg("bridge: notification dropped, upstream not yet bound")
		return
	}
	errFrame := frame.NewError(f.ID, frame.CodeInternalError, "upstream not available", nil)
	payload, err := frame.Encode(errFrame)
	if err != nil {
		return
	}
	_ = sess.WriteFrontend(payload)
}

// replySendFailure surfaces a network error during upstream.send as a
// synthetic -32603 response correlated to f's id, per spec.md §4.2. A
// notification (no id) is logged and swallowed instead.
func (b *Bridge) replySendFailure(sess *session.Session, f *frame.Frame, sendErr error) {
	if !f.HasID() {
		logx.Log.Warn().Str("session", sess.ID).Err(sendErr).Msg("bridge: notification send failed, dropped")
		return
	}
	errFrame := frame.NewError(f.ID, frame.CodeInternalError, "Internal error", sendErr.Error())
	payload, err := frame.Encode(errFrame)
	if err != nil {
		return
	}
	_ = sess.WriteFrontend(payload)
}

// invalidRequestID extracts the correlating id from a malformed frame, if
// any was present, so the -32600 reply can still be correlated.
func invalidRequestID(f *frame.Frame) json.RawMessage {
	if f.HasID() {
		return f.ID
	}
	return nil
}

func upstreamTransport(mode config.TransportMode) session.Transport {
	if mode == config.ModeSSE {
		return session.TransportSSE
	}
	return session.TransportStreamable
}

// End is the listener's OnSessionEnd callback: it closes the session,
// which in turn closes the bound upstream client and removes the session
// from the table via the listener's own bookkeeping.
func (b *Bridge) End(sess *session.Session) {
	sess.Close()
}
