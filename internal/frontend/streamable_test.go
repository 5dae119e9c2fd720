package frontend

import (
	"bufio"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/relaymcp/relaymcp/internal/frame"
	"github.com/relaymcp/relaymcp/internal/session"
)

func TestStreamableListenerRequestReplyCycle(t *testing.T) {
	tbl := session.NewTable()
	var gotFrame *frame.Frame
	done := make(chan *session.Session, 1)
	l := NewStreamableListener("/mcp", tbl,
		func(s *session.Session) {},
		func(s *session.Session, f *frame.Frame) {
			gotFrame = f
			go func() {
				_ = s.WriteFrontend([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
			}()
		},
		func(s *session.Session) { done <- s })

	srv := httptest.NewServer(l.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":1}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	want := `{"jsonrpc":"2.0","id":1,"result":{}}` + "\n"
	if string(body) != want {
		t.Fatalf("body = %q, want %q", body, want)
	}
	if gotFrame == nil || gotFrame.Method != "ping" {
		t.Fatalf("onFrame not invoked correctly: %+v", gotFrame)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onEnd not invoked")
	}
	if tbl.Len() != 0 {
		t.Fatalf("session table len = %d, want 0 after request completes", tbl.Len())
	}
}

func TestStreamableListenerChunkedFraming(t *testing.T) {
	tbl := session.NewTable()
	l := NewStreamableListener("/mcp", tbl, nil,
		func(s *session.Session, f *frame.Frame) {
			go func() {
				_ = s.WriteFrontend([]byte(`{"jsonrpc":"2.0","method":"progress"}`))
				_ = s.WriteFrontend([]byte(`{"jsonrpc":"2.0","id":"a","result":{}}`))
			}()
		}, nil)

	srv := httptest.NewServer(l.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":"a"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	line1, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read line1: %v", err)
	}
	line2, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read line2: %v", err)
	}
	if !strings.Contains(line1, "progress") {
		t.Fatalf("line1 = %q", line1)
	}
	if !strings.Contains(line2, `"id":"a"`) {
		t.Fatalf("line2 = %q", line2)
	}
}
