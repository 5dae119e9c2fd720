package frame

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestEncodeDecodeSSEMessageRoundTrip(t *testing.T) {
	payload := []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)
	encoded := EncodeSSEMessage(payload)
	want := "event: message\ndata: " + string(payload) + "\n\n"
	if string(encoded) != want {
		t.Fatalf("encoded = %q, want %q", encoded, want)
	}

	dec := NewSSEDecoder(bytes.NewReader(encoded), nil)
	ev, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if ev.Event != "message" || string(ev.Data) != string(payload) {
		t.Fatalf("got %+v", ev)
	}
}

func TestEncodeEndpointEvent(t *testing.T) {
	b := EncodeSSEEndpoint("messages/abc123")
	if string(b) != "event: endpoint\ndata: messages/abc123\n\n" {
		t.Fatalf("got %q", b)
	}
}

func TestDecodeMultiLineData(t *testing.T) {
	raw := "event: message\ndata: line1\ndata: line2\n\n"
	dec := NewSSEDecoder(strings.NewReader(raw), nil)
	ev, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if string(ev.Data) != "line1\nline2" {
		t.Fatalf("data = %q", ev.Data)
	}
}

func TestDecodeSplitAcrossChunks(t *testing.T) {
	full := "event: message\ndata: {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{}}\n\n"
	r1, w1 := io.Pipe()
	dec := NewSSEDecoder(r1, nil)
	go func() {
		mid := len(full) / 2
		_, _ = w1.Write([]byte(full[:mid]))
		_, _ = w1.Write([]byte(full[mid:]))
		_ = w1.Close()
	}()
	ev, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if ev.Event != "message" {
		t.Fatalf("event = %q", ev.Event)
	}
}

func TestDecodeUnrecognizedEventMarked(t *testing.T) {
	raw := "event: custom\ndata: hi\n\n"
	dec := NewSSEDecoder(strings.NewReader(raw), nil)
	ev, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !ev.Unrecognized {
		t.Fatalf("expected Unrecognized=true for event %q", ev.Event)
	}
}

func TestDecodeHeartbeatComment(t *testing.T) {
	raw := ":ping\n\n"
	dec := NewSSEDecoder(strings.NewReader(raw), nil)
	ev, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if ev.Event != "" || ev.Data != nil {
		t.Fatalf("expected empty heartbeat event, got %+v", ev)
	}
}

func TestDecodeOversizedRecordReported(t *testing.T) {
	big := strings.Repeat("x", MaxSSERecordBytes+1024)
	raw := "event: message\ndata: " + big + "\n\nevent: message\ndata: ok\n\n"
	var reported int
	dec := NewSSEDecoder(strings.NewReader(raw), func(error) { reported++ })
	ev, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if reported != 1 {
		t.Fatalf("reported = %d, want 1", reported)
	}
	if string(ev.Data) != "ok" {
		t.Fatalf("expected decoder to resume at next record, got %q", ev.Data)
	}
}

func TestDecodeEOFCleanEnd(t *testing.T) {
	dec := NewSSEDecoder(strings.NewReader(""), nil)
	if _, err := dec.Next(); err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}
