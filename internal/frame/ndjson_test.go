package frame

import (
	"io"
	"strings"
	"testing"
)

func TestNDJSONDecodeTwoFrames(t *testing.T) {
	raw := `{"jsonrpc":"2.0","id":1,"result":{}}` + "\n" + `{"jsonrpc":"2.0","method":"tick"}` + "\n"
	dec := NewNDJSONDecoder(strings.NewReader(raw), nil)
	var frames []*Frame
	for {
		f, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		frames = append(frames, f)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
}

func TestNDJSONTrailingNewlineNoExtraFrame(t *testing.T) {
	raw := `{"jsonrpc":"2.0","id":1,"result":{}}` + "\n"
	dec := NewNDJSONDecoder(strings.NewReader(raw), nil)
	n := 0
	for {
		_, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		n++
	}
	if n != 1 {
		t.Fatalf("got %d frames, want 1", n)
	}
}

func TestNDJSONNoTrailingNewlineLastFrame(t *testing.T) {
	raw := `{"jsonrpc":"2.0","id":"a","result":{}}`
	dec := NewNDJSONDecoder(strings.NewReader(raw), nil)
	f, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if string(f.ID) != `"a"` {
		t.Fatalf("id = %s", f.ID)
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestNDJSONMalformedLineReportedAndSkipped(t *testing.T) {
	raw := "not json\n" + `{"jsonrpc":"2.0","method":"tick"}` + "\n"
	var reported int
	dec := NewNDJSONDecoder(strings.NewReader(raw), func(error) { reported++ })
	f, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if reported != 1 {
		t.Fatalf("reported = %d, want 1", reported)
	}
	if f.Method != "tick" {
		t.Fatalf("method = %s", f.Method)
	}
}

func TestEncodeNDJSON(t *testing.T) {
	b := EncodeNDJSON([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	if string(b) != `{"jsonrpc":"2.0","id":1,"result":{}}`+"\n" {
		t.Fatalf("got %q", b)
	}
}
