package frame

import (
	"encoding/json"
	"testing"
)

func TestClassifyRequest(t *testing.T) {
	f, err := Decode([]byte(`{"jsonrpc":"2.0","method":"ping","id":1}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if k := f.Classify(); k != KindRequest {
		t.Fatalf("kind = %v, want KindRequest", k)
	}
}

func TestClassifyNotification(t *testing.T) {
	f, err := Decode([]byte(`{"jsonrpc":"2.0","method":"tick","params":{}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if k := f.Classify(); k != KindNotification {
		t.Fatalf("kind = %v, want KindNotification", k)
	}
}

func TestClassifyResponse(t *testing.T) {
	f, err := Decode([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if k := f.Classify(); k != KindResponse {
		t.Fatalf("kind = %v, want KindResponse", k)
	}
}

func TestClassifyInvalidBothResultAndError(t *testing.T) {
	f, err := Decode([]byte(`{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":-1,"message":"x"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if k := f.Classify(); k != KindInvalid {
		t.Fatalf("kind = %v, want KindInvalid", k)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err != ErrMalformed {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestEncodeAddsMissingJSONRPC(t *testing.T) {
	f := &Frame{Method: "ping", ID: json.RawMessage("1"), Extra: map[string]json.RawMessage{}}
	b, err := Encode(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var round map[string]any
	if err := json.Unmarshal(b, &round); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if round["jsonrpc"] != "2.0" {
		t.Fatalf("jsonrpc = %v, want 2.0", round["jsonrpc"])
	}
}

func TestRoundTripPreservesUnknownFields(t *testing.T) {
	orig := []byte(`{"jsonrpc":"2.0","method":"ping","id":1,"_meta":{"trace":"abc"}}`)
	f, err := Decode(orig)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b, err := Encode(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f2, err := Decode(b)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if string(f2.Extra["_meta"]) != `{"trace":"abc"}` {
		t.Fatalf("_meta lost in round-trip: %v", f2.Extra["_meta"])
	}
}

func TestNewError(t *testing.T) {
	f := NewError(json.RawMessage("7"), CodeInvalidRequest, "Invalid Request", nil)
	if f.Error.Code != CodeInvalidRequest {
		t.Fatalf("code = %d", f.Error.Code)
	}
	if string(f.ID) != "7" {
		t.Fatalf("id = %s", f.ID)
	}
}
