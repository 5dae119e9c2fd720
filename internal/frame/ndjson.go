package frame

import (
	"bufio"
	"bytes"
	"io"
)

// EncodeNDJSON renders one frame as a newline-terminated JSON line.
func EncodeNDJSON(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+1)
	out = append(out, payload...)
	out = append(out, '\n')
	return out
}

// NDJSONDecoder splits a byte stream on '\n', discarding empty segments and
// reporting (but not aborting on) JSON parse failures. It owns an internal
// carry buffer so a line split across reads decodes as one frame, not two.
type NDJSONDecoder struct {
	r       *bufio.Reader
	onError func(error)
}

// NewNDJSONDecoder wraps r.
func NewNDJSONDecoder(r io.Reader, onError func(error)) *NDJSONDecoder {
	return &NDJSONDecoder{r: bufio.NewReaderSize(r, 4096), onError: onError}
}

// Next returns the next decoded frame, or io.EOF when the stream ends.
// Lines that fail to parse are reported via onError and skipped; they do
// not terminate the stream.
func (d *NDJSONDecoder) Next() (*Frame, error) {
	for {
		line, err := d.r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		eof := err == io.EOF
		trimmed := bytes.TrimSuffix(bytes.TrimSuffix([]byte(line), []byte("\n")), []byte("\r"))
		if len(trimmed) == 0 {
			if eof {
				return nil, io.EOF
			}
			continue
		}
		f, derr := Decode(trimmed)
		if derr != nil {
			if d.onError != nil {
				d.onError(derr)
			}
			if eof {
				return nil, io.EOF
			}
			continue
		}
		return f, nil
	}
}
