package audio

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// base64Block is the slice size fed to the streaming encoder/decoder. It is a
// multiple of 3 so every block but the last encodes without padding.
const base64Block = 3 * 21846

// ToBase64 encodes b with standard padding. Large buffers are streamed in
// fixed blocks into a pre-sized builder.
func ToBase64(b []byte) string {
	var sb strings.Builder
	sb.Grow(base64.StdEncoding.EncodedLen(len(b)))
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	for off := 0; off < len(b); off += base64Block {
		end := off + base64Block
		if end > len(b) {
			end = len(b)
		}
		// strings.Builder never fails a write.
		_, _ = enc.Write(b[off:end])
	}
	_ = enc.Close()
	return sb.String()
}

// FromBase64 decodes standard base64, ignoring embedded line breaks.
func FromBase64(s string) ([]byte, error) {
	out := make([]byte, 0, base64.StdEncoding.DecodedLen(len(s)))
	dec := base64.NewDecoder(base64.StdEncoding, strings.NewReader(s))
	buf := make([]byte, base64Block)
	for {
		n, err := dec.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
	}
}
