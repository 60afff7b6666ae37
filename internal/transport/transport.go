// Package transport implements the NUL-terminated message framing used over
// the service's local stream endpoint: write the payload followed by one
// NUL byte; read until a NUL byte is observed within a window bounded by
// MaxMessageSize or the connection closes. There is no length prefix — framing is
// entirely delimiter based, so a payload must not itself contain a NUL.
package transport

import (
	"bufio"
	"errors"
	"io"

	"github.com/localmedia/transcoded/internal/errtax"
)

// MaxMessageSize is the protocol-wide cap on a single framed message,
// including its trailing NUL (spec §4.C / §6.2).
const MaxMessageSize = 4096

// ErrTruncated is returned by Read when no NUL byte appears within the
// first MaxMessageSize-1 bytes of the stream.
var ErrTruncated = errors.New("transport: message truncated (no terminator within max size)")

// Write emits payload followed by a single NUL byte. Partial writes and
// os-level interrupts are retried by the standard library's io.Writer
// contract (a conforming Writer either completes the write or returns an
// error); callers on real sockets get retry-on-EINTR for free from the
// runtime's netpoller, so no manual retry loop is needed here.
func Write(w io.Writer, payload []byte) error {
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, payload...)
	buf = append(buf, 0)
	if _, err := w.Write(buf); err != nil {
		return errtax.NewOS("transport.write", 0, err)
	}
	return nil
}

// WriteString is a convenience wrapper around Write.
func WriteString(w io.Writer, payload string) error {
	return Write(w, []byte(payload))
}

// Read reads one NUL-terminated message from r, returning the payload
// without the terminator. It fails with ErrTruncated if no NUL byte is
// found within the first MaxMessageSize-1 bytes, or if the connection
// closes before a NUL byte is seen.
func Read(r *bufio.Reader) ([]byte, error) {
	buf := make([]byte, 0, 256)
	for {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrTruncated
			}
			return nil, errtax.NewOS("transport.read", 0, err)
		}
		if b == 0 {
			return buf, nil
		}
		if len(buf) >= MaxMessageSize-2 {
			return nil, ErrTruncated
		}
		buf = append(buf, b)
	}
}
