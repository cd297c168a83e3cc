// Package wire implements the newline-delimited JSON framing and the
// envelope vocabulary spoken on the TCP link between the bridge and its
// editor clients.
//
// Framing is deliberately forgiving: the bridge terminates every message
// with '\n', while some editor builds flush a bare JSON object with no
// terminator. Receivers on both sides accept both forms.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultMaxBuffer caps the bytes one connection may accumulate without
// completing a message. A peer that exceeds it is dropped.
const DefaultMaxBuffer = 1 << 20 // 1 MiB

// ErrBufferOverflow is returned by Feed when the retained tail exceeds the
// framer's limit. It is terminal: the owning connection must be closed.
var ErrBufferOverflow = errors.New("wire: message exceeds framing buffer limit")

// Framer accumulates bytes from one connection and splits them into
// complete JSON messages. It is stateful and not safe for concurrent use;
// each connection owns exactly one Framer.
type Framer struct {
	buf []byte
	max int
}

// NewFramer returns a Framer that retains at most max bytes of incomplete
// input between feeds. max <= 0 selects DefaultMaxBuffer.
func NewFramer(max int) *Framer {
	if max <= 0 {
		max = DefaultMaxBuffer
	}
	return &Framer{max: max}
}

// Feed appends p to the connection buffer and returns every complete
// message it can extract, in arrival order.
//
// Newline-terminated prefixes are drained first; empty lines are skipped
// and a line that is not valid JSON is reported without stopping the
// drain. After the drain, a non-empty remainder that parses in full as a
// single JSON value is emitted too; that is the terminator-free peer
// case.
//
// The returned error is ErrBufferOverflow when the retained remainder
// exceeds the limit (the caller must drop the connection); otherwise it
// joins the per-line parse failures and the returned messages remain
// valid.
func (f *Framer) Feed(p []byte) ([]json.RawMessage, error) {
	f.buf = append(f.buf, p...)

	var (
		msgs []json.RawMessage
		errs []error
	)

	for {
		nl := bytes.IndexByte(f.buf, '\n')
		if nl < 0 {
			break
		}
		candidate := bytes.TrimSpace(f.buf[:nl])
		f.buf = f.buf[nl+1:]
		if len(candidate) == 0 {
			continue
		}
		if !json.Valid(candidate) {
			errs = append(errs, fmt.Errorf("wire: malformed message %q", truncate(candidate, 64)))
			continue
		}
		msgs = append(msgs, json.RawMessage(bytes.Clone(candidate)))
	}

	// Tail branch, applied only after all newlines are drained.
	if tail := bytes.TrimSpace(f.buf); len(tail) > 0 && json.Valid(tail) {
		msgs = append(msgs, json.RawMessage(bytes.Clone(tail)))
		f.buf = f.buf[:0]
	}

	if len(f.buf) > f.max {
		return msgs, ErrBufferOverflow
	}
	return msgs, errors.Join(errs...)
}

// Buffered reports how many bytes of incomplete input the framer holds.
func (f *Framer) Buffered() int { return len(f.buf) }

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return append(bytes.Clone(b[:n]), "..."...)
}
