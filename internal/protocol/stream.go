package protocol

import (
	"bytes"
	"errors"
)

// maxLineLen bounds buffered partial-line data so a peer that never sends a
// newline cannot grow the buffer without limit.
const maxLineLen = 64 * 1024

// ErrLineTooLong reports a record that exceeded maxLineLen before its
// terminating newline arrived. The oversized data is discarded.
var ErrLineTooLong = errors.New("event: line exceeds maximum length")

// Result is the outcome of decoding one complete stream line: either an
// Event or a decode error for that line alone.
type Result struct {
	Event Event
	Err   error
}

// StreamDecoder reassembles newline-delimited records from arbitrary read
// chunks. One decoder is bound to one connection; a decode failure skips
// that line only and the stream resynchronizes on the next newline.
type StreamDecoder struct {
	buf      []byte
	overflow bool
}

// NewStreamDecoder returns an empty decoder.
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{}
}

// Feed appends a chunk and decodes every complete line it finishes,
// returning zero or more results in stream order.
func (d *StreamDecoder) Feed(chunk []byte) []Result {
	d.buf = append(d.buf, chunk...)

	var results []Result
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			if len(d.buf) > maxLineLen {
				d.buf = nil
				if !d.overflow {
					d.overflow = true
					results = append(results, Result{Err: ErrLineTooLong})
				}
			}
			return results
		}

		line := bytes.TrimSpace(d.buf[:i])
		d.buf = d.buf[i+1:]

		if d.overflow {
			// Tail of an oversized record; the error was already reported.
			d.overflow = false
			continue
		}
		if len(line) == 0 {
			continue
		}

		ev, err := DecodeEvent(line)
		if err != nil {
			results = append(results, Result{Err: err})
			continue
		}
		results = append(results, Result{Event: ev})
	}
}

// Reset discards buffered partial data. Call when the connection is
// replaced.
func (d *StreamDecoder) Reset() {
	d.buf = nil
	d.overflow = false
}
