// internal/framer/framer.go
package framer

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMaxLine bounds a single line in decoded bytes.
const DefaultMaxLine = 4096

// Framer turns arbitrary byte chunks into complete text lines.
//
// Decoding is stateful: a multi-byte character split across two chunks is
// decoded once both halves arrived. Malformed bytes become U+FFFD.
// A Framer is owned by one session and is not safe for concurrent use.
type Framer struct {
	dec     transform.Transformer
	carry   []byte // undecoded tail (incomplete character)
	pending []byte // decoded text not yet terminated
	buf     [4096]byte

	maxLine    int
	discarding bool
	dropped    int
}

// New returns a framer decoding with enc (nil means UTF-8).
// maxLine <= 0 selects DefaultMaxLine.
func New(enc encoding.Encoding, maxLine int) *Framer {
	if enc == nil {
		enc = unicode.UTF8
	}
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	return &Framer{
		dec:     enc.NewDecoder(),
		maxLine: maxLine,
	}
}

// Encoding resolves a configured encoding name.
// Unknown names return false.
func Encoding(name string) (encoding.Encoding, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, true
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, true
	case "windows-1252", "cp1252":
		return charmap.Windows1252, true
	default:
		return nil, false
	}
}

// Feed decodes chunk and returns the lines it completed, in arrival order.
// Terminators are "\n" and "\r\n"; they are not part of the returned lines.
func (f *Framer) Feed(chunk []byte) []string {
	f.decode(chunk, false)
	return f.split()
}

// Flush ends the stream: decoder-internal bytes are decoded (incomplete
// characters become U+FFFD) and the unterminated remainder is returned.
// The caller decides whether a non-empty remainder is a final line.
// The framer is empty afterwards.
func (f *Framer) Flush() string {
	f.decode(nil, true)

	tail := string(f.pending)
	switch {
	case f.discarding:
		tail = ""
	case len(f.pending) > f.maxLine:
		f.dropped++
		tail = ""
	}

	f.pending = f.pending[:0]
	f.discarding = false
	f.dec.Reset()
	return strings.TrimSuffix(tail, "\r")
}

// Pending returns the current unterminated fragment.
func (f *Framer) Pending() string {
	return string(f.pending)
}

// Dropped returns the number of over-length lines discarded so far.
func (f *Framer) Dropped() int {
	return f.dropped
}

// ---- decoding ----

func (f *Framer) decode(chunk []byte, atEOF bool) {
	src := chunk
	if len(f.carry) > 0 {
		src = append(f.carry, chunk...)
		f.carry = nil
	}

	for {
		nDst, nSrc, err := f.dec.Transform(f.buf[:], src, atEOF)
		f.pending = append(f.pending, f.buf[:nDst]...)
		src = src[nSrc:]

		switch err {
		case nil:
			return
		case transform.ErrShortDst:
			continue
		case transform.ErrShortSrc:
			// Incomplete character: keep it for the next chunk.
			f.carry = append([]byte(nil), src...)
			return
		default:
			// Replacing decoders should not fail; never lose the rest of the chunk.
			f.pending = append(f.pending, string(utf8.RuneError)...)
			if len(src) == 0 {
				return
			}
			src = src[1:]
		}
	}
}

// ---- splitting ----

func (f *Framer) split() []string {
	var lines []string

	for {
		i := bytes.IndexByte(f.pending, '\n')
		if i < 0 {
			break
		}

		line := f.pending[:i]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}

		switch {
		case f.discarding:
			// Tail of an over-length line.
			f.discarding = false
		case len(line) > f.maxLine:
			f.dropped++
		default:
			lines = append(lines, string(line))
		}

		f.pending = f.pending[i+1:]
	}

	if !f.discarding && len(f.pending) > f.maxLine+1 {
		// +1 leaves room for a '\r' whose '\n' is still in flight.
		f.dropped++
		f.discarding = true
	}
	if f.discarding {
		f.pending = f.pending[:0]
	}

	// Compact so the backing array does not grow forever.
	if len(f.pending) == 0 {
		f.pending = f.pending[:0:0]
	}

	return lines
}
