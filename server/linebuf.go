package server

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrInvalidEncoding is returned by Feed for a chunk that is not valid UTF-8.
// The chunk is dropped and the buffer keeps its previous content.
var ErrInvalidEncoding = errors.New("received chunk is not valid UTF-8")

// LineBuffer accumulates received bytes and hands out complete lines. Bytes
// after the last newline stay buffered until more data arrives.
type LineBuffer struct {
	buf []byte
}

// Feed appends chunk to the buffer.
func (b *LineBuffer) Feed(chunk []byte) error {
	if !utf8.Valid(chunk) {
		return ErrInvalidEncoding
	}
	b.buf = append(b.buf, chunk...)
	return nil
}

// Next removes the text up to and including the first newline and returns
// it trimmed of surrounding whitespace. ok is false when no complete line is
// buffered.
func (b *LineBuffer) Next() (line string, ok bool) {
	i := bytes.IndexByte(b.buf, '\n')
	if i < 0 {
		return "", false
	}
	line = strings.TrimSpace(strings.TrimSuffix(string(b.buf[:i]), "\r"))
	n := copy(b.buf, b.buf[i+1:])
	b.buf = b.buf[:n]
	return line, true
}

// Pending returns the number of buffered bytes without a newline yet.
func (b *LineBuffer) Pending() int {
	return len(b.buf)
}
