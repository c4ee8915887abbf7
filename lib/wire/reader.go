// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"
)

// ErrZeroLengthString is returned by ReadString when the length prefix is
// zero. The encoder always counts the NUL terminator, so a zero length
// cannot be produced by a well-formed writer.
var ErrZeroLengthString = errors.New("zero-length string field")

// TruncationError reports a read that would run past the end of the
// buffer. The cursor is left where it was; truncation is always fatal to
// the enclosing parse pass. Callers classify it with errors.As:
//
//	var truncErr *wire.TruncationError
//	if errors.As(err, &truncErr) { ... }
type TruncationError struct {
	// Wanted is the number of bytes the read needed.
	Wanted int
	// Available is the number of bytes left in the buffer.
	Available int
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("truncated input: need %d bytes, %d available", e.Wanted, e.Available)
}

// IsTruncation checks whether err is or wraps a *TruncationError.
func IsTruncation(err error) bool {
	var truncErr *TruncationError
	return errors.As(err, &truncErr)
}

// Reader is a little-endian cursor over an in-memory byte slice.
//
// A Reader is not safe for concurrent use. Byte slices returned by
// ReadBytes alias the backing buffer and must be treated as read-only.
type Reader struct {
	data     []byte
	pos      int
	progress func(pos, total int)
	logger   *slog.Logger
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// SetProgress installs a callback invoked after every successful read with
// the cursor position and the total buffer length. Used by the extractor
// to drive the terminal progress meter on the top-level reader; sub-stream
// readers leave it unset.
func (r *Reader) SetProgress(fn func(pos, total int)) {
	r.progress = fn
}

// SetLogger routes the reader's diagnostics. A nil logger (the default)
// means slog.Default.
func (r *Reader) SetLogger(logger *slog.Logger) {
	r.logger = logger
}

func (r *Reader) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// Len returns the total buffer length.
func (r *Reader) Len() int { return len(r.data) }

// Pos returns the cursor position.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// Rewind moves the cursor back n bytes. It exists for the integrity
// pre-pass, which hashes the remainder of the container and then re-reads
// it for extraction.
func (r *Reader) Rewind(n int) error {
	if n < 0 || n > r.pos {
		return fmt.Errorf("cannot rewind %d bytes at position %d", n, r.pos)
	}
	r.pos -= n
	return nil
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > len(r.data)-r.pos {
		return nil, &TruncationError{Wanted: n, Available: len(r.data) - r.pos}
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	if r.progress != nil {
		r.progress(r.pos, len(r.data))
	}
	return b, nil
}

// ReadBytes returns the next n bytes. The result aliases the backing
// buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	return r.take(n)
}

// ReadU8 reads an unsigned 8-bit integer.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads a little-endian unsigned 16-bit integer.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32 reads a little-endian unsigned 32-bit integer.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadI32 reads a little-endian signed 32-bit integer.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadF64 reads a little-endian IEEE 754 double.
func (r *Reader) ReadF64() (float64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// ReadString reads a length-prefixed string: a u16 byte count that
// includes a trailing NUL, then the bytes. The NUL is stripped; a missing
// NUL is logged and tolerated. Invalid UTF-8 sequences are replaced with
// U+FFFD.
func (r *Reader) ReadString() (string, error) {
	length, err := r.ReadU16()
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", ErrZeroLengthString
	}
	raw, err := r.take(int(length))
	if err != nil {
		return "", err
	}
	if raw[len(raw)-1] == 0 {
		raw = raw[:len(raw)-1]
	} else {
		r.log().Warn("string field not NUL-terminated", slog.Int("length", len(raw)))
	}
	if !utf8.Valid(raw) {
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError)), nil
	}
	return string(raw), nil
}
