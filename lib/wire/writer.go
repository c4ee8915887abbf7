// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Writer appends little-endian framed values to a growable buffer. The
// zero value is ready to use. It mirrors Reader field for field: anything
// appended here reads back identically.
type Writer struct {
	buf []byte
}

// Bytes returns the accumulated buffer. The slice aliases the writer's
// storage; further appends may reallocate it.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

// Reset discards the accumulated buffer, retaining capacity.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// AppendU8 appends an unsigned 8-bit integer.
func (w *Writer) AppendU8(v uint8) {
	w.buf = append(w.buf, v)
}

// AppendU16 appends a little-endian unsigned 16-bit integer.
func (w *Writer) AppendU16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// AppendU32 appends a little-endian unsigned 32-bit integer.
func (w *Writer) AppendU32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// AppendI32 appends a little-endian signed 32-bit integer.
func (w *Writer) AppendI32(v int32) {
	w.AppendU32(uint32(v))
}

// AppendF64 appends a little-endian IEEE 754 double.
func (w *Writer) AppendF64(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// AppendBytes appends raw bytes with no framing.
func (w *Writer) AppendBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// AppendString appends a length-prefixed string: u16 byte count including
// the NUL terminator, the bytes, then the NUL.
func (w *Writer) AppendString(s string) error {
	if len(s)+1 > math.MaxUint16 {
		return fmt.Errorf("string too long for u16 length prefix: %d bytes", len(s))
	}
	w.AppendU16(uint16(len(s) + 1))
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
	return nil
}
