// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package ulog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// headerSize is the fixed hdr_len every record must declare. It counts
// the two length words plus the five fixed fields.
const headerSize = 24

// HeaderSizeError reports a record whose declared header size is not
// the fixed 24 bytes. It usually means the stream is not ulog data.
type HeaderSizeError struct {
	Size uint16
}

func (e *HeaderSizeError) Error() string {
	return fmt.Sprintf("invalid ulog header size: %d, want %d", e.Size, headerSize)
}

// Entry is one parsed ulog record.
type Entry struct {
	// Timestamp is in microseconds. It is monotonic as recorded;
	// merging may rebase it (see Merger).
	Timestamp int64
	PID       uint32
	TID       uint32
	EUID      uint32
	PName     string
	TName     string
	Level     int
	Binary    bool
	Color     uint32
	Domain    byte // 'U' user, 'K' kernel
	Tag       string
	Msg       string // text message, trailing NUL and newlines stripped
	Raw       []byte // binary message payload
}

// ReadEntry reads and parses one record. A clean end of stream returns
// io.EOF; a record cut short returns an error wrapping
// io.ErrUnexpectedEOF.
func ReadEntry(r io.Reader) (*Entry, error) {
	var lengths [4]byte
	if _, err := io.ReadFull(r, lengths[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("truncated ulog record: %w", err)
		}
		return nil, err
	}
	payloadLen := binary.LittleEndian.Uint16(lengths[0:])
	hdrLen := binary.LittleEndian.Uint16(lengths[2:])
	if hdrLen != headerSize {
		return nil, &HeaderSizeError{Size: hdrLen}
	}

	var fixed [headerSize - 4]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("truncated ulog record: %w", err)
	}
	payload := make([]byte, int(payloadLen))
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("truncated ulog record: %w", err)
	}

	sec := binary.LittleEndian.Uint32(fixed[8:])
	nsec := binary.LittleEndian.Uint32(fixed[12:])
	entry := &Entry{
		Timestamp: int64(sec)*1000000 + int64(nsec)/1000,
		PID:       binary.LittleEndian.Uint32(fixed[0:]),
		TID:       binary.LittleEndian.Uint32(fixed[4:]),
		EUID:      binary.LittleEndian.Uint32(fixed[16:]),
		Domain:    'U',
	}
	entry.parsePayload(payload, entry.PID != entry.TID)
	if entry.PName == "kmsgd" && !entry.Binary {
		entry.fixKernelEntry()
	}
	return entry, nil
}

// cutNUL splits off the leading NUL-terminated string. ok is false when
// no terminator exists, in which case the whole input counts as
// consumed.
func cutNUL(b []byte) (field string, rest []byte, ok bool) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", nil, false
	}
	return decodeText(b[:i]), b[i+1:], true
}

func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

func (e *Entry) parsePayload(payload []byte, hasTName bool) {
	rest := payload
	var ok bool
	e.PName, rest, ok = cutNUL(rest)
	if !ok {
		rest = nil
	}
	if hasTName {
		e.TName, rest, ok = cutNUL(rest)
		if !ok {
			rest = nil
		}
	}

	// rest starts where the priority word should be. Too few bytes, or
	// a tag with no terminator, means an unformatted record: the bytes
	// after the names are the whole message.
	if len(rest) < 4 {
		e.applyPriority(0, rest)
		return
	}
	priority := binary.LittleEndian.Uint32(rest)
	tag, msg, ok := cutNUL(rest[4:])
	if !ok {
		e.applyPriority(0, rest)
		return
	}
	e.Tag = tag
	e.applyPriority(priority, msg)
}

func (e *Entry) applyPriority(priority uint32, msg []byte) {
	e.Level = int(priority & 0x7)
	e.Binary = priority&0x80 != 0
	e.Color = priority >> 8
	if e.Binary {
		e.Raw = msg
		return
	}
	for len(msg) > 0 && (msg[len(msg)-1] == 0 || msg[len(msg)-1] == '\n') {
		msg = msg[:len(msg)-1]
	}
	e.Msg = decodeText(msg)
}

// kmsgPattern matches the klog prefix relayed by kmsgd:
// "<prio>[ seconds.micros] message".
var kmsgPattern = regexp.MustCompile(`^<([0-9]+)>\[ *([0-9]+)\.([0-9]+)\] (.*)`)

func (e *Entry) fixKernelEntry() {
	match := kmsgPattern.FindStringSubmatch(e.Msg)
	if match == nil {
		return
	}
	prio, err1 := strconv.Atoi(match[1])
	sec, err2 := strconv.ParseInt(match[2], 10, 64)
	micros, err3 := strconv.ParseInt(match[3], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return
	}
	e.Domain = 'K'
	e.Level = prio & 0x7
	e.Timestamp = sec*1000000 + micros
	e.Msg = match[4]
	e.PID = 0
	e.TID = 0
	e.PName = ""
	e.TName = ""
	e.Tag = "KERNEL"
	e.Binary = false
	e.Color = 0
}
