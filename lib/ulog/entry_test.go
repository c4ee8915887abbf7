// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package ulog

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

// buildRecord frames one ulog record around payload.
func buildRecord(pid, tid, sec, nsec, euid uint32, payload []byte) []byte {
	b := binary.LittleEndian.AppendUint16(nil, uint16(len(payload)))
	b = binary.LittleEndian.AppendUint16(b, headerSize)
	b = binary.LittleEndian.AppendUint32(b, pid)
	b = binary.LittleEndian.AppendUint32(b, tid)
	b = binary.LittleEndian.AppendUint32(b, sec)
	b = binary.LittleEndian.AppendUint32(b, nsec)
	b = binary.LittleEndian.AppendUint32(b, euid)
	return append(b, payload...)
}

// textPayload builds "<pname>\0[<tname>\0]<priority><tag>\0<msg>". The
// thread name is included when non-empty; callers pair that with
// distinct pid and tid.
func textPayload(pname, tname string, priority uint32, tag, msg string) []byte {
	var b []byte
	b = append(b, pname...)
	b = append(b, 0)
	if tname != "" {
		b = append(b, tname...)
		b = append(b, 0)
	}
	b = binary.LittleEndian.AppendUint32(b, priority)
	b = append(b, tag...)
	b = append(b, 0)
	return append(b, msg...)
}

func TestReadEntryText(t *testing.T) {
	priority := uint32(6) | uint32(0x0102)<<8
	payload := textPayload("sysd", "worker", priority, "SYS", "hello\n\x00")
	record := buildRecord(10, 20, 2, 1500, 1000, payload)

	entry, err := ReadEntry(bytes.NewReader(record))
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if entry.PName != "sysd" || entry.TName != "worker" {
		t.Errorf("names: got %q/%q", entry.PName, entry.TName)
	}
	if entry.PID != 10 || entry.TID != 20 || entry.EUID != 1000 {
		t.Errorf("ids: got pid=%d tid=%d euid=%d", entry.PID, entry.TID, entry.EUID)
	}
	if entry.Timestamp != 2000001 {
		t.Errorf("timestamp: got %d, want 2000001", entry.Timestamp)
	}
	if entry.Tag != "SYS" || entry.Level != 6 || entry.Binary || entry.Color != 0x0102 {
		t.Errorf("priority fields: tag=%q level=%d binary=%v color=%#x",
			entry.Tag, entry.Level, entry.Binary, entry.Color)
	}
	if entry.Msg != "hello" {
		t.Errorf("msg: got %q, want %q", entry.Msg, "hello")
	}
	if entry.Domain != 'U' {
		t.Errorf("domain: got %c, want U", entry.Domain)
	}
}

func TestReadEntrySameThread(t *testing.T) {
	payload := textPayload("app", "", 6, "TAG", "msg")
	record := buildRecord(7, 7, 0, 0, 0, payload)

	entry, err := ReadEntry(bytes.NewReader(record))
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if entry.PName != "app" || entry.TName != "" {
		t.Errorf("names: got %q/%q, want app and empty", entry.PName, entry.TName)
	}
	if entry.Tag != "TAG" || entry.Msg != "msg" {
		t.Errorf("content: tag=%q msg=%q", entry.Tag, entry.Msg)
	}
}

func TestReadEntryBinary(t *testing.T) {
	raw := []byte{1, 2, 3, 0, '\n'}
	payload := textPayload("telemetryd", "", 0x80|3, "TLM", string(raw))
	record := buildRecord(7, 7, 0, 0, 0, payload)

	entry, err := ReadEntry(bytes.NewReader(record))
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if !entry.Binary || entry.Level != 3 {
		t.Errorf("flags: binary=%v level=%d", entry.Binary, entry.Level)
	}
	// Binary payloads keep trailing NUL and newline bytes.
	if !bytes.Equal(entry.Raw, raw) {
		t.Errorf("raw: got %v, want %v", entry.Raw, raw)
	}
	if entry.Msg != "" {
		t.Errorf("msg on binary entry: got %q", entry.Msg)
	}
}

func TestReadEntryUnformatted(t *testing.T) {
	t.Run("short priority", func(t *testing.T) {
		payload := append([]byte("proc\x00"), "xy"...)
		entry, err := ReadEntry(bytes.NewReader(buildRecord(7, 7, 0, 0, 0, payload)))
		if err != nil {
			t.Fatalf("ReadEntry: %v", err)
		}
		if entry.PName != "proc" || entry.Tag != "" || entry.Level != 0 || entry.Binary {
			t.Errorf("fields: %+v", entry)
		}
		if entry.Msg != "xy" {
			t.Errorf("msg: got %q, want %q", entry.Msg, "xy")
		}
	})

	t.Run("tag without terminator", func(t *testing.T) {
		payload := append([]byte("proc\x00"), 7, 0, 0, 0)
		payload = append(payload, "TAGNOEND"...)
		entry, err := ReadEntry(bytes.NewReader(buildRecord(7, 7, 0, 0, 0, payload)))
		if err != nil {
			t.Fatalf("ReadEntry: %v", err)
		}
		// Everything after the process name becomes the message,
		// including what looked like a priority word.
		if entry.Msg != "\x07\x00\x00\x00TAGNOEND" {
			t.Errorf("msg: got %q", entry.Msg)
		}
		if entry.Tag != "" || entry.Level != 0 {
			t.Errorf("tag=%q level=%d, want empty and 0", entry.Tag, entry.Level)
		}
	})

	t.Run("name without terminator", func(t *testing.T) {
		entry, err := ReadEntry(bytes.NewReader(buildRecord(7, 7, 0, 0, 0, []byte("noterminator"))))
		if err != nil {
			t.Fatalf("ReadEntry: %v", err)
		}
		if entry.PName != "" || entry.Msg != "" || entry.Tag != "" {
			t.Errorf("fields: %+v", entry)
		}
	})
}

func TestReadEntryErrors(t *testing.T) {
	good := buildRecord(1, 1, 0, 0, 0, textPayload("p", "", 6, "T", "m"))

	if _, err := ReadEntry(bytes.NewReader(nil)); !errors.Is(err, io.EOF) {
		t.Errorf("empty stream: got %v, want io.EOF", err)
	}

	for _, cut := range []int{2, 5, len(good) - 1} {
		_, err := ReadEntry(bytes.NewReader(good[:cut]))
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("cut at %d: got %v, want unexpected EOF", cut, err)
		}
	}

	bad := append([]byte(nil), good...)
	binary.LittleEndian.PutUint16(bad[2:], 16)
	_, err := ReadEntry(bytes.NewReader(bad))
	var sizeErr *HeaderSizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("got %v, want *HeaderSizeError", err)
	}
	if sizeErr.Size != 16 {
		t.Errorf("reported size: got %d, want 16", sizeErr.Size)
	}
}

func TestKernelFixup(t *testing.T) {
	payload := textPayload("kmsgd", "", 6, "KMSG", "<11>[    5.000123] disk on fire")
	entry, err := ReadEntry(bytes.NewReader(buildRecord(9, 9, 99, 0, 0, payload)))
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if entry.Domain != 'K' {
		t.Fatalf("domain: got %c, want K", entry.Domain)
	}
	if entry.Level != 3 { // 11 & 7
		t.Errorf("level: got %d, want 3", entry.Level)
	}
	if entry.Timestamp != 5000123 {
		t.Errorf("timestamp: got %d, want 5000123", entry.Timestamp)
	}
	if entry.Msg != "disk on fire" {
		t.Errorf("msg: got %q", entry.Msg)
	}
	if entry.PID != 0 || entry.TID != 0 || entry.PName != "" || entry.Tag != "KERNEL" {
		t.Errorf("identity fields: %+v", entry)
	}
}

func TestKernelFixupLeavesOtherEntriesAlone(t *testing.T) {
	plain := textPayload("kmsgd", "", 6, "KMSG", "relay started")
	entry, err := ReadEntry(bytes.NewReader(buildRecord(9, 9, 1, 0, 0, plain)))
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if entry.Domain != 'U' || entry.Tag != "KMSG" || entry.Msg != "relay started" {
		t.Errorf("non-klog kmsgd entry rewritten: %+v", entry)
	}

	binaryPayload := textPayload("kmsgd", "", 0x80, "KMSG", "<1>[ 1.0] x")
	entry, err = ReadEntry(bytes.NewReader(buildRecord(9, 9, 1, 0, 0, binaryPayload)))
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if entry.Domain != 'U' || !entry.Binary {
		t.Errorf("binary kmsgd entry rewritten: %+v", entry)
	}
}
