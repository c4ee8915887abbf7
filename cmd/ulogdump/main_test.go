// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/muesli/termenv"
)

func buildRecord(pid, tid, sec, nsec uint32, payload []byte) []byte {
	b := binary.LittleEndian.AppendUint16(nil, uint16(len(payload)))
	b = binary.LittleEndian.AppendUint16(b, 24)
	b = binary.LittleEndian.AppendUint32(b, pid)
	b = binary.LittleEndian.AppendUint32(b, tid)
	b = binary.LittleEndian.AppendUint32(b, sec)
	b = binary.LittleEndian.AppendUint32(b, nsec)
	b = binary.LittleEndian.AppendUint32(b, 0)
	return append(b, payload...)
}

func textPayload(pname string, priority uint32, tag, msg string) []byte {
	var b []byte
	b = append(b, pname...)
	b = append(b, 0)
	b = binary.LittleEndian.AppendUint32(b, priority)
	b = append(b, tag...)
	b = append(b, 0)
	return append(b, msg...)
}

func dumpToString(t *testing.T, stream []byte) string {
	t.Helper()
	var buf bytes.Buffer
	out := termenv.NewOutput(&buf, termenv.WithProfile(termenv.Ascii))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := dump(bytes.NewReader(stream), out, logger); err != nil {
		t.Fatalf("dump: %v", err)
	}
	return buf.String()
}

func TestDumpRendersRecords(t *testing.T) {
	var stream []byte
	stream = append(stream, buildRecord(1, 1, 5, 0, textPayload("app", 6, "SYS", "ready"))...)
	stream = append(stream, buildRecord(2, 2, 6, 0, textPayload("kmsgd", 6, "K", "<11>[    7.250000] watchdog bite"))...)

	got := dumpToString(t, stream)
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), got)
	}
	if !strings.Contains(lines[0], "SYS") || !strings.Contains(lines[0], "ready") {
		t.Errorf("line 0: %q", lines[0])
	}
	// The kernel relay record is rebased onto its printk timestamp.
	if !strings.Contains(lines[1], "KERNEL") || !strings.Contains(lines[1], "watchdog bite") {
		t.Errorf("line 1: %q", lines[1])
	}
	if !strings.Contains(lines[1], "00:00:07.250") {
		t.Errorf("kernel timestamp not rebased: %q", lines[1])
	}
}

func TestDumpStopsOnDamagedRecord(t *testing.T) {
	record := buildRecord(1, 1, 5, 0, textPayload("app", 6, "SYS", "ready"))
	stream := append(record, record[:len(record)-4]...)

	got := dumpToString(t, stream)
	if n := strings.Count(got, "\n"); n != 1 {
		t.Errorf("got %d lines, want 1 (the intact record):\n%s", n, got)
	}
}

func TestDumpBinaryRecord(t *testing.T) {
	stream := buildRecord(1, 1, 5, 0, textPayload("app", 6|0x80, "TLM", "\x01\x02"))

	got := dumpToString(t, stream)
	if !strings.Contains(got, "BINARY") {
		t.Errorf("binary record not marked: %q", got)
	}
}

func TestDumpEmptyInput(t *testing.T) {
	if got := dumpToString(t, nil); got != "" {
		t.Errorf("empty input produced output %q", got)
	}
}
