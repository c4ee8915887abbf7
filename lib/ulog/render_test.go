// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package ulog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/muesli/termenv"
)

func renderPlain(t *testing.T, entry *Entry) string {
	t.Helper()
	var buf bytes.Buffer
	out := termenv.NewOutput(&buf, termenv.WithProfile(termenv.Ascii))
	if err := entry.Render(out); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestRenderLayout(t *testing.T) {
	// 1970-01-02 01:02:03.456 UTC in microseconds.
	ts := int64(86400+3600+120+3)*1000000 + 456000

	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{
			name: "process and thread",
			entry: Entry{
				Timestamp: ts, PID: 1, TID: 2, PName: "p", TName: "t",
				Level: 6, Domain: 'U', Tag: "T", Msg: "hello",
			},
			want: "U 01-02 01:02:03.456 I T           (p-1/t-2)" +
				strings.Repeat(" ", 24) + ": hello\n",
		},
		{
			name: "process only",
			entry: Entry{
				Timestamp: ts, PID: 1, PName: "p",
				Level: 4, Domain: 'U', Tag: "T", Msg: "careful",
			},
			want: "U 01-02 01:02:03.456 W T           (p-1)" +
				strings.Repeat(" ", 28) + ": careful\n",
		},
		{
			name: "bare tag",
			entry: Entry{
				Timestamp: ts, Level: 3, Domain: 'K', Tag: "KERNEL", Msg: "oops",
			},
			want: "K 01-02 01:02:03.456 E KERNEL" +
				strings.Repeat(" ", 39) + ": oops\n",
		},
		{
			name: "multiline message",
			entry: Entry{
				Timestamp: ts, Level: 6, Domain: 'U', Tag: "T", Msg: "a\nb",
			},
			want: "U 01-02 01:02:03.456 I T" + strings.Repeat(" ", 44) + ": a\n" +
				"U 01-02 01:02:03.456 I T" + strings.Repeat(" ", 44) + ": b\n",
		},
		{
			name: "binary entry",
			entry: Entry{
				Timestamp: ts, Level: 5, Domain: 'U', Tag: "TLM",
				Binary: true, Raw: []byte{1, 2, 3},
			},
			want: "U 01-02 01:02:03.456 N TLM" + strings.Repeat(" ", 42) + ": BINARY\n",
		},
		{
			name: "level zero renders blank",
			entry: Entry{
				Timestamp: ts, Domain: 'U', Tag: "T", Msg: "x",
			},
			want: "U 01-02 01:02:03.456   T" + strings.Repeat(" ", 44) + ": x\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderPlain(t, &tt.entry); got != tt.want {
				t.Errorf("rendered line:\ngot  %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestRenderBeforeEpoch(t *testing.T) {
	entry := Entry{Timestamp: -1, Level: 6, Domain: 'U', Tag: "T", Msg: "x"}
	got := renderPlain(t, &entry)
	if !strings.HasPrefix(got, "U 12-31 23:59:59.999 ") {
		t.Errorf("pre-epoch timestamp: got %q", got)
	}
}

func TestRenderColors(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{2, "\x1b[4;1;31m"},
		{3, "\x1b[1;31m"},
		{4, "\x1b[1;33m"},
		{5, "\x1b[35m"},
		{7, "\x1b[1;30m"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		out := termenv.NewOutput(&buf, termenv.WithProfile(termenv.ANSI))
		entry := Entry{Level: tt.level, Domain: 'U', Tag: "T", Msg: "x"}
		if err := entry.Render(out); err != nil {
			t.Fatalf("Render: %v", err)
		}
		got := buf.String()
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("level %d: got %q, want prefix %q", tt.level, got, tt.want)
		}
		if !strings.HasSuffix(got, "\x1b[0m\n") {
			t.Errorf("level %d: missing reset: %q", tt.level, got)
		}
	}

	// Info stays unstyled even on a color-capable output.
	var buf bytes.Buffer
	out := termenv.NewOutput(&buf, termenv.WithProfile(termenv.ANSI))
	entry := Entry{Level: 6, Domain: 'U', Tag: "T", Msg: "x"}
	if err := entry.Render(out); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("info line styled: %q", buf.String())
	}
}
