// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package ulog

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/muesli/termenv"
)

var (
	evtTimePattern  = regexp.MustCompile(`^EVT:TIME;date='([^']*)';time='([^']*)'`)
	evtKTimePattern = regexp.MustCompile(`^EVT:KTIME;tv_sec=([0-9]*);tv_nsec=([0-9]*)`)
)

// evtTimeLayout parses the concatenated date and time groups of an
// EVT:TIME event, e.g. "2026-08-21" + "T142512+0200".
const evtTimeLayout = "2006-01-02T150405Z0700"

// Merger collects ulog entries from the main log stream and from
// standalone ulog files, correlates their clocks and writes one merged
// chronological dump.
//
// Two clock corrections are learned from EVT marker messages as the
// entries stream through:
//   - EVT:KTIME pairs a printk timestamp with the monotonic clock;
//     kernel entries are rebased onto the monotonic clock with it.
//   - EVT:TIME pairs the monotonic clock with wall time; when absolute
//     mode is on, every entry is rebased to wall time with it.
//
// The last marker of each kind wins.
type Merger struct {
	logger   *slog.Logger
	absolute bool

	entries []*Entry
	files   []string

	printkToMonotonic   int64
	monotonicToAbsolute int64
}

// NewMerger returns an empty Merger. absolute selects wall-time output
// when an EVT:TIME marker is present. A nil logger means slog.Default.
func NewMerger(absolute bool, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{logger: logger, absolute: absolute}
}

// AddEntry queues a text entry from the main log stream.
func (m *Merger) AddEntry(entry *Entry) {
	m.scanEvent(entry)
	m.entries = append(m.entries, entry)
}

// AddFile queues a standalone ulog file to be re-read during
// WriteMerged.
func (m *Merger) AddFile(path string) {
	m.files = append(m.files, path)
}

// WriteMerged re-reads the queued files, applies the clock corrections,
// sorts every entry by timestamp and writes the plain-text dump to
// path.
func (m *Merger) WriteMerged(path string) error {
	m.logger.Info("merging ulog files", "count", len(m.files)+1)
	for _, file := range m.files {
		if err := m.readFile(file); err != nil {
			return err
		}
	}

	if m.printkToMonotonic != 0 {
		for _, entry := range m.entries {
			if entry.Domain != 'K' {
				continue
			}
			entry.Timestamp += m.printkToMonotonic
			if entry.Timestamp < 0 {
				entry.Timestamp = 0
			}
		}
	}
	if m.absolute && m.monotonicToAbsolute != 0 {
		for _, entry := range m.entries {
			entry.Timestamp += m.monotonicToAbsolute
		}
	}
	sort.SliceStable(m.entries, func(i, j int) bool {
		return m.entries[i].Timestamp < m.entries[j].Timestamp
	})

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	buffered := bufio.NewWriter(f)
	out := termenv.NewOutput(buffered, termenv.WithProfile(termenv.Ascii))
	for _, entry := range m.entries {
		if err := entry.Render(out); err != nil {
			f.Close()
			return err
		}
	}
	if err := buffered.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// readFile parses a standalone ulog file. A damaged record ends the
// file early with a warning; what was read so far still merges.
func (m *Merger) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		entry, err := ReadEntry(r)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				m.logger.Warn("stopping ulog file parse early", "file", path, "error", err)
			}
			return nil
		}
		m.scanEvent(entry)
		m.entries = append(m.entries, entry)
	}
}

// scanEvent picks clock markers out of EVT messages.
func (m *Merger) scanEvent(entry *Entry) {
	if entry.Binary || !strings.HasPrefix(entry.Msg, "EVT:") {
		return
	}

	if match := evtTimePattern.FindStringSubmatch(entry.Msg); match != nil {
		t, err := time.Parse(evtTimeLayout, match[1]+match[2])
		if err != nil {
			m.logger.Warn("ignoring malformed EVT:TIME event", "msg", entry.Msg, "error", err)
			return
		}
		// The dump shows the device's local wall clock: fold the zone
		// offset into the epoch value.
		_, zoneOffset := t.Zone()
		wall := (t.Unix() + int64(zoneOffset)) * 1000000
		m.monotonicToAbsolute = wall - entry.Timestamp
		return
	}

	if match := evtKTimePattern.FindStringSubmatch(entry.Msg); match != nil {
		sec, err1 := strconv.ParseInt(match[1], 10, 64)
		nsec, err2 := strconv.ParseInt(match[2], 10, 64)
		if err1 != nil || err2 != nil {
			m.logger.Warn("ignoring malformed EVT:KTIME event", "msg", entry.Msg)
			return
		}
		monotonic := sec*1000000 + nsec/1000
		m.printkToMonotonic = monotonic - entry.Timestamp
	}
}
