// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/loggerd-project/logextract/lib/ulog"
	"github.com/loggerd-project/logextract/lib/wire"
)

// ulogMainSource decodes the daemon's main event-log stream. Each entry
// payload holds concatenated ulog records: text records feed the merge
// engine, binary records are split by tag into <outdir>/<tag>.bin sinks.
// Other ulog sources pass through rawSource and are reparsed at merge
// time instead.
type ulogMainSource struct {
	logger *slog.Logger
	merger *ulog.Merger
	dir    string
	sinks  map[string]*os.File
}

func (s *ulogMainSource) AddEntry(r *wire.Reader) error {
	payload, err := r.ReadBytes(r.Remaining())
	if err != nil {
		return err
	}
	br := bytes.NewReader(payload)
	for br.Len() > 0 {
		entry, err := ulog.ReadEntry(br)
		if err != nil {
			return fmt.Errorf("ulog record: %w", err)
		}
		if !entry.Binary {
			s.merger.AddEntry(entry)
			continue
		}
		sink, err := s.sinkFor(entry.Tag)
		if err != nil {
			return err
		}
		if sink == nil {
			continue
		}
		if _, err := sink.Write(entry.Raw); err != nil {
			return err
		}
	}
	return nil
}

func (s *ulogMainSource) Finish() error {
	var firstErr error
	for _, sink := range s.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.sinks = nil
	return firstErr
}

// sinkFor opens the per-tag binary sink on first use. A tag that would
// land outside the output directory is dropped with a warning; the nil
// sink is remembered so the warning fires once.
func (s *ulogMainSource) sinkFor(tag string) (*os.File, error) {
	sink, seen := s.sinks[tag]
	if seen {
		return sink, nil
	}
	path := filepath.Join(s.dir, tag+".bin")
	if rel, err := filepath.Rel(s.dir, path); err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		s.logger.Warn("binary ulog tag escapes output tree", slog.String("tag", tag))
		s.sinks[tag] = nil
		return nil, nil
	}
	out, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s.sinks[tag] = out
	return out, nil
}
