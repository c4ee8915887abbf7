// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/loggerd-project/logextract/lib/container"
	"github.com/loggerd-project/logextract/lib/tlmb"
	"github.com/loggerd-project/logextract/lib/ulog"
	"github.com/loggerd-project/logextract/lib/wire"
)

// Options configures an Extractor.
type Options struct {
	// OutputDir receives every artifact. Default: the current directory.
	OutputDir string
	// HeaderOnly suppresses all outputs; only the header map is kept.
	HeaderOnly bool
	// UlogAbsolute shifts merged event-log timestamps to absolute (local)
	// time when the log carries an EVT:TIME marker.
	UlogAbsolute bool
	// TelemetrySections restricts telemetry extraction to the named
	// sections. Empty means every section.
	TelemetrySections []string
	// Logger routes diagnostics; nil means slog.Default.
	Logger *slog.Logger
}

// HeaderField is one key/value pair of the embedded container header, in
// arrival order.
type HeaderField struct {
	Key   string
	Value string
}

// Extractor builds a decoder per container source and owns the outputs
// shared across sources: the telemetry stream, the event-log merger and
// the header map. Not safe for concurrent use.
type Extractor struct {
	outDir     string
	headerOnly bool
	sections   map[string]bool
	logger     *slog.Logger

	telemetry  *tlmb.Writer
	merger     *ulog.Merger
	header     map[string]string
	headerKeys []string
}

// New prepares the output directory and the shared telemetry stream. In
// header-only mode it touches nothing on disk.
func New(opts Options) (*Extractor, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = "."
	}
	sections := make(map[string]bool, len(opts.TelemetrySections))
	for _, name := range opts.TelemetrySections {
		sections[name] = true
	}
	e := &Extractor{
		outDir:     outDir,
		headerOnly: opts.HeaderOnly,
		sections:   sections,
		logger:     logger,
		merger:     ulog.NewMerger(opts.UlogAbsolute, logger),
		header:     make(map[string]string),
	}
	if !opts.HeaderOnly {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
		w, err := tlmb.Create(filepath.Join(outDir, "telemetry.tlmb"))
		if err != nil {
			return nil, err
		}
		e.telemetry = w
	}
	return e, nil
}

// CreateSource picks the decoder for desc by plugin name and opens its
// output. Unknown plugins fall back to a verbatim .bin passthrough.
func (e *Extractor) CreateSource(desc container.SourceDesc, ordinal int) (container.Source, error) {
	if e.headerOnly {
		if desc.Plugin == "internal" {
			return &internalSource{extractor: e, isHeader: desc.Name == "header"}, nil
		}
		return discardSource{}, nil
	}
	switch desc.Plugin {
	case "file":
		return newFileSource(filepath.Join(e.outDir, "fs"), e.logger), nil

	case "internal":
		out, err := os.Create(e.outputPath(desc, ordinal, ".txt"))
		if err != nil {
			return nil, err
		}
		return &internalSource{extractor: e, out: out, isHeader: desc.Name == "header"}, nil

	case "properties":
		return newPropertiesSource(e.outputPath(desc, ordinal, ".csv"))

	case "settings":
		return newSettingsSource(e.outputPath(desc, ordinal, ".csv"))

	case "sysmon":
		return newSysmonSource(e.outputPath(desc, ordinal, ".json"), e.logger)

	case "telemetry":
		return e.newTelemetrySource(desc)

	case "ulog":
		if desc.Name == "mainbin" {
			return &ulogMainSource{
				logger: e.logger,
				merger: e.merger,
				dir:    e.outDir,
				sinks:  make(map[string]*os.File),
			}, nil
		}
		path := e.outputPath(desc, ordinal, ".bin")
		out, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		e.merger.AddFile(path)
		return &rawSource{out: out}, nil

	default:
		out, err := os.Create(e.outputPath(desc, ordinal, ".bin"))
		if err != nil {
			return nil, err
		}
		return &rawSource{out: out}, nil
	}
}

// Finish closes the shared telemetry stream and writes the merged
// event-log. It runs after every source's own Finish.
func (e *Extractor) Finish() error {
	var firstErr error
	if e.telemetry != nil {
		if err := e.telemetry.Close(); err != nil {
			firstErr = fmt.Errorf("closing telemetry stream: %w", err)
		}
		e.telemetry = nil
	}
	if e.headerOnly {
		return firstErr
	}
	if err := e.merger.WriteMerged(filepath.Join(e.outDir, "ulog-merge.txt")); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// HeaderFound reports whether any embedded header pair has been seen.
// It serves as the demuxer stop predicate for the header-only and
// integrity passes.
func (e *Extractor) HeaderFound() bool { return len(e.headerKeys) > 0 }

// Header returns the embedded header pairs in arrival order.
func (e *Extractor) Header() []HeaderField {
	fields := make([]HeaderField, 0, len(e.headerKeys))
	for _, key := range e.headerKeys {
		fields = append(fields, HeaderField{Key: key, Value: e.header[key]})
	}
	return fields
}

// HeaderValue looks up one embedded header key.
func (e *Extractor) HeaderValue(key string) (string, bool) {
	value, ok := e.header[key]
	return value, ok
}

func (e *Extractor) setHeader(key, value string) {
	if _, ok := e.header[key]; !ok {
		e.headerKeys = append(e.headerKeys, key)
	}
	e.header[key] = value
}

func (e *Extractor) outputPath(desc container.SourceDesc, ordinal int, ext string) string {
	name := desc.FullName()
	if ordinal > 0 {
		name = fmt.Sprintf("%s-%d", name, ordinal)
	}
	return filepath.Join(e.outDir, name+ext)
}

// discardSource swallows entries; header-only mode routes every
// non-internal source here.
type discardSource struct{}

func (discardSource) AddEntry(*wire.Reader) error { return nil }
func (discardSource) Finish() error               { return nil }

// rawSource copies entry payloads verbatim. It backs unknown plugins and
// the non-mainbin event-log sources.
type rawSource struct {
	out *os.File
}

func (s *rawSource) AddEntry(r *wire.Reader) error {
	data, err := r.ReadBytes(r.Remaining())
	if err != nil {
		return err
	}
	_, err = s.out.Write(data)
	return err
}

func (s *rawSource) Finish() error { return s.out.Close() }
