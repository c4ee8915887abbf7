// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"encoding/binary"
	"fmt"

	"github.com/loggerd-project/logextract/lib/container"
	"github.com/loggerd-project/logextract/lib/tlmb"
	"github.com/loggerd-project/logextract/lib/wire"
)

// Telemetry record tags.
const (
	telemetryTagHeader = 0
	telemetryTagSample = 1
)

// Shared-memory metadata magics ("TLM!" and the debug variant "TLMD").
// Only sections carrying one of them re-encode into the TLMB stream.
const (
	metadataMagic      = 0x214D4C54
	metadataMagicDebug = 0x444D4C54
)

// telemetrySource re-encodes one telemetry section into the shared TLMB
// stream. Registration alone emits SECTION_ADDED; samples only flow once
// a header with recognized metadata arrives. Sections excluded by the
// allow-list still register but consume nothing.
type telemetrySource struct {
	out  *tlmb.Writer
	id   uint32
	dump bool

	sampleSize uint32
	trackable  bool
}

func (e *Extractor) newTelemetrySource(desc container.SourceDesc) (*telemetrySource, error) {
	dump := len(e.sections) == 0 || e.sections[desc.Name]
	if err := e.telemetry.SectionAdded(desc.ID, desc.Name); err != nil {
		return nil, err
	}
	return &telemetrySource{out: e.telemetry, id: desc.ID, dump: dump}, nil
}

func (s *telemetrySource) AddEntry(r *wire.Reader) error {
	if !s.dump {
		return nil
	}
	for r.Remaining() > 0 {
		tag, err := r.ReadU8()
		if err != nil {
			return err
		}
		switch tag {
		case telemetryTagHeader:
			if err := s.readHeader(r); err != nil {
				return err
			}
		case telemetryTagSample:
			if err := s.readSample(r); err != nil {
				return err
			}
		default:
			return &container.ProtocolError{Reason: fmt.Sprintf("unknown telemetry tag: %d", tag)}
		}
	}
	return nil
}

func (s *telemetrySource) Finish() error { return nil }

func (s *telemetrySource) readHeader(r *wire.Reader) error {
	// Sample count and rate are carried in the log but unused here.
	if _, err := r.ReadU32(); err != nil {
		return err
	}
	sampleSize, err := r.ReadU32()
	if err != nil {
		return err
	}
	if _, err := r.ReadU32(); err != nil {
		return err
	}
	metadataSize, err := r.ReadU32()
	if err != nil {
		return err
	}
	s.sampleSize = sampleSize
	s.trackable = false
	if metadataSize == 0 {
		return nil
	}
	metadata, err := r.ReadBytes(int(metadataSize))
	if err != nil {
		return err
	}
	if metadataSize < 4 {
		return nil
	}
	magic := binary.LittleEndian.Uint32(metadata)
	if magic != metadataMagic && magic != metadataMagicDebug {
		return nil
	}
	s.trackable = true
	return s.out.SectionChanged(s.id, metadata[4:])
}

func (s *telemetrySource) readSample(r *wire.Reader) error {
	sec, err := r.ReadU32()
	if err != nil {
		return err
	}
	nsec, err := r.ReadU32()
	if err != nil {
		return err
	}
	// Sequence number, unused.
	if _, err := r.ReadU32(); err != nil {
		return err
	}
	data, err := r.ReadBytes(int(s.sampleSize))
	if err != nil {
		return err
	}
	if !s.trackable {
		return nil
	}
	return s.out.Sample(s.id, sec, nsec, data)
}
