// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/loggerd-project/logextract/lib/container"
	"github.com/loggerd-project/logextract/lib/tlmb"
	"github.com/loggerd-project/logextract/lib/wire"
)

func appendTelemetryHeader(w *wire.Writer, sampleSize uint32, metadata []byte) {
	w.AppendU8(telemetryTagHeader)
	w.AppendU32(1) // sample count
	w.AppendU32(sampleSize)
	w.AppendU32(200) // sample rate
	w.AppendU32(uint32(len(metadata)))
	w.AppendBytes(metadata)
}

func appendTelemetrySample(w *wire.Writer, sec, nsec uint32, data []byte) {
	w.AppendU8(telemetryTagSample)
	w.AppendU32(sec)
	w.AppendU32(nsec)
	w.AppendU32(99) // sequence number
	w.AppendBytes(data)
}

func tlmbFileHeader() *wire.Writer {
	var w wire.Writer
	w.AppendU32(tlmb.Magic)
	w.AppendU8(tlmb.Version)
	w.AppendU32(0)
	return &w
}

func TestTelemetrySourceStream(t *testing.T) {
	e, dir := newTestExtractor(t, Options{})
	src := createSource(t, e, container.SourceDesc{ID: 300, Plugin: "telemetry", Name: "imu"}, 0)

	var metadata wire.Writer
	metadata.AppendU32(metadataMagic)
	metadata.AppendBytes([]byte("xyz"))

	var payload wire.Writer
	appendTelemetryHeader(&payload, 8, metadata.Bytes())
	appendTelemetrySample(&payload, 12, 500000000, []byte("ABCDEFGH"))
	addEntry(t, src, payload.Bytes())
	finishSource(t, src)
	if err := e.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	want := tlmbFileHeader()
	want.AppendU32(10 + 12 + 25) // block size
	want.AppendU8(tlmb.TagSectionAdded)
	want.AppendU32(300)
	want.AppendU8(4)
	want.AppendBytes([]byte("imu\x00"))
	want.AppendU8(tlmb.TagSectionChanged)
	want.AppendU32(300)
	want.AppendU32(3)
	want.AppendBytes([]byte("xyz"))
	want.AppendU8(tlmb.TagSample)
	want.AppendU32(300)
	want.AppendU32(12)
	want.AppendU32(500000000)
	want.AppendU32(8)
	want.AppendBytes([]byte("ABCDEFGH"))
	want.AppendU32(0xFFFFFFFF)

	got := readOutput(t, filepath.Join(dir, "telemetry.tlmb"))
	if !bytes.Equal([]byte(got), want.Bytes()) {
		t.Errorf("telemetry.tlmb = %x, want %x", got, want.Bytes())
	}
}

func TestTelemetrySectionFilter(t *testing.T) {
	e, dir := newTestExtractor(t, Options{TelemetrySections: []string{"gps"}})

	imu := createSource(t, e, container.SourceDesc{ID: 300, Plugin: "telemetry", Name: "imu"}, 0)
	gps := createSource(t, e, container.SourceDesc{ID: 301, Plugin: "telemetry", Name: "gps"}, 0)

	var metadata wire.Writer
	metadata.AppendU32(metadataMagicDebug)
	metadata.AppendBytes([]byte("ll"))

	// The filtered section consumes nothing, trackable metadata included.
	var payload wire.Writer
	appendTelemetryHeader(&payload, 4, metadata.Bytes())
	appendTelemetrySample(&payload, 1, 0, []byte("WXYZ"))
	addEntry(t, imu, payload.Bytes())
	addEntry(t, gps, payload.Bytes())
	finishSource(t, imu)
	finishSource(t, gps)
	if err := e.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	want := tlmbFileHeader()
	want.AppendU32(10 + 10 + 11 + 21) // two adds, one change, one sample
	want.AppendU8(tlmb.TagSectionAdded)
	want.AppendU32(300)
	want.AppendU8(4)
	want.AppendBytes([]byte("imu\x00"))
	want.AppendU8(tlmb.TagSectionAdded)
	want.AppendU32(301)
	want.AppendU8(4)
	want.AppendBytes([]byte("gps\x00"))
	want.AppendU8(tlmb.TagSectionChanged)
	want.AppendU32(301)
	want.AppendU32(2)
	want.AppendBytes([]byte("ll"))
	want.AppendU8(tlmb.TagSample)
	want.AppendU32(301)
	want.AppendU32(1)
	want.AppendU32(0)
	want.AppendU32(4)
	want.AppendBytes([]byte("WXYZ"))
	want.AppendU32(0xFFFFFFFF)

	got := readOutput(t, filepath.Join(dir, "telemetry.tlmb"))
	if !bytes.Equal([]byte(got), want.Bytes()) {
		t.Errorf("telemetry.tlmb = %x, want %x", got, want.Bytes())
	}
}

func TestTelemetryForeignMetadata(t *testing.T) {
	e, dir := newTestExtractor(t, Options{})
	src := createSource(t, e, container.SourceDesc{ID: 300, Plugin: "telemetry", Name: "imu"}, 0)

	// Unrecognized metadata magic: the section registers but no samples
	// reach the stream.
	var payload wire.Writer
	appendTelemetryHeader(&payload, 4, []byte("QQQQ"))
	appendTelemetrySample(&payload, 1, 0, []byte("WXYZ"))
	addEntry(t, src, payload.Bytes())
	finishSource(t, src)
	if err := e.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	want := tlmbFileHeader()
	want.AppendU32(10)
	want.AppendU8(tlmb.TagSectionAdded)
	want.AppendU32(300)
	want.AppendU8(4)
	want.AppendBytes([]byte("imu\x00"))
	want.AppendU32(0xFFFFFFFF)

	got := readOutput(t, filepath.Join(dir, "telemetry.tlmb"))
	if !bytes.Equal([]byte(got), want.Bytes()) {
		t.Errorf("telemetry.tlmb = %x, want %x", got, want.Bytes())
	}
}

func TestTelemetryUnknownTag(t *testing.T) {
	e, _ := newTestExtractor(t, Options{})
	src := createSource(t, e, container.SourceDesc{ID: 300, Plugin: "telemetry", Name: "imu"}, 0)

	err := src.AddEntry(wire.NewReader([]byte{7}))
	var protoErr *container.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("unknown tag error = %v, want ProtocolError", err)
	}
	finishSource(t, src)
}
