// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package tlmb writes TLMB telemetry container files.
//
// A TLMB file re-packages the telemetry sections scattered through a log
// container into one seekable stream:
//
//	magic    uint32  'TLMB'
//	version  uint8   1
//	reserved uint32  0
//	blocks   ...
//	end      uint32  0xffffffff
//
// Each block is a uint32 byte size followed by that many bytes of
// records. Blocks are cut at the first record boundary past 1 MiB so a
// reader can skim the file without decoding every record. The block
// size is written as 0xffffffff first and patched once the block is
// complete, which is also why the writer needs a seekable output.
//
// Records are tagged with one of the Tag constants and carry the
// telemetry section id they belong to.
package tlmb

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/loggerd-project/logextract/lib/wire"
)

const (
	// Magic identifies a TLMB file ('TLMB' little endian).
	Magic uint32 = 0x424D4C54
	// Version is the file format version this package writes.
	Version uint8 = 1
)

// Record tags.
const (
	TagSectionAdded   uint8 = 0
	TagSectionRemoved uint8 = 1
	TagSectionChanged uint8 = 2
	TagSample         uint8 = 3
)

// terminator marks the end of the file and serves as the in-progress
// placeholder for a block size.
const terminator uint32 = 0xFFFFFFFF

// blockLimit is the content size past which the current block is closed.
const blockLimit = 1024 * 1024

// Writer emits one TLMB file.
type Writer struct {
	out        io.WriteSeeker
	file       *os.File
	blockStart int64
}

// Create opens path for writing and emits the file header. The returned
// Writer owns the file; Close finalizes and closes it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// NewWriter emits the file header to out and returns a Writer. The
// caller keeps ownership of out and must still Close the Writer to
// finalize the last block.
func NewWriter(out io.WriteSeeker) (*Writer, error) {
	w := &Writer{out: out}

	var header wire.Writer
	header.AppendU32(Magic)
	header.AppendU8(Version)
	header.AppendU32(0)
	if _, err := out.Write(header.Bytes()); err != nil {
		return nil, err
	}
	if err := w.beginBlock(); err != nil {
		return nil, err
	}
	return w, nil
}

// SectionAdded records that a telemetry section appeared in the log.
// Added sections never rotate the block: the record must stay with the
// section data that follows it.
func (w *Writer) SectionAdded(id uint32, name string) error {
	if len(name)+1 > 0xFF {
		return fmt.Errorf("tlmb: section name %q too long", name)
	}
	var rec wire.Writer
	rec.AppendU8(TagSectionAdded)
	rec.AppendU32(id)
	rec.AppendU8(uint8(len(name) + 1))
	rec.AppendBytes([]byte(name))
	rec.AppendU8(0)
	_, err := w.out.Write(rec.Bytes())
	return err
}

// SectionChanged records a new sample layout for a section. layout is
// the section metadata with the leading magic already stripped.
func (w *Writer) SectionChanged(id uint32, layout []byte) error {
	var rec wire.Writer
	rec.AppendU8(TagSectionChanged)
	rec.AppendU32(id)
	rec.AppendU32(uint32(len(layout)))
	rec.AppendBytes(layout)
	if _, err := w.out.Write(rec.Bytes()); err != nil {
		return err
	}
	return w.maybeRotate()
}

// Sample records one telemetry sample for a section.
func (w *Writer) Sample(id, sec, nsec uint32, data []byte) error {
	var rec wire.Writer
	rec.AppendU8(TagSample)
	rec.AppendU32(id)
	rec.AppendU32(sec)
	rec.AppendU32(nsec)
	rec.AppendU32(uint32(len(data)))
	rec.AppendBytes(data)
	if _, err := w.out.Write(rec.Bytes()); err != nil {
		return err
	}
	return w.maybeRotate()
}

// Close finalizes the current block, writes the end marker and closes
// the underlying file if the Writer owns one.
func (w *Writer) Close() error {
	err := w.finishBlock()
	if err == nil {
		err = w.writeU32(terminator)
	}
	if w.file != nil {
		if closeErr := w.file.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

func (w *Writer) tell() (int64, error) {
	return w.out.Seek(0, io.SeekCurrent)
}

func (w *Writer) beginBlock() error {
	pos, err := w.tell()
	if err != nil {
		return err
	}
	w.blockStart = pos
	return w.writeU32(terminator)
}

func (w *Writer) finishBlock() error {
	end, err := w.tell()
	if err != nil {
		return err
	}
	if _, err := w.out.Seek(w.blockStart, io.SeekStart); err != nil {
		return err
	}
	if err := w.writeU32(uint32(end - w.blockStart - 4)); err != nil {
		return err
	}
	_, err = w.out.Seek(end, io.SeekStart)
	return err
}

func (w *Writer) maybeRotate() error {
	end, err := w.tell()
	if err != nil {
		return err
	}
	if end-w.blockStart-4 < blockLimit {
		return nil
	}
	if err := w.finishBlock(); err != nil {
		return err
	}
	return w.beginBlock()
}

func (w *Writer) writeU32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.out.Write(buf[:])
	return err
}
