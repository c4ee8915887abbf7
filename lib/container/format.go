// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"fmt"

	"github.com/loggerd-project/logextract/lib/wire"
)

// Magic is the container file magic, "LOG!" read as a little-endian u32.
const Magic uint32 = 0x21474F4C

// MaxVersion is the newest container version this package understands.
// Versions 0 through MaxVersion are accepted; the encryption entries
// only exist from version 3 on.
const MaxVersion uint32 = 3

// Reserved entry ids. Source data ids start at IDSourceBase.
const (
	IDSourceDesc uint32 = 0
	IDLZ4        uint32 = 1
	IDAESDesc    uint32 = 2
	IDAES        uint32 = 3
	IDSourceBase uint32 = 256
)

// maxNestingDepth bounds LZ4/AES recursion. The daemon nests at most two
// levels (AES around LZ4); anything deeper is a malformed or hostile file.
const maxNestingDepth = 32

// SourceDesc announces a source stream inside the container.
type SourceDesc struct {
	// ID is the entry id carrying this source's data.
	ID uint32
	// Version is the source sub-protocol version.
	Version uint32
	// Plugin is the decoder name (file, internal, properties, settings,
	// sysmon, telemetry, ulog, ...).
	Plugin string
	// Name is the instance name; sources of one plugin are told apart
	// by it.
	Name string
}

// FullName returns the output base name: the plugin name alone when the
// instance name repeats it, otherwise "plugin-name".
func (d SourceDesc) FullName() string {
	if d.Plugin == d.Name {
		return d.Plugin
	}
	return d.Plugin + "-" + d.Name
}

func readHeader(r *wire.Reader) (uint32, error) {
	magic, err := r.ReadU32()
	if err != nil {
		return 0, fmt.Errorf("reading container magic: %w", err)
	}
	version, err := r.ReadU32()
	if err != nil {
		return 0, fmt.Errorf("reading container version: %w", err)
	}
	if magic != Magic {
		return 0, &ProtocolError{Reason: fmt.Sprintf("bad magic: 0x%08x (want 0x%08x)", magic, Magic)}
	}
	if version > MaxVersion {
		return 0, &ProtocolError{Reason: fmt.Sprintf("unsupported version: %d (newest known is %d)", version, MaxVersion)}
	}
	return version, nil
}

func readSourceDesc(r *wire.Reader) (SourceDesc, error) {
	var desc SourceDesc
	var err error
	if desc.ID, err = r.ReadU32(); err != nil {
		return desc, fmt.Errorf("source id: %w", err)
	}
	if desc.Version, err = r.ReadU32(); err != nil {
		return desc, fmt.Errorf("source version: %w", err)
	}
	if desc.Plugin, err = r.ReadString(); err != nil {
		return desc, fmt.Errorf("source plugin: %w", err)
	}
	if desc.Name, err = r.ReadString(); err != nil {
		return desc, fmt.Errorf("source name: %w", err)
	}
	return desc, nil
}

func encodeSourceDesc(w *wire.Writer, desc SourceDesc) error {
	w.AppendU32(desc.ID)
	w.AppendU32(desc.Version)
	if err := w.AppendString(desc.Plugin); err != nil {
		return err
	}
	return w.AppendString(desc.Name)
}

// EncodeEntry appends one framed entry (id, length, payload) to w.
// Batches built this way feed Builder.AppendLZ4 and
// Builder.AppendEncrypted.
func EncodeEntry(w *wire.Writer, id uint32, payload []byte) {
	w.AppendU32(id)
	w.AppendU32(uint32(len(payload)))
	w.AppendBytes(payload)
}
