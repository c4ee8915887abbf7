// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/loggerd-project/logextract/lib/container"
	"github.com/loggerd-project/logextract/lib/wire"
)

// File-source record tags.
const (
	fileTagHeader = 0
	fileTagChunk  = 1
	fileTagStatus = 2

	fileStatusOK = 0
)

// fileSource rebuilds files recorded by the daemon under <outdir>/fs/,
// mirroring their on-device paths. One file is in flight at a time: a
// header record opens it, chunk records append to it, a status record
// closes it. Chunks whose file id does not match the open file are
// dropped with a warning.
type fileSource struct {
	logger *slog.Logger
	dir    string

	current *os.File
	id      uint32
}

func newFileSource(dir string, logger *slog.Logger) *fileSource {
	return &fileSource{logger: logger, dir: dir}
}

func (s *fileSource) AddEntry(r *wire.Reader) error {
	for r.Remaining() > 0 {
		tag, err := r.ReadU8()
		if err != nil {
			return err
		}
		switch tag {
		case fileTagHeader:
			if err := s.beginFile(r); err != nil {
				return err
			}
		case fileTagChunk:
			if err := s.writeChunk(r); err != nil {
				return err
			}
		case fileTagStatus:
			if err := s.endFile(r); err != nil {
				return err
			}
		default:
			return &container.ProtocolError{Reason: fmt.Sprintf("unknown file tag: %d", tag)}
		}
	}
	return nil
}

func (s *fileSource) Finish() error {
	if s.current == nil {
		return nil
	}
	s.logger.Warn("extracted file never completed", slog.String("path", s.current.Name()))
	err := s.current.Close()
	s.current = nil
	return err
}

func (s *fileSource) beginFile(r *wire.Reader) error {
	id, err := r.ReadU32()
	if err != nil {
		return err
	}
	// Declared size; the chunk stream is authoritative.
	if _, err := r.ReadU32(); err != nil {
		return err
	}
	path, err := r.ReadString()
	if err != nil {
		return err
	}
	if s.current != nil {
		s.logger.Warn("extracted file never completed", slog.String("path", s.current.Name()))
		s.current.Close()
		s.current = nil
	}
	s.id = id

	trimmed := strings.TrimLeft(path, "/")
	if trimmed == "" {
		s.logger.Warn("file record has empty path")
		return nil
	}
	target := filepath.Join(s.dir, trimmed)
	if rel, err := filepath.Rel(s.dir, target); err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		s.logger.Warn("file path escapes output tree", slog.String("path", path))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		s.logger.Warn("failed to create file directory",
			slog.String("path", target), slog.String("error", err.Error()))
		return nil
	}
	// Keep earlier files with the same recorded path.
	final := target
	for n := 1; ; n++ {
		if _, err := os.Stat(final); errors.Is(err, fs.ErrNotExist) {
			break
		}
		final = fmt.Sprintf("%s.%d", target, n)
	}
	out, err := os.Create(final)
	if err != nil {
		s.logger.Warn("failed to create file",
			slog.String("path", final), slog.String("error", err.Error()))
		return nil
	}
	s.current = out
	return nil
}

func (s *fileSource) writeChunk(r *wire.Reader) error {
	id, err := r.ReadU32()
	if err != nil {
		return err
	}
	size, err := r.ReadU32()
	if err != nil {
		return err
	}
	chunk, err := r.ReadBytes(int(size))
	if err != nil {
		return err
	}
	if id != s.id {
		s.logger.Warn("file id mismatch",
			slog.Uint64("id", uint64(id)), slog.Uint64("want", uint64(s.id)))
		return nil
	}
	if s.current == nil {
		return nil
	}
	_, err = s.current.Write(chunk)
	return err
}

func (s *fileSource) endFile(r *wire.Reader) error {
	id, err := r.ReadU32()
	if err != nil {
		return err
	}
	status, err := r.ReadU8()
	if err != nil {
		return err
	}
	if id != s.id {
		s.logger.Warn("file id mismatch",
			slog.Uint64("id", uint64(id)), slog.Uint64("want", uint64(s.id)))
	} else if s.current != nil {
		if status != fileStatusOK {
			s.logger.Warn("extracted file is corrupted", slog.String("path", s.current.Name()))
		}
	}
	var closeErr error
	if s.current != nil {
		closeErr = s.current.Close()
	}
	s.current = nil
	s.id = 0
	return closeErr
}
