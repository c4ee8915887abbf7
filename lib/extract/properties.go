// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"bufio"
	"fmt"
	"os"

	"github.com/loggerd-project/logextract/lib/wire"
)

// propertiesSource renders timestamped key/value property records as
// CSV rows.
type propertiesSource struct {
	out *os.File
	buf *bufio.Writer
}

func newPropertiesSource(path string) (*propertiesSource, error) {
	out, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(out)
	if _, err := buf.WriteString("ts, key, value\n"); err != nil {
		out.Close()
		return nil, err
	}
	return &propertiesSource{out: out, buf: buf}, nil
}

func (s *propertiesSource) AddEntry(r *wire.Reader) error {
	for r.Remaining() > 0 {
		sec, err := r.ReadU32()
		if err != nil {
			return err
		}
		nsec, err := r.ReadU32()
		if err != nil {
			return err
		}
		key, err := r.ReadString()
		if err != nil {
			return err
		}
		value, err := r.ReadString()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(s.buf, "%d.%09d, %s, %s\n",
			sec, nsec, escapeCSV(key), escapeCSV(value))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *propertiesSource) Finish() error {
	flushErr := s.buf.Flush()
	closeErr := s.out.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
