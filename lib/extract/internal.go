// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"fmt"
	"os"

	"github.com/loggerd-project/logextract/lib/wire"
)

// internalSource dumps daemon key/value records as "[key]: [value]"
// lines. The source named "header" also fills the extractor's header
// map, which the header-only and integrity passes consult. In
// header-only mode out is nil and only the map is kept.
type internalSource struct {
	extractor *Extractor
	out       *os.File
	isHeader  bool
}

func (s *internalSource) AddEntry(r *wire.Reader) error {
	for r.Remaining() > 0 {
		key, err := r.ReadString()
		if err != nil {
			return err
		}
		value, err := r.ReadString()
		if err != nil {
			return err
		}
		if s.out != nil {
			if _, err := fmt.Fprintf(s.out, "[%s]: [%s]\n", key, value); err != nil {
				return err
			}
		}
		if s.isHeader {
			s.extractor.setHeader(key, value)
		}
	}
	return nil
}

func (s *internalSource) Finish() error {
	if s.out == nil {
		return nil
	}
	return s.out.Close()
}
