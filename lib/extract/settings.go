// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/loggerd-project/logextract/lib/container"
	"github.com/loggerd-project/logextract/lib/wire"
)

// Settings value types, from the daemon's shared-settings protocol.
const (
	settingBool   = 0
	settingInt    = 1
	settingDouble = 2
	settingString = 3
)

// settingsSource renders timestamped typed-settings records as CSV rows.
type settingsSource struct {
	out *os.File
	buf *bufio.Writer
}

func newSettingsSource(path string) (*settingsSource, error) {
	out, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(out)
	if _, err := buf.WriteString("ts, name, type, value\n"); err != nil {
		out.Close()
		return nil, err
	}
	return &settingsSource{out: out, buf: buf}, nil
}

func (s *settingsSource) AddEntry(r *wire.Reader) error {
	for r.Remaining() > 0 {
		sec, err := r.ReadU32()
		if err != nil {
			return err
		}
		nsec, err := r.ReadU32()
		if err != nil {
			return err
		}
		name, err := r.ReadString()
		if err != nil {
			return err
		}
		typeName, value, err := readSettingValue(r)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(s.buf, "%d.%09d, %s, %s, %s\n",
			sec, nsec, escapeCSV(name), typeName, value)
		if err != nil {
			return err
		}
	}
	return nil
}

func readSettingValue(r *wire.Reader) (typeName, value string, err error) {
	typeNum, err := r.ReadU8()
	if err != nil {
		return "", "", err
	}
	switch typeNum {
	case settingBool:
		v, err := r.ReadU8()
		if err != nil {
			return "", "", err
		}
		if v != 0 {
			return "BOOL", "true", nil
		}
		return "BOOL", "false", nil
	case settingInt:
		v, err := r.ReadI32()
		if err != nil {
			return "", "", err
		}
		return "INT", strconv.FormatInt(int64(v), 10), nil
	case settingDouble:
		v, err := r.ReadF64()
		if err != nil {
			return "", "", err
		}
		return "DOUBLE", strconv.FormatFloat(v, 'g', -1, 64), nil
	case settingString:
		v, err := r.ReadString()
		if err != nil {
			return "", "", err
		}
		return "STRING", escapeCSV(v), nil
	default:
		return "", "", &container.ProtocolError{Reason: fmt.Sprintf("unknown setting type: %d", typeNum)}
	}
}

func (s *settingsSource) Finish() error {
	flushErr := s.buf.Flush()
	closeErr := s.out.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
