// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/loggerd-project/logextract/lib/container"
	"github.com/loggerd-project/logextract/lib/sysmon"
	"github.com/loggerd-project/logextract/lib/wire"
)

// System-monitor record tags.
const (
	sysmonTagConfig      = 0
	sysmonTagSystemStat  = 1
	sysmonTagSystemMem   = 2
	sysmonTagSystemDisk  = 3
	sysmonTagSystemNet   = 4
	sysmonTagProcessStat = 5
	sysmonTagThreadStat  = 6
	sysmonTagReserved    = 7
)

// sysmonSource feeds raw /proc snapshots to the delta engine and writes
// its JSON report at finish.
type sysmonSource struct {
	out     *os.File
	monitor *sysmon.Monitor
}

func newSysmonSource(path string, logger *slog.Logger) (*sysmonSource, error) {
	out, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &sysmonSource{out: out, monitor: sysmon.New(logger)}, nil
}

func (s *sysmonSource) AddEntry(r *wire.Reader) error {
	for r.Remaining() > 0 {
		tag, err := r.ReadU8()
		if err != nil {
			return err
		}
		switch tag {
		case sysmonTagConfig:
			clkTck, err := r.ReadU32()
			if err != nil {
				return err
			}
			pageSize, err := r.ReadU32()
			if err != nil {
				return err
			}
			s.monitor.SetSystemConfig(clkTck, pageSize)

		case sysmonTagSystemStat:
			ts, text, err := readSnapshot(r)
			if err != nil {
				return err
			}
			s.monitor.AddSystemStat(ts, text)

		case sysmonTagSystemMem:
			ts, text, err := readSnapshot(r)
			if err != nil {
				return err
			}
			s.monitor.AddSystemMem(ts, text)

		case sysmonTagSystemDisk:
			ts, text, err := readSnapshot(r)
			if err != nil {
				return err
			}
			s.monitor.AddSystemDisk(ts, text)

		case sysmonTagSystemNet:
			ts, text, err := readSnapshot(r)
			if err != nil {
				return err
			}
			s.monitor.AddSystemNet(ts, text)

		case sysmonTagProcessStat:
			pid, err := r.ReadU32()
			if err != nil {
				return err
			}
			ts, text, err := readSnapshot(r)
			if err != nil {
				return err
			}
			s.monitor.AddProcessStat(pid, ts, text)

		case sysmonTagThreadStat:
			pid, err := r.ReadU32()
			if err != nil {
				return err
			}
			tid, err := r.ReadU32()
			if err != nil {
				return err
			}
			ts, text, err := readSnapshot(r)
			if err != nil {
				return err
			}
			s.monitor.AddThreadStat(pid, tid, ts, text)

		case sysmonTagReserved:
			if _, _, err := readSnapshot(r); err != nil {
				return err
			}

		default:
			return &container.ProtocolError{Reason: fmt.Sprintf("unknown sysmon tag: %d", tag)}
		}
	}
	return nil
}

func (s *sysmonSource) Finish() error {
	reportErr := s.monitor.WriteReport(s.out)
	closeErr := s.out.Close()
	if reportErr != nil {
		return reportErr
	}
	return closeErr
}

// readSnapshot reads one snapshot body: acquisition begin and end
// timestamps, then the captured text. The returned timestamp is the
// acquisition begin in microseconds; the end is carried in the log but
// unused.
func readSnapshot(r *wire.Reader) (int64, string, error) {
	ts, err := readMicros(r)
	if err != nil {
		return 0, "", err
	}
	if _, err := readMicros(r); err != nil {
		return 0, "", err
	}
	text, err := r.ReadString()
	if err != nil {
		return 0, "", err
	}
	return ts, text, nil
}

func readMicros(r *wire.Reader) (int64, error) {
	sec, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	nsec, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return int64(sec)*1000000 + int64(nsec)/1000, nil
}
