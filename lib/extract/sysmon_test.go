// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/loggerd-project/logextract/lib/container"
	"github.com/loggerd-project/logextract/lib/wire"
)

func appendSnapshot(w *wire.Writer, sec, nsec uint32, text string) {
	w.AppendU32(sec)
	w.AppendU32(nsec)
	w.AppendU32(sec)
	w.AppendU32(nsec + 1000)
	if err := w.AppendString(text); err != nil {
		panic(err)
	}
}

func TestSysmonSourceReport(t *testing.T) {
	e, dir := newTestExtractor(t, Options{})
	src := createSource(t, e, container.SourceDesc{ID: 256, Plugin: "sysmon", Name: "sysmon"}, 0)

	stat1 := "42 (app) R 0 0 0 0 0 0 0 0 0 0 100 50 0 0 0 0 0 0 0 4000 10"
	stat2 := "42 (app) R 0 0 0 0 0 0 0 0 0 0 200 100 0 0 0 0 0 0 0 4000 10"

	var w wire.Writer
	w.AppendU8(sysmonTagConfig)
	w.AppendU32(100)
	w.AppendU32(4096)
	w.AppendU8(sysmonTagSystemStat)
	appendSnapshot(&w, 10, 0, "cpu 0 0 0 0 0 0 0")
	w.AppendU8(sysmonTagSystemStat)
	appendSnapshot(&w, 11, 0, "cpu 100 0 0 0 0 0 0")
	w.AppendU8(sysmonTagSystemMem)
	appendSnapshot(&w, 11, 0, "MemTotal: 1024 kB")
	w.AppendU8(sysmonTagSystemDisk)
	appendSnapshot(&w, 11, 0, "disk snapshot, unused")
	w.AppendU8(sysmonTagSystemNet)
	appendSnapshot(&w, 11, 0, "net snapshot, unused")
	w.AppendU8(sysmonTagProcessStat)
	w.AppendU32(42)
	appendSnapshot(&w, 10, 0, stat1)
	w.AppendU8(sysmonTagProcessStat)
	w.AppendU32(42)
	appendSnapshot(&w, 11, 0, stat2)
	w.AppendU8(sysmonTagThreadStat)
	w.AppendU32(42)
	w.AppendU32(43)
	appendSnapshot(&w, 11, 0, "thread snapshot, unused")
	w.AppendU8(sysmonTagReserved)
	appendSnapshot(&w, 11, 0, "reserved")

	addEntry(t, src, w.Bytes())
	finishSource(t, src)

	var report struct {
		Memory []struct {
			Timestamp int64 `json:"timestamp"`
			Total     int64 `json:"total"`
		} `json:"memory"`
		Processes map[string]struct {
			Name    string `json:"name"`
			Samples []struct {
				User   float64 `json:"user"`
				System float64 `json:"system"`
				RSS    int64   `json:"rss"`
			} `json:"samples"`
		} `json:"processes"`
		TotalCPU []struct {
			Timestamp int64   `json:"timestamp"`
			User      float64 `json:"user"`
		} `json:"total_cpu"`
	}
	if err := json.Unmarshal([]byte(readOutput(t, filepath.Join(dir, "sysmon.json"))), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}

	if len(report.TotalCPU) != 1 {
		t.Fatalf("total_cpu has %d samples, want 1", len(report.TotalCPU))
	}
	if got := report.TotalCPU[0]; got.Timestamp != 11000000 || got.User != 100 {
		t.Errorf("total_cpu[0] = %+v, want ts 11000000 user 100", got)
	}
	if len(report.Memory) != 1 || report.Memory[0].Total != 1024*1024 {
		t.Errorf("memory = %+v, want one sample with total %d", report.Memory, 1024*1024)
	}
	proc, ok := report.Processes["42"]
	if !ok {
		t.Fatalf("processes = %v, want pid 42", report.Processes)
	}
	if proc.Name != "app" {
		t.Errorf("process name = %q, want %q", proc.Name, "app")
	}
	if len(proc.Samples) != 1 {
		t.Fatalf("process has %d samples, want 1", len(proc.Samples))
	}
	if got := proc.Samples[0]; got.User != 100 || got.System != 50 || got.RSS != 10*4096 {
		t.Errorf("process sample = %+v, want user 100 system 50 rss %d", got, 10*4096)
	}
}

func TestSysmonSourceUnknownTag(t *testing.T) {
	e, _ := newTestExtractor(t, Options{})
	src := createSource(t, e, container.SourceDesc{ID: 256, Plugin: "sysmon", Name: "sysmon"}, 0)

	err := src.AddEntry(wire.NewReader([]byte{9}))
	var protoErr *container.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("unknown tag error = %v, want ProtocolError", err)
	}
	finishSource(t, src)
}
