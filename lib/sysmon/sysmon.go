// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package sysmon turns the raw /proc snapshots recorded in a log
// container into a usage report.
//
// The log carries periodic copies of /proc/stat, /proc/meminfo and
// per-process stat lines. Counters in those snapshots are cumulative,
// so the first snapshot of each series only establishes a baseline and
// every later one yields a sample with usage computed from the delta.
// Malformed snapshot lines are logged and skipped rather than aborting
// the extraction: a single corrupt snapshot should not cost the rest
// of the report.
package sysmon

import (
	"log/slog"
	"strconv"
	"strings"
)

// Monitor accumulates system monitor snapshots and computes usage
// deltas between them.
type Monitor struct {
	logger   *slog.Logger
	clkTck   uint32
	pageSize uint32

	memory    []memorySample
	processes map[uint32]*processTracker
	totalCPU  cpuTracker
	cpus      map[int]*cpuTracker
}

// New returns an empty Monitor. A nil logger means slog.Default.
func New(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger:    logger,
		processes: make(map[uint32]*processTracker),
		cpus:      make(map[int]*cpuTracker),
	}
}

// SetSystemConfig records the kernel clock tick rate and page size.
// Both are needed to convert raw counters; until they are set, usage
// values compute as zero.
func (m *Monitor) SetSystemConfig(clkTck, pageSize uint32) {
	m.clkTck = clkTck
	m.pageSize = pageSize
}

// AddSystemStat feeds one /proc/stat snapshot. The "cpu" line tracks
// total usage, "cpuN" lines track individual cores.
func (m *Monitor) AddSystemStat(timestamp int64, data string) {
	for _, line := range strings.Split(data, "\n") {
		name, rest, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		switch {
		case name == "cpu":
			raw, err := parseCPU(timestamp, strings.TrimSpace(rest))
			if err != nil {
				m.logger.Warn("skipping malformed cpu line", "error", err)
				continue
			}
			m.totalCPU.add(raw, m.clkTck)
		case strings.HasPrefix(name, "cpu"):
			idx, err := strconv.Atoi(name[3:])
			if err != nil {
				m.logger.Warn("skipping malformed cpu line", "name", name)
				continue
			}
			raw, err := parseCPU(timestamp, strings.TrimSpace(rest))
			if err != nil {
				m.logger.Warn("skipping malformed cpu line", "error", err)
				continue
			}
			tracker := m.cpus[idx]
			if tracker == nil {
				tracker = &cpuTracker{}
				m.cpus[idx] = tracker
			}
			tracker.add(raw, m.clkTck)
		}
	}
}

// AddSystemMem feeds one /proc/meminfo snapshot.
func (m *Monitor) AddSystemMem(timestamp int64, data string) {
	m.memory = append(m.memory, parseMemory(timestamp, data))
}

// AddSystemDisk accepts a disk snapshot. Disk data is carried in the
// log but not part of the report.
func (m *Monitor) AddSystemDisk(timestamp int64, data string) {}

// AddSystemNet accepts a network snapshot. Network data is carried in
// the log but not part of the report.
func (m *Monitor) AddSystemNet(timestamp int64, data string) {}

// AddProcessStat feeds one /proc/<pid>/stat snapshot. The process name
// is fixed by the first snapshot seen for a pid.
func (m *Monitor) AddProcessStat(pid uint32, timestamp int64, data string) {
	raw, err := parseProcess(timestamp, data)
	if err != nil {
		m.logger.Warn("skipping malformed process stat", "pid", pid, "error", err)
		return
	}
	tracker := m.processes[pid]
	if tracker == nil {
		tracker = &processTracker{name: raw.name}
		m.processes[pid] = tracker
	}
	tracker.add(raw, m.clkTck, m.pageSize)
}

// AddThreadStat accepts a per-thread stat snapshot. Thread data is
// carried in the log but not part of the report.
func (m *Monitor) AddThreadStat(pid, tid uint32, timestamp int64, data string) {}

// usage converts a tick delta over a microsecond interval to percent.
func usage(ticks int64, clkTck uint32, deltaMicros int64) float64 {
	if clkTck == 0 || deltaMicros == 0 {
		return 0
	}
	return 100 * (float64(ticks) / float64(clkTck)) / (float64(deltaMicros) / 1e6)
}

type cpuTracker struct {
	last    *cpuRaw
	samples []cpuSample
}

func (c *cpuTracker) add(raw cpuRaw, clkTck uint32) {
	if c.last != nil {
		dt := raw.timestamp - c.last.timestamp
		c.samples = append(c.samples, cpuSample{
			Timestamp: raw.timestamp,
			User:      usage(raw.user-c.last.user, clkTck, dt),
			Nice:      usage(raw.nice-c.last.nice, clkTck, dt),
			System:    usage(raw.system-c.last.system, clkTck, dt),
			Idle:      usage(raw.idle-c.last.idle, clkTck, dt),
			Iowait:    usage(raw.iowait-c.last.iowait, clkTck, dt),
			IRQ:       usage(raw.irq-c.last.irq, clkTck, dt),
			Softirq:   usage(raw.softirq-c.last.softirq, clkTck, dt),
		})
	}
	last := raw
	c.last = &last
}

type processTracker struct {
	name    string
	last    *processRaw
	samples []processSample
}

func (p *processTracker) add(raw processRaw, clkTck, pageSize uint32) {
	if p.last != nil {
		dt := raw.timestamp - p.last.timestamp
		p.samples = append(p.samples, processSample{
			Timestamp: raw.timestamp,
			State:     raw.state,
			User:      usage(raw.user-p.last.user, clkTck, dt),
			System:    usage(raw.system-p.last.system, clkTck, dt),
			Vsize:     raw.vsize,
			RSS:       raw.rss * int64(pageSize),
		})
	}
	last := raw
	p.last = &last
}
