// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package sysmon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// valuePattern matches "<digits> <unit>" at the start of a meminfo
// value. The space is part of the pattern: /proc/meminfo always pads
// the number with a unit column, and a bare number parses as zero.
var valuePattern = regexp.MustCompile(`^(\d+) (kB|MB|GB)?`)

// scanValue converts a meminfo value like "16314444 kB" to bytes.
func scanValue(s string) int64 {
	match := valuePattern.FindStringSubmatch(s)
	if match == nil {
		return 0
	}
	value, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0
	}
	switch match[2] {
	case "kB":
		return value * 1024
	case "MB":
		return value * 1024 * 1024
	case "GB":
		return value * 1024 * 1024 * 1024
	}
	return value
}

// cpuRaw is one /proc/stat cpu line, in clock ticks.
type cpuRaw struct {
	timestamp int64
	user      int64
	nice      int64
	system    int64
	idle      int64
	iowait    int64
	irq       int64
	softirq   int64
}

func parseCPU(timestamp int64, s string) (cpuRaw, error) {
	fields := strings.Split(s, " ")
	if len(fields) < 7 {
		return cpuRaw{}, fmt.Errorf("invalid cpu data: %q", s)
	}
	raw := cpuRaw{timestamp: timestamp}
	for i, dst := range []*int64{
		&raw.user, &raw.nice, &raw.system, &raw.idle,
		&raw.iowait, &raw.irq, &raw.softirq,
	} {
		value, err := strconv.ParseInt(fields[i], 10, 64)
		if err != nil {
			return cpuRaw{}, fmt.Errorf("invalid cpu data: %q", s)
		}
		*dst = value
	}
	return raw, nil
}

// parseMemory picks the reported fields out of a /proc/meminfo
// snapshot. Missing fields stay zero.
func parseMemory(timestamp int64, data string) memorySample {
	sample := memorySample{Timestamp: timestamp}
	for _, line := range strings.Split(data, "\n") {
		name, value, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		bytes := scanValue(strings.TrimSpace(value))
		switch name {
		case "MemTotal:":
			sample.Total = bytes
		case "MemFree:":
			sample.Free = bytes
		case "MemAvailable:":
			sample.Available = bytes
		case "Buffers:":
			sample.Buffers = bytes
		case "Cached:":
			sample.Cached = bytes
		case "Dirty:":
			sample.Dirty = bytes
		}
	}
	return sample
}

// processPattern splits a /proc/<pid>/stat line into the process name
// and the fields after it. The pid at the front is redundant with the
// record that carried the line.
var processPattern = regexp.MustCompile(`^\d+ \(([^)]+)\) (.*)`)

// processRaw is one /proc/<pid>/stat line. Times are in clock ticks,
// rss is in pages.
type processRaw struct {
	timestamp int64
	name      string
	state     string
	user      int64
	system    int64
	vsize     int64
	rss       int64
}

func parseProcess(timestamp int64, s string) (processRaw, error) {
	match := processPattern.FindStringSubmatch(s)
	if match == nil {
		return processRaw{}, fmt.Errorf("invalid process data: %q", s)
	}
	fields := strings.Split(match[2], " ")
	if len(fields) < 22 {
		return processRaw{}, fmt.Errorf("invalid process data: %q", s)
	}
	raw := processRaw{
		timestamp: timestamp,
		name:      match[1],
		state:     fields[0],
	}
	// Offsets are counted from the field after the process name:
	// utime(11), stime(12), vsize(20), rss(21).
	for _, field := range []struct {
		idx int
		dst *int64
	}{
		{11, &raw.user},
		{12, &raw.system},
		{20, &raw.vsize},
		{21, &raw.rss},
	} {
		value, err := strconv.ParseInt(fields[field.idx], 10, 64)
		if err != nil {
			return processRaw{}, fmt.Errorf("invalid process data: %q", s)
		}
		*field.dst = value
	}
	return raw, nil
}
