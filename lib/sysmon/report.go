// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package sysmon

import (
	"encoding/json"
	"io"
)

type cpuSample struct {
	Timestamp int64   `json:"timestamp"`
	User      float64 `json:"user"`
	Nice      float64 `json:"nice"`
	System    float64 `json:"system"`
	Idle      float64 `json:"idle"`
	Iowait    float64 `json:"iowait"`
	IRQ       float64 `json:"irq"`
	Softirq   float64 `json:"softirq"`
}

type memorySample struct {
	Timestamp int64 `json:"timestamp"`
	Total     int64 `json:"total"`
	Free      int64 `json:"free"`
	Available int64 `json:"available"`
	Buffers   int64 `json:"buffers"`
	Cached    int64 `json:"cached"`
	Dirty     int64 `json:"dirty"`
}

type processSample struct {
	Timestamp int64   `json:"timestamp"`
	State     string  `json:"state"`
	User      float64 `json:"user"`
	System    float64 `json:"system"`
	Vsize     int64   `json:"vsize"`
	RSS       int64   `json:"rss"`
}

type processReport struct {
	Name    string          `json:"name"`
	Samples []processSample `json:"samples"`
}

type report struct {
	Memory    []memorySample           `json:"memory"`
	Processes map[uint32]processReport `json:"processes"`
	TotalCPU  []cpuSample              `json:"total_cpu"`
	CPUs      map[int][]cpuSample      `json:"cpus"`
}

// WriteReport renders everything collected so far as indented JSON.
// Empty collections render as empty arrays and objects, never null.
func (m *Monitor) WriteReport(w io.Writer) error {
	rep := report{
		Memory:    m.memory,
		Processes: make(map[uint32]processReport, len(m.processes)),
		TotalCPU:  m.totalCPU.samples,
		CPUs:      make(map[int][]cpuSample, len(m.cpus)),
	}
	if rep.Memory == nil {
		rep.Memory = []memorySample{}
	}
	if rep.TotalCPU == nil {
		rep.TotalCPU = []cpuSample{}
	}
	for pid, tracker := range m.processes {
		samples := tracker.samples
		if samples == nil {
			samples = []processSample{}
		}
		rep.Processes[pid] = processReport{Name: tracker.name, Samples: samples}
	}
	for idx, tracker := range m.cpus {
		samples := tracker.samples
		if samples == nil {
			samples = []cpuSample{}
		}
		rep.CPUs[idx] = samples
	}

	data, err := json.MarshalIndent(&rep, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
