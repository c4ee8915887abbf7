// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package ulog parses, renders and merges ulog records.
//
// A ulog record is a small binary frame:
//
//	payload_len uint16
//	hdr_len     uint16  always 24 (these four length bytes included)
//	pid         uint32
//	tid         uint32
//	tv_sec      uint32
//	tv_nsec     uint32
//	euid        uint32
//	payload     payload_len bytes
//
// The payload carries the process name, the thread name when pid and
// tid differ, a priority word, a tag and the message:
//
//	<pname>\0[<tname>\0]<priority:4><tag>\0<message>
//
// Records that end before the priority word or whose tag is not
// NUL-terminated are "unformatted": everything after the names is the
// message and the priority is zero. The low three priority bits are
// the level, bit 7 marks a binary message, and the high bytes carry a
// color hint.
//
// Messages from the kmsgd process relay the kernel ring buffer; their
// text still carries the klog "<prio>[seconds.micros]" prefix, which is
// parsed back into level and timestamp so kernel entries can be merged
// with user entries on the monotonic clock.
package ulog
