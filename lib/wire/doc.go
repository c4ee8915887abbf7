// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the little-endian framed primitives shared by
// every layer of the log container format: fixed-width integers, IEEE 754
// doubles, length-prefixed NUL-terminated strings, and raw byte runs.
//
// Reader is a bounds-checked cursor over an in-memory buffer. Every read
// either returns the decoded value or a *TruncationError without consuming
// anything, so a parse loop can stop exactly at the corruption point.
// Writer is the matching appender; it produces bytes Reader accepts,
// which the container builder and the telemetry re-encoder build on.
package wire
