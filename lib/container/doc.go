// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package container implements the log container format produced by the
// loggerd daemon: reading (demultiplexing), writing (building), the
// decrypt-only re-serialization mode, and the MD5 integrity check.
//
// A container is a magic/version header followed by framed entries
// (id, length, payload) until end of file. Four ids are reserved:
//
//   - SOURCE_DESC (0) announces a source: id, version, plugin and
//     instance name. Data entries for that source use its id.
//   - LZ4 (1) wraps a batch of entries in an LZ4 frame.
//   - AES_DESC (2, version ≥ 3) carries an RSA-wrapped AES-256 session
//     key and CBC IV; the key is recovered through a KeyResolver.
//   - AES (3, version ≥ 3) wraps a batch of entries (usually a single
//     LZ4 entry) in AES-256-CBC with PKCS#7 padding. The CBC chaining
//     state persists across AES entries until the next AES_DESC.
//
// Ids 256 and up are source data. The Demuxer decompresses and decrypts
// transparently, registers sources through a SourceFactory, and routes
// each data entry to its source decoder. Builder produces the same
// format and is the test harness's ground truth for the reader.
package container
