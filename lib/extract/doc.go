// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package extract turns demultiplexed container sources into files on
// disk. An Extractor implements container.SourceFactory: every announced
// source gets a decoder picked by its plugin name, and each decoder
// writes its artifacts under the output directory:
//
//	file        reconstructed files under fs/
//	internal    "[key]: [value]" text, plus the embedded header map
//	properties  timestamped key/value CSV
//	settings    timestamped typed-settings CSV
//	sysmon      usage report JSON (lib/sysmon)
//	telemetry   shared telemetry.tlmb stream (lib/tlmb)
//	ulog        event-log extraction feeding the merged text log
//	<other>     verbatim .bin passthrough
//
// Per-source outputs are named <full name>[-<ordinal>]<ext>, the ordinal
// suffix keeping repeated full names apart. Two outputs are shared by all
// sources of a kind: telemetry.tlmb collects every telemetry section and
// ulog-merge.txt collects every event-log record, both finished when the
// factory is.
//
// In header-only mode nothing is written: the internal decoders still
// capture the header map and every other source is discarded, so the
// caller can stop the pass as soon as HeaderFound reports true.
package extract
