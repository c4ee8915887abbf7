// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

// logextract unpacks loggerd flight-log containers. A container is a
// sequence of typed entries multiplexing several recording sources; the
// extractor decodes every announced source and writes its artifacts into
// the output directory: files recorded in flight under fs/, property and
// settings streams as CSV, the system-monitor report as JSON, telemetry
// sections re-encoded into telemetry.tlmb, and the event log rendered and
// clock-correlated into ulog-merge.txt. Gzipped containers are
// decompressed transparently.
//
// Besides extraction there are three special modes:
//
//   - --print-header stops at the embedded header and prints its
//     key/value pairs without touching the output directory.
//   - --integrity verifies the MD5 digest declared in the header against
//     the container body before extracting.
//   - --decrypt strips the AES envelope and writes the container back
//     out unencrypted, without extracting anything.
//
// Encrypted containers carry their AES-256 session key wrapped with an
// RSA key pair. By default the wrapped key is sent to the keystore
// service for unwrapping; a config file (--config or $LOGEXTRACT_CONFIG)
// can point at a local RSA private key instead, and --keystore-key
// short-circuits unwrapping with a hex-encoded session key.
package main
