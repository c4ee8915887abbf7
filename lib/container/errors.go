// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package container

import "fmt"

// ProtocolError reports a container that violates the format: bad magic
// or version, duplicate or unknown source ids, unknown sub-protocol tags,
// AES payloads before any AES descriptor, or nesting beyond the bound.
// Protocol errors are fatal to the run (sources are still finalized
// best-effort).
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol violation: " + e.Reason
}

// CryptoError reports a failure in the encryption envelope: an
// unresolvable session key, a malformed cipher parameter, or invalid
// PKCS#7 padding. Crypto errors are fatal to the run.
type CryptoError struct {
	// Op names the failing step, e.g. "resolve key" or "strip padding".
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto: %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// IntegrityError reports a mismatch between the digest declared in the
// container header and the digest computed over the container body.
type IntegrityError struct {
	Declared string
	Computed string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity mismatch: header declares %s, computed %s", e.Declared, e.Computed)
}
