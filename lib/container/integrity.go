// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/loggerd-project/logextract/lib/wire"
)

// HeaderDigestKey is the embedded-header key that carries the container's
// MD5 digest, computed over every byte after the header entry.
const HeaderDigestKey = "md5"

// DigestPlaceholder is the digest value the daemon writes when the real
// digest is not known. A container carrying it cannot be verified; that
// is informational, not an error.
const DigestPlaceholder = "ffffffffffffffffffffffffffffffff"

// VerifyDigest hashes the unread remainder of the container and compares
// it with the digest declared in the embedded header, then rewinds the
// reader so extraction can resume where it stopped. A placeholder digest
// or a match is logged; a mismatch returns *IntegrityError.
func VerifyDigest(r *wire.Reader, declared string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	remaining := r.Remaining()
	body, err := r.ReadBytes(remaining)
	if err != nil {
		return fmt.Errorf("reading container body: %w", err)
	}
	sum := md5.Sum(body)
	computed := hex.EncodeToString(sum[:])
	if err := r.Rewind(remaining); err != nil {
		return err
	}

	switch {
	case declared == DigestPlaceholder && declared != computed:
		logger.Info("container integrity cannot be verified (placeholder digest)")
		return nil
	case declared == computed:
		logger.Info("container integrity verified")
		return nil
	default:
		return &IntegrityError{Declared: declared, Computed: computed}
	}
}
