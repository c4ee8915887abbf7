// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/loggerd-project/logextract/lib/wire"
)

// Decrypt re-serializes the container with the encryption envelope
// removed: the header and every ordinary entry are copied verbatim, AES
// descriptors are consumed without being re-emitted, and the decrypted
// payload of each AES entry is written raw (the plaintext is itself a
// well-formed entry stream, so the output is a valid unencrypted
// container). Nothing is decompressed and no sources are decoded.
func Decrypt(ctx context.Context, r *wire.Reader, out io.Writer, resolver KeyResolver, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	version, err := readHeader(r)
	if err != nil {
		return err
	}
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], version)
	if _, err := out.Write(header[:]); err != nil {
		return fmt.Errorf("writing container header: %w", err)
	}

	aes := aesContext{resolver: resolver, logger: logger}
	for r.Remaining() > 0 {
		id, payload, err := readEntry(r)
		if err != nil {
			return err
		}
		switch {
		case version >= 3 && id == IDAESDesc:
			if err := aes.configure(ctx, payload); err != nil {
				return err
			}

		case version >= 3 && id == IDAES:
			plain, err := aes.decrypt(payload)
			if err != nil {
				return err
			}
			if _, err := out.Write(plain); err != nil {
				return fmt.Errorf("writing decrypted entry: %w", err)
			}

		default:
			var frame [8]byte
			binary.LittleEndian.PutUint32(frame[0:4], id)
			binary.LittleEndian.PutUint32(frame[4:8], uint32(len(payload)))
			if _, err := out.Write(frame[:]); err != nil {
				return fmt.Errorf("writing entry: %w", err)
			}
			if _, err := out.Write(payload); err != nil {
				return fmt.Errorf("writing entry: %w", err)
			}
		}
	}
	return nil
}
