// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/loggerd-project/logextract/lib/wire"
)

// Builder produces container bytes the way the daemon does: a header,
// then entries, with optional LZ4 framing and an AES envelope whose CBC
// chaining state persists across encrypted entries. It is the ground
// truth for reader tests and available to tooling that needs to repack
// containers.
type Builder struct {
	w    wire.Writer
	mode cipher.BlockMode
}

// NewBuilder starts a container with the given format version.
func NewBuilder(version uint32) *Builder {
	b := &Builder{}
	b.w.AppendU32(Magic)
	b.w.AppendU32(version)
	return b
}

// Bytes returns the container built so far.
func (b *Builder) Bytes() []byte { return b.w.Bytes() }

// AppendEntry appends one framed entry.
func (b *Builder) AppendEntry(id uint32, payload []byte) {
	EncodeEntry(&b.w, id, payload)
}

// AppendSourceDesc appends a source descriptor entry.
func (b *Builder) AppendSourceDesc(desc SourceDesc) error {
	var w wire.Writer
	if err := encodeSourceDesc(&w, desc); err != nil {
		return err
	}
	b.AppendEntry(IDSourceDesc, w.Bytes())
	return nil
}

// AppendLZ4 wraps a batch of already-framed entries (see EncodeEntry) in
// an LZ4 frame entry.
func (b *Builder) AppendLZ4(entries []byte) error {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(entries); err != nil {
		return fmt.Errorf("compressing entry batch: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing LZ4 frame: %w", err)
	}
	b.AppendEntry(IDLZ4, buf.Bytes())
	return nil
}

// BeginEncryption appends an AES descriptor entry and installs the CBC
// context used by subsequent AppendEncrypted calls. keyHash identifies
// the RSA key that wrapped the session key; the builder records both
// verbatim, it does not wrap keys itself.
func (b *Builder) BeginEncryption(keyHash, wrappedKey, iv, key []byte) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	if len(iv) != aes.BlockSize {
		return fmt.Errorf("IV is %d bytes, want %d", len(iv), aes.BlockSize)
	}
	b.mode = cipher.NewCBCEncrypter(block, iv)
	var w wire.Writer
	w.AppendU32(uint32(len(keyHash)))
	w.AppendBytes(keyHash)
	w.AppendU32(uint32(len(wrappedKey)))
	w.AppendBytes(wrappedKey)
	w.AppendU32(uint32(len(iv)))
	w.AppendBytes(iv)
	b.AppendEntry(IDAESDesc, w.Bytes())
	return nil
}

// AppendEncrypted pads a batch of already-framed entries with PKCS#7 (a
// full extra block when the batch is already aligned), encrypts it with
// the context installed by BeginEncryption, and appends the AES entry.
func (b *Builder) AppendEncrypted(entries []byte) error {
	if b.mode == nil {
		return errors.New("AppendEncrypted before BeginEncryption")
	}
	padLen := aes.BlockSize - len(entries)%aes.BlockSize
	padded := make([]byte, len(entries)+padLen)
	copy(padded, entries)
	for i := len(entries); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	encrypted := make([]byte, len(padded))
	b.mode.CryptBlocks(encrypted, padded)
	b.AppendEntry(IDAES, encrypted)
	return nil
}
