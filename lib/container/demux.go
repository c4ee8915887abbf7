// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pierrec/lz4/v4"

	"github.com/loggerd-project/logextract/lib/wire"
)

// Source consumes the data entries of one container source. AddEntry
// receives a reader over a single entry payload; decoders keep their own
// state between entries. Finish flushes and releases whatever the decoder
// owns; it is called exactly once, on success and on fatal error alike.
type Source interface {
	AddEntry(r *wire.Reader) error
	Finish() error
}

// SourceFactory builds a decoder for each announced source. The ordinal
// is the number of earlier sources that share the descriptor's full name;
// implementations disambiguate outputs with a "-<ordinal>" suffix when it
// is nonzero. Finish runs after every source's Finish and closes whatever
// the factory shares across sources.
type SourceFactory interface {
	CreateSource(desc SourceDesc, ordinal int) (Source, error)
	Finish() error
}

// KeyResolver recovers the AES-256 session key from the material in an
// AES descriptor entry: the digest identifying the wrapping RSA key and
// the RSA-wrapped key itself.
type KeyResolver interface {
	ResolveKey(ctx context.Context, keyHash, wrappedKey []byte) ([]byte, error)
}

// Config wires a Demuxer.
type Config struct {
	// Factory builds source decoders. Required.
	Factory SourceFactory
	// Resolver recovers AES session keys. May be nil when the input is
	// known to be unencrypted; an AES descriptor then fails with a
	// CryptoError.
	Resolver KeyResolver
	// Logger routes diagnostics; nil means slog.Default.
	Logger *slog.Logger
	// StopWhen, if set, is polled before each entry and ends the pass
	// (without error) once it returns true. The header-only and
	// integrity modes use it to stop at the embedded header.
	StopWhen func() bool
}

// Demuxer reads a container and routes entries: source descriptors to the
// factory, data entries to their decoders, LZ4 and AES envelopes back
// into the entry loop. Not safe for concurrent use.
type Demuxer struct {
	factory  SourceFactory
	logger   *slog.Logger
	stopWhen func() bool

	aes       aesContext
	version   uint32
	sources   map[uint32]Source
	order     []uint32
	names     map[string]int
	finalized bool
}

// NewDemuxer returns a Demuxer for one container.
func NewDemuxer(cfg Config) *Demuxer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Demuxer{
		factory:  cfg.Factory,
		logger:   logger,
		stopWhen: cfg.StopWhen,
		aes:      aesContext{resolver: cfg.Resolver, logger: logger},
		sources:  make(map[uint32]Source),
		names:    make(map[string]int),
	}
}

// Version returns the container version read by Start.
func (d *Demuxer) Version() uint32 { return d.version }

// SetStopWhen replaces the stop predicate between passes. The integrity
// mode clears it after the header pre-pass to resume full extraction.
func (d *Demuxer) SetStopWhen(fn func() bool) { d.stopWhen = fn }

// Start validates the container header and records the version.
func (d *Demuxer) Start(r *wire.Reader) error {
	version, err := readHeader(r)
	if err != nil {
		return err
	}
	d.version = version
	return nil
}

// ReadEntries consumes entries until the reader is exhausted or the stop
// predicate fires. It may be called again on the same reader to resume
// after an early stop. Any error is fatal to the pass; the caller still
// runs Finalize.
func (d *Demuxer) ReadEntries(ctx context.Context, r *wire.Reader) error {
	return d.readLoop(ctx, r, 0, false)
}

// Finalize finishes every source in registration order, then the factory.
// It keeps going past individual failures and reports the first one.
// Safe to call once after ReadEntries regardless of its outcome; further
// calls are no-ops.
func (d *Demuxer) Finalize() error {
	if d.finalized {
		return nil
	}
	d.finalized = true
	var firstErr error
	for _, id := range d.order {
		if err := d.sources[id].Finish(); err != nil {
			d.logger.Warn("finishing source failed",
				slog.Uint64("id", uint64(id)), slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = fmt.Errorf("finishing source %d: %w", id, err)
			}
		}
	}
	if d.factory != nil {
		if err := d.factory.Finish(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *Demuxer) readLoop(ctx context.Context, r *wire.Reader, depth int, insideLZ4 bool) error {
	if depth > maxNestingDepth {
		return &ProtocolError{Reason: fmt.Sprintf("entry nesting deeper than %d levels", maxNestingDepth)}
	}
	for r.Remaining() > 0 {
		if d.stopWhen != nil && d.stopWhen() {
			return nil
		}
		id, payload, err := readEntry(r)
		if err != nil {
			return err
		}
		if err := d.handleEntry(ctx, id, payload, depth, insideLZ4); err != nil {
			return err
		}
	}
	return nil
}

func readEntry(r *wire.Reader) (id uint32, payload []byte, err error) {
	if id, err = r.ReadU32(); err != nil {
		return 0, nil, fmt.Errorf("truncated entry: %w", err)
	}
	length, err := r.ReadU32()
	if err != nil {
		return 0, nil, fmt.Errorf("truncated entry: %w", err)
	}
	if payload, err = r.ReadBytes(int(length)); err != nil {
		return 0, nil, fmt.Errorf("truncated entry: %w", err)
	}
	return id, payload, nil
}

func (d *Demuxer) handleEntry(ctx context.Context, id uint32, payload []byte, depth int, insideLZ4 bool) error {
	switch {
	case d.version >= 3 && id == IDAESDesc:
		return d.aes.configure(ctx, payload)

	case d.version >= 3 && id == IDAES:
		plain, err := d.aes.decrypt(payload)
		if err != nil {
			return err
		}
		// The envelope is transport, not nesting: an LZ4 frame inside
		// the plaintext is still at stream level.
		return d.readLoop(ctx, newSubReader(plain, d.logger), depth+1, insideLZ4)

	case id == IDSourceDesc:
		return d.addSource(payload)

	case id == IDLZ4:
		plain, err := decompressLZ4(payload)
		if err != nil {
			if insideLZ4 {
				return &ProtocolError{Reason: fmt.Sprintf("nested LZ4 entry: %v", err)}
			}
			d.logger.Warn("skipping truncated LZ4 entry", slog.String("error", err.Error()))
			return nil
		}
		return d.readLoop(ctx, newSubReader(plain, d.logger), depth+1, true)

	default:
		source, ok := d.sources[id]
		if !ok {
			return &ProtocolError{Reason: fmt.Sprintf("source with id=%d not found", id)}
		}
		if err := source.AddEntry(newSubReader(payload, d.logger)); err != nil {
			return fmt.Errorf("source %d: %w", id, err)
		}
		return nil
	}
}

func (d *Demuxer) addSource(payload []byte) error {
	desc, err := readSourceDesc(newSubReader(payload, d.logger))
	if err != nil {
		return fmt.Errorf("source descriptor: %w", err)
	}
	d.logger.Info("source",
		slog.Uint64("id", uint64(desc.ID)),
		slog.Uint64("version", uint64(desc.Version)),
		slog.String("plugin", desc.Plugin),
		slog.String("name", desc.Name))
	if _, dup := d.sources[desc.ID]; dup {
		return &ProtocolError{Reason: fmt.Sprintf("source with id=%d already added", desc.ID)}
	}
	fullName := desc.FullName()
	source, err := d.factory.CreateSource(desc, d.names[fullName])
	if err != nil {
		return fmt.Errorf("creating source %q: %w", fullName, err)
	}
	d.names[fullName]++
	d.sources[desc.ID] = source
	d.order = append(d.order, desc.ID)
	return nil
}

func newSubReader(data []byte, logger *slog.Logger) *wire.Reader {
	r := wire.NewReader(data)
	r.SetLogger(logger)
	return r
}

func decompressLZ4(payload []byte) ([]byte, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// aesContext holds the decryption side of the encryption envelope. The
// CBC chaining state carries over from one AES entry to the next, so the
// same context must serve the whole file (until a new descriptor resets
// it).
type aesContext struct {
	resolver KeyResolver
	logger   *slog.Logger
	mode     cipher.BlockMode
}

func (c *aesContext) configure(ctx context.Context, payload []byte) error {
	r := newSubReader(payload, c.logger)
	keyHash, err := readLenPrefixed(r)
	if err != nil {
		return fmt.Errorf("AES descriptor key hash: %w", err)
	}
	wrappedKey, err := readLenPrefixed(r)
	if err != nil {
		return fmt.Errorf("AES descriptor wrapped key: %w", err)
	}
	iv, err := readLenPrefixed(r)
	if err != nil {
		return fmt.Errorf("AES descriptor IV: %w", err)
	}
	if c.resolver == nil {
		return &CryptoError{Op: "resolve key", Err: errors.New("no key resolver configured")}
	}
	key, err := c.resolver.ResolveKey(ctx, keyHash, wrappedKey)
	if err != nil {
		return &CryptoError{Op: "resolve key", Err: err}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return &CryptoError{Op: "initialize cipher", Err: err}
	}
	if len(iv) != aes.BlockSize {
		return &CryptoError{Op: "initialize cipher", Err: fmt.Errorf("IV is %d bytes, want %d", len(iv), aes.BlockSize)}
	}
	c.mode = cipher.NewCBCDecrypter(block, iv)
	return nil
}

func (c *aesContext) decrypt(payload []byte) ([]byte, error) {
	if c.mode == nil {
		return nil, &ProtocolError{Reason: "AES entry before any AES descriptor"}
	}
	if len(payload) == 0 || len(payload)%aes.BlockSize != 0 {
		return nil, &CryptoError{Op: "decrypt entry", Err: fmt.Errorf("payload length %d is not a positive multiple of %d", len(payload), aes.BlockSize)}
	}
	plain := make([]byte, len(payload))
	c.mode.CryptBlocks(plain, payload)
	// PKCS#7 (RFC 2315, 10.3): the last byte is the pad length.
	padLen := int(plain[len(plain)-1])
	if padLen < 1 || padLen > aes.BlockSize || padLen > len(plain) {
		return nil, &CryptoError{Op: "strip padding", Err: fmt.Errorf("invalid PKCS#7 pad byte %d", padLen)}
	}
	return plain[:len(plain)-padLen], nil
}

func readLenPrefixed(r *wire.Reader) ([]byte, error) {
	length, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(int(length))
}
