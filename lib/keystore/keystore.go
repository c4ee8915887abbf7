// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package keystore unwraps the AES session keys found in encrypted log
// containers.
//
// An encrypted container carries the AES key wrapped with an RSA public
// key, alongside a hash identifying the key pair. Three unwrap paths are
// supported:
//   - Remote: ask the keystore service to unwrap (the default),
//   - Local: unwrap with a PEM-encoded RSA private key on disk,
//   - Fixed: use an AES key supplied directly on the command line.
//
// All paths return the 32-byte AES-256 key or an error.
package keystore

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// DefaultURL is the keystore endpoint used when no other unwrap path is
// configured.
const DefaultURL = "https://noserver.parrot.biz"

// keySize is the AES-256 key size. Every unwrap path must produce
// exactly this many bytes.
const keySize = 32

// maxResponseSize bounds how much of a keystore reply is read.
const maxResponseSize = 1 << 20

func checkKeySize(key []byte) ([]byte, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("keystore: expected %d-byte AES key, got %d bytes", keySize, len(key))
	}
	return key, nil
}

// Remote unwraps keys by asking the keystore service.
type Remote struct {
	url    string
	client *http.Client
}

// NewRemote returns a resolver backed by the keystore service at rawURL.
func NewRemote(rawURL string, timeout time.Duration) *Remote {
	return &Remote{
		url:    rawURL,
		client: &http.Client{Timeout: timeout},
	}
}

// ResolveKey asks the keystore to unwrap wrappedKey. keyHash identifies
// the RSA key pair the keystore should use.
func (r *Remote) ResolveKey(ctx context.Context, keyHash, wrappedKey []byte) ([]byte, error) {
	u, err := url.Parse(r.url)
	if err != nil {
		return nil, fmt.Errorf("keystore: invalid URL %q: %w", r.url, err)
	}
	query := u.Query()
	query.Set("action", "decrypt")
	query.Set("key", hex.EncodeToString(keyHash))
	query.Set("input", hex.EncodeToString(wrappedKey))
	u.RawQuery = query.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to create request: %w", err)
	}

	response, err := r.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("keystore: request to %s failed: %w", u.Host, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to read response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keystore: %s returned %d %s: %s",
			u.Host, response.StatusCode, http.StatusText(response.StatusCode), body)
	}

	var reply struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("keystore: failed to decode response: %w", err)
	}
	key, err := hex.DecodeString(reply.Message)
	if err != nil {
		return nil, fmt.Errorf("keystore: response is not a hex key: %w", err)
	}
	return checkKeySize(key)
}

// Local unwraps keys with an RSA private key held on disk.
type Local struct {
	private *rsa.PrivateKey
}

// NewLocal loads a PEM-encoded RSA private key (PKCS#1 or PKCS#8) from
// path.
func NewLocal(path string) (*Local, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: reading private key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("keystore: no PEM block in %s", path)
	}

	var private *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		private, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("keystore: parsing %s: %w", path, err)
		}
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("keystore: parsing %s: %w", path, err)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("keystore: %s holds a %T, want an RSA key", path, parsed)
		}
		private = rsaKey
	default:
		return nil, fmt.Errorf("keystore: unsupported PEM block %q in %s", block.Type, path)
	}

	return &Local{private: private}, nil
}

// ResolveKey unwraps wrappedKey with the loaded private key. The key
// hash is not checked: whoever configures a local key asserts it is the
// right one.
func (l *Local) ResolveKey(ctx context.Context, keyHash, wrappedKey []byte) ([]byte, error) {
	key, err := rsa.DecryptPKCS1v15(nil, l.private, wrappedKey)
	if err != nil {
		return nil, fmt.Errorf("keystore: RSA unwrap failed: %w", err)
	}
	return checkKeySize(key)
}

// Fixed resolves every key request to one AES key supplied up front.
type Fixed struct {
	key []byte
}

// NewFixed returns a resolver that always answers with key.
func NewFixed(key []byte) (*Fixed, error) {
	checked, err := checkKeySize(key)
	if err != nil {
		return nil, err
	}
	return &Fixed{key: checked}, nil
}

// ParseFixed builds a Fixed resolver from a hex-encoded AES key.
func ParseFixed(hexKey string) (*Fixed, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("keystore: key is not valid hex: %w", err)
	}
	return NewFixed(key)
}

// ResolveKey returns the fixed key regardless of hash or wrapped input.
func (f *Fixed) ResolveKey(ctx context.Context, keyHash, wrappedKey []byte) ([]byte, error) {
	return f.key, nil
}
