// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config selects and tunes the key unwrap path.
//
// Configuration is loaded from a single file specified by:
//   - LOGEXTRACT_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. Command line flags
// override individual fields.
type Config struct {
	// URL is the remote keystore endpoint.
	// Default: https://noserver.parrot.biz
	URL string `yaml:"url"`

	// Timeout is the remote keystore request timeout.
	// Default: 30s
	Timeout string `yaml:"timeout"`

	// PrivateKey is the path to a PEM-encoded RSA private key. When set,
	// keys are unwrapped locally and the remote keystore is never
	// contacted.
	PrivateKey string `yaml:"private_key"`
}

// Default returns the default configuration, matching the behavior of a
// run with no config file at all.
func Default() *Config {
	return &Config{
		URL:     DefaultURL,
		Timeout: "30s",
	}
}

// Load loads configuration from the LOGEXTRACT_CONFIG environment
// variable, or returns the defaults when it is not set.
func Load() (*Config, error) {
	path := os.Getenv("LOGEXTRACT_CONFIG")
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("keystore: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// HTTPTimeout parses the configured timeout.
func (c *Config) HTTPTimeout() (time.Duration, error) {
	timeout, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("keystore: invalid timeout %q: %w", c.Timeout, err)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("keystore: timeout must be positive, got %q", c.Timeout)
	}
	return timeout, nil
}
