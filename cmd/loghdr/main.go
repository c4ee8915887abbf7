// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

// loghdr prints the embedded header of a loggerd flight-log container.
//
// The header is the key/value map recorded at the start of every
// container (hardware model, software version, serial, boot id, digest).
// loghdr decodes just enough of the container to capture it: the pass
// stops at the header and nothing is written to disk. With --key it
// prints a single value for scripting; by default it prints every pair
// in arrival order.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/loggerd-project/logextract/lib/container"
	"github.com/loggerd-project/logextract/lib/extract"
	"github.com/loggerd-project/logextract/lib/keystore"
	"github.com/loggerd-project/logextract/lib/version"
	"github.com/loggerd-project/logextract/lib/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("loghdr %s\n", version.Info())
		return nil
	}

	var key string
	flags := pflag.NewFlagSet("loghdr", pflag.ContinueOnError)
	flags.StringVarP(&key, "key", "k", "", "print only this header key's value")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printUsage(flags)
			return nil
		}
		return err
	}

	args := flags.Args()
	if len(args) == 0 {
		printUsage(flags)
		return fmt.Errorf("missing log file argument")
	}
	if len(args) > 1 {
		return fmt.Errorf("unexpected argument: %s", args[1])
	}

	logger := newLogger()
	slog.SetDefault(logger)

	header, err := readHeader(context.Background(), args[0], logger)
	if err != nil {
		return err
	}

	if key != "" {
		for _, field := range header {
			if field.Key == key {
				fmt.Printf("[%s]: %s\n", field.Key, field.Value)
				return nil
			}
		}
		return fmt.Errorf("header key %q not found", key)
	}
	for _, field := range header {
		fmt.Printf("[%s]: %s\n", field.Key, field.Value)
	}
	return nil
}

// readHeader runs a header-only pass over the container: every source
// except the embedded header is discarded and the entry loop stops as
// soon as the header is complete.
func readHeader(ctx context.Context, path string, logger *slog.Logger) ([]extract.HeaderField, error) {
	data, err := container.LoadFile(path)
	if err != nil {
		return nil, err
	}
	r := wire.NewReader(data)
	r.SetLogger(logger)

	extractor, err := extract.New(extract.Options{HeaderOnly: true, Logger: logger})
	if err != nil {
		return nil, err
	}
	resolver, err := newResolver()
	if err != nil {
		return nil, err
	}
	demux := container.NewDemuxer(container.Config{
		Factory:  extractor,
		Resolver: resolver,
		Logger:   logger,
		StopWhen: extractor.HeaderFound,
	})

	if err := demux.Start(r); err != nil {
		return nil, err
	}
	passErr := demux.ReadEntries(ctx, r)
	if err := demux.Finalize(); err != nil && passErr == nil {
		passErr = err
	}
	if passErr != nil {
		return nil, passErr
	}
	if !extractor.HeaderFound() {
		return nil, fmt.Errorf("container has no embedded header")
	}
	return extractor.Header(), nil
}

// newLogger builds the process logger at Warn level so the header dump is
// the only routine output: text on a terminal, JSON when redirected.
func newLogger() *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelWarn}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

// newResolver builds the key resolver from the environment-selected
// config file; loghdr has no keystore flags of its own.
func newResolver() (container.KeyResolver, error) {
	cfg, err := keystore.Load()
	if err != nil {
		return nil, err
	}
	if cfg.PrivateKey != "" {
		return keystore.NewLocal(cfg.PrivateKey)
	}
	timeout, err := cfg.HTTPTimeout()
	if err != nil {
		return nil, err
	}
	return keystore.NewRemote(cfg.URL, timeout), nil
}

func printUsage(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `loghdr — print the embedded header of a loggerd flight-log container.

Usage:
  loghdr [flags] <logfile>

Examples:
  # Print every header pair
  loghdr flight.bin

  # Print one value for scripting
  loghdr -k ro.parrot.build.version flight.bin

Flags:
`)
	flags.SetOutput(os.Stderr)
	flags.PrintDefaults()
}
