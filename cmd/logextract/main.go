// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
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
	// Handle --version before flag parsing to match the other loggerd
	// binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("logextract %s\n", version.Info())
		return nil
	}

	var (
		decryptPath  string
		outputDir    string
		printHeader  bool
		ulogAbsolute bool
		tlmSections  []string
		integrity    bool
		keystoreURL  string
		keystoreKey  string
		configPath   string
	)
	flags := pflag.NewFlagSet("logextract", pflag.ContinueOnError)
	flags.StringVarP(&decryptPath, "decrypt", "d", "", "write a decrypted copy of the container to this path instead of extracting")
	flags.StringVarP(&outputDir, "output", "o", ".", "directory receiving the extracted artifacts")
	flags.BoolVarP(&printHeader, "print-header", "p", false, "print the embedded header and extract nothing")
	flags.BoolVar(&ulogAbsolute, "ulog-absolute", false, "shift merged event-log timestamps to absolute time when the log carries a wall-clock marker")
	flags.StringArrayVar(&tlmSections, "tlm-section", nil, "extract only this telemetry section (repeatable; default: all)")
	flags.BoolVarP(&integrity, "integrity", "i", false, "verify the container digest before extracting")
	flags.StringVar(&keystoreURL, "keystore-url", "", "keystore service URL (overrides the config file)")
	flags.StringVar(&keystoreKey, "keystore-key", "", "hex-encoded AES-256 session key; skips key unwrapping entirely")
	flags.StringVar(&configPath, "config", "", "keystore configuration file (default: $LOGEXTRACT_CONFIG)")
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
	logfile := args[0]

	logger := newLogger(printHeader)
	slog.SetDefault(logger)

	resolver, err := newResolver(configPath, keystoreURL, keystoreKey)
	if err != nil {
		return err
	}

	data, err := container.LoadFile(logfile)
	if err != nil {
		return err
	}
	r := wire.NewReader(data)
	r.SetLogger(logger)

	ctx := context.Background()

	if decryptPath != "" {
		return decryptContainer(ctx, r, decryptPath, resolver, logger)
	}

	extractor, err := extract.New(extract.Options{
		OutputDir:         outputDir,
		HeaderOnly:        printHeader,
		UlogAbsolute:      ulogAbsolute,
		TelemetrySections: tlmSections,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	demux := container.NewDemuxer(container.Config{
		Factory:  extractor,
		Resolver: resolver,
		Logger:   logger,
	})
	if printHeader || integrity {
		demux.SetStopWhen(extractor.HeaderFound)
	}
	if !printHeader && term.IsTerminal(int(os.Stderr.Fd())) {
		r.SetProgress(progressMeter(os.Stderr))
	}

	if err := demux.Start(r); err != nil {
		return err
	}
	passErr := demux.ReadEntries(ctx, r)

	if passErr == nil && printHeader {
		finishErr := demux.Finalize()
		for _, field := range extractor.Header() {
			fmt.Printf("[%s]: [%s]\n", field.Key, field.Value)
		}
		return finishErr
	}

	if passErr == nil && integrity {
		passErr = verifyIntegrity(r, extractor, logger)
		if passErr == nil {
			demux.SetStopWhen(nil)
			passErr = demux.ReadEntries(ctx, r)
		}
	}

	// Sources are finalized even when the pass failed, so everything
	// decoded up to the failure is flushed to disk.
	if err := demux.Finalize(); err != nil && passErr == nil {
		passErr = err
	}
	return passErr
}

// newLogger builds the process logger: human-readable text on a terminal,
// JSON when redirected. Header-only mode raises the level to Warn so the
// header dump is the only routine output.
func newLogger(headerOnly bool) *slog.Logger {
	level := slog.LevelInfo
	if headerOnly {
		level = slog.LevelWarn
	}
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

// newResolver builds the AES key resolver: a fixed session key wins over
// a configured local private key, which wins over the remote keystore.
func newResolver(configPath, urlOverride, fixedKey string) (container.KeyResolver, error) {
	if fixedKey != "" {
		return keystore.ParseFixed(fixedKey)
	}
	var cfg *keystore.Config
	var err error
	if configPath != "" {
		cfg, err = keystore.LoadFile(configPath)
	} else {
		cfg, err = keystore.Load()
	}
	if err != nil {
		return nil, err
	}
	if urlOverride != "" {
		cfg.URL = urlOverride
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

// verifyIntegrity checks the digest declared in the embedded header
// against the unread remainder of the container. A container that
// declares no digest cannot be verified; that is informational only.
func verifyIntegrity(r *wire.Reader, extractor *extract.Extractor, logger *slog.Logger) error {
	declared, ok := extractor.HeaderValue(container.HeaderDigestKey)
	if !ok {
		logger.Info("container integrity check not possible (no digest in header)")
		return nil
	}
	return container.VerifyDigest(r, declared, logger)
}

// decryptContainer writes a decrypted copy of the container to path. The
// output is a well-formed unencrypted container; nothing is extracted.
func decryptContainer(ctx context.Context, r *wire.Reader, path string, resolver container.KeyResolver, logger *slog.Logger) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	buffered := bufio.NewWriter(out)
	if err := container.Decrypt(ctx, r, buffered, resolver, logger); err != nil {
		out.Close()
		return err
	}
	if err := buffered.Flush(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// progressMeter returns a read-progress callback that repaints a percent
// counter in place, ending the line once the container is fully consumed.
func progressMeter(w io.Writer) func(pos, total int) {
	last := -1
	return func(pos, total int) {
		if total == 0 {
			return
		}
		percent := pos * 100 / total
		if percent == last {
			return
		}
		last = percent
		fmt.Fprintf(w, "\r%d%%", percent)
		if percent == 100 {
			fmt.Fprintln(w)
		}
	}
}

func printUsage(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `logextract — extract the sources of a loggerd flight-log container.

Reads a container (plain or gzipped), decodes every announced source
and writes the artifacts into the output directory: recorded files
under fs/, property and settings CSVs, the system-monitor report,
the telemetry stream (telemetry.tlmb) and the merged event log
(ulog-merge.txt).

Usage:
  logextract [flags] <logfile>

Examples:
  # Extract everything into ./out
  logextract -o out flight.bin

  # Print the embedded header and stop
  logextract -p flight.bin

  # Verify the container digest, then extract
  logextract -i -o out flight.bin

  # Strip the encryption envelope without extracting
  logextract -d flight-plain.bin flight.bin

Flags:
`)
	flags.SetOutput(os.Stderr)
	flags.PrintDefaults()
}
