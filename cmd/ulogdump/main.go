// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

// ulogdump renders a raw ulog record stream as text.
//
// The input is a standalone event-log file as extracted by logextract
// (any ulog source besides the main stream, e.g. ulog-kernel.bin).
// Records are parsed until end of file, kernel relay messages are
// rebased onto their printk timestamps, and each entry prints one line
// per message line. Severity colors apply only when writing to a
// terminal.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/muesli/termenv"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/loggerd-project/logextract/lib/ulog"
	"github.com/loggerd-project/logextract/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("ulogdump %s\n", version.Info())
		return nil
	}

	var outputPath string
	flags := pflag.NewFlagSet("ulogdump", pflag.ContinueOnError)
	flags.StringVarP(&outputPath, "output", "o", "", "write the dump to this path instead of stdout")
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
		return fmt.Errorf("missing input file argument")
	}
	if len(args) > 1 {
		return fmt.Errorf("unexpected argument: %s", args[1])
	}

	logger := newLogger()
	slog.SetDefault(logger)

	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer in.Close()
	reader := bufio.NewReader(in)

	if outputPath == "" {
		profile := termenv.Ascii
		if term.IsTerminal(int(os.Stdout.Fd())) {
			profile = termenv.ColorProfile()
		}
		buffered := bufio.NewWriter(os.Stdout)
		out := termenv.NewOutput(buffered, termenv.WithProfile(profile))
		if err := dump(reader, out, logger); err != nil {
			return err
		}
		return buffered.Flush()
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	buffered := bufio.NewWriter(outFile)
	out := termenv.NewOutput(buffered, termenv.WithProfile(termenv.Ascii))
	if err := dump(reader, out, logger); err != nil {
		outFile.Close()
		return err
	}
	if err := buffered.Flush(); err != nil {
		outFile.Close()
		return err
	}
	return outFile.Close()
}

// dump renders records until the stream ends. A record cut short ends
// the dump early with a warning; everything before it is still printed.
func dump(r io.Reader, out *termenv.Output, logger *slog.Logger) error {
	for {
		entry, err := ulog.ReadEntry(r)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("stopping dump early", slog.String("error", err.Error()))
			}
			return nil
		}
		if err := entry.Render(out); err != nil {
			return err
		}
	}
}

// newLogger builds the process logger: text on a terminal, JSON when
// redirected. The dump itself goes to stdout, diagnostics to stderr.
func newLogger() *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

func printUsage(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `ulogdump — render a raw ulog record stream as text.

Usage:
  ulogdump [flags] <input.bin>

Examples:
  # Dump an extracted kernel log to the terminal
  ulogdump out/ulog-kernel.bin

  # Convert to a text file
  ulogdump -o kernel.txt out/ulog-kernel.bin

Flags:
`)
	flags.SetOutput(os.Stderr)
	flags.PrintDefaults()
}
