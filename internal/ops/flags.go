// Package ops implements the CLI/ops surface spec.md §6 requires of
// every daemon: --version, --verbose, --quiet, --reallyquiet, --help.
package ops

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
)

// Version is the fabric's reported version string.
const Version = "shipfabric 0.1.0"

// Verbosity is the outcome of parsing the shared --verbose/--quiet/
// --reallyquiet flags.
type Verbosity int

const (
	VerbosityNormal Verbosity = iota
	VerbosityVerbose
	VerbosityQuiet
	VerbosityReallyQuiet
)

// ParseFlags parses name's CLI/ops surface out of args (normally
// os.Args[1:]). ok is false when main should exit 0 immediately because
// --version or --help already printed what was asked for; err is
// non-nil only on a genuine parse failure (main should exit 1).
func ParseFlags(name string, args []string) (v Verbosity, ok bool, err error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	version := fs.Bool("version", false, "print version and exit")
	verbose := fs.Bool("verbose", false, "enable debug logging and per-connection packet logs")
	quiet := fs.Bool("quiet", false, "log warnings and errors only")
	reallyquiet := fs.Bool("reallyquiet", false, "suppress all logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [flags]\n\n", name)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return VerbosityNormal, false, nil
		}
		return VerbosityNormal, false, err
	}

	if *version {
		fmt.Printf("%s %s\n", name, Version)
		return VerbosityNormal, false, nil
	}

	switch {
	case *reallyquiet:
		v = VerbosityReallyQuiet
	case *quiet:
		v = VerbosityQuiet
	case *verbose:
		v = VerbosityVerbose
	default:
		v = VerbosityNormal
	}
	return v, true, nil
}

// Logger builds the daemon's default slog.Logger for v, falling back to
// configLevel (the daemon's config-file log_level) when v is
// VerbosityNormal. --reallyquiet discards output outright rather than
// merely raising the level, since errors should vanish too.
func Logger(v Verbosity, configLevel string) *slog.Logger {
	if v == VerbosityReallyQuiet {
		return slog.New(slog.DiscardHandler)
	}

	level := levelFromName(configLevel)
	switch v {
	case VerbosityVerbose:
		level = slog.LevelDebug
	case VerbosityQuiet:
		level = slog.LevelWarn
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func levelFromName(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
