package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/chess2lichess/chess2lichess/internal/source"
)

// Exit codes.
const (
	exitOK              = 0
	exitFailure         = 1
	exitUsage           = 2
	exitNoGamesMatched  = 3
	exitAlreadyImported = 4
)

var errUsage = errors.New("usage error")

// options are the parsed command line.
type options struct {
	Username   string
	Scope      source.Scope
	Labels     []string
	Verbose    bool
	ConvertTZ  bool
	DryRun     bool
	ConfigPath string
	EnvFile    string
	Version    bool
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("chess2lichess", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: chess2lichess [flags] <chess.com username>\n\n")
		fmt.Fprintf(stderr, "Imports a player's chess.com games into lichess, skipping games already imported.\n\n")
		fs.PrintDefaults()
	}

	var (
		opts      options
		current   bool
		month     string
		monthSpan string
		filterArg string
	)
	fs.BoolVar(&opts.Verbose, "v", false, "verbose output (debug logging, per-game progress)")
	fs.BoolVar(&opts.ConvertTZ, "tz", false, "write ledger dates in the local timezone instead of UTC")
	fs.BoolVar(&current, "current", false, "import the current month")
	fs.StringVar(&month, "month", "", "import a single month, YYYY/MM")
	fs.StringVar(&monthSpan, "range", "", "import an inclusive month range, YYYY/MM,YYYY/MM")
	fs.StringVar(&filterArg, "filter", "", "comma-separated categories to import (e.g. rapid,blitz)")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "show what would be imported without submitting anything")
	fs.StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")
	fs.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load before reading the environment")
	fs.BoolVar(&opts.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if opts.Version {
		return &opts, nil
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("%w: expected exactly one username, got %d arguments", errUsage, fs.NArg())
	}
	opts.Username = strings.TrimSpace(fs.Arg(0))

	selected := 0
	for _, set := range []bool{current, month != "", monthSpan != ""} {
		if set {
			selected++
		}
	}
	if selected != 1 {
		return nil, fmt.Errorf("%w: exactly one of -current, -month or -range is required", errUsage)
	}

	switch {
	case current:
		opts.Scope = source.CurrentMonth()
	case month != "":
		m, err := source.ParseMonth(month)
		if err != nil {
			return nil, fmt.Errorf("%w: -month: %v", errUsage, err)
		}
		opts.Scope = source.SingleMonth(m)
	default:
		scope, err := source.ParseRange(monthSpan)
		if err != nil {
			return nil, fmt.Errorf("%w: -range: %v", errUsage, err)
		}
		opts.Scope = scope
	}

	if filterArg != "" {
		for _, label := range strings.Split(filterArg, ",") {
			if label = strings.TrimSpace(label); label != "" {
				opts.Labels = append(opts.Labels, label)
			}
		}
	}
	return &opts, nil
}
