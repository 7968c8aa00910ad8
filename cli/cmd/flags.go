// Package cmd provides CLI commands for the adit binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/adit/cli/reader"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select read-only commands (inspect, stats).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error
// messages instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// TUIReadOnlyFlags returns flags for commands that support TUI mode.
// This is an alias for ReadOnlyFlags, kept for documentation clarity.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}

// JournalFlags returns the journal storage flags shared by every command
// that reads session records back (list, inspect, stats).
func JournalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "journal-path",
			Usage:    "Journal storage path (fs: directory, s3: bucket/prefix)",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "journal-backend",
			Usage: "Journal storage backend: fs or s3",
			Value: "fs",
		},
		&cli.StringFlag{
			Name:  "journal-s3-region",
			Usage: "AWS region for the s3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "journal-dataset",
			Usage: "Lode dataset ID",
			Value: "adit",
		},
	}
}

// readerOptions builds journal reader options from the shared flags.
func readerOptions(c *cli.Context) reader.Options {
	return reader.Options{
		Backend: c.String("journal-backend"),
		Path:    c.String("journal-path"),
		Region:  c.String("journal-s3-region"),
		Dataset: c.String("journal-dataset"),
	}
}
