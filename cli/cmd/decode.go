package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/adit/framing"
	"github.com/justapithecus/adit/render"
	"github.com/justapithecus/adit/wire"
)

// DecodeCommand returns the decode command. It runs the same decode and
// render path as a live session, but over a capture file or stdin, so
// recorded traffic can be replayed without a device.
func DecodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode captured frames from a file or stdin to JSON lines",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "legacy",
				Usage: "Treat the whole input as one frame (no length prefixes)",
			},
			&cli.BoolFlag{
				Name:  "keep-going",
				Usage: "Report malformed frames on stderr and continue",
			},
			&cli.IntFlag{
				Name:  "max-frame",
				Usage: "Max frame size in bytes (0 = default)",
			},
		},
		Action: decodeAction,
	}
}

// decodeOptions holds parsed decode configuration.
type decodeOptions struct {
	legacy    bool
	keepGoing bool
	maxFrame  int
}

// decodeStats counts the frames seen by one decode pass.
type decodeStats struct {
	frames  int
	decoded int
	failed  int
}

func decodeAction(c *cli.Context) error {
	var in io.Reader = os.Stdin
	if path := c.Args().First(); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to open input: %v", err), exitUsageError)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	opts := decodeOptions{
		legacy:    c.Bool("legacy"),
		keepGoing: c.Bool("keep-going"),
		maxFrame:  c.Int("max-frame"),
	}

	if _, err := decodeStream(in, os.Stdout, os.Stderr, opts); err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}
	return nil
}

// decodeStream reads frames from r and writes one JSON line per decoded
// message to out. Frames are length-prefixed unless opts.legacy treats the
// whole input as a single raw frame.
//
// A malformed frame aborts the pass unless opts.keepGoing reports it to
// errOut and moves on. Framing errors are always fatal: once a length
// prefix is wrong there is no way to find the next frame boundary.
func decodeStream(r io.Reader, out, errOut io.Writer, opts decodeOptions) (decodeStats, error) {
	var stats decodeStats

	emit := func(frame []byte) error {
		stats.frames++
		msg, err := wire.Decode(frame)
		if err != nil {
			stats.failed++
			if opts.keepGoing {
				fmt.Fprintf(errOut, "frame %d: %v\n", stats.frames, err)
				return nil
			}
			return fmt.Errorf("frame %d: %w", stats.frames, err)
		}
		line, err := render.Render(msg)
		if err != nil {
			stats.failed++
			if opts.keepGoing {
				fmt.Fprintf(errOut, "frame %d: %v\n", stats.frames, err)
				return nil
			}
			return fmt.Errorf("frame %d: %w", stats.frames, err)
		}
		stats.decoded++
		fmt.Fprintln(out, line)
		return nil
	}

	if opts.legacy {
		data, err := io.ReadAll(r)
		if err != nil {
			return stats, fmt.Errorf("failed to read input: %w", err)
		}
		if len(data) == 0 {
			return stats, nil
		}
		return stats, emit(data)
	}

	fr := framing.NewFrameReader(r, opts.maxFrame)
	for {
		frame, err := fr.ReadFrame()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("frame %d: %w", stats.frames+1, err)
		}
		if err := emit(frame); err != nil {
			return stats, err
		}
	}
}
