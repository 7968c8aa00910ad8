package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/adit/cli/reader"
	"github.com/justapithecus/adit/cli/render"
	"github.com/justapithecus/adit/journal"
)

// StatsCommand returns the stats command.
// Stats returns aggregated, derived counters: one session's when an ID is
// given, the whole journal's otherwise.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Show session statistics",
		ArgsUsage: "[session-id]",
		Flags:     append(JournalFlags(), TUIReadOnlyFlags()...),
		Action:    statsAction,
	}
}

func statsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	jr, err := reader.Open(readerOptions(c))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open journal: %v", err), 1)
	}

	sessionID := c.Args().First()
	resp, err := jr.SessionStats(c.Context, sessionID)
	if err != nil {
		if errors.Is(err, journal.ErrSessionNotFound) {
			return cli.Exit(fmt.Sprintf("session not found: %s", sessionID), 1)
		}
		return cli.Exit(fmt.Sprintf("failed to read stats: %v", err), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI("stats_sessions", resp)
	}

	return r.Render(resp)
}
