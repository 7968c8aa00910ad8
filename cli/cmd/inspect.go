package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/adit/cli/reader"
	"github.com/justapithecus/adit/cli/render"
	"github.com/justapithecus/adit/journal"
)

// InspectCommand returns the inspect command.
// Inspect returns the deep view of one session: every decoded message,
// every stream fault, and the summary when the session completed.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect a session by ID",
		ArgsUsage: "<session-id>",
		Flags:     append(JournalFlags(), TUIReadOnlyFlags()...),
		Action:    inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("session-id required", 1)
	}
	sessionID := c.Args().First()

	// Get renderer
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	jr, err := reader.Open(readerOptions(c))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open journal: %v", err), 1)
	}

	resp, err := jr.InspectSession(c.Context, sessionID)
	if err != nil {
		if errors.Is(err, journal.ErrSessionNotFound) {
			return cli.Exit(fmt.Sprintf("session not found: %s", sessionID), 1)
		}
		return cli.Exit(fmt.Sprintf("failed to inspect session: %v", err), 1)
	}

	// Handle TUI mode
	if c.Bool("tui") {
		return r.RenderTUI("inspect_session", resp)
	}

	// Standard render
	return r.Render(resp)
}
