package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/adit/cli/render"
	"github.com/justapithecus/adit/framing"
	"github.com/justapithecus/adit/types"
	"github.com/justapithecus/adit/wire"
)

// DebugCommand returns the debug command with subcommands.
// Debug commands are opt-in diagnostic tools. They are read-only and never
// touch a device or the journal.
func DebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Diagnostic tools (wire)",
		Subcommands: []*cli.Command{
			debugWireCommand(),
		},
	}
}

// WireFieldInfo describes one field of the message schema.
type WireFieldInfo struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

// FramingModeInfo describes one framing mode and its defaults.
type FramingModeInfo struct {
	Mode            string `json:"mode"`
	MaxFrameDefault int    `json:"max_frame_default"`
	Notes           string `json:"notes"`
}

// WireExample is a worked example frame for comparing against captures.
type WireExample struct {
	Timestamp uint32 `json:"timestamp"`
	Data      string `json:"data"`
	FrameHex  string `json:"frame_hex"`
	JSON      string `json:"json"`
}

// DebugWireResponse describes the frame formats this build accepts.
type DebugWireResponse struct {
	Fields  []WireFieldInfo   `json:"fields"`
	Modes   []FramingModeInfo `json:"modes"`
	Example *WireExample      `json:"example,omitempty"`
}

func debugWireCommand() *cli.Command {
	return &cli.Command{
		Name:  "wire",
		Usage: "Show the wire format and framing defaults",
		Flags: append(ReadOnlyFlags(),
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Include a worked example frame",
			},
		),
		Action: debugWireAction,
	}
}

func debugWireAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for debug commands
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for debug commands", 1)
	}

	resp := DebugWireResponse{
		Fields: []WireFieldInfo{
			{Number: 1, Name: "timestamp", Type: "varint (uint32, unix seconds)"},
			{Number: 2, Name: "data", Type: "length-delimited (utf-8 string)"},
		},
		Modes: []FramingModeInfo{
			{
				Mode:            string(framing.ModeEvent),
				MaxFrameDefault: framing.DefaultEventMaxFrame,
				Notes:           "one receive event carries one whole frame",
			},
			{
				Mode:            string(framing.ModePrefix),
				MaxFrameDefault: framing.DefaultPrefixMaxFrame,
				Notes: fmt.Sprintf("%d-byte big-endian length prefix, %s assembly deadline",
					framing.LengthPrefixSize, framing.DefaultAssembleTimeout),
			},
		},
	}

	if c.Bool("verbose") {
		resp.Example = wireExample()
	}

	return r.Render(resp)
}

// wireExample encodes a fixed message so captures can be diffed against a
// known-good frame.
func wireExample() *WireExample {
	msg := &types.Message{Timestamp: 1727185234, Data: "Hello, world!"}
	frame := wire.Encode(msg)
	return &WireExample{
		Timestamp: msg.Timestamp,
		Data:      msg.Data,
		FrameHex:  hex.EncodeToString(frame),
		JSON:      fmt.Sprintf(`{"timestamp":%d,"data":%q}`, msg.Timestamp, msg.Data),
	}
}
