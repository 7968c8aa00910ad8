// Package main provides the adit-send CLI entrypoint, the host-side
// transmitter for exercising a receiver without firmware in the loop.
//
// Usage:
//
//	adit-send --device <path> [options]
//
// With --message the frames are sent unattended; without it an
// interactive prompt reads one message per line until interrupted.
package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/adit/framing"
	"github.com/justapithecus/adit/serial"
	"github.com/justapithecus/adit/types"
	"github.com/justapithecus/adit/wire"
)

// maxEventData is the longest message that still fits the event frame
// cap with a five-byte timestamp varint.
const maxEventData = 112

func main() {
	app := &cli.App{
		Name:           "adit-send",
		Usage:          "Send telemetry frames to a serial device",
		Version:        types.Version,
		ExitErrHandler: exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "device",
				Usage:    "Serial device path, e.g. /dev/ttyUSB1",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "baud",
				Usage: "Baud rate",
				Value: 9600,
			},
			&cli.StringFlag{
				Name:  "framing",
				Usage: "Framing mode: event or prefix",
				Value: "event",
			},
			&cli.StringFlag{
				Name:  "message",
				Usage: "Message to send unattended (omit for interactive mode)",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Number of times to send --message",
				Value: 1,
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Pause between repeated sends",
			},
		},
		Action: sendAction,
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit
		os.Exit(1)
	}
}

func sendAction(c *cli.Context) error {
	mode := framing.Mode(c.String("framing"))
	if !mode.Valid() {
		return cli.Exit(fmt.Sprintf("invalid framing mode: %s (must be event or prefix)", mode), 1)
	}

	device := c.String("device")
	baud := c.Int("baud")

	port, err := serial.OpenDevice(device, baud)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open %s: %v", device, err), 1)
	}
	fmt.Printf("UART connection established on %s at %d baud\n", device, baud)

	// Mirror the receiver's signal handling: Ctrl+C closes the port and
	// ends the program cleanly.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		_ = port.Close()
		fmt.Println("\nUART connection closed")
		fmt.Println("Program stopped by user")
		os.Exit(0)
	}()

	if c.IsSet("message") {
		err = sendScripted(port, mode, c.String("message"), c.Int("count"), c.Duration("interval"), os.Stdout)
	} else {
		err = sendInteractive(port, mode, os.Stdin, os.Stdout)
	}

	closeErr := port.Close()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if closeErr != nil {
		return cli.Exit(closeErr.Error(), 1)
	}
	return nil
}

// sendInteractive reads one message per line from in and transmits each
// as a frame. Messages over the event cap are rejected with a warning
// and the loop continues, so a long paste cannot kill the session.
func sendInteractive(w io.Writer, mode framing.Mode, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "\n=== UART Message Sender ===")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Enter a message or hit Ctrl+C to finish program: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}
		msg := scanner.Text()

		if mode == framing.ModeEvent && len(msg) > maxEventData {
			fmt.Fprintln(out, "Message too long, please limit to less than 113 characters.")
			continue
		}

		ts := uint32(time.Now().UTC().Unix())
		frame, err := buildFrame(msg, ts, mode)
		if err != nil {
			fmt.Fprintf(out, "Message not sent: %v\n", err)
			continue
		}

		fmt.Fprintf(out, "Sending message: %d, %s\n", ts, msg)
		if _, err := w.Write(frame); err != nil {
			return fmt.Errorf("write failed: %w", err)
		}
	}
	return scanner.Err()
}

// sendScripted transmits message count times with interval between sends.
func sendScripted(w io.Writer, mode framing.Mode, message string, count int, interval time.Duration, out io.Writer) error {
	if count < 1 {
		count = 1
	}

	for i := 0; i < count; i++ {
		if i > 0 && interval > 0 {
			time.Sleep(interval)
		}

		ts := uint32(time.Now().UTC().Unix())
		frame, err := buildFrame(message, ts, mode)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Sending message: %d, %s\n", ts, message)
		if _, err := w.Write(frame); err != nil {
			return fmt.Errorf("write failed: %w", err)
		}
	}
	return nil
}

// buildFrame encodes one message as wire bytes in the given framing mode.
// Frames over the mode's cap are refused here so both the interactive and
// the scripted path enforce the same bound the receiver does.
func buildFrame(data string, ts uint32, mode framing.Mode) ([]byte, error) {
	frame := wire.Encode(&types.Message{Timestamp: ts, Data: data})

	switch mode {
	case framing.ModeEvent:
		if len(frame) > framing.DefaultEventMaxFrame {
			return nil, fmt.Errorf("frame of %d bytes exceeds event frame maximum %d",
				len(frame), framing.DefaultEventMaxFrame)
		}
		return frame, nil

	case framing.ModePrefix:
		if len(frame) > framing.DefaultPrefixMaxFrame {
			return nil, fmt.Errorf("frame of %d bytes exceeds prefix frame maximum %d",
				len(frame), framing.DefaultPrefixMaxFrame)
		}
		var buf bytes.Buffer
		if err := framing.WriteFrame(&buf, frame); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("invalid framing mode: %s", mode)
	}
}

// exitErrHandler handles errors from the CLI, respecting cli.ExitCoder.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// Only print if there's a real message (not just "exit status N")
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
