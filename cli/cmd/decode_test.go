package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/justapithecus/adit/framing"
	"github.com/justapithecus/adit/types"
	"github.com/justapithecus/adit/wire"
)

// writeFrames length-prefixes each payload into one stream.
func writeFrames(t *testing.T, payloads ...[]byte) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	for _, p := range payloads {
		if err := framing.WriteFrame(&buf, p); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	return &buf
}

func TestDecodeStream_PrefixFrames(t *testing.T) {
	in := writeFrames(t,
		wire.Encode(&types.Message{Timestamp: 100, Data: "one"}),
		wire.Encode(&types.Message{Timestamp: 200, Data: "two"}),
	)

	var out, errOut bytes.Buffer
	stats, err := decodeStream(in, &out, &errOut, decodeOptions{})
	if err != nil {
		t.Fatalf("decodeStream: %v", err)
	}

	if stats.frames != 2 || stats.decoded != 2 || stats.failed != 0 {
		t.Errorf("stats = %+v, want 2 frames, 2 decoded, 0 failed", stats)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != `{"timestamp":100,"data":"one"}` {
		t.Errorf("line 0 = %s", lines[0])
	}
	if lines[1] != `{"timestamp":200,"data":"two"}` {
		t.Errorf("line 1 = %s", lines[1])
	}
	if errOut.Len() != 0 {
		t.Errorf("unexpected stderr output: %s", errOut.String())
	}
}

func TestDecodeStream_EmptyInput(t *testing.T) {
	var out bytes.Buffer
	stats, err := decodeStream(strings.NewReader(""), &out, &out, decodeOptions{})
	if err != nil {
		t.Fatalf("decodeStream: %v", err)
	}
	if stats.frames != 0 || out.Len() != 0 {
		t.Errorf("empty input should produce nothing, got stats=%+v out=%q", stats, out.String())
	}
}

func TestDecodeStream_Legacy(t *testing.T) {
	frame := wire.Encode(&types.Message{Timestamp: 42, Data: "raw capture"})

	var out bytes.Buffer
	stats, err := decodeStream(bytes.NewReader(frame), &out, &out, decodeOptions{legacy: true})
	if err != nil {
		t.Fatalf("decodeStream: %v", err)
	}
	if stats.decoded != 1 {
		t.Fatalf("decoded = %d, want 1", stats.decoded)
	}
	if got := strings.TrimRight(out.String(), "\n"); got != `{"timestamp":42,"data":"raw capture"}` {
		t.Errorf("output = %s", got)
	}
}

func TestDecodeStream_LegacyEmptyInput(t *testing.T) {
	var out bytes.Buffer
	stats, err := decodeStream(strings.NewReader(""), &out, &out, decodeOptions{legacy: true})
	if err != nil {
		t.Fatalf("decodeStream: %v", err)
	}
	if stats.frames != 0 {
		t.Errorf("frames = %d, want 0", stats.frames)
	}
}

func TestDecodeStream_MalformedFrameStops(t *testing.T) {
	in := writeFrames(t,
		wire.Encode(&types.Message{Timestamp: 100, Data: "good"}),
		[]byte{0xff, 0xff, 0xff},
		wire.Encode(&types.Message{Timestamp: 300, Data: "unreached"}),
	)

	var out, errOut bytes.Buffer
	stats, err := decodeStream(in, &out, &errOut, decodeOptions{})
	if err == nil {
		t.Fatal("expected error on malformed frame")
	}
	if !strings.Contains(err.Error(), "frame 2") {
		t.Errorf("error should name the failing frame, got: %v", err)
	}
	if stats.decoded != 1 {
		t.Errorf("decoded = %d, want 1 (first frame only)", stats.decoded)
	}
}

func TestDecodeStream_KeepGoing(t *testing.T) {
	in := writeFrames(t,
		wire.Encode(&types.Message{Timestamp: 100, Data: "good"}),
		[]byte{0xff, 0xff, 0xff},
		wire.Encode(&types.Message{Timestamp: 300, Data: "also good"}),
	)

	var out, errOut bytes.Buffer
	stats, err := decodeStream(in, &out, &errOut, decodeOptions{keepGoing: true})
	if err != nil {
		t.Fatalf("decodeStream with keep-going: %v", err)
	}

	if stats.frames != 3 || stats.decoded != 2 || stats.failed != 1 {
		t.Errorf("stats = %+v, want 3 frames, 2 decoded, 1 failed", stats)
	}
	if !strings.Contains(errOut.String(), "frame 2") {
		t.Errorf("stderr should report the failing frame, got: %s", errOut.String())
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d output lines, want 2", len(lines))
	}
	if !strings.Contains(lines[1], "also good") {
		t.Errorf("decoding should continue past the bad frame, got: %s", lines[1])
	}
}

// A truncated stream is a framing error, not a message error: keep-going
// cannot recover it because the next boundary is unknown.
func TestDecodeStream_TruncatedFrameAlwaysFatal(t *testing.T) {
	in := writeFrames(t, wire.Encode(&types.Message{Timestamp: 100, Data: "good"}))
	in.Write([]byte{0x00, 0x00}) // half a length prefix

	var out, errOut bytes.Buffer
	_, err := decodeStream(in, &out, &errOut, decodeOptions{keepGoing: true})
	if err == nil {
		t.Fatal("expected error for truncated stream")
	}

	var fe *framing.FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("expected a FrameError, got %T: %v", err, err)
	}
	if fe.Kind != framing.FrameErrorPartial {
		t.Errorf("kind = %v, want partial", fe.Kind)
	}
}

func TestDecodeStream_OversizedFrame(t *testing.T) {
	in := writeFrames(t, bytes.Repeat([]byte{0x61}, 64))

	var out, errOut bytes.Buffer
	_, err := decodeStream(in, &out, &errOut, decodeOptions{maxFrame: 16})
	if err == nil {
		t.Fatal("expected error for oversized frame")
	}

	var fe *framing.FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("expected a FrameError, got %T: %v", err, err)
	}
	if fe.Kind != framing.FrameErrorTooLarge {
		t.Errorf("kind = %v, want too large", fe.Kind)
	}
}

func TestDecodeAction_MissingFile(t *testing.T) {
	app := newTestApp()

	err := app.Run([]string{"adit", "decode", "/nonexistent/capture.bin"})
	if err == nil {
		t.Fatal("expected error for missing input file")
	}
	if !strings.Contains(err.Error(), "failed to open input") {
		t.Errorf("error should mention the open failure, got: %v", err)
	}
}
