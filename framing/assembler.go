package framing

import (
	"encoding/binary"
	"fmt"
	"time"
)

// DefaultAssembleTimeout bounds how long a partial prefix frame may wait
// for its remaining bytes before it is treated as a framing failure.
const DefaultAssembleTimeout = time.Second

// Mode selects the framing behavior of a link.
type Mode string

const (
	// ModeEvent treats each data-ready read as one complete frame.
	ModeEvent Mode = "event"
	// ModePrefix assembles length-prefixed frames across reads.
	ModePrefix Mode = "prefix"
)

// Valid returns true for a known mode.
func (m Mode) Valid() bool {
	return m == ModeEvent || m == ModePrefix
}

// Assembler accumulates raw chunks into message frames.
//
// Feed consumes one chunk and returns the complete frames it yields, in
// order. Frames extracted before a framing error are still returned
// alongside the error. Expire enforces the assembly deadline; Reset drops
// any buffered partial state (used on stream faults so stale bytes never
// leak into the next frame).
type Assembler interface {
	Feed(p []byte) ([][]byte, error)
	Expire(now time.Time) error
	Pending() int
	Deadline() time.Time
	Reset()
}

// EventAssembler implements the legacy one-event-one-frame policy.
// It never buffers: each chunk is returned as a frame, including empty
// chunks (the decoder rejects empty frames downstream).
type EventAssembler struct {
	maxFrame int
}

// NewEventAssembler creates an event-mode assembler. maxFrame bounds the
// chunk length; values < 1 fall back to DefaultEventMaxFrame.
func NewEventAssembler(maxFrame int) *EventAssembler {
	if maxFrame < 1 {
		maxFrame = DefaultEventMaxFrame
	}
	return &EventAssembler{maxFrame: maxFrame}
}

// Feed returns the chunk as one frame.
// A chunk larger than the cap cannot be a single complete message and is
// dropped as a framing error rather than handed to the decoder.
func (a *EventAssembler) Feed(p []byte) ([][]byte, error) {
	if len(p) > a.maxFrame {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("read of %d bytes exceeds event frame maximum %d", len(p), a.maxFrame),
		}
	}
	frame := make([]byte, len(p))
	copy(frame, p)
	return [][]byte{frame}, nil
}

// Expire is a no-op: event frames never span reads.
func (a *EventAssembler) Expire(time.Time) error { return nil }

// Pending always reports zero: event frames never span reads.
func (a *EventAssembler) Pending() int { return 0 }

// Deadline always reports zero: event frames never span reads.
func (a *EventAssembler) Deadline() time.Time { return time.Time{} }

// Reset is a no-op: the assembler holds no state.
func (a *EventAssembler) Reset() {}

// PrefixAssembler assembles length-prefixed frames across reads.
//
// Bytes accumulate until the declared payload length is satisfied; one
// Feed may therefore yield zero frames or several. A frame left
// incomplete past the assembly deadline is dropped as a partial-frame
// error. After any drop the stream resyncs only at the next clean frame
// boundary; intervening bytes surface as framing or decode errors.
type PrefixAssembler struct {
	maxFrame int
	timeout  time.Duration
	clock    func() time.Time

	buf      []byte
	deadline time.Time
}

// NewPrefixAssembler creates a prefix-mode assembler. maxFrame bounds the
// declared payload length (values < 1 fall back to
// DefaultPrefixMaxFrame); timeout bounds partial-frame assembly (values
// <= 0 fall back to DefaultAssembleTimeout).
func NewPrefixAssembler(maxFrame int, timeout time.Duration) *PrefixAssembler {
	if maxFrame < 1 {
		maxFrame = DefaultPrefixMaxFrame
	}
	if timeout <= 0 {
		timeout = DefaultAssembleTimeout
	}
	return &PrefixAssembler{
		maxFrame: maxFrame,
		timeout:  timeout,
		clock:    time.Now,
	}
}

// Feed appends the chunk and extracts every complete frame it unlocks.
func (a *PrefixAssembler) Feed(p []byte) ([][]byte, error) {
	a.buf = append(a.buf, p...)

	var frames [][]byte
	for {
		if len(a.buf) < LengthPrefixSize {
			break
		}

		payloadSize := binary.BigEndian.Uint32(a.buf[:LengthPrefixSize])
		if payloadSize > uint32(a.maxFrame) {
			// Unrecoverable without a clean boundary: drop everything
			// buffered and let the stream resync.
			a.reset()
			return frames, &FrameError{
				Kind: FrameErrorTooLarge,
				Msg:  fmt.Sprintf("declared payload size %d exceeds maximum %d", payloadSize, a.maxFrame),
			}
		}

		total := LengthPrefixSize + int(payloadSize)
		if len(a.buf) < total {
			break
		}

		frame := make([]byte, payloadSize)
		copy(frame, a.buf[LengthPrefixSize:total])
		a.buf = a.buf[total:]
		frames = append(frames, frame)
	}

	if len(a.buf) > 0 {
		// A partial frame is pending; (re)arm its deadline. Progress on
		// an already-pending frame does not extend the deadline: the
		// whole frame must land within one timeout window.
		if a.deadline.IsZero() {
			a.deadline = a.clock().Add(a.timeout)
		}
	} else {
		a.deadline = time.Time{}
	}

	return frames, nil
}

// Expire drops a partial frame whose deadline has passed.
// Returns the partial-frame error when an expiry happened, nil otherwise.
func (a *PrefixAssembler) Expire(now time.Time) error {
	if len(a.buf) == 0 || a.deadline.IsZero() || now.Before(a.deadline) {
		return nil
	}
	pending := len(a.buf)
	a.reset()
	return &FrameError{
		Kind: FrameErrorPartial,
		Msg:  fmt.Sprintf("incomplete frame of %d bytes expired", pending),
	}
}

// Pending reports the number of buffered bytes awaiting frame completion.
func (a *PrefixAssembler) Pending() int { return len(a.buf) }

// Deadline reports when the pending partial frame expires.
// Zero when no partial frame is pending.
func (a *PrefixAssembler) Deadline() time.Time { return a.deadline }

// Reset drops all buffered state.
func (a *PrefixAssembler) Reset() { a.reset() }

func (a *PrefixAssembler) reset() {
	a.buf = nil
	a.deadline = time.Time{}
}
