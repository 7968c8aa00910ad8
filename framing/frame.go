// Package framing turns the link byte stream into discrete message frames.
//
// Two framing modes exist. Event framing is the legacy link behavior:
// whatever bytes arrive in one data-ready event are one frame. It relies on
// the sender writing one message per transmission and the link not
// fragmenting it, and it breaks under coalescing; it is not a general
// framing protocol. Prefix framing is the robust replacement: every frame
// is preceded by a 4-byte big-endian payload length, assembled across reads
// and bounded by a deadline.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame size constants.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
	// DefaultEventMaxFrame is the event-mode frame cap. A single
	// data-ready event delivers at most one RX FIFO batch; 120 bytes is
	// the full threshold of a 128-byte FIFO, so anything larger cannot
	// be one complete message.
	DefaultEventMaxFrame = 120
	// DefaultPrefixMaxFrame is the prefix-mode payload cap.
	DefaultPrefixMaxFrame = 1024
)

// FrameErrorKind classifies framing errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding the configured cap.
	FrameErrorTooLarge
)

// String returns the kind as a stable label for logs and counters.
func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorPartial:
		return "partial"
	case FrameErrorTooLarge:
		return "too_large"
	default:
		return "unknown"
	}
}

// FrameError represents a framing error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFrameError returns true if the error is a FrameError of any kind.
func IsFrameError(err error) bool {
	var frameErr *FrameError
	return errors.As(err, &frameErr)
}

// FrameReader reads length-prefixed frames from a byte stream.
// It is the pull-side counterpart of PrefixAssembler, used where the
// stream is a file or pipe rather than an event-driven port.
type FrameReader struct {
	reader   io.Reader
	maxFrame int
}

// NewFrameReader creates a frame reader. maxFrame bounds the payload
// length; values < 1 fall back to DefaultPrefixMaxFrame.
func NewFrameReader(r io.Reader, maxFrame int) *FrameReader {
	if maxFrame < 1 {
		maxFrame = DefaultPrefixMaxFrame
	}
	return &FrameReader{reader: r, maxFrame: maxFrame}
}

// ReadFrame reads a single frame from the stream.
// Returns the raw payload bytes.
//
// Errors:
//   - io.EOF: stream ended cleanly at a frame boundary
//   - *FrameError with Kind=FrameErrorPartial: stream ended mid-frame
//   - *FrameError with Kind=FrameErrorTooLarge: declared length exceeds the cap
func (r *FrameReader) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(r.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > uint32(r.maxFrame) {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("declared payload size %d exceeds maximum %d", payloadSize, r.maxFrame),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(r.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// WriteFrame writes one length-prefixed frame to w.
// The payload may be empty; the receiver's decoder rejects empty frames,
// so senders should not write them outside of tests.
func WriteFrame(w io.Writer, payload []byte) error {
	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))

	if _, err := w.Write(lengthBuf[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}
