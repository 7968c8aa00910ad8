// Package pipeline drives the receive side of a serial link: port events
// in, deliveries out.
//
// A Pipeline is a flat dispatch loop owned by exactly one goroutine. It
// parks on the port's event queue, services data-ready events through the
// assembler, decoder, and renderer, and routes stream faults to the reset
// path. At most one message is in flight at a time; a second link gets its
// own Pipeline instance, nothing is shared.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/adit/framing"
	"github.com/justapithecus/adit/log"
	"github.com/justapithecus/adit/metrics"
	"github.com/justapithecus/adit/policy"
	"github.com/justapithecus/adit/serial"
)

const (
	// DefaultReadBufferSize is the reusable read buffer capacity. The
	// original link was tuned for a 256-byte working buffer.
	DefaultReadBufferSize = 256

	// DefaultReadTimeout bounds a single read after a data-ready event.
	// Announced bytes are already buffered, so the read returns at once;
	// the timeout only matters when the buffer was flushed in between.
	DefaultReadTimeout = 100 * time.Millisecond
)

// LinkError classifies loop termination for outcome determination.
// Run never returns during normal operation; every return carries one.
type LinkError struct {
	// Kind indicates whether the loop was canceled or the byte source failed.
	Kind LinkErrorKind
	// Err is the underlying error.
	Err error
}

// LinkErrorKind classifies loop termination errors.
type LinkErrorKind int

const (
	// LinkErrorPort indicates an unrecoverable byte-source failure.
	LinkErrorPort LinkErrorKind = iota
	// LinkErrorCanceled indicates context cancellation, the one graceful exit.
	LinkErrorCanceled
)

func (e *LinkError) Error() string {
	return e.Err.Error()
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// IsCanceled returns true if the loop exited on context cancellation.
func IsCanceled(err error) bool {
	var linkErr *LinkError
	if errors.As(err, &linkErr) {
		return linkErr.Kind == LinkErrorCanceled
	}
	return false
}

// IsPortError returns true if the loop exited on a byte-source failure.
func IsPortError(err error) bool {
	var linkErr *LinkError
	if errors.As(err, &linkErr) {
		return linkErr.Kind == LinkErrorPort
	}
	return false
}

// Config configures a Pipeline.
type Config struct {
	// Port is the byte source. Required.
	Port serial.Port

	// Assembler turns raw chunks into message frames. Required.
	Assembler framing.Assembler

	// Policy receives every successfully processed delivery. Required.
	Policy policy.Policy

	// Logger receives pipeline log output. Required.
	Logger *log.Logger

	// Collector records pipeline counters. Nil runs unmetered (all
	// Collector methods are nil-safe).
	Collector *metrics.Collector

	// FaultRecorder persists stream faults to the journal. Nil disables
	// fault journaling. Recorder failures never stop the loop.
	FaultRecorder FaultRecorder

	// ReadBufferSize is the reusable read buffer capacity in bytes.
	// Zero selects DefaultReadBufferSize; negative is invalid.
	ReadBufferSize int

	// ReadTimeout bounds a single port read after a data-ready event.
	// Zero selects DefaultReadTimeout; negative is invalid.
	ReadTimeout time.Duration

	// FlushAfterDecode discards residual port bytes after each
	// successfully decoded frame. This is the legacy event-mode behavior;
	// it must stay off in prefix mode, where it would destroy bytes of
	// frames already in flight.
	FlushAfterDecode bool
}

// Pipeline is the long-running processing loop for one link.
//
// The loop has two states: parked on the event queue, and dispatching one
// event. Frame, message, and buffer state need no locks because a single
// goroutine owns the whole instance.
type Pipeline struct {
	port      serial.Port
	assembler framing.Assembler
	policy    policy.Policy
	logger    *log.Logger
	collector *metrics.Collector
	faults    FaultRecorder

	readBuf          []byte
	readTimeout      time.Duration
	flushAfterDecode bool

	// seq numbers deliveries within the session, starting at 1.
	seq uint64
}

// New creates a Pipeline. Configuration is validated once here; Run
// assumes a valid instance.
func New(config *Config) (*Pipeline, error) {
	if config.Port == nil {
		return nil, errors.New("pipeline: port is required")
	}
	if config.Assembler == nil {
		return nil, errors.New("pipeline: assembler is required")
	}
	if config.Policy == nil {
		return nil, errors.New("pipeline: policy is required")
	}
	if config.Logger == nil {
		return nil, errors.New("pipeline: logger is required")
	}

	bufSize := config.ReadBufferSize
	switch {
	case bufSize < 0:
		return nil, fmt.Errorf("pipeline: read buffer size %d is invalid", bufSize)
	case bufSize == 0:
		bufSize = DefaultReadBufferSize
	}

	readTimeout := config.ReadTimeout
	switch {
	case readTimeout < 0:
		return nil, fmt.Errorf("pipeline: read timeout %s is invalid", readTimeout)
	case readTimeout == 0:
		readTimeout = DefaultReadTimeout
	}

	return &Pipeline{
		port:             config.Port,
		assembler:        config.Assembler,
		policy:           config.Policy,
		logger:           config.Logger,
		collector:        config.Collector,
		faults:           config.FaultRecorder,
		readBuf:          make([]byte, bufSize),
		readTimeout:      readTimeout,
		flushAfterDecode: config.FlushAfterDecode,
	}, nil
}

// Run runs the processing loop until the context is canceled or the byte
// source fails. Normal operation never returns.
//
// Returns:
//   - *LinkError with Kind=LinkErrorCanceled: ctx canceled (graceful exit)
//   - *LinkError with Kind=LinkErrorPort: unrecoverable byte-source failure
func (p *Pipeline) Run(ctx context.Context) error {
	// Residual bytes and stale events from before this session must never
	// reach the assembler.
	if err := p.port.Flush(); err != nil {
		return &LinkError{
			Kind: LinkErrorPort,
			Err:  fmt.Errorf("flush port: %w", err),
		}
	}
	p.port.ResetEvents()

	p.logger.Info("pipeline started, waiting for incoming data", map[string]any{
		"read_buffer_bytes": len(p.readBuf),
	})

	for {
		ev, err := p.port.WaitEvent(ctx, p.waitTimeout())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return &LinkError{
					Kind: LinkErrorCanceled,
					Err:  ctxErr,
				}
			}
			if errors.Is(err, serial.ErrTimeout) {
				// The wait is bounded only while a partial frame is
				// pending; its deadline may have passed.
				p.expirePartial()
				continue
			}
			p.logger.Error("port failure", map[string]any{
				"error": err.Error(),
			})
			return &LinkError{
				Kind: LinkErrorPort,
				Err:  fmt.Errorf("wait event: %w", err),
			}
		}

		switch ev.Kind {
		case serial.EventDataReady:
			p.onDataReady(ctx, ev.Size)
		case serial.EventOverflow, serial.EventBufferFull:
			p.handleFault(ctx, ev.Kind)
		}
	}
}

// waitTimeout bounds the event wait while a partial prefix frame is
// pending, so the frame's assembly deadline can fire even on an idle
// link. With no partial pending the wait is unbounded.
func (p *Pipeline) waitTimeout() time.Duration {
	deadline := p.assembler.Deadline()
	if deadline.IsZero() {
		return 0
	}
	d := time.Until(deadline)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// expirePartial asks the assembler whether its pending partial frame has
// outlived the assembly deadline, and records the drop if so.
func (p *Pipeline) expirePartial() {
	if err := p.assembler.Expire(time.Now()); err != nil {
		p.handleFramingError(err)
	}
}

// onDataReady services one data-ready event: one bounded read, then every
// complete frame the assembler yields gets a full, non-interleaved message
// lifecycle before the loop returns to the event queue.
func (p *Pipeline) onDataReady(ctx context.Context, size int) {
	buf := p.readBuf
	if size > 0 && size < len(buf) {
		buf = buf[:size]
	}

	n, err := p.port.Read(buf, p.readTimeout)
	if err != nil {
		if errors.Is(err, serial.ErrTimeout) {
			// Announced bytes vanished before the read, e.g. a flush got
			// there first. Nothing to assemble.
			return
		}
		p.logger.Warn("port read failed", map[string]any{
			"error": err.Error(),
		})
		return
	}

	p.collector.IncChunkRead()
	p.collector.AddBytesRead(n)

	frames, ferr := p.assembler.Feed(buf[:n])

	decoded := false
	for _, frame := range frames {
		p.collector.IncFrameAssembled()
		if status, _ := p.Process(ctx, frame); status != StatusEmpty && status != StatusDecodeError {
			decoded = true
		}
	}

	// Frames extracted before a framing error were still processed above.
	if ferr != nil {
		p.handleFramingError(ferr)
	}

	if decoded && p.flushAfterDecode {
		// Legacy event-mode behavior: a successful decode clears whatever
		// the port buffered meanwhile. A failed decode leaves it alone.
		_ = p.port.Flush()
	}
}

// handleFramingError records a dropped frame. Framing failures are local:
// the stream resyncs at the next clean boundary and the loop continues.
func (p *Pipeline) handleFramingError(err error) {
	kind := "unknown"
	var frameErr *framing.FrameError
	if errors.As(err, &frameErr) {
		kind = frameErr.Kind.String()
	}
	p.logger.Warn("framing error", map[string]any{
		"kind":  kind,
		"error": err.Error(),
	})
	p.collector.IncFramingError(kind)
}
