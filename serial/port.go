// Package serial abstracts the receive side of a serial link as an
// event-driven byte source. A Port surfaces data-ready and fault events
// from a bounded event queue and hands out buffered bytes on demand,
// mirroring how an interrupt-driven UART driver presents itself to a
// polling loop.
package serial

import (
	"context"
	"errors"
	"time"
)

// EventKind identifies what a queued port event reports.
type EventKind int

const (
	// EventDataReady reports bytes waiting in the receive buffer.
	EventDataReady EventKind = iota
	// EventOverflow reports that the hardware receive FIFO overflowed
	// and bytes were lost before the driver could drain them.
	EventOverflow
	// EventBufferFull reports that the driver ring buffer filled up and
	// newly arrived bytes were dropped.
	EventBufferFull
)

func (k EventKind) String() string {
	switch k {
	case EventDataReady:
		return "data_ready"
	case EventOverflow:
		return "overflow"
	case EventBufferFull:
		return "buffer_full"
	default:
		return "unknown"
	}
}

// Event is one entry from a port's event queue. Size is only meaningful
// for EventDataReady and reports the bytes pending when the event was
// posted.
type Event struct {
	Kind EventKind
	Size int
}

// ErrTimeout reports that a wait or read expired before anything arrived.
var ErrTimeout = errors.New("serial: timed out")

// ErrClosed reports an operation on a closed port.
var ErrClosed = errors.New("serial: port closed")

// Port is the receive side of a serial link. Implementations queue
// events in arrival order; the caller drains them one at a time and
// reads bytes only after a data-ready event, the way the original
// firmware loop serviced its driver queue.
//
// A Port is owned by a single consuming goroutine. WaitEvent honors
// context cancellation so a processing loop can shut down while parked
// on an idle link.
type Port interface {
	// WaitEvent blocks until an event is queued, the timeout elapses
	// (ErrTimeout), or ctx is done (ctx.Err()). A timeout <= 0 means
	// wait indefinitely.
	WaitEvent(ctx context.Context, timeout time.Duration) (Event, error)

	// Read copies up to len(p) buffered bytes into p, waiting up to
	// timeout for the buffer to become non-empty. It returns ErrTimeout
	// if nothing arrived in time.
	Read(p []byte, timeout time.Duration) (int, error)

	// Flush discards all buffered-but-unread bytes.
	Flush() error

	// ResetEvents discards all queued events.
	ResetEvents()

	Close() error
}
