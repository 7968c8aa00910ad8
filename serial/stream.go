package serial

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	// DefaultRingSize bounds the receive buffer between the reader
	// goroutine and the consumer, matching the working-buffer size the
	// link was tuned for.
	DefaultRingSize = 256

	// DefaultQueueDepth bounds the event queue.
	DefaultQueueDepth = 5
)

// StreamPort adapts any io.ReadWriteCloser (a tty, a pipe, a socket)
// into a Port. A reader goroutine pumps the underlying stream into a
// bounded ring buffer and posts DataReady events onto a bounded queue.
// When the ring fills, arriving bytes are dropped and a BufferFull
// event is posted, reproducing the failure mode of a saturated driver.
type StreamPort struct {
	rwc io.ReadWriteCloser

	ringSize   int
	queueDepth int

	mu     sync.Mutex
	notify chan struct{}
	ring   []byte
	queue  []Event
	err    error
	closed bool
}

var _ Port = (*StreamPort)(nil)

// NewStreamPort wraps rwc and starts its reader goroutine. A ringSize
// or queueDepth of 0 selects the default.
func NewStreamPort(rwc io.ReadWriteCloser, ringSize, queueDepth int) *StreamPort {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	p := &StreamPort{
		rwc:        rwc,
		ringSize:   ringSize,
		queueDepth: queueDepth,
		notify:     make(chan struct{}),
		ring:       make([]byte, 0, ringSize),
		queue:      make([]Event, 0, queueDepth),
	}
	go p.pump()
	return p
}

// pump moves bytes from the underlying stream into the ring until the
// stream errors out or the port is closed.
func (p *StreamPort) pump() {
	buf := make([]byte, p.ringSize)
	for {
		n, err := p.rwc.Read(buf)
		if n > 0 {
			p.ingest(buf[:n])
		}
		if err != nil {
			p.mu.Lock()
			if !p.closed && p.err == nil {
				p.err = fmt.Errorf("serial: read: %w", err)
			}
			p.signalLocked()
			p.mu.Unlock()
			return
		}
	}
}

func (p *StreamPort) ingest(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	take := p.ringSize - len(p.ring)
	if take > len(b) {
		take = len(b)
	}
	if take > 0 {
		p.ring = append(p.ring, b[:take]...)
		p.postDataLocked()
	}
	if take < len(b) {
		p.postFaultLocked(EventBufferFull)
	}
	p.signalLocked()
}

// postDataLocked announces the ring's current fill level. If the newest
// queued event is already a DataReady it is updated in place rather
// than queued again, so a slow consumer sees one coalesced event
// instead of a flood.
func (p *StreamPort) postDataLocked() {
	if n := len(p.queue); n > 0 && p.queue[n-1].Kind == EventDataReady {
		p.queue[n-1].Size = len(p.ring)
		return
	}
	p.appendEventLocked(Event{Kind: EventDataReady, Size: len(p.ring)})
}

func (p *StreamPort) postFaultLocked(kind EventKind) {
	p.appendEventLocked(Event{Kind: kind})
}

// appendEventLocked enqueues ev, dropping the oldest entry when the
// queue is saturated so faults are never silently lost.
func (p *StreamPort) appendEventLocked(ev Event) {
	if len(p.queue) >= p.queueDepth {
		copy(p.queue, p.queue[1:])
		p.queue = p.queue[:len(p.queue)-1]
	}
	p.queue = append(p.queue, ev)
}

// signalLocked wakes every goroutine parked on the notify channel.
func (p *StreamPort) signalLocked() {
	close(p.notify)
	p.notify = make(chan struct{})
}

// WaitEvent implements Port.
func (p *StreamPort) WaitEvent(ctx context.Context, timeout time.Duration) (Event, error) {
	var expire <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}

	for {
		p.mu.Lock()
		if len(p.queue) > 0 {
			ev := p.queue[0]
			copy(p.queue, p.queue[1:])
			p.queue = p.queue[:len(p.queue)-1]
			p.mu.Unlock()
			return ev, nil
		}
		if p.closed {
			p.mu.Unlock()
			return Event{}, ErrClosed
		}
		if p.err != nil {
			err := p.err
			p.mu.Unlock()
			return Event{}, err
		}
		ch := p.notify
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-expire:
			return Event{}, ErrTimeout
		}
	}
}

// Read implements Port.
func (p *StreamPort) Read(b []byte, timeout time.Duration) (int, error) {
	var expire <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}

	for {
		p.mu.Lock()
		if len(p.ring) > 0 {
			n := copy(b, p.ring)
			rest := copy(p.ring, p.ring[n:])
			p.ring = p.ring[:rest]
			if len(p.ring) > 0 {
				// Bytes the caller did not take stay announced.
				p.postDataLocked()
			}
			p.mu.Unlock()
			return n, nil
		}
		if p.closed {
			p.mu.Unlock()
			return 0, ErrClosed
		}
		if p.err != nil {
			err := p.err
			p.mu.Unlock()
			return 0, err
		}
		ch := p.notify
		p.mu.Unlock()

		select {
		case <-ch:
		case <-expire:
			return 0, ErrTimeout
		}
	}
}

// Flush implements Port.
func (p *StreamPort) Flush() error {
	p.mu.Lock()
	p.ring = p.ring[:0]
	p.mu.Unlock()
	return nil
}

// ResetEvents implements Port.
func (p *StreamPort) ResetEvents() {
	p.mu.Lock()
	p.queue = p.queue[:0]
	p.mu.Unlock()
}

// Close implements Port. It also closes the underlying stream, which
// unblocks the reader goroutine.
func (p *StreamPort) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.signalLocked()
	p.mu.Unlock()
	return p.rwc.Close()
}

// Write sends bytes out on the underlying stream. The receive pipeline
// never writes; this exists for the host-side sender.
func (p *StreamPort) Write(b []byte) (int, error) {
	return p.rwc.Write(b)
}
