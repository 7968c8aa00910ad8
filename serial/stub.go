package serial

import (
	"context"
	"sync"
	"time"
)

// StubPort is a scripted Port for tests. Tests push data and fault
// events from the outside and observe how the consumer drained them.
// Unlike a real link it can script an Overflow, which no stream
// adapter can produce on its own.
type StubPort struct {
	mu     sync.Mutex
	notify chan struct{}
	queue  []Event
	data   []byte
	closed bool

	flushCount int
	resetCount int
}

var _ Port = (*StubPort)(nil)

// NewStubPort creates an empty stub port.
func NewStubPort() *StubPort {
	return &StubPort{notify: make(chan struct{})}
}

// PushData appends b to the readable buffer and queues a DataReady
// event sized to the bytes now pending.
func (s *StubPort) PushData(b []byte) {
	s.mu.Lock()
	s.data = append(s.data, b...)
	s.queue = append(s.queue, Event{Kind: EventDataReady, Size: len(s.data)})
	s.signalLocked()
	s.mu.Unlock()
}

// PushEvent queues a raw event, bypassing the data buffer. Use it to
// script Overflow and BufferFull faults.
func (s *StubPort) PushEvent(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.signalLocked()
	s.mu.Unlock()
}

func (s *StubPort) signalLocked() {
	close(s.notify)
	s.notify = make(chan struct{})
}

// WaitEvent implements Port.
func (s *StubPort) WaitEvent(ctx context.Context, timeout time.Duration) (Event, error) {
	var expire <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}

	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, nil
		}
		if s.closed {
			s.mu.Unlock()
			return Event{}, ErrClosed
		}
		ch := s.notify
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-expire:
			return Event{}, ErrTimeout
		}
	}
}

// Read implements Port. It never blocks: scripted data is either
// already there or the read times out immediately.
func (s *StubPort) Read(p []byte, _ time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if len(s.data) == 0 {
		return 0, ErrTimeout
	}
	n := copy(p, s.data)
	s.data = s.data[n:]
	return n, nil
}

// Flush implements Port.
func (s *StubPort) Flush() error {
	s.mu.Lock()
	s.flushCount++
	s.data = nil
	s.mu.Unlock()
	return nil
}

// ResetEvents implements Port.
func (s *StubPort) ResetEvents() {
	s.mu.Lock()
	s.resetCount++
	s.queue = nil
	s.mu.Unlock()
}

// Close implements Port.
func (s *StubPort) Close() error {
	s.mu.Lock()
	s.closed = true
	s.signalLocked()
	s.mu.Unlock()
	return nil
}

// FlushCount reports how many times Flush was called.
func (s *StubPort) FlushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushCount
}

// ResetCount reports how many times ResetEvents was called.
func (s *StubPort) ResetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetCount
}

// PendingData reports how many scripted bytes remain unread.
func (s *StubPort) PendingData() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
