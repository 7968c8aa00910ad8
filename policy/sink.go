package policy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/justapithecus/adit/types"
)

// Sink abstracts where deliveries land. Implementations write to a
// stream, forward to adapters, persist to the journal, or stub for
// testing.
//
// Methods are batch-oriented to serve both strict (batch of 1) and
// buffered policies.
type Sink interface {
	// WriteDeliveries persists a batch of deliveries.
	// Must preserve ordering within the batch.
	// Returns an error on failure; the caller decides what to do.
	WriteDeliveries(ctx context.Context, ds []*types.Delivery) error

	// Close releases any resources held by the sink.
	Close() error
}

// LogSink emits each delivery's rendered JSON as one line on a writer,
// stdout by default. It is the default sink: on the original link the
// loop's printed output was the only place messages went.
type LogSink struct {
	mu sync.Mutex
	w  io.Writer
}

var _ Sink = (*LogSink)(nil)

// NewLogSink creates a log sink writing to w. A nil w selects stdout.
func NewLogSink(w io.Writer) *LogSink {
	if w == nil {
		w = os.Stdout
	}
	return &LogSink{w: w}
}

// WriteDeliveries writes one JSON line per delivery.
func (s *LogSink) WriteDeliveries(_ context.Context, ds []*types.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range ds {
		if _, err := fmt.Fprintln(s.w, d.JSON); err != nil {
			return fmt.Errorf("write delivery line: %w", err)
		}
	}
	return nil
}

// Close is a no-op; the sink does not own its writer.
func (s *LogSink) Close() error {
	return nil
}

// FanoutSink writes every batch to several sinks in order. All sinks
// are attempted even when one fails; the errors are joined.
type FanoutSink struct {
	sinks []Sink
}

var _ Sink = (*FanoutSink)(nil)

// NewFanoutSink composes sinks into one. Order is preserved: each
// batch reaches the sinks in the order they were given.
func NewFanoutSink(sinks ...Sink) *FanoutSink {
	return &FanoutSink{sinks: sinks}
}

// WriteDeliveries forwards the batch to every sink.
func (s *FanoutSink) WriteDeliveries(ctx context.Context, ds []*types.Delivery) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.WriteDeliveries(ctx, ds); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, joining the errors.
func (s *FanoutSink) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StubSink is a test sink that accepts writes without persisting.
// It tracks write statistics for test assertions.
type StubSink struct {
	mu sync.Mutex

	// DeliveriesWritten is the total count of deliveries written.
	DeliveriesWritten int64
	// Batches is the number of WriteDeliveries calls.
	Batches int64
	// Closed indicates whether Close was called.
	Closed bool

	// Written stores all written deliveries in write order.
	Written []*types.Delivery

	// ErrorOnWrite, if non-nil, is returned by WriteDeliveries.
	ErrorOnWrite error
}

var _ Sink = (*StubSink)(nil)

// NewStubSink creates a stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{
		Written: make([]*types.Delivery, 0),
	}
}

// WriteDeliveries records the deliveries without persisting.
func (s *StubSink) WriteDeliveries(_ context.Context, ds []*types.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	s.Batches++
	s.DeliveriesWritten += int64(len(ds))
	s.Written = append(s.Written, ds...)

	return nil
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StubSinkStats{
		DeliveriesWritten: s.DeliveriesWritten,
		Batches:           s.Batches,
		Closed:            s.Closed,
	}
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	DeliveriesWritten int64
	Batches           int64
	Closed            bool
}
