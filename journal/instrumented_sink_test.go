package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/justapithecus/adit/metrics"
	"github.com/justapithecus/adit/types"
)

// failingSink is a test double that returns errors on writes.
type failingSink struct {
	writeErr error
	closed   bool
}

func (s *failingSink) WriteDeliveries(_ context.Context, _ []*types.Delivery) error {
	return s.writeErr
}

func (s *failingSink) Close() error {
	s.closed = true
	return nil
}

// successSink is a test double that accepts all writes.
type successSink struct {
	writeCalls int
	closed     bool
}

func (s *successSink) WriteDeliveries(_ context.Context, _ []*types.Delivery) error {
	s.writeCalls++
	return nil
}

func (s *successSink) Close() error {
	s.closed = true
	return nil
}

func TestInstrumentedSink_WriteSuccess(t *testing.T) {
	inner := &successSink{}
	collector := metrics.NewCollector("strict", "event", "fs", "sess-001", "/dev/ttyUSB0")
	sink := NewInstrumentedSink(inner, collector)

	if err := sink.WriteDeliveries(t.Context(), []*types.Delivery{testDelivery(1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := collector.Snapshot()
	if snap.JournalWriteSuccess != 1 {
		t.Errorf("JournalWriteSuccess = %d, want 1", snap.JournalWriteSuccess)
	}
	if snap.JournalWriteFailure != 0 {
		t.Errorf("JournalWriteFailure = %d, want 0", snap.JournalWriteFailure)
	}
	if inner.writeCalls != 1 {
		t.Errorf("inner.writeCalls = %d, want 1", inner.writeCalls)
	}
}

func TestInstrumentedSink_WriteFailure(t *testing.T) {
	writeErr := errors.New("disk full")
	inner := &failingSink{writeErr: writeErr}
	collector := metrics.NewCollector("strict", "event", "fs", "sess-001", "/dev/ttyUSB0")
	sink := NewInstrumentedSink(inner, collector)

	err := sink.WriteDeliveries(t.Context(), []*types.Delivery{testDelivery(1)})
	if !errors.Is(err, writeErr) {
		t.Fatalf("expected %v, got %v", writeErr, err)
	}

	snap := collector.Snapshot()
	if snap.JournalWriteSuccess != 0 {
		t.Errorf("JournalWriteSuccess = %d, want 0", snap.JournalWriteSuccess)
	}
	if snap.JournalWriteFailure != 1 {
		t.Errorf("JournalWriteFailure = %d, want 1", snap.JournalWriteFailure)
	}
}

func TestInstrumentedSink_CloseDelegates(t *testing.T) {
	inner := &successSink{}
	collector := metrics.NewCollector("strict", "event", "fs", "sess-001", "/dev/ttyUSB0")
	sink := NewInstrumentedSink(inner, collector)

	if err := sink.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inner.closed {
		t.Error("Close should delegate to inner sink")
	}
}

func TestInstrumentedSink_CountsPerCall(t *testing.T) {
	// Counters are per WriteDeliveries call, not per delivery.
	inner := &successSink{}
	collector := metrics.NewCollector("buffered", "event", "fs", "sess-001", "/dev/ttyUSB0")
	sink := NewInstrumentedSink(inner, collector)

	for range 3 {
		batch := []*types.Delivery{testDelivery(1), testDelivery(2)}
		if err := sink.WriteDeliveries(t.Context(), batch); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	snap := collector.Snapshot()
	if snap.JournalWriteSuccess != 3 {
		t.Errorf("JournalWriteSuccess = %d, want 3", snap.JournalWriteSuccess)
	}
}
