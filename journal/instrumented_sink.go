package journal

import (
	"context"

	"github.com/justapithecus/adit/metrics"
	"github.com/justapithecus/adit/policy"
	"github.com/justapithecus/adit/types"
)

// InstrumentedSink wraps a policy.Sink and records journal write metrics.
// Each WriteDeliveries call increments journal_write_success or
// journal_write_failure on the metrics collector.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteDeliveries delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) WriteDeliveries(ctx context.Context, deliveries []*types.Delivery) error {
	err := s.inner.WriteDeliveries(ctx, deliveries)
	if err != nil {
		s.collector.IncJournalWriteFailure()
	} else {
		s.collector.IncJournalWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

// Verify InstrumentedSink implements policy.Sink.
var _ policy.Sink = (*InstrumentedSink)(nil)
