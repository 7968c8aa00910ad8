package policy

import (
	"context"

	"github.com/justapithecus/adit/types"
)

// StrictPolicy implements synchronous, unbuffered persistence.
//
//   - No buffering: each delivery is written immediately (batch of 1)
//   - No drops: every accepted delivery reaches the sink
//   - Backpressure: the processing loop blocks on sink latency
//   - Sink errors surface to the caller; the delivery is lost, not retried
type StrictPolicy struct {
	sink  Sink
	stats *statsRecorder
}

var _ Policy = (*StrictPolicy)(nil)

// NewStrictPolicy creates a strict policy writing to the given sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{
		sink:  sink,
		stats: newStatsRecorder(),
	}
}

// Deliver writes the delivery immediately to the sink.
func (p *StrictPolicy) Deliver(ctx context.Context, d *types.Delivery) error {
	p.stats.incTotal()

	if err := p.sink.WriteDeliveries(ctx, []*types.Delivery{d}); err != nil {
		p.stats.incErrors()
		return err
	}

	p.stats.incPersisted(1)
	return nil
}

// Flush is a no-op for strict policy (nothing is buffered).
func (p *StrictPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close closes the underlying sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}
