package policy

import (
	"context"

	"github.com/justapithecus/adit/types"
)

// NoopPolicy accepts deliveries without persisting them. It backs
// log-only sessions, where the loop's own log lines are the entire
// observable output and nothing is stored.
//
// Deliveries are counted as persisted even though nothing is written,
// so a log-only session reports clean totals in its summary.
type NoopPolicy struct {
	stats *statsRecorder
}

var _ Policy = (*NoopPolicy)(nil)

// NewNoopPolicy creates a no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{stats: newStatsRecorder()}
}

// Deliver accepts the delivery without persisting it.
func (p *NoopPolicy) Deliver(_ context.Context, _ *types.Delivery) error {
	p.stats.incTotal()
	p.stats.incPersisted(1)
	return nil
}

// Flush is a no-op.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns the policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}
