// Package policy defines how decoded deliveries move from the
// processing loop to their sinks.
package policy

import (
	"context"
	"sync"

	"github.com/justapithecus/adit/types"
)

// Policy decides when a delivery handed over by the processing loop
// reaches the sinks. Policies own buffering and drop behavior; they
// never reorder deliveries and never mutate them.
//
// On a receive-only telemetry link there is no upstream to push back
// on: when a bounded buffer fills, the policy sheds the oldest data
// and keeps the newest. A policy error never terminates the loop; the
// caller logs it, counts it, and carries on.
type Policy interface {
	// Deliver hands one delivery to the policy. Strict policies write
	// through; buffered policies may hold it. An error means the
	// delivery was not accepted and will not be retried.
	Deliver(ctx context.Context, d *types.Delivery) error

	// Flush forces buffered deliveries out to the sink.
	// Called on session shutdown and by internal flush triggers.
	Flush(ctx context.Context) error

	// Close flushes remaining data and releases the sink.
	Close() error

	// Stats returns an atomic snapshot of policy counters.
	// All counters in the returned Stats are consistent with each other.
	Stats() Stats
}

// Stats represents policy observability counters.
type Stats struct {
	// TotalDeliveries is the number of deliveries handed to the policy.
	TotalDeliveries int64
	// Persisted is the number of deliveries written to the sink.
	Persisted int64
	// Dropped is the number of deliveries shed without reaching the sink.
	Dropped int64
	// DroppedByReason maps drop reasons to counts.
	DroppedByReason map[string]int64
	// BufferSize is the current buffer size in estimated bytes.
	BufferSize int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the count of non-fatal errors encountered.
	Errors int64
}

// Drop reasons recorded in Stats.DroppedByReason.
const (
	// DropReasonEvicted marks a buffered delivery shed to admit a newer one.
	DropReasonEvicted = "evicted"
	// DropReasonOversize marks a delivery larger than the whole byte budget.
	DropReasonOversize = "oversize"
)

// statsRecorder is an internal helper for thread-safe stats management.
// Policies call explicit methods to record mutations; the recorder does
// not infer or automate any policy decisions.
//
// Lock discipline:
//   - StrictPolicy uses the locking methods (incTotal, snapshot, etc.)
//   - BufferedPolicy uses the Locked methods (incTotalLocked,
//     snapshotLocked, etc.) only while holding BufferedPolicy.mu, which
//     keeps buffer state and counters atomic with each other.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		stats: Stats{
			DroppedByReason: make(map[string]int64),
		},
	}
}

func (r *statsRecorder) incTotal() {
	r.mu.Lock()
	r.stats.TotalDeliveries++
	r.mu.Unlock()
}

func (r *statsRecorder) incPersisted(n int64) {
	r.mu.Lock()
	r.stats.Persisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stats
	s.DroppedByReason = make(map[string]int64, len(r.stats.DroppedByReason))
	for k, v := range r.stats.DroppedByReason {
		s.DroppedByReason[k] = v
	}
	return s
}

// --- Locked methods for BufferedPolicy ---
// Caller must hold BufferedPolicy.mu.

func (r *statsRecorder) incTotalLocked() {
	r.stats.TotalDeliveries++
}

func (r *statsRecorder) incPersistedLocked(n int64) {
	r.stats.Persisted += n
}

func (r *statsRecorder) incDroppedLocked(reason string) {
	r.stats.Dropped++
	r.stats.DroppedByReason[reason]++
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked() {
	r.stats.FlushCount++
}

func (r *statsRecorder) setBufferSizeLocked(bytes int64) {
	r.stats.BufferSize = bytes
}

// snapshotLocked returns an atomic snapshot of stats with the given
// buffer size. Caller must hold BufferedPolicy.mu.
func (r *statsRecorder) snapshotLocked(bufferSize int64) Stats {
	s := r.stats
	s.BufferSize = bufferSize
	s.DroppedByReason = make(map[string]int64, len(r.stats.DroppedByReason))
	for k, v := range r.stats.DroppedByReason {
		s.DroppedByReason[k] = v
	}
	return s
}
