package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/justapithecus/adit/log"
	"github.com/justapithecus/adit/types"
)

// FlushTrigger identifies which trigger caused a flush.
type FlushTrigger string

const (
	// FlushTriggerCount indicates a count-threshold flush.
	FlushTriggerCount FlushTrigger = "count"
	// FlushTriggerInterval indicates an interval-based flush.
	FlushTriggerInterval FlushTrigger = "interval"
	// FlushTriggerTermination indicates a session shutdown flush.
	FlushTriggerTermination FlushTrigger = "termination"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxEvents is the maximum number of deliveries to buffer.
	// Zero means no count limit (use MaxBytes instead).
	MaxEvents int

	// MaxBytes is the maximum buffer size in bytes (estimated).
	// Zero means no byte limit (use MaxEvents instead).
	// At least one limit must be set.
	MaxBytes int64

	// FlushEvery triggers a flush once that many deliveries are
	// buffered. Zero disables the count trigger.
	FlushEvery int

	// FlushInterval triggers a flush every interval.
	// Zero disables the interval trigger.
	FlushInterval time.Duration

	// Logger is an optional logger for policy observability.
	// If nil, no logging is emitted.
	Logger *log.Logger
}

// DefaultBufferedConfig returns sensible defaults for buffered policy.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{
		MaxEvents:  1024,
		MaxBytes:   1 << 20, // 1 MB
		FlushEvery: 64,
	}
}

// ErrBufferFull is returned when a single delivery can never fit the
// configured byte budget.
var ErrBufferFull = errors.New("buffer full: delivery exceeds buffer capacity")

// ErrInvalidConfig is returned when BufferedConfig is invalid.
var ErrInvalidConfig = errors.New("invalid config: at least one of MaxEvents or MaxBytes must be set")

// BufferedPolicy implements bounded buffering with batched writes.
//
//   - Bounded buffer with explicit limits
//   - When full, the oldest buffered delivery is shed to admit the
//     newest: on a live telemetry link fresh data outranks stale data
//   - Flush triggers: count threshold, interval, session termination
//   - On flush failure the buffer is preserved and retried on the next
//     trigger; duplicates are preferred over loss
//
// Thread safety:
//   - mu guards buffer state and stats
//   - flushMu serializes flush operations so the interval goroutine and
//     the count trigger never write concurrently
//   - triggerFlush swaps buffers under mu and writes outside it, so
//     Deliver keeps appending to a fresh buffer during a slow write
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	mu          sync.Mutex // guards buffer state and stats
	buffer      []*types.Delivery
	bufferBytes int64
	stats       *statsRecorder

	// flushMu serializes flush operations.
	flushMu sync.Mutex

	// flushByTrigger tracks how many times each trigger fired.
	// Guarded by mu.
	flushByCount       int64
	flushByInterval    int64
	flushByTermination int64

	// stopCh signals the interval goroutine to stop.
	stopCh chan struct{}
	// stopped indicates Close has been called. Guarded by mu.
	stopped bool
}

var _ Policy = (*BufferedPolicy)(nil)

// NewBufferedPolicy creates a buffered policy.
// Returns an error if config is invalid.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxEvents <= 0 && config.MaxBytes <= 0 {
		return nil, ErrInvalidConfig
	}

	p := &BufferedPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]*types.Delivery, 0, bufferCap(config)),
		stats:  newStatsRecorder(),
		stopCh: make(chan struct{}),
	}

	if config.FlushInterval > 0 {
		go p.intervalLoop()
	}

	return p, nil
}

func bufferCap(config BufferedConfig) int {
	if config.MaxEvents > 0 {
		return config.MaxEvents
	}
	return 128
}

// Deliver buffers the delivery, shedding the oldest entries if the
// buffer is full. A delivery that exceeds the whole byte budget is
// dropped and reported with ErrBufferFull.
func (p *BufferedPolicy) Deliver(ctx context.Context, d *types.Delivery) error {
	size := estimateDeliverySize(d)

	p.mu.Lock()
	p.stats.incTotalLocked()

	if p.config.MaxBytes > 0 && size > p.config.MaxBytes {
		p.stats.incDroppedLocked(DropReasonOversize)
		p.stats.incErrorsLocked()
		p.mu.Unlock()
		p.logDrop(d.Seq, DropReasonOversize)
		return ErrBufferFull
	}

	for !p.hasRoomLocked(size) {
		p.evictOldestLocked()
	}

	p.buffer = append(p.buffer, d)
	p.bufferBytes += size
	p.stats.setBufferSizeLocked(p.bufferBytes)

	shouldFlush := p.config.FlushEvery > 0 && len(p.buffer) >= p.config.FlushEvery
	p.mu.Unlock()

	if shouldFlush {
		return p.triggerFlush(ctx, FlushTriggerCount)
	}

	return nil
}

// hasRoomLocked checks whether a delivery of the given size fits.
// Caller must hold mu.
func (p *BufferedPolicy) hasRoomLocked(size int64) bool {
	if p.config.MaxEvents > 0 && len(p.buffer) >= p.config.MaxEvents {
		return false
	}
	if p.config.MaxBytes > 0 && p.bufferBytes+size > p.config.MaxBytes {
		return false
	}
	return true
}

// evictOldestLocked sheds the oldest buffered delivery. Caller must
// hold mu and have verified the buffer is non-empty via hasRoomLocked
// failing with at least one entry buffered.
func (p *BufferedPolicy) evictOldestLocked() {
	evicted := p.buffer[0]
	p.buffer = p.buffer[1:]
	p.bufferBytes -= estimateDeliverySize(evicted)
	p.stats.setBufferSizeLocked(p.bufferBytes)
	p.stats.incDroppedLocked(DropReasonEvicted)
	p.logDrop(evicted.Seq, DropReasonEvicted)
}

// Flush writes all buffered deliveries to the sink (termination trigger).
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	return p.triggerFlush(ctx, FlushTriggerTermination)
}

// triggerFlush performs a flush with the given trigger reason.
// Serialized by flushMu to prevent concurrent writes.
//
// Strategy: swap the buffer under mu, write outside mu, restore in
// front of any newly buffered deliveries on failure so ordering holds.
func (p *BufferedPolicy) triggerFlush(ctx context.Context, trigger FlushTrigger) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()

	switch trigger {
	case FlushTriggerCount:
		p.flushByCount++
	case FlushTriggerInterval:
		p.flushByInterval++
	case FlushTriggerTermination:
		p.flushByTermination++
	}

	p.stats.incFlushLocked()

	batch := p.buffer
	if len(batch) == 0 {
		p.mu.Unlock()
		return nil
	}

	// Install a fresh buffer so Deliver can continue during the write.
	p.buffer = make([]*types.Delivery, 0, bufferCap(p.config))
	p.recalculateBufferBytesLocked()
	p.mu.Unlock()

	if err := p.sink.WriteDeliveries(ctx, batch); err != nil {
		p.mu.Lock()
		p.stats.incErrorsLocked()
		p.buffer = append(batch, p.buffer...)
		p.recalculateBufferBytesLocked()
		p.mu.Unlock()
		p.logFlushFailure(trigger, err)
		return err
	}

	p.mu.Lock()
	p.stats.incPersistedLocked(int64(len(batch)))
	p.mu.Unlock()

	p.logFlush(trigger, len(batch))

	return nil
}

// recalculateBufferBytesLocked recomputes bufferBytes from the buffer.
// Caller must hold mu.
func (p *BufferedPolicy) recalculateBufferBytesLocked() {
	var total int64
	for _, d := range p.buffer {
		total += estimateDeliverySize(d)
	}
	p.bufferBytes = total
	p.stats.setBufferSizeLocked(p.bufferBytes)
}

// Close stops the interval goroutine, flushes remaining data, and
// closes the sink.
func (p *BufferedPolicy) Close() error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stopCh)
	}
	p.mu.Unlock()

	// Best-effort flush on close
	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns policy statistics.
// The buffer mutex is held while taking the snapshot, so all counters
// and the buffer size are captured from the same point in time.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(p.bufferBytes)
}

// FlushTriggerStats returns per-trigger flush counts for observability.
func (p *BufferedPolicy) FlushTriggerStats() map[FlushTrigger]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[FlushTrigger]int64{
		FlushTriggerCount:       p.flushByCount,
		FlushTriggerInterval:    p.flushByInterval,
		FlushTriggerTermination: p.flushByTermination,
	}
}

// intervalLoop runs in a goroutine and flushes on the configured interval.
func (p *BufferedPolicy) intervalLoop() {
	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			hasData := len(p.buffer) > 0
			p.mu.Unlock()

			if hasData {
				// Best-effort interval flush; errors are logged, the
				// buffer is preserved for the next trigger.
				_ = p.triggerFlush(context.Background(), FlushTriggerInterval)
			}
		case <-p.stopCh:
			return
		}
	}
}

// estimateDeliverySize returns an estimated size in bytes for buffer
// accounting. The rendered JSON dominates; the envelope is a flat
// constant.
func estimateDeliverySize(d *types.Delivery) int64 {
	return int64(64 + len(d.JSON) + len(d.Message.Data))
}

// --- Logging helpers ---

func (p *BufferedPolicy) logDrop(seq uint64, reason string) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("delivery dropped", map[string]any{
		"seq":    seq,
		"reason": reason,
		"policy": "buffered",
	})
}

func (p *BufferedPolicy) logFlush(trigger FlushTrigger, count int) {
	if p.logger == nil {
		return
	}
	p.logger.Debug("buffer flushed", map[string]any{
		"trigger":    string(trigger),
		"deliveries": count,
		"policy":     "buffered",
	})
}

func (p *BufferedPolicy) logFlushFailure(trigger FlushTrigger, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("flush failed", map[string]any{
		"trigger": string(trigger),
		"error":   err.Error(),
		"policy":  "buffered",
	})
}
