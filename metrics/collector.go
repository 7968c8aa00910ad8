// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a single listen session. It is
// a leaf package with no internal dependencies. Delivery policy metrics are
// absorbed from policy.Stats at session completion rather than recorded
// live, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted   int64
	SessionsCompleted int64
	SessionsFailed    int64

	// Link ingest
	BytesRead       int64
	ChunksRead      int64
	FramesAssembled int64
	FramingErrors   int64
	FramingByKind   map[string]int64
	MessagesDecoded int64
	DecodeFailures  int64
	DecodeByKind    map[string]int64
	RenderFailures  int64

	// Stream faults
	FaultsOverflow   int64
	FaultsBufferFull int64

	// Delivery (absorbed from policy.Stats at session completion)
	DeliveriesTotal     int64
	DeliveriesPersisted int64
	DeliveriesDropped   int64
	FlushTriggers       map[string]int64

	// Journal / storage
	JournalWriteSuccess int64
	JournalWriteFailure int64

	// Dimensions (informational, set at construction)
	Policy         string
	Framing        string
	StorageBackend string
	SessionID      string
	Device         string
}

// Collector accumulates metrics during a single listen session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe
// so components can run unmetered.
type Collector struct {
	mu sync.Mutex

	sessionsStarted   int64
	sessionsCompleted int64
	sessionsFailed    int64

	bytesRead       int64
	chunksRead      int64
	framesAssembled int64
	framingErrors   int64
	framingByKind   map[string]int64
	messagesDecoded int64
	decodeFailures  int64
	decodeByKind    map[string]int64
	renderFailures  int64

	faultsOverflow   int64
	faultsBufferFull int64

	deliveriesTotal     int64
	deliveriesPersisted int64
	deliveriesDropped   int64
	flushTriggers       map[string]int64

	journalWriteSuccess int64
	journalWriteFailure int64

	policy         string
	framing        string
	storageBackend string
	sessionID      string
	device         string
}

// NewCollector creates a Collector with dimension labels.
// policy, framing, and storageBackend describe the session configuration;
// sessionID and device identify the link.
func NewCollector(policy, framing, storageBackend, sessionID, device string) *Collector {
	return &Collector{
		framingByKind:  make(map[string]int64),
		decodeByKind:   make(map[string]int64),
		policy:         policy,
		framing:        framing,
		storageBackend: storageBackend,
		sessionID:      sessionID,
		device:         device,
	}
}

// --- Session lifecycle ---

// IncSessionStarted records a session start.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsStarted++
	c.mu.Unlock()
}

// IncSessionCompleted records a clean session shutdown.
func (c *Collector) IncSessionCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsCompleted++
	c.mu.Unlock()
}

// IncSessionFailed records a session ending on a port failure.
func (c *Collector) IncSessionFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsFailed++
	c.mu.Unlock()
}

// --- Link ingest ---

// AddBytesRead records bytes read from the port.
func (c *Collector) AddBytesRead(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesRead += int64(n)
	c.mu.Unlock()
}

// IncChunkRead records one serviced data-ready read.
func (c *Collector) IncChunkRead() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksRead++
	c.mu.Unlock()
}

// IncFrameAssembled records a complete frame leaving the assembler.
func (c *Collector) IncFrameAssembled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesAssembled++
	c.mu.Unlock()
}

// IncFramingError records a framing failure. kind is the FrameError kind
// string ("partial", "too_large").
func (c *Collector) IncFramingError(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framingErrors++
	c.framingByKind[kind]++
	c.mu.Unlock()
}

// IncMessageDecoded records a successful frame decode.
func (c *Collector) IncMessageDecoded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.messagesDecoded++
	c.mu.Unlock()
}

// IncDecodeFailure records a decode failure. kind is the DecodeError kind
// string ("empty", "malformed").
func (c *Collector) IncDecodeFailure(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeFailures++
	c.decodeByKind[kind]++
	c.mu.Unlock()
}

// IncRenderFailure records a JSON render failure.
func (c *Collector) IncRenderFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.renderFailures++
	c.mu.Unlock()
}

// --- Stream faults ---

// IncFaultOverflow records a peripheral FIFO overrun.
func (c *Collector) IncFaultOverflow() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.faultsOverflow++
	c.mu.Unlock()
}

// IncFaultBufferFull records a receive ring overflow.
func (c *Collector) IncFaultBufferFull() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.faultsBufferFull++
	c.mu.Unlock()
}

// --- Journal / storage ---
// Journal counters are per-call, not per-record. A single WriteDeliveries
// call with N records counts as 1 success. Per-delivery granularity is
// tracked by policy.Stats.

// IncJournalWriteSuccess records a successful journal write operation.
func (c *Collector) IncJournalWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.journalWriteSuccess++
	c.mu.Unlock()
}

// IncJournalWriteFailure records a failed journal write operation.
func (c *Collector) IncJournalWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.journalWriteFailure++
	c.mu.Unlock()
}

// --- Delivery (absorbed from policy.Stats) ---

// AbsorbPolicyStats copies delivery counters from policy.Stats into the
// collector. Called once after session completion with the final policy
// stats snapshot. Map keys are plain strings to keep this package free of
// dependencies on the policy package.
func (c *Collector) AbsorbPolicyStats(total, persisted, dropped int64, flushTriggers map[string]int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.deliveriesTotal = total
	c.deliveriesPersisted = persisted
	c.deliveriesDropped = dropped
	if flushTriggers != nil {
		c.flushTriggers = make(map[string]int64, len(flushTriggers))
		for k, v := range flushTriggers {
			c.flushTriggers[k] = v
		}
	}
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	framing := make(map[string]int64, len(c.framingByKind))
	for k, v := range c.framingByKind {
		framing[k] = v
	}
	decode := make(map[string]int64, len(c.decodeByKind))
	for k, v := range c.decodeByKind {
		decode[k] = v
	}
	var triggers map[string]int64
	if c.flushTriggers != nil {
		triggers = make(map[string]int64, len(c.flushTriggers))
		for k, v := range c.flushTriggers {
			triggers[k] = v
		}
	}

	return Snapshot{
		SessionsStarted:   c.sessionsStarted,
		SessionsCompleted: c.sessionsCompleted,
		SessionsFailed:    c.sessionsFailed,

		BytesRead:       c.bytesRead,
		ChunksRead:      c.chunksRead,
		FramesAssembled: c.framesAssembled,
		FramingErrors:   c.framingErrors,
		FramingByKind:   framing,
		MessagesDecoded: c.messagesDecoded,
		DecodeFailures:  c.decodeFailures,
		DecodeByKind:    decode,
		RenderFailures:  c.renderFailures,

		FaultsOverflow:   c.faultsOverflow,
		FaultsBufferFull: c.faultsBufferFull,

		DeliveriesTotal:     c.deliveriesTotal,
		DeliveriesPersisted: c.deliveriesPersisted,
		DeliveriesDropped:   c.deliveriesDropped,
		FlushTriggers:       triggers,

		JournalWriteSuccess: c.journalWriteSuccess,
		JournalWriteFailure: c.journalWriteFailure,

		Policy:         c.policy,
		Framing:        c.framing,
		StorageBackend: c.storageBackend,
		SessionID:      c.sessionID,
		Device:         c.device,
	}
}
