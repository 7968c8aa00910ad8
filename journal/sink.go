package journal

import (
	"context"
	"sync"
	"time"

	"github.com/justapithecus/adit/metrics"
	"github.com/justapithecus/adit/policy"
	"github.com/justapithecus/adit/types"
)

// Client abstracts the journal storage backend.
// The Recorder is the Lode-backed implementation; StubClient serves tests.
type Client interface {
	// WriteMessages writes a batch of decoded messages.
	// Must preserve ordering within the batch.
	WriteMessages(ctx context.Context, deliveries []*types.Delivery) error

	// WriteFault writes a stream fault record.
	WriteFault(ctx context.Context, kind types.FaultKind, at time.Time) error

	// WriteSessionSummary writes the final counter snapshot for the session.
	WriteSessionSummary(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error

	// WriteMeta writes the session's msgpack metadata sidecar.
	WriteMeta(ctx context.Context, meta types.SessionMeta) error

	// Close releases client resources.
	Close() error
}

// Sink is a journal-backed implementation of policy.Sink.
// Deliveries flushed by the policy become message records in the journal.
type Sink struct {
	client Client
}

// NewSink creates a new journal sink.
func NewSink(client Client) *Sink {
	return &Sink{client: client}
}

// WriteDeliveries implements policy.Sink.
func (s *Sink) WriteDeliveries(ctx context.Context, deliveries []*types.Delivery) error {
	return s.client.WriteMessages(ctx, deliveries)
}

// Close implements policy.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

// Verify Sink implements policy.Sink.
var _ policy.Sink = (*Sink)(nil)

// StubClient is a test client that records writes without persisting.
type StubClient struct {
	mu        sync.Mutex
	Messages  [][]*types.Delivery
	Faults    []StubFault
	Summaries []StubSummary
	Metas     []types.SessionMeta
	Closed    bool

	// WriteErr, when set, is returned by every write method.
	WriteErr error
}

// StubFault is a recorded fault write for testing.
type StubFault struct {
	Kind types.FaultKind
	At   time.Time
}

// StubSummary is a recorded session summary write for testing.
type StubSummary struct {
	Snapshot    metrics.Snapshot
	CompletedAt time.Time
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteMessages implements Client.
func (c *StubClient) WriteMessages(_ context.Context, deliveries []*types.Delivery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.Messages = append(c.Messages, deliveries)
	return nil
}

// WriteFault implements Client.
func (c *StubClient) WriteFault(_ context.Context, kind types.FaultKind, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.Faults = append(c.Faults, StubFault{Kind: kind, At: at})
	return nil
}

// WriteSessionSummary implements Client.
func (c *StubClient) WriteSessionSummary(_ context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.Summaries = append(c.Summaries, StubSummary{Snapshot: snap, CompletedAt: completedAt})
	return nil
}

// WriteMeta implements Client.
func (c *StubClient) WriteMeta(_ context.Context, meta types.SessionMeta) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.Metas = append(c.Metas, meta)
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

// Verify StubClient implements Client.
var _ Client = (*StubClient)(nil)
