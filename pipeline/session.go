package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/justapithecus/adit/framing"
	"github.com/justapithecus/adit/journal"
	"github.com/justapithecus/adit/log"
	"github.com/justapithecus/adit/metrics"
	"github.com/justapithecus/adit/policy"
	"github.com/justapithecus/adit/serial"
	"github.com/justapithecus/adit/types"
)

// DefaultFlushTimeout bounds the final policy flush and the journal
// summary write after the loop has stopped.
const DefaultFlushTimeout = 30 * time.Second

// Outcome classifies how a session ended.
type Outcome string

const (
	// OutcomeCompleted is a session ended by cancellation, the clean path.
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed is a session ended by a byte-source failure.
	OutcomeFailed Outcome = "failed"
)

// SessionConfig configures a single listen session.
type SessionConfig struct {
	// Meta is the session identity. SessionID and Device are required.
	Meta types.SessionMeta

	// Port is the byte source. Required.
	Port serial.Port

	// Assembler frames the byte stream. Required.
	Assembler framing.Assembler

	// Policy is the delivery policy. Required. The caller keeps ownership
	// and closes it after Run returns.
	Policy policy.Policy

	// Journal records session meta, faults, and the final summary.
	// Nil disables journaling. Message records flow through the policy's
	// sink chain, not through this client.
	Journal journal.Client

	// Collector is the session metrics collector. Nil runs unmetered.
	Collector *metrics.Collector

	// Logger overrides the session logger. Nil builds one from Meta.
	Logger *log.Logger

	// ReadBufferSize, ReadTimeout, and FlushAfterDecode are forwarded to
	// the pipeline. See Config.
	ReadBufferSize   int
	ReadTimeout      time.Duration
	FlushAfterDecode bool

	// FlushTimeout bounds the final policy flush and summary write.
	// Zero or negative selects DefaultFlushTimeout.
	FlushTimeout time.Duration
}

// SessionResult is the final accounting of one listen session.
type SessionResult struct {
	// Meta is the session identity.
	Meta types.SessionMeta
	// Outcome classifies the ending.
	Outcome Outcome
	// Err is the byte-source failure when Outcome is OutcomeFailed.
	Err error
	// Duration is the total session duration.
	Duration time.Duration
	// Metrics is the final counter snapshot.
	Metrics metrics.Snapshot
	// PolicyStats is the final delivery policy statistics.
	PolicyStats policy.Stats
}

// flushTriggerReporter is implemented by policies that track which
// trigger caused each flush.
type flushTriggerReporter interface {
	FlushTriggerStats() map[policy.FlushTrigger]int64
}

// Session orchestrates one listen run end to end: journal meta at start,
// the processing loop, the final policy flush, the summary write, and
// result assembly.
type Session struct {
	config    *SessionConfig
	pipeline  *Pipeline
	logger    *log.Logger
	startTime time.Time
}

// NewSession creates a session. Returns an error when the identity or the
// pipeline configuration is invalid.
func NewSession(config *SessionConfig) (*Session, error) {
	if config.Meta.SessionID == "" {
		return nil, errors.New("session: session id is required")
	}
	if config.Meta.Device == "" {
		return nil, errors.New("session: device is required")
	}
	if config.Meta.StartedAt.IsZero() {
		config.Meta.StartedAt = time.Now().UTC()
	}
	if config.FlushTimeout <= 0 {
		config.FlushTimeout = DefaultFlushTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(&config.Meta)
	}

	var faults FaultRecorder
	if config.Journal != nil {
		faults = config.Journal
	}

	p, err := New(&Config{
		Port:             config.Port,
		Assembler:        config.Assembler,
		Policy:           config.Policy,
		Logger:           logger,
		Collector:        config.Collector,
		FaultRecorder:    faults,
		ReadBufferSize:   config.ReadBufferSize,
		ReadTimeout:      config.ReadTimeout,
		FlushAfterDecode: config.FlushAfterDecode,
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		config:   config,
		pipeline: p,
		logger:   logger,
	}, nil
}

// Run executes the session until cancellation or byte-source failure.
//
// Shutdown order matters: the policy is flushed before the summary is
// written so the summary's delivery counters include the final batch.
// Journal failures at any point degrade to warnings; the session result
// is built regardless.
func (s *Session) Run(ctx context.Context) (*SessionResult, error) {
	s.startTime = time.Now()
	collector := s.config.Collector
	collector.IncSessionStarted()

	s.logger.Info("starting session", map[string]any{
		"device":  s.config.Meta.Device,
		"framing": s.config.Meta.Framing,
	})

	s.writeMeta(ctx)

	runErr := s.pipeline.Run(ctx)

	// Buffered deliveries must survive shutdown. The parent context is
	// already canceled on the graceful path, so the flush gets a detached
	// deadline of its own.
	flushCtx, flushCancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.FlushTimeout)
	if err := s.config.Policy.Flush(flushCtx); err != nil {
		s.logger.Warn("policy flush failed (best effort)", map[string]any{
			"error": err.Error(),
		})
	}
	flushCancel()

	outcome := OutcomeCompleted
	var cause error
	if runErr != nil && !IsCanceled(runErr) {
		outcome = OutcomeFailed
		cause = runErr
	}
	switch outcome {
	case OutcomeCompleted:
		collector.IncSessionCompleted()
	case OutcomeFailed:
		collector.IncSessionFailed()
	}

	s.absorbPolicyStats()
	s.writeSummary(ctx)

	result := &SessionResult{
		Meta:        s.config.Meta,
		Outcome:     outcome,
		Err:         cause,
		Duration:    time.Since(s.startTime),
		Metrics:     collector.Snapshot(),
		PolicyStats: s.config.Policy.Stats(),
	}

	s.logger.Info("session completed", map[string]any{
		"outcome":          string(result.Outcome),
		"duration":         result.Duration.String(),
		"messages_decoded": result.Metrics.MessagesDecoded,
		"decode_failures":  result.Metrics.DecodeFailures,
	})

	return result, nil
}

// writeMeta journals the session identity at startup.
func (s *Session) writeMeta(ctx context.Context) {
	if s.config.Journal == nil {
		return
	}
	if err := s.config.Journal.WriteMeta(ctx, s.config.Meta); err != nil {
		s.logger.Warn("journal meta write failed", map[string]any{
			"error": err.Error(),
		})
		s.config.Collector.IncJournalWriteFailure()
		return
	}
	s.config.Collector.IncJournalWriteSuccess()
}

// absorbPolicyStats copies the final delivery counters into the metrics
// collector so the summary carries them.
func (s *Session) absorbPolicyStats() {
	ps := s.config.Policy.Stats()

	var triggers map[string]int64
	if reporter, ok := s.config.Policy.(flushTriggerReporter); ok {
		byTrigger := reporter.FlushTriggerStats()
		triggers = make(map[string]int64, len(byTrigger))
		for k, v := range byTrigger {
			triggers[string(k)] = v
		}
	}

	s.config.Collector.AbsorbPolicyStats(ps.TotalDeliveries, ps.Persisted, ps.Dropped, triggers)
}

// writeSummary journals the final counter snapshot.
func (s *Session) writeSummary(ctx context.Context) {
	if s.config.Journal == nil {
		return
	}
	snap := s.config.Collector.Snapshot()
	completedAt := time.Now().UTC()

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.FlushTimeout)
	defer cancel()

	if err := s.config.Journal.WriteSessionSummary(writeCtx, snap, completedAt); err != nil {
		s.logger.Warn("journal summary write failed", map[string]any{
			"error": err.Error(),
		})
		s.config.Collector.IncJournalWriteFailure()
		return
	}
	s.config.Collector.IncJournalWriteSuccess()
}
