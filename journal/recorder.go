// Package journal persists session records to Lode datasets.
//
// Every decoded message, stream fault, and end-of-session summary of a
// listen session is written as a record under the session's partition.
// Records use Lode's HiveLayout with partition keys:
// source/category/day/session_id/record_kind.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/adit/metrics"
	"github.com/justapithecus/adit/types"
)

// DefaultDataset is the Lode dataset ID for adit journals.
const DefaultDataset = "adit"

// Config holds journal partition configuration.
// All partition keys are required; every record of a session carries them.
type Config struct {
	// Dataset is the Lode dataset ID (normally "adit").
	Dataset string
	// Source is the partition key for the origin system, e.g. a rig or host name.
	Source string
	// Category is the partition key for the logical data type, e.g. "telemetry".
	Category string
	// Day is the partition key derived from session start time (YYYY-MM-DD UTC).
	Day string
	// SessionID is the partition key for the listen session.
	SessionID string
}

// Validate checks that all partition keys are present.
func (c *Config) Validate() error {
	switch {
	case c.Dataset == "":
		return errors.New("journal dataset is required")
	case c.Source == "":
		return errors.New("journal source is required")
	case c.Category == "":
		return errors.New("journal category is required")
	case c.Day == "":
		return errors.New("journal day is required")
	case c.SessionID == "":
		return errors.New("journal session_id is required")
	}
	return nil
}

// DeriveDay computes the partition day from session start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Recorder is a Lode-backed implementation of Client.
// One Recorder serves one listen session; all records it writes share the
// session's partition values. Writes are synchronous and each produces a
// Lode snapshot, so a crash loses at most the batch in flight.
type Recorder struct {
	dataset lode.Dataset
	config  Config

	// Sidecar store, created lazily on first WriteMeta.
	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error
}

// NewRecorder creates a Recorder with filesystem storage.
// The root parameter is the base directory for Hive-partitioned storage.
func NewRecorder(cfg Config, root string) (*Recorder, error) {
	return NewRecorderWithFactory(cfg, lode.NewFSFactory(root))
}

// NewRecorderWithFactory creates a Recorder with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewRecorderWithFactory(cfg Config, factory lode.StoreFactory) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ds, err := lode.NewDataset(
		lode.DatasetID(cfg.Dataset),
		factory,
		lode.WithHiveLayout("source", "category", "day", "session_id", "record_kind"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}

	return newRecorder(ds, cfg, factory), nil
}

// newRecorder wires a Recorder around an open dataset.
func newRecorder(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *Recorder {
	return &Recorder{
		dataset:      ds,
		config:       cfg,
		storeFactory: factory,
	}
}

// WriteMessages writes a batch of decoded messages to the journal.
// Ordering within the batch is preserved; records land in the
// record_kind=message partition.
func (r *Recorder) WriteMessages(ctx context.Context, deliveries []*types.Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}

	records := make([]any, 0, len(deliveries))
	for _, d := range deliveries {
		records = append(records, toMessageRecordMap(d, r.config))
	}

	_, err := r.dataset.Write(ctx, records, lode.Metadata{})
	return WrapWriteError(err, fmt.Sprintf("%s/messages", r.config.Dataset))
}

// WriteFault writes a stream fault record to the journal.
func (r *Recorder) WriteFault(ctx context.Context, kind types.FaultKind, at time.Time) error {
	records := []any{toFaultRecordMap(kind, at, r.config)}

	_, err := r.dataset.Write(ctx, records, lode.Metadata{})
	return WrapWriteError(err, fmt.Sprintf("%s/faults", r.config.Dataset))
}

// WriteSessionSummary writes the final counter snapshot for the session.
// Called once at session end; the record lands in the record_kind=session
// partition and is what `adit stats` reads back.
func (r *Recorder) WriteSessionSummary(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	records := []any{toSessionRecordMap(snap, r.config, completedAt)}

	_, err := r.dataset.Write(ctx, records, lode.Metadata{})
	return WrapWriteError(err, fmt.Sprintf("%s/session", r.config.Dataset))
}

// Close releases Recorder resources.
func (r *Recorder) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

// Verify Recorder implements Client.
var _ Client = (*Recorder)(nil)
