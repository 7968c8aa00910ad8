package journal

import (
	"time"

	"github.com/justapithecus/adit/metrics"
	"github.com/justapithecus/adit/types"
)

// RecordKind discriminator values. The kind doubles as the final Hive
// partition key, so each kind lands in its own partition directory.
const (
	RecordKindMessage = "message"
	RecordKindFault   = "fault"
	RecordKindSession = "session"
)

// MessageRecord is the typed view of a decoded-message journal record.
type MessageRecord struct {
	Seq        uint64
	ReceivedAt time.Time
	Timestamp  uint32
	Data       string
	JSON       string
	FrameBytes int

	SessionID string
	Source    string
	Category  string
	Day       string
}

// FaultRecord is the typed view of a stream-fault journal record.
type FaultRecord struct {
	Kind string
	At   time.Time

	SessionID string
	Source    string
	Category  string
	Day       string
}

// SessionRecord is the typed view of an end-of-session summary record.
type SessionRecord struct {
	SessionID   string
	Device      string
	CompletedAt time.Time

	Policy         string
	Framing        string
	StorageBackend string

	BytesRead       int64
	ChunksRead      int64
	FramesAssembled int64
	FramingErrors   int64
	FramingByKind   map[string]int64
	MessagesDecoded int64
	DecodeFailures  int64
	DecodeByKind    map[string]int64
	RenderFailures  int64

	FaultsOverflow   int64
	FaultsBufferFull int64

	DeliveriesTotal     int64
	DeliveriesPersisted int64
	DeliveriesDropped   int64
	FlushTriggers       map[string]int64

	JournalWriteSuccess int64
	JournalWriteFailure int64

	Source   string
	Category string
	Day      string
}

// toMessageRecordMap converts a Delivery to a map for Lode storage.
// Lode HiveLayout requires records as map[string]any; every record carries
// all partition keys plus the record_kind discriminator.
func toMessageRecordMap(d *types.Delivery, cfg Config) map[string]any {
	return map[string]any{
		"record_kind": RecordKindMessage,
		"seq":         int64(d.Seq),
		"received_at": d.ReceivedAt.UTC().Format(time.RFC3339Nano),
		"timestamp":   int64(d.Message.Timestamp),
		"data":        d.Message.Data,
		"json":        d.JSON,
		"frame_bytes": int64(d.FrameBytes),
		"session_id":  cfg.SessionID,
		"source":      cfg.Source,
		"category":    cfg.Category,
		"day":         cfg.Day,
	}
}

// toFaultRecordMap converts a stream fault to a map for Lode storage.
func toFaultRecordMap(kind types.FaultKind, at time.Time, cfg Config) map[string]any {
	return map[string]any{
		"record_kind": RecordKindFault,
		"kind":        string(kind),
		"at":          at.UTC().Format(time.RFC3339Nano),
		"session_id":  cfg.SessionID,
		"source":      cfg.Source,
		"category":    cfg.Category,
		"day":         cfg.Day,
	}
}

// toSessionRecordMap converts the final metrics snapshot to a map for Lode
// storage. Counter fields use the _total suffix; dimension labels are plain.
func toSessionRecordMap(snap metrics.Snapshot, cfg Config, completedAt time.Time) map[string]any {
	return map[string]any{
		"record_kind": RecordKindSession,
		"ts":          completedAt.UTC().Format(time.RFC3339),

		"sessions_started_total":   snap.SessionsStarted,
		"sessions_completed_total": snap.SessionsCompleted,
		"sessions_failed_total":    snap.SessionsFailed,

		"bytes_read_total":       snap.BytesRead,
		"chunks_read_total":      snap.ChunksRead,
		"frames_assembled_total": snap.FramesAssembled,
		"framing_errors_total":   snap.FramingErrors,
		"framing_by_kind":        snap.FramingByKind,
		"messages_decoded_total": snap.MessagesDecoded,
		"decode_failures_total":  snap.DecodeFailures,
		"decode_by_kind":         snap.DecodeByKind,
		"render_failures_total":  snap.RenderFailures,

		"faults_overflow_total":    snap.FaultsOverflow,
		"faults_buffer_full_total": snap.FaultsBufferFull,

		"deliveries_total":           snap.DeliveriesTotal,
		"deliveries_persisted_total": snap.DeliveriesPersisted,
		"deliveries_dropped_total":   snap.DeliveriesDropped,
		"flush_triggers":             snap.FlushTriggers,

		"journal_write_success_total": snap.JournalWriteSuccess,
		"journal_write_failure_total": snap.JournalWriteFailure,

		"policy":          snap.Policy,
		"framing":         snap.Framing,
		"storage_backend": snap.StorageBackend,
		"device":          snap.Device,
		"session_id":      cfg.SessionID,
		"source":          cfg.Source,
		"category":        cfg.Category,
		"day":             cfg.Day,
	}
}

// parseMessageRecord builds a typed MessageRecord from a raw record map.
// Returns nil if the record_kind does not match.
func parseMessageRecord(m map[string]any) *MessageRecord {
	if toString(m["record_kind"]) != RecordKindMessage {
		return nil
	}
	return &MessageRecord{
		Seq:        uint64(toInt64(m["seq"])),
		ReceivedAt: toTime(m["received_at"]),
		Timestamp:  uint32(toInt64(m["timestamp"])),
		Data:       toString(m["data"]),
		JSON:       toString(m["json"]),
		FrameBytes: int(toInt64(m["frame_bytes"])),
		SessionID:  toString(m["session_id"]),
		Source:     toString(m["source"]),
		Category:   toString(m["category"]),
		Day:        toString(m["day"]),
	}
}

// parseFaultRecord builds a typed FaultRecord from a raw record map.
// Returns nil if the record_kind does not match.
func parseFaultRecord(m map[string]any) *FaultRecord {
	if toString(m["record_kind"]) != RecordKindFault {
		return nil
	}
	return &FaultRecord{
		Kind:      toString(m["kind"]),
		At:        toTime(m["at"]),
		SessionID: toString(m["session_id"]),
		Source:    toString(m["source"]),
		Category:  toString(m["category"]),
		Day:       toString(m["day"]),
	}
}

// parseSessionRecord builds a typed SessionRecord from a raw record map.
// Returns nil if the record_kind does not match.
func parseSessionRecord(m map[string]any) *SessionRecord {
	if toString(m["record_kind"]) != RecordKindSession {
		return nil
	}
	return &SessionRecord{
		SessionID:   toString(m["session_id"]),
		Device:      toString(m["device"]),
		CompletedAt: toTime(m["ts"]),

		Policy:         toString(m["policy"]),
		Framing:        toString(m["framing"]),
		StorageBackend: toString(m["storage_backend"]),

		BytesRead:       toInt64(m["bytes_read_total"]),
		ChunksRead:      toInt64(m["chunks_read_total"]),
		FramesAssembled: toInt64(m["frames_assembled_total"]),
		FramingErrors:   toInt64(m["framing_errors_total"]),
		FramingByKind:   toMapInt64(m["framing_by_kind"]),
		MessagesDecoded: toInt64(m["messages_decoded_total"]),
		DecodeFailures:  toInt64(m["decode_failures_total"]),
		DecodeByKind:    toMapInt64(m["decode_by_kind"]),
		RenderFailures:  toInt64(m["render_failures_total"]),

		FaultsOverflow:   toInt64(m["faults_overflow_total"]),
		FaultsBufferFull: toInt64(m["faults_buffer_full_total"]),

		DeliveriesTotal:     toInt64(m["deliveries_total"]),
		DeliveriesPersisted: toInt64(m["deliveries_persisted_total"]),
		DeliveriesDropped:   toInt64(m["deliveries_dropped_total"]),
		FlushTriggers:       toMapInt64(m["flush_triggers"]),

		JournalWriteSuccess: toInt64(m["journal_write_success_total"]),
		JournalWriteFailure: toInt64(m["journal_write_failure_total"]),

		Source:   toString(m["source"]),
		Category: toString(m["category"]),
		Day:      toString(m["day"]),
	}
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 converts a numeric value to int64. The JSONL codec decodes all
// numbers as float64, but records read back from a shared in-memory store
// may retain their original Go types.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case uint32:
		return int64(n)
	case int32:
		return int64(n)
	default:
		return 0
	}
}

// toTime parses an RFC3339/RFC3339Nano timestamp, returning the zero time
// for missing or malformed values.
func toTime(v any) time.Time {
	s := toString(v)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// toMapInt64 converts a map-valued record field to map[string]int64.
// Returns nil for missing or non-map values.
func toMapInt64(v any) map[string]int64 {
	switch m := v.(type) {
	case map[string]int64:
		out := make(map[string]int64, len(m))
		for k, n := range m {
			out[k] = n
		}
		return out
	case map[string]any:
		out := make(map[string]int64, len(m))
		for k, n := range m {
			out[k] = toInt64(n)
		}
		return out
	default:
		return nil
	}
}
