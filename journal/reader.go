package journal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/justapithecus/lode/lode"
)

// ErrNoSummaryFound is returned when no session summary records exist.
var ErrNoSummaryFound = errors.New("no session summary records found")

// ErrSessionNotFound is returned when a session has no records at all.
var ErrSessionNotFound = errors.New("session not found")

// SessionInfo summarizes one session discovered in the journal.
type SessionInfo struct {
	SessionID string
	Source    string
	Category  string
	Day       string

	// Messages and Faults count records seen for the session.
	Messages int64
	Faults   int64

	// FirstSeen and LastSeen bound the session's record timestamps.
	FirstSeen time.Time
	LastSeen  time.Time

	// Summary is the end-of-session record, nil when the session never
	// wrote one (crash, kill -9).
	Summary *SessionRecord
}

// SessionRecords holds every record of one session, ordered for display.
type SessionRecords struct {
	SessionID string
	Messages  []*MessageRecord // ordered by seq
	Faults    []*FaultRecord   // ordered by time
	Summary   *SessionRecord   // nil when absent
}

// ListSessions scans the dataset and aggregates per-session record counts.
// Sessions are returned ordered by first-seen time, then session ID.
func ListSessions(ctx context.Context, ds lode.Dataset) ([]*SessionInfo, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "adit/snapshots")
	}

	byID := make(map[string]*SessionInfo)
	for _, snap := range snapshots {
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("adit/snapshot/%s", snap.ID))
		}
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			sessionID := toString(record["session_id"])
			if sessionID == "" {
				continue
			}

			info := byID[sessionID]
			if info == nil {
				info = &SessionInfo{
					SessionID: sessionID,
					Source:    toString(record["source"]),
					Category:  toString(record["category"]),
					Day:       toString(record["day"]),
				}
				byID[sessionID] = info
			}

			switch toString(record["record_kind"]) {
			case RecordKindMessage:
				info.Messages++
				info.observe(toTime(record["received_at"]))
			case RecordKindFault:
				info.Faults++
				info.observe(toTime(record["at"]))
			case RecordKindSession:
				info.Summary = parseSessionRecord(record)
				info.observe(toTime(record["ts"]))
			}
		}
	}

	sessions := make([]*SessionInfo, 0, len(byID))
	for _, info := range byID {
		sessions = append(sessions, info)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].FirstSeen.Equal(sessions[j].FirstSeen) {
			return sessions[i].FirstSeen.Before(sessions[j].FirstSeen)
		}
		return sessions[i].SessionID < sessions[j].SessionID
	})
	return sessions, nil
}

// observe widens the session's [FirstSeen, LastSeen] bounds to include t.
func (s *SessionInfo) observe(t time.Time) {
	if t.IsZero() {
		return
	}
	if s.FirstSeen.IsZero() || t.Before(s.FirstSeen) {
		s.FirstSeen = t
	}
	if t.After(s.LastSeen) {
		s.LastSeen = t
	}
}

// ReadSession reads every record of one session.
// Manifest path filtering is a coarse pre-filter; record fields are
// authoritative (handles snapshots spanning multiple partitions).
// Returns ErrSessionNotFound when the session has no records.
func ReadSession(ctx context.Context, ds lode.Dataset, sessionID string) (*SessionRecords, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "adit/snapshots")
	}

	out := &SessionRecords{SessionID: sessionID}
	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, "session_id", sessionID) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("adit/snapshot/%s", snap.ID))
		}
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if toString(record["session_id"]) != sessionID {
				continue
			}

			switch toString(record["record_kind"]) {
			case RecordKindMessage:
				if rec := parseMessageRecord(record); rec != nil {
					out.Messages = append(out.Messages, rec)
				}
			case RecordKindFault:
				if rec := parseFaultRecord(record); rec != nil {
					out.Faults = append(out.Faults, rec)
				}
			case RecordKindSession:
				// Snapshots are ordered by creation time, so the last
				// summary seen wins.
				if rec := parseSessionRecord(record); rec != nil {
					out.Summary = rec
				}
			}
		}
	}

	if len(out.Messages) == 0 && len(out.Faults) == 0 && out.Summary == nil {
		return nil, ErrSessionNotFound
	}

	sort.Slice(out.Messages, func(i, j int) bool {
		return out.Messages[i].Seq < out.Messages[j].Seq
	})
	sort.Slice(out.Faults, func(i, j int) bool {
		return out.Faults[i].At.Before(out.Faults[j].At)
	})
	return out, nil
}

// QueryLatestSummary finds and reads the most recent session summary record.
// Filters by sessionID and source if non-empty.
// Returns ErrNoSummaryFound if none exist.
func QueryLatestSummary(ctx context.Context, ds lode.Dataset, sessionID, source string) (*SessionRecord, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "adit/snapshots")
	}

	// Iterate in reverse (latest first); snapshots are ordered by creation time
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]

		if !isSummarySnapshot(snap) {
			continue
		}
		if !snapshotMatchesFilter(snap, "session_id", sessionID) {
			continue
		}
		if !snapshotMatchesFilter(snap, "source", source) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("adit/snapshot/%s", snap.ID))
		}

		// Find a summary record that passes record-level filters.
		// Manifest path filtering is a coarse pre-filter; record fields
		// are authoritative.
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if toString(record["record_kind"]) != RecordKindSession {
				continue
			}
			if sessionID != "" && toString(record["session_id"]) != sessionID {
				continue
			}
			if source != "" && toString(record["source"]) != source {
				continue
			}
			return parseSessionRecord(record), nil
		}
	}

	return nil, ErrNoSummaryFound
}
