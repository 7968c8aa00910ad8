// Package reader provides the read-side data access layer for the adit CLI.
//
// The list, inspect and stats commands never touch a live port; they work
// entirely from journal records. This package turns journal types into the
// flat response types the renderer and the TUI consume.
package reader

import (
	"context"
	"fmt"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/adit/journal"
)

// Reader is the read contract for the journal-backed commands.
type Reader interface {
	// ListSessions returns a thin row per session, ordered by first-seen.
	ListSessions(ctx context.Context) ([]SessionListItem, error)

	// InspectSession returns every record of one session.
	// Returns journal.ErrSessionNotFound for unknown IDs.
	InspectSession(ctx context.Context, sessionID string) (*InspectSessionResponse, error)

	// SessionStats aggregates counters for one session, or for every
	// session when sessionID is empty.
	SessionStats(ctx context.Context, sessionID string) (*SessionStatsResponse, error)
}

// Options selects the journal storage a reader opens.
type Options struct {
	// Backend is "fs" or "s3".
	Backend string
	// Path is the storage location (fs: directory, s3: bucket/prefix).
	Path string
	// Region is the AWS region for the s3 backend (optional, default chain).
	Region string
	// Dataset is the Lode dataset ID (default "adit").
	Dataset string
}

// Open creates a journal-backed reader for the given storage options.
func Open(opts Options) (*JournalReader, error) {
	dataset := opts.Dataset
	if dataset == "" {
		dataset = journal.DefaultDataset
	}

	var ds lode.Dataset
	var err error
	switch opts.Backend {
	case "fs", "":
		ds, err = journal.NewReadDatasetFS(dataset, opts.Path)
	case "s3":
		bucket, prefix := journal.ParseS3Path(opts.Path)
		ds, err = journal.NewReadDatasetS3(dataset, journal.S3Config{
			Bucket: bucket,
			Prefix: prefix,
			Region: opts.Region,
		})
	default:
		return nil, fmt.Errorf("unsupported journal backend: %s (must be fs or s3)", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	return NewJournalReader(ds), nil
}

// JournalReader reads sessions from a Lode dataset.
type JournalReader struct {
	ds lode.Dataset
}

var _ Reader = (*JournalReader)(nil)

// NewJournalReader wraps an already-open dataset.
func NewJournalReader(ds lode.Dataset) *JournalReader {
	return &JournalReader{ds: ds}
}

// ListSessions implements Reader.
func (r *JournalReader) ListSessions(ctx context.Context) ([]SessionListItem, error) {
	infos, err := journal.ListSessions(ctx, r.ds)
	if err != nil {
		return nil, err
	}

	items := make([]SessionListItem, 0, len(infos))
	for _, info := range infos {
		items = append(items, SessionListItem{
			SessionID: info.SessionID,
			Source:    info.Source,
			Category:  info.Category,
			Day:       info.Day,
			Messages:  info.Messages,
			Faults:    info.Faults,
			FirstSeen: info.FirstSeen,
			LastSeen:  info.LastSeen,
			Completed: info.Summary != nil,
		})
	}
	return items, nil
}

// InspectSession implements Reader.
func (r *JournalReader) InspectSession(ctx context.Context, sessionID string) (*InspectSessionResponse, error) {
	records, err := journal.ReadSession(ctx, r.ds, sessionID)
	if err != nil {
		return nil, err
	}

	resp := &InspectSessionResponse{
		SessionID: records.SessionID,
		Messages:  make([]MessageItem, 0, len(records.Messages)),
		Faults:    make([]FaultItem, 0, len(records.Faults)),
	}

	for _, m := range records.Messages {
		resp.Messages = append(resp.Messages, MessageItem{
			Seq:        m.Seq,
			ReceivedAt: m.ReceivedAt,
			Timestamp:  m.Timestamp,
			Data:       m.Data,
			JSON:       m.JSON,
			FrameBytes: m.FrameBytes,
		})
	}
	for _, f := range records.Faults {
		resp.Faults = append(resp.Faults, FaultItem{Kind: f.Kind, At: f.At})
	}

	if s := records.Summary; s != nil {
		resp.Device = s.Device
		resp.Policy = s.Policy
		resp.Framing = s.Framing
		resp.Summary = summaryItem(s)
	}
	return resp, nil
}

// SessionStats implements Reader.
func (r *JournalReader) SessionStats(ctx context.Context, sessionID string) (*SessionStatsResponse, error) {
	infos, err := journal.ListSessions(ctx, r.ds)
	if err != nil {
		return nil, err
	}

	stats := &SessionStatsResponse{SessionID: sessionID}
	for _, info := range infos {
		if sessionID != "" && info.SessionID != sessionID {
			continue
		}
		stats.Sessions++
		stats.Faults += info.Faults
		stats.observe(info)

		// The summary carries link-level counters the per-record scan
		// cannot see. Without one, record counts are all we have.
		if s := info.Summary; s != nil {
			stats.Messages += s.MessagesDecoded
			stats.DecodeFailures += s.DecodeFailures
			stats.RenderFailures += s.RenderFailures
			stats.FramingErrors += s.FramingErrors
			stats.BytesRead += s.BytesRead
			stats.FramesAssembled += s.FramesAssembled
			stats.DeliveriesPersisted += s.DeliveriesPersisted
			stats.DeliveriesDropped += s.DeliveriesDropped
		} else {
			stats.Messages += info.Messages
		}
	}

	if sessionID != "" && stats.Sessions == 0 {
		return nil, journal.ErrSessionNotFound
	}
	return stats, nil
}

// observe widens the aggregate's [FirstSeen, LastSeen] bounds.
func (s *SessionStatsResponse) observe(info *journal.SessionInfo) {
	if !info.FirstSeen.IsZero() && (s.FirstSeen.IsZero() || info.FirstSeen.Before(s.FirstSeen)) {
		s.FirstSeen = info.FirstSeen
	}
	if info.LastSeen.After(s.LastSeen) {
		s.LastSeen = info.LastSeen
	}
}

// summaryItem converts a journal summary record to its response form.
func summaryItem(s *journal.SessionRecord) *SummaryItem {
	return &SummaryItem{
		CompletedAt:         s.CompletedAt,
		BytesRead:           s.BytesRead,
		FramesAssembled:     s.FramesAssembled,
		MessagesDecoded:     s.MessagesDecoded,
		DecodeFailures:      s.DecodeFailures,
		RenderFailures:      s.RenderFailures,
		FramingErrors:       s.FramingErrors,
		FaultsOverflow:      s.FaultsOverflow,
		FaultsBufferFull:    s.FaultsBufferFull,
		DeliveriesTotal:     s.DeliveriesTotal,
		DeliveriesPersisted: s.DeliveriesPersisted,
		DeliveriesDropped:   s.DeliveriesDropped,
	}
}
