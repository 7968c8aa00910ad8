package reader

import "time"

// Response types for the read-only commands. These are the payloads the
// renderer receives, so field order and json tags define the CLI output
// contract for every format.

// SessionListItem is one row of `adit list`.
type SessionListItem struct {
	SessionID string    `json:"session_id"`
	Source    string    `json:"source"`
	Category  string    `json:"category"`
	Day       string    `json:"day"`
	Messages  int64     `json:"messages"`
	Faults    int64     `json:"faults"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	// Completed reports whether the session wrote its end-of-session
	// summary. False usually means the listener died mid-session.
	Completed bool `json:"completed"`
}

// MessageItem is one decoded message inside an inspect response.
type MessageItem struct {
	Seq        uint64    `json:"seq"`
	ReceivedAt time.Time `json:"received_at"`
	Timestamp  uint32    `json:"timestamp"`
	Data       string    `json:"data"`
	JSON       string    `json:"json"`
	FrameBytes int       `json:"frame_bytes"`
}

// FaultItem is one stream fault inside an inspect response.
type FaultItem struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
}

// InspectSessionResponse is the deep view of a single session.
type InspectSessionResponse struct {
	SessionID string `json:"session_id"`
	// Device, Policy and Framing come from the summary record and are
	// empty when the session never completed.
	Device   string        `json:"device,omitempty"`
	Policy   string        `json:"policy,omitempty"`
	Framing  string        `json:"framing,omitempty"`
	Messages []MessageItem `json:"messages"`
	Faults   []FaultItem   `json:"faults"`
	Summary  *SummaryItem  `json:"summary,omitempty"`
}

// SummaryItem is the end-of-session counter snapshot inside an inspect
// response.
type SummaryItem struct {
	CompletedAt         time.Time `json:"completed_at"`
	BytesRead           int64     `json:"bytes_read"`
	FramesAssembled     int64     `json:"frames_assembled"`
	MessagesDecoded     int64     `json:"messages_decoded"`
	DecodeFailures      int64     `json:"decode_failures"`
	RenderFailures      int64     `json:"render_failures"`
	FramingErrors       int64     `json:"framing_errors"`
	FaultsOverflow      int64     `json:"faults_overflow"`
	FaultsBufferFull    int64     `json:"faults_buffer_full"`
	DeliveriesTotal     int64     `json:"deliveries_total"`
	DeliveriesPersisted int64     `json:"deliveries_persisted"`
	DeliveriesDropped   int64     `json:"deliveries_dropped"`
}

// SessionStatsResponse is the aggregate view for `adit stats`.
// With a session ID the counters describe that session; without one they
// are summed over every session in the journal.
type SessionStatsResponse struct {
	// SessionID is empty for the all-sessions aggregate.
	SessionID string `json:"session_id,omitempty"`
	Sessions  int    `json:"sessions"`

	Messages        int64 `json:"messages"`
	DecodeFailures  int64 `json:"decode_failures"`
	RenderFailures  int64 `json:"render_failures"`
	FramingErrors   int64 `json:"framing_errors"`
	Faults          int64 `json:"faults"`
	BytesRead       int64 `json:"bytes_read"`
	FramesAssembled int64 `json:"frames_assembled"`

	DeliveriesPersisted int64 `json:"deliveries_persisted"`
	DeliveriesDropped   int64 `json:"deliveries_dropped"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}
