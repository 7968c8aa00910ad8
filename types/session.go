package types

import "time"

// FaultKind classifies peripheral-reported stream faults.
type FaultKind string

const (
	// FaultOverflow is a peripheral FIFO overrun: bytes were lost before
	// the driver could buffer them.
	FaultOverflow FaultKind = "overflow"
	// FaultBufferFull means the receive ring filled and incoming bytes
	// were dropped.
	FaultBufferFull FaultKind = "buffer_full"
)

// SessionMeta identifies one listen session on a link.
// Every log entry and journal record of a session carries its SessionID.
type SessionMeta struct {
	// SessionID uniquely identifies the session.
	SessionID string `msgpack:"session_id" json:"session_id"`
	// Device is the byte source the session listened on.
	Device string `msgpack:"device" json:"device"`
	// Baud is the configured line rate. Zero when the source is not a tty.
	Baud int `msgpack:"baud,omitempty" json:"baud,omitempty"`
	// Framing is the assembler mode, "event" or "prefix".
	Framing string `msgpack:"framing" json:"framing"`
	// StartedAt is the session start time.
	StartedAt time.Time `msgpack:"started_at" json:"started_at"`
}
