// Package types defines core domain types for the adit link pipeline.
//
//nolint:revive // types is a common Go package naming convention
package types

import "time"

// Message is one decoded telemetry message from the link.
//
// The wire schema is a fixed external contract: an unsigned 32-bit
// timestamp and a UTF-8 text payload. adit decodes it, it does not
// evolve it.
type Message struct {
	// Timestamp is seconds since the Unix epoch as sent by the peer.
	// No range is enforced beyond the 32-bit width.
	Timestamp uint32 `msgpack:"timestamp" json:"timestamp"`
	// Data is the text payload. Empty is valid.
	Data string `msgpack:"data" json:"data"`
}

// Delivery is a fully processed message as handed to sinks: the decoded
// message, its canonical rendered form, and receive metadata.
type Delivery struct {
	// Seq is the 1-based receive sequence within a session.
	Seq uint64 `msgpack:"seq" json:"seq"`
	// ReceivedAt is the local receive time.
	ReceivedAt time.Time `msgpack:"received_at" json:"received_at"`
	// Message is the decoded message.
	Message Message `msgpack:"message" json:"message"`
	// JSON is the canonical rendered form, {"timestamp":T,"data":"S"}.
	JSON string `msgpack:"json" json:"json"`
	// FrameBytes is the encoded frame length on the wire.
	FrameBytes int `msgpack:"frame_bytes" json:"frame_bytes"`
}
