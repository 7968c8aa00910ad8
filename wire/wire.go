// Package wire implements the fixed two-field link schema.
//
// A frame carries exactly one encoded message: field 1 is an unsigned
// 32-bit timestamp (varint), field 2 is a text payload (length-delimited).
// The schema is an external contract shared with the sender; this package
// encodes and decodes it but does not evolve it.
package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/justapithecus/adit/types"
)

// Field numbers of the link schema.
const (
	fieldTimestamp = protowire.Number(1)
	fieldData      = protowire.Number(2)
)

// DecodeErrorKind classifies decode failures.
type DecodeErrorKind int

const (
	// DecodeErrorEmpty indicates a zero-length frame.
	DecodeErrorEmpty DecodeErrorKind = iota
	// DecodeErrorMalformed indicates frame bytes structurally invalid
	// for the schema.
	DecodeErrorMalformed
)

// String returns the kind as a stable label for logs and counters.
func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeErrorEmpty:
		return "empty"
	case DecodeErrorMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// DecodeError represents a message decode failure.
// Decoding is deterministic: the same frame bytes produce the same
// outcome on every call.
type DecodeError struct {
	Kind DecodeErrorKind
	Msg  string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError returns true if the error is a DecodeError of any kind.
func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

// Decode parses one frame into a Message.
//
// An empty frame is rejected outright: the sender never produces
// zero-byte messages, so an empty frame is always an assembly artifact.
// Unknown fields are skipped and a missing field yields its zero value,
// matching the sender's encoder, which omits zero-valued fields. Data is
// not validated as UTF-8; the schema assumes it.
//
// Errors:
//   - *DecodeError with Kind=DecodeErrorEmpty: zero-length frame
//   - *DecodeError with Kind=DecodeErrorMalformed: structurally invalid bytes
func Decode(frame []byte) (*types.Message, error) {
	if len(frame) == 0 {
		return nil, &DecodeError{
			Kind: DecodeErrorEmpty,
			Msg:  "empty frame",
		}
	}

	var msg types.Message
	b := frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, &DecodeError{
				Kind: DecodeErrorMalformed,
				Msg:  "failed to parse field tag",
				Err:  protowire.ParseError(n),
			}
		}
		b = b[n:]

		switch {
		case num == fieldTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, &DecodeError{
					Kind: DecodeErrorMalformed,
					Msg:  "failed to parse timestamp",
					Err:  protowire.ParseError(n),
				}
			}
			msg.Timestamp = uint32(v)
			b = b[n:]

		case num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, &DecodeError{
					Kind: DecodeErrorMalformed,
					Msg:  "failed to parse data",
					Err:  protowire.ParseError(n),
				}
			}
			msg.Data = string(v)
			b = b[n:]

		default:
			// Unknown field number or mismatched wire type: skip the value.
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, &DecodeError{
					Kind: DecodeErrorMalformed,
					Msg:  fmt.Sprintf("failed to skip field %d", num),
					Err:  protowire.ParseError(n),
				}
			}
			b = b[n:]
		}
	}

	return &msg, nil
}

// Encode serializes a Message into frame bytes.
// Zero-valued fields are omitted, matching the encoder on the other end
// of the link. Encoding a zero-valued Message yields an empty frame.
func Encode(msg *types.Message) []byte {
	var b []byte
	if msg.Timestamp != 0 {
		b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(msg.Timestamp))
	}
	if msg.Data != "" {
		b = protowire.AppendTag(b, fieldData, protowire.BytesType)
		b = protowire.AppendString(b, msg.Data)
	}
	return b
}
