package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/justapithecus/adit/render"
	"github.com/justapithecus/adit/types"
	"github.com/justapithecus/adit/wire"
)

// ProcessStatus classifies the outcome of one frame's lifecycle.
type ProcessStatus int

const (
	// StatusOK means the frame decoded, rendered, and was handed to the
	// delivery policy.
	StatusOK ProcessStatus = iota
	// StatusEmpty means the frame had no bytes. Always an assembly
	// artifact; the sender never produces empty messages.
	StatusEmpty
	// StatusDecodeError means the frame bytes were structurally invalid.
	StatusDecodeError
	// StatusRenderError means the decoded message could not be rendered.
	StatusRenderError
)

// String returns the status as a stable label for logs and counters.
func (s ProcessStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusDecodeError:
		return "decode_error"
	case StatusRenderError:
		return "render_error"
	default:
		return "unknown"
	}
}

// Process runs one frame through decode, render, and delivery. Every
// non-ok outcome is logged and counted here; the frame is dropped and the
// caller carries on. Decoding is deterministic, so there is no retry and
// no resynchronization attempt.
//
// Delivery refusal by the policy does not change the status: the message
// was received and rendered, and on a receive-only link there is no
// upstream to report to. The policy counts its own drops.
func (p *Pipeline) Process(ctx context.Context, frame []byte) (ProcessStatus, error) {
	msg, err := wire.Decode(frame)
	if err != nil {
		status := StatusDecodeError
		kind := wire.DecodeErrorMalformed
		var decodeErr *wire.DecodeError
		if errors.As(err, &decodeErr) {
			kind = decodeErr.Kind
		}
		if kind == wire.DecodeErrorEmpty {
			status = StatusEmpty
		}
		p.logger.Error("failed to unpack payload", map[string]any{
			"kind":        kind.String(),
			"frame_bytes": len(frame),
			"error":       err.Error(),
		})
		p.collector.IncDecodeFailure(kind.String())
		return status, err
	}
	p.collector.IncMessageDecoded()
	p.logger.Info("received payload", map[string]any{
		"frame_bytes": len(frame),
	})

	rendered, err := render.Render(msg)
	if err != nil {
		p.logger.Error("failed to render payload", map[string]any{
			"error": err.Error(),
		})
		p.collector.IncRenderFailure()
		return StatusRenderError, err
	}
	p.logger.Info("json payload created", map[string]any{
		"json": rendered,
	})
	p.logger.Info("json payload length", map[string]any{
		"json_bytes": len(rendered),
	})

	p.seq++
	delivery := &types.Delivery{
		Seq:        p.seq,
		ReceivedAt: time.Now().UTC(),
		Message:    *msg,
		JSON:       rendered,
		FrameBytes: len(frame),
	}

	if err := p.policy.Deliver(ctx, delivery); err != nil {
		p.logger.Warn("delivery refused", map[string]any{
			"seq":   delivery.Seq,
			"error": err.Error(),
		})
	}

	return StatusOK, nil
}
