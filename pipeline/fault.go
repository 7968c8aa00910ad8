package pipeline

import (
	"context"
	"time"

	"github.com/justapithecus/adit/serial"
	"github.com/justapithecus/adit/types"
)

// FaultRecorder persists stream faults for later inspection.
// journal.Recorder and journal.StubClient satisfy it.
type FaultRecorder interface {
	WriteFault(ctx context.Context, kind types.FaultKind, at time.Time) error
}

// handleFault recovers from a peripheral-reported stream fault. Every
// fault gets the same treatment regardless of kind or frequency: discard
// buffered-but-unread bytes, discard queued events, drop any partial
// frame, warn, count. Bytes queued before the fault never reach the
// assembler; the next data-ready event starts from clean state.
func (p *Pipeline) handleFault(ctx context.Context, ev serial.EventKind) {
	var kind types.FaultKind
	switch ev {
	case serial.EventOverflow:
		kind = types.FaultOverflow
	case serial.EventBufferFull:
		kind = types.FaultBufferFull
	default:
		return
	}

	p.logger.Warn("stream fault", map[string]any{
		"kind": string(kind),
	})

	if err := p.port.Flush(); err != nil {
		p.logger.Warn("flush after fault failed", map[string]any{
			"error": err.Error(),
		})
	}
	p.port.ResetEvents()
	p.assembler.Reset()

	// Counted once the reset is done, so the counter marks faults
	// handled, not faults seen.
	if kind == types.FaultOverflow {
		p.collector.IncFaultOverflow()
	} else {
		p.collector.IncFaultBufferFull()
	}

	p.recordFault(ctx, kind)
}

// recordFault journals the fault when a recorder is configured. A journal
// failure is counted and logged, never escalated; the link outranks its
// bookkeeping.
func (p *Pipeline) recordFault(ctx context.Context, kind types.FaultKind) {
	if p.faults == nil {
		return
	}
	if err := p.faults.WriteFault(ctx, kind, time.Now().UTC()); err != nil {
		p.logger.Warn("journal fault write failed", map[string]any{
			"kind":  string(kind),
			"error": err.Error(),
		})
		p.collector.IncJournalWriteFailure()
		return
	}
	p.collector.IncJournalWriteSuccess()
}
