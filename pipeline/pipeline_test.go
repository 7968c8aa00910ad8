package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/adit/framing"
	"github.com/justapithecus/adit/journal"
	"github.com/justapithecus/adit/log"
	"github.com/justapithecus/adit/metrics"
	"github.com/justapithecus/adit/policy"
	"github.com/justapithecus/adit/serial"
	"github.com/justapithecus/adit/types"
	"github.com/justapithecus/adit/wire"
)

// ============================================================
// Helpers
// ============================================================

func newTestLogger() *log.Logger {
	meta := &types.SessionMeta{SessionID: "sess-test", Device: "stub"}
	return log.NewLogger(meta).WithOutput(io.Discard)
}

func encodeFrame(t *testing.T, ts uint32, data string) []byte {
	t.Helper()
	return wire.Encode(&types.Message{Timestamp: ts, Data: data})
}

// prefixFrame wraps payload in the 4-byte length prefix.
func prefixFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := framing.WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	return buf.Bytes()
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type testPipeline struct {
	port      *serial.StubPort
	sink      *policy.StubSink
	collector *metrics.Collector
	pipeline  *Pipeline
}

func newTestPipeline(t *testing.T, asm framing.Assembler, mutate func(*Config)) *testPipeline {
	t.Helper()

	port := serial.NewStubPort()
	sink := policy.NewStubSink()
	config := &Config{
		Port:      port,
		Assembler: asm,
		Policy:    policy.NewStrictPolicy(sink),
		Logger:    newTestLogger(),
		Collector: metrics.NewCollector("strict", "event", "none", "sess-test", "stub"),
	}
	if mutate != nil {
		mutate(config)
	}

	p, err := New(config)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testPipeline{
		port:      port,
		sink:      sink,
		collector: config.Collector,
		pipeline:  p,
	}
}

// start runs the loop in a goroutine and blocks until its startup reset
// has happened, so pushed data cannot be wiped by initialization.
func (tp *testPipeline) start(t *testing.T) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- tp.pipeline.Run(ctx)
	}()

	waitFor(t, "pipeline init", func() bool {
		return tp.port.FlushCount() >= 1 && tp.port.ResetCount() >= 1
	})
	return cancel, done
}

// stop cancels the loop and returns its exit error.
func stop(t *testing.T, cancel context.CancelFunc, done <-chan error) error {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("pipeline did not stop after cancellation")
		return nil
	}
}

// ============================================================
// Construction
// ============================================================

func TestNew_Validation(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:      serial.NewStubPort(),
			Assembler: framing.NewEventAssembler(0),
			Policy:    policy.NewStrictPolicy(policy.NewStubSink()),
			Logger:    newTestLogger(),
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing port", func(c *Config) { c.Port = nil }},
		{"missing assembler", func(c *Config) { c.Assembler = nil }},
		{"missing policy", func(c *Config) { c.Policy = nil }},
		{"missing logger", func(c *Config) { c.Logger = nil }},
		{"negative read buffer", func(c *Config) { c.ReadBufferSize = -1 }},
		{"negative read timeout", func(c *Config) { c.ReadTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)
			if _, err := New(config); err == nil {
				t.Errorf("New() with %s: expected error, got nil", tt.name)
			}
		})
	}

	if _, err := New(valid()); err != nil {
		t.Fatalf("New() with valid config: %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New(&Config{
		Port:      serial.NewStubPort(),
		Assembler: framing.NewEventAssembler(0),
		Policy:    policy.NewStrictPolicy(policy.NewStubSink()),
		Logger:    newTestLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(p.readBuf) != DefaultReadBufferSize {
		t.Errorf("read buffer size = %d, want %d", len(p.readBuf), DefaultReadBufferSize)
	}
	if p.readTimeout != DefaultReadTimeout {
		t.Errorf("read timeout = %v, want %v", p.readTimeout, DefaultReadTimeout)
	}
}

// ============================================================
// Loop: decode, render, deliver
// ============================================================

func TestRun_DecodeRenderDeliver(t *testing.T) {
	tp := newTestPipeline(t, framing.NewEventAssembler(0), nil)
	cancel, done := tp.start(t)

	frame := encodeFrame(t, 1758894299, "Hello world!")
	tp.port.PushData(frame)

	waitFor(t, "delivery", func() bool {
		return tp.sink.Stats().DeliveriesWritten == 1
	})

	runErr := stop(t, cancel, done)
	if !IsCanceled(runErr) {
		t.Errorf("Run() exit = %v, want canceled", runErr)
	}

	d := tp.sink.Written[0]
	want := `{"timestamp":1758894299,"data":"Hello world!"}`
	if d.JSON != want {
		t.Errorf("delivery JSON = %q, want %q", d.JSON, want)
	}
	if d.Seq != 1 {
		t.Errorf("delivery seq = %d, want 1", d.Seq)
	}
	if d.FrameBytes != len(frame) {
		t.Errorf("delivery frame bytes = %d, want %d", d.FrameBytes, len(frame))
	}
	if d.Message.Timestamp != 1758894299 || d.Message.Data != "Hello world!" {
		t.Errorf("delivery message = %+v", d.Message)
	}
	if d.ReceivedAt.IsZero() {
		t.Error("delivery received_at is zero")
	}

	snap := tp.collector.Snapshot()
	if snap.ChunksRead != 1 {
		t.Errorf("chunks read = %d, want 1", snap.ChunksRead)
	}
	if snap.BytesRead != int64(len(frame)) {
		t.Errorf("bytes read = %d, want %d", snap.BytesRead, len(frame))
	}
	if snap.FramesAssembled != 1 {
		t.Errorf("frames assembled = %d, want 1", snap.FramesAssembled)
	}
	if snap.MessagesDecoded != 1 {
		t.Errorf("messages decoded = %d, want 1", snap.MessagesDecoded)
	}
	if snap.DecodeFailures != 0 {
		t.Errorf("decode failures = %d, want 0", snap.DecodeFailures)
	}
}

func TestRun_InitDiscardsResidualState(t *testing.T) {
	tp := newTestPipeline(t, framing.NewEventAssembler(0), nil)

	// Queued before the loop starts; initialization must wipe it.
	tp.port.PushData(encodeFrame(t, 1, "stale"))

	cancel, done := tp.start(t)

	tp.port.PushData(encodeFrame(t, 2, "fresh"))
	waitFor(t, "delivery", func() bool {
		return tp.sink.Stats().DeliveriesWritten == 1
	})
	stop(t, cancel, done)

	if got := tp.sink.Written[0].Message.Data; got != "fresh" {
		t.Errorf("delivered data = %q, want %q", got, "fresh")
	}
	if n := tp.sink.Stats().DeliveriesWritten; n != 1 {
		t.Errorf("deliveries = %d, want 1 (stale data must not survive init)", n)
	}
}

func TestRun_EmptyFrameLoopContinues(t *testing.T) {
	tp := newTestPipeline(t, framing.NewPrefixAssembler(0, 0), nil)
	cancel, done := tp.start(t)

	// Declared length zero: the assembler yields an empty frame, the
	// decoder rejects it.
	tp.port.PushData(prefixFrame(t, nil))
	waitFor(t, "decode failure", func() bool {
		return tp.collector.Snapshot().DecodeFailures == 1
	})

	tp.port.PushData(prefixFrame(t, encodeFrame(t, 7, "ok")))
	waitFor(t, "delivery", func() bool {
		return tp.sink.Stats().DeliveriesWritten == 1
	})
	stop(t, cancel, done)

	snap := tp.collector.Snapshot()
	if snap.DecodeByKind["empty"] != 1 {
		t.Errorf("decode failures by kind = %v, want empty=1", snap.DecodeByKind)
	}
	if snap.FramesAssembled != 2 {
		t.Errorf("frames assembled = %d, want 2", snap.FramesAssembled)
	}
	if got := tp.sink.Written[0].Message.Data; got != "ok" {
		t.Errorf("delivered data = %q, want %q", got, "ok")
	}
}

func TestRun_MalformedFrameLoopContinues(t *testing.T) {
	tp := newTestPipeline(t, framing.NewEventAssembler(0), nil)
	cancel, done := tp.start(t)

	tp.port.PushData([]byte{0xff, 0xff, 0xff})
	waitFor(t, "decode failure", func() bool {
		return tp.collector.Snapshot().DecodeFailures == 1
	})

	tp.port.PushData(encodeFrame(t, 8, "after"))
	waitFor(t, "delivery", func() bool {
		return tp.sink.Stats().DeliveriesWritten == 1
	})
	stop(t, cancel, done)

	snap := tp.collector.Snapshot()
	if snap.DecodeByKind["malformed"] != 1 {
		t.Errorf("decode failures by kind = %v, want malformed=1", snap.DecodeByKind)
	}
	if got := tp.sink.Written[0].Message.Data; got != "after" {
		t.Errorf("delivered data = %q, want %q", got, "after")
	}
}

// ============================================================
// Event-mode flush behavior
// ============================================================

func TestRun_FlushAfterDecode_OnlyOnSuccess(t *testing.T) {
	tp := newTestPipeline(t, framing.NewEventAssembler(0), func(c *Config) {
		c.FlushAfterDecode = true
	})
	cancel, done := tp.start(t)

	tp.port.PushData(encodeFrame(t, 1, "a"))
	waitFor(t, "first delivery", func() bool {
		return tp.sink.Stats().DeliveriesWritten == 1
	})
	waitFor(t, "flush after decode", func() bool {
		return tp.port.FlushCount() >= 2
	})

	// A failed decode must not flush.
	tp.port.PushData([]byte{0xff, 0xff, 0xff})
	waitFor(t, "decode failure", func() bool {
		return tp.collector.Snapshot().DecodeFailures == 1
	})

	tp.port.PushData(encodeFrame(t, 2, "b"))
	waitFor(t, "second delivery", func() bool {
		return tp.sink.Stats().DeliveriesWritten == 2
	})
	waitFor(t, "second flush after decode", func() bool {
		return tp.port.FlushCount() >= 3
	})
	stop(t, cancel, done)

	// Init + two successful decodes. The malformed frame adds none.
	if got := tp.port.FlushCount(); got != 3 {
		t.Errorf("flush count = %d, want 3", got)
	}
}

// ============================================================
// Prefix-mode assembly across reads
// ============================================================

func TestRun_PrefixFrameSplitAcrossReads(t *testing.T) {
	tp := newTestPipeline(t, framing.NewPrefixAssembler(0, 0), nil)
	cancel, done := tp.start(t)

	framed := prefixFrame(t, encodeFrame(t, 9, "split"))
	tp.port.PushData(framed[:3])
	waitFor(t, "first chunk consumed", func() bool {
		return tp.collector.Snapshot().ChunksRead == 1
	})
	tp.port.PushData(framed[3:])
	waitFor(t, "delivery", func() bool {
		return tp.sink.Stats().DeliveriesWritten == 1
	})
	stop(t, cancel, done)

	snap := tp.collector.Snapshot()
	if snap.ChunksRead != 2 {
		t.Errorf("chunks read = %d, want 2", snap.ChunksRead)
	}
	if snap.FramesAssembled != 1 {
		t.Errorf("frames assembled = %d, want 1", snap.FramesAssembled)
	}
	if got := tp.sink.Written[0].Message.Data; got != "split" {
		t.Errorf("delivered data = %q, want %q", got, "split")
	}
}

func TestRun_PartialFrameExpires(t *testing.T) {
	tp := newTestPipeline(t, framing.NewPrefixAssembler(0, 40*time.Millisecond), nil)
	cancel, done := tp.start(t)

	framed := prefixFrame(t, encodeFrame(t, 5, "late"))
	tp.port.PushData(framed[:2])

	waitFor(t, "partial frame expiry", func() bool {
		return tp.collector.Snapshot().FramingErrors == 1
	})
	if snap := tp.collector.Snapshot(); snap.FramingByKind["partial"] != 1 {
		t.Errorf("framing errors by kind = %v, want partial=1", snap.FramingByKind)
	}

	// The stream resyncs at the next clean frame boundary.
	tp.port.PushData(prefixFrame(t, encodeFrame(t, 6, "ontime")))
	waitFor(t, "delivery", func() bool {
		return tp.sink.Stats().DeliveriesWritten == 1
	})
	stop(t, cancel, done)

	if got := tp.sink.Written[0].Message.Data; got != "ontime" {
		t.Errorf("delivered data = %q, want %q", got, "ontime")
	}
}

// ============================================================
// Stream faults
// ============================================================

func TestRun_FaultResetsStream(t *testing.T) {
	tp := newTestPipeline(t, framing.NewPrefixAssembler(0, 0), nil)
	cancel, done := tp.start(t)

	// Leave a partial frame pending, then fault. The reset must drop it
	// without counting a framing error.
	framed := prefixFrame(t, encodeFrame(t, 11, "stale"))
	tp.port.PushData(framed[:4])
	waitFor(t, "partial chunk consumed", func() bool {
		return tp.collector.Snapshot().ChunksRead == 1
	})

	tp.port.PushEvent(serial.Event{Kind: serial.EventOverflow})
	waitFor(t, "overflow handled", func() bool {
		return tp.collector.Snapshot().FaultsOverflow == 1
	})

	tp.port.PushEvent(serial.Event{Kind: serial.EventBufferFull})
	waitFor(t, "buffer-full handled", func() bool {
		return tp.collector.Snapshot().FaultsBufferFull == 1
	})

	tp.port.PushData(prefixFrame(t, encodeFrame(t, 12, "clean")))
	waitFor(t, "delivery", func() bool {
		return tp.sink.Stats().DeliveriesWritten == 1
	})
	stop(t, cancel, done)

	snap := tp.collector.Snapshot()
	if snap.FramingErrors != 0 {
		t.Errorf("framing errors = %d, want 0 (fault reset is not a framing error)", snap.FramingErrors)
	}
	if got := tp.sink.Written[0].Message.Data; got != "clean" {
		t.Errorf("delivered data = %q, want %q", got, "clean")
	}
	// Init flush plus one per fault.
	if got := tp.port.FlushCount(); got != 3 {
		t.Errorf("flush count = %d, want 3", got)
	}
	if got := tp.port.ResetCount(); got != 3 {
		t.Errorf("reset count = %d, want 3", got)
	}
}

func TestRun_FaultJournaled(t *testing.T) {
	client := journal.NewStubClient()
	tp := newTestPipeline(t, framing.NewEventAssembler(0), func(c *Config) {
		c.FaultRecorder = client
	})
	cancel, done := tp.start(t)

	tp.port.PushEvent(serial.Event{Kind: serial.EventOverflow})
	waitFor(t, "fault journaled", func() bool {
		return tp.collector.Snapshot().JournalWriteSuccess == 1
	})
	stop(t, cancel, done)

	if len(client.Faults) != 1 {
		t.Fatalf("journaled faults = %d, want 1", len(client.Faults))
	}
	if client.Faults[0].Kind != types.FaultOverflow {
		t.Errorf("journaled fault kind = %q, want %q", client.Faults[0].Kind, types.FaultOverflow)
	}
	if client.Faults[0].At.IsZero() {
		t.Error("journaled fault time is zero")
	}
}

func TestRun_FaultJournalFailureTolerated(t *testing.T) {
	client := journal.NewStubClient()
	client.WriteErr = errors.New("journal down")
	tp := newTestPipeline(t, framing.NewEventAssembler(0), func(c *Config) {
		c.FaultRecorder = client
	})
	cancel, done := tp.start(t)

	tp.port.PushEvent(serial.Event{Kind: serial.EventOverflow})
	waitFor(t, "journal failure counted", func() bool {
		return tp.collector.Snapshot().JournalWriteFailure == 1
	})

	// The loop keeps processing.
	tp.port.PushData(encodeFrame(t, 3, "still on"))
	waitFor(t, "delivery", func() bool {
		return tp.sink.Stats().DeliveriesWritten == 1
	})
	stop(t, cancel, done)

	if got := tp.sink.Written[0].Message.Data; got != "still on" {
		t.Errorf("delivered data = %q, want %q", got, "still on")
	}
}

// ============================================================
// Loop termination
// ============================================================

func TestRun_CancelWhileIdle(t *testing.T) {
	tp := newTestPipeline(t, framing.NewEventAssembler(0), nil)
	cancel, done := tp.start(t)

	runErr := stop(t, cancel, done)
	if !IsCanceled(runErr) {
		t.Errorf("Run() exit = %v, want canceled", runErr)
	}
	if IsPortError(runErr) {
		t.Error("canceled exit must not classify as a port error")
	}
}

func TestRun_PortClosedReturnsPortError(t *testing.T) {
	tp := newTestPipeline(t, framing.NewEventAssembler(0), nil)
	cancel, done := tp.start(t)
	defer cancel()

	if err := tp.port.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var runErr error
	select {
	case runErr = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after port closure")
	}

	if !IsPortError(runErr) {
		t.Errorf("Run() exit = %v, want port error", runErr)
	}
	if !errors.Is(runErr, serial.ErrClosed) {
		t.Errorf("Run() exit should wrap ErrClosed, got %v", runErr)
	}
	if IsCanceled(runErr) {
		t.Error("port failure must not classify as canceled")
	}
}

// ============================================================
// Per-frame processing
// ============================================================

func TestProcess_Statuses(t *testing.T) {
	tp := newTestPipeline(t, framing.NewEventAssembler(0), nil)
	ctx := t.Context()

	status, err := tp.pipeline.Process(ctx, encodeFrame(t, 1758894299, "Hello world!"))
	if status != StatusOK || err != nil {
		t.Fatalf("Process(valid) = (%v, %v), want (ok, nil)", status, err)
	}

	status, err = tp.pipeline.Process(ctx, nil)
	if status != StatusEmpty || err == nil {
		t.Errorf("Process(empty) = (%v, %v), want (empty, error)", status, err)
	}
	if !wire.IsDecodeError(err) {
		t.Errorf("Process(empty) error = %v, want DecodeError", err)
	}

	status, err = tp.pipeline.Process(ctx, []byte{0xff, 0xff, 0xff})
	if status != StatusDecodeError || err == nil {
		t.Errorf("Process(malformed) = (%v, %v), want (decode_error, error)", status, err)
	}

	// Seq advances only on success.
	status, _ = tp.pipeline.Process(ctx, encodeFrame(t, 1, "next"))
	if status != StatusOK {
		t.Fatalf("Process(valid) status = %v", status)
	}
	if got := tp.sink.Written[1].Seq; got != 2 {
		t.Errorf("second delivery seq = %d, want 2", got)
	}

	snap := tp.collector.Snapshot()
	if snap.MessagesDecoded != 2 {
		t.Errorf("messages decoded = %d, want 2", snap.MessagesDecoded)
	}
	if snap.DecodeFailures != 2 {
		t.Errorf("decode failures = %d, want 2", snap.DecodeFailures)
	}
	if snap.DecodeByKind["empty"] != 1 || snap.DecodeByKind["malformed"] != 1 {
		t.Errorf("decode failures by kind = %v", snap.DecodeByKind)
	}

	labels := map[ProcessStatus]string{
		StatusOK:          "ok",
		StatusEmpty:       "empty",
		StatusDecodeError: "decode_error",
		StatusRenderError: "render_error",
	}
	for st, want := range labels {
		if st.String() != want {
			t.Errorf("ProcessStatus(%d).String() = %q, want %q", st, st.String(), want)
		}
	}
}

func TestProcess_DeliveryRefusedKeepsStatusOK(t *testing.T) {
	tp := newTestPipeline(t, framing.NewEventAssembler(0), nil)
	tp.sink.ErrorOnWrite = errors.New("sink down")

	status, err := tp.pipeline.Process(t.Context(), encodeFrame(t, 4, "refused"))
	if status != StatusOK || err != nil {
		t.Errorf("Process() = (%v, %v), want (ok, nil): delivery refusal is the policy's accounting", status, err)
	}

	stats := tp.pipeline.policy.Stats()
	if stats.TotalDeliveries != 1 || stats.Persisted != 0 || stats.Errors != 1 {
		t.Errorf("policy stats = %+v, want total=1 persisted=0 errors=1", stats)
	}
}

func TestProcess_ParityLogLines(t *testing.T) {
	var logBuf bytes.Buffer
	meta := &types.SessionMeta{SessionID: "sess-parity", Device: "stub"}

	tp := newTestPipeline(t, framing.NewEventAssembler(0), func(c *Config) {
		c.Logger = log.NewLogger(meta).WithOutput(&logBuf)
	})

	// Original acceptance values: this message encodes to a 21-byte
	// frame and renders to 47 bytes of JSON.
	frame := encodeFrame(t, 1727185234, "Hello, world!")
	if len(frame) != 21 {
		t.Fatalf("encoded frame length = %d, want 21", len(frame))
	}

	status, err := tp.pipeline.Process(t.Context(), frame)
	if status != StatusOK || err != nil {
		t.Fatalf("Process() = (%v, %v)", status, err)
	}

	d := tp.sink.Written[0]
	want := `{"timestamp":1727185234,"data":"Hello, world!"}`
	if d.JSON != want {
		t.Errorf("delivery JSON = %q, want %q", d.JSON, want)
	}
	if len(d.JSON) != 47 {
		t.Errorf("rendered JSON length = %d, want 47", len(d.JSON))
	}

	out := logBuf.String()
	for _, fragment := range []string{
		"received payload",
		`"frame_bytes":21`,
		"json payload created",
		"json payload length",
		`"json_bytes":47`,
	} {
		if !strings.Contains(out, fragment) {
			t.Errorf("log output missing %q\nlog output: %s", fragment, out)
		}
	}
}
