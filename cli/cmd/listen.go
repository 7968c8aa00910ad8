package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/adit/adapter"
	"github.com/justapithecus/adit/adapter/redis"
	"github.com/justapithecus/adit/adapter/webhook"
	"github.com/justapithecus/adit/cli/config"
	"github.com/justapithecus/adit/framing"
	"github.com/justapithecus/adit/journal"
	"github.com/justapithecus/adit/log"
	"github.com/justapithecus/adit/metrics"
	"github.com/justapithecus/adit/pipeline"
	"github.com/justapithecus/adit/policy"
	"github.com/justapithecus/adit/serial"
	"github.com/justapithecus/adit/types"
)

// Exit codes for the listen command. Clean shutdown on signal is success;
// configuration problems exit 1; a device that cannot be opened or that
// fails mid-session exits 2.
const (
	exitSuccess     = 0
	exitUsageError  = 1
	exitPortFailure = 2
)

// ListenCommand returns the listen command, the only command that opens a
// device and receives data.
func ListenCommand() *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "Receive telemetry from a serial device until interrupted",
		Flags: []cli.Flag{
			// Link flags
			&cli.StringFlag{
				Name:  "device",
				Usage: "Serial device path, e.g. /dev/ttyUSB0",
			},
			&cli.IntFlag{
				Name:  "baud",
				Usage: "Baud rate",
				Value: 115200,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to YAML config file (flags override file values)",
			},
			&cli.StringFlag{
				Name:  "session-id",
				Usage: "Session ID (generated when omitted)",
			},
			// Framing flags
			&cli.StringFlag{
				Name:  "framing",
				Usage: "Framing mode: event or prefix",
				Value: "event",
			},
			&cli.IntFlag{
				Name:  "max-frame",
				Usage: "Max frame size in bytes (0 = mode default)",
			},
			&cli.DurationFlag{
				Name:  "assemble-timeout",
				Usage: "Partial frame assembly deadline (prefix mode)",
			},
			// Buffer flags
			&cli.IntFlag{
				Name:  "read-buffer",
				Usage: "Receive ring buffer size in bytes (0 = default)",
			},
			&cli.IntFlag{
				Name:  "queue-depth",
				Usage: "Receive event queue depth (0 = default)",
			},
			// Policy flags
			&cli.StringFlag{
				Name:  "policy",
				Usage: "Delivery policy: strict or buffered",
				Value: "strict",
			},
			&cli.IntFlag{
				Name:  "buffer-events",
				Usage: "Max buffered deliveries (buffered policy)",
			},
			&cli.Int64Flag{
				Name:  "buffer-bytes",
				Usage: "Max buffer size in bytes (buffered policy)",
			},
			&cli.IntFlag{
				Name:  "flush-every",
				Usage: "Flush after N buffered deliveries (buffered policy)",
			},
			&cli.DurationFlag{
				Name:  "flush-interval",
				Usage: "Flush on an interval (buffered policy)",
			},
			// Sink flags
			&cli.StringFlag{
				Name:  "webhook-url",
				Usage: "POST each delivery batch to this URL",
			},
			&cli.StringFlag{
				Name:  "redis-addr",
				Usage: "Publish deliveries to Redis at host:port or redis:// URL",
			},
			&cli.StringFlag{
				Name:  "redis-channel",
				Usage: "Redis pub/sub channel",
			},
			// Journal flags
			&cli.StringFlag{
				Name:  "journal-path",
				Usage: "Journal storage path (fs: directory, s3: bucket/prefix)",
			},
			&cli.StringFlag{
				Name:  "journal-backend",
				Usage: "Journal storage backend: fs or s3",
				Value: "fs",
			},
			&cli.StringFlag{
				Name:  "journal-s3-region",
				Usage: "AWS region for S3 backend (optional, uses default chain)",
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "Source identifier for partitioning",
				Value: "default",
			},
			&cli.StringFlag{
				Name:  "category",
				Usage: "Category identifier for partitioning",
				Value: "default",
			},
			// Output flags
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
				Value: "info",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress result output",
			},
		},
		Action: listenAction,
	}
}

// linkChoice holds the resolved serial link parameters.
type linkChoice struct {
	device string
	baud   int
}

// framingChoice holds the resolved frame assembly parameters.
type framingChoice struct {
	mode            framing.Mode
	maxFrame        int
	assembleTimeout time.Duration
}

// bufferChoice holds the resolved receive buffer parameters.
type bufferChoice struct {
	readBytes  int
	queueDepth int
}

// policyChoice holds the resolved delivery policy configuration.
type policyChoice struct {
	name          string
	bufferEvents  int
	bufferBytes   int64
	flushEvery    int
	flushInterval time.Duration
}

// sinkChoice holds the resolved delivery sink set.
type sinkChoice struct {
	log          bool
	webhookURL   string
	redisAddr    string
	redisChannel string
}

// journalChoice holds the resolved journal storage configuration.
type journalChoice struct {
	path     string
	backend  string
	s3Region string
	source   string
	category string
}

func listenAction(c *cli.Context) error {
	// Load the config file first so flags can override it.
	var cfg *config.Config
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to load config: %v", err), exitUsageError)
		}
		if err := loaded.Validate(); err != nil {
			return cli.Exit(fmt.Sprintf("invalid config: %v", err), exitUsageError)
		}
		cfg = loaded
	}

	link := linkChoice{
		device: resolveString(c, "device", configVal(cfg, func(cf *config.Config) string { return cf.Device })),
		baud:   resolveInt(c, "baud", configVal(cfg, func(cf *config.Config) int { return cf.Baud })),
	}
	if link.device == "" {
		return cli.Exit("device is required (--device or config file)", exitUsageError)
	}

	frch := framingChoice{
		mode:            framing.Mode(resolveString(c, "framing", configVal(cfg, func(cf *config.Config) string { return cf.Framing.Mode }))),
		maxFrame:        resolveInt(c, "max-frame", configVal(cfg, func(cf *config.Config) int { return cf.Framing.MaxFrame })),
		assembleTimeout: resolveDuration(c, "assemble-timeout", configVal(cfg, func(cf *config.Config) time.Duration { return cf.Framing.AssembleTimeout.Duration })),
	}
	if !frch.mode.Valid() {
		return cli.Exit(fmt.Sprintf("invalid framing mode: %s (must be event or prefix)", frch.mode), exitUsageError)
	}

	bch := bufferChoice{
		readBytes:  resolveInt(c, "read-buffer", configVal(cfg, func(cf *config.Config) int { return cf.Buffer.ReadBytes })),
		queueDepth: resolveInt(c, "queue-depth", configVal(cfg, func(cf *config.Config) int { return cf.Buffer.QueueDepth })),
	}

	pch := policyChoice{
		name:          resolveString(c, "policy", configVal(cfg, func(cf *config.Config) string { return cf.Policy.Name })),
		bufferEvents:  resolveInt(c, "buffer-events", configVal(cfg, func(cf *config.Config) int { return cf.Policy.BufferEvents })),
		bufferBytes:   resolveInt64(c, "buffer-bytes", configVal(cfg, func(cf *config.Config) int64 { return cf.Policy.BufferBytes })),
		flushEvery:    resolveInt(c, "flush-every", configVal(cfg, func(cf *config.Config) int { return cf.Policy.FlushEvery })),
		flushInterval: resolveDuration(c, "flush-interval", configVal(cfg, func(cf *config.Config) time.Duration { return cf.Policy.FlushInterval.Duration })),
	}
	if err := validatePolicyChoice(pch); err != nil {
		return cli.Exit(fmt.Sprintf("invalid policy config: %v", err), exitUsageError)
	}

	sch := sinkChoice{
		log:          cfg == nil || cfg.Sinks.LogEnabled(),
		webhookURL:   resolveString(c, "webhook-url", configVal(cfg, func(cf *config.Config) string { return cf.Sinks.WebhookURL })),
		redisAddr:    resolveString(c, "redis-addr", configVal(cfg, func(cf *config.Config) string { return cf.Sinks.RedisAddr })),
		redisChannel: resolveString(c, "redis-channel", configVal(cfg, func(cf *config.Config) string { return cf.Sinks.RedisChannel })),
	}

	jch := journalChoice{
		path:     resolveString(c, "journal-path", configVal(cfg, func(cf *config.Config) string { return cf.Journal.Path })),
		backend:  resolveString(c, "journal-backend", configVal(cfg, func(cf *config.Config) string { return cf.Journal.Backend })),
		s3Region: resolveString(c, "journal-s3-region", configVal(cfg, func(cf *config.Config) string { return cf.Journal.S3Region })),
		source:   resolveString(c, "source", configVal(cfg, func(cf *config.Config) string { return cf.Journal.Source })),
		category: resolveString(c, "category", configVal(cfg, func(cf *config.Config) string { return cf.Journal.Category })),
	}

	// Session identity. Start time is "now" and also derives the journal
	// partition day.
	sessionID := c.String("session-id")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	startTime := time.Now().UTC()

	meta := types.SessionMeta{
		SessionID: sessionID,
		Device:    link.device,
		Baud:      link.baud,
		Framing:   string(frch.mode),
		StartedAt: startTime,
	}

	logger := log.NewLoggerAt(&meta, resolveString(c, "log-level", configVal(cfg, func(cf *config.Config) string { return cf.LogLevel })))

	backendLabel := "none"
	if jch.path != "" {
		backendLabel = jch.backend
	}
	collector := metrics.NewCollector(pch.name, string(frch.mode), backendLabel, sessionID, link.device)

	journalClient, err := buildJournalClient(jch, sessionID, startTime)
	if err != nil {
		return fmt.Errorf("failed to create journal client: %w", err)
	}
	if journalClient != nil {
		defer func() { _ = journalClient.Close() }()
	}

	sink, err := buildDeliverySink(sch, journalClient, collector)
	if err != nil {
		return fmt.Errorf("failed to create sink: %w", err)
	}

	pol, err := buildPolicy(pch, sink, logger)
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}
	defer func() { _ = pol.Close() }()

	rwc, err := serial.OpenDevice(link.device, link.baud)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open %s: %v", link.device, err), exitPortFailure)
	}
	port := serial.NewStreamPort(rwc, bch.readBytes, bch.queueDepth)
	defer func() { _ = port.Close() }()

	session, err := pipeline.NewSession(&pipeline.SessionConfig{
		Meta:             meta,
		Port:             port,
		Assembler:        buildAssembler(frch),
		Policy:           pol,
		Journal:          journalClient,
		Collector:        collector,
		Logger:           logger,
		ReadBufferSize:   bch.readBytes,
		FlushAfterDecode: frch.mode == framing.ModeEvent,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	result, err := session.Run(ctx)
	if err != nil {
		return fmt.Errorf("session failed: %w", err)
	}

	if !c.Bool("quiet") {
		printSessionResult(result)
	}

	return cli.Exit("", outcomeToExitCode(result.Outcome))
}

func validatePolicyChoice(choice policyChoice) error {
	switch choice.name {
	case "strict":
		if choice.bufferEvents > 0 || choice.bufferBytes > 0 || choice.flushEvery > 0 {
			fmt.Fprintf(os.Stderr, "Warning: buffer/flush flags ignored for strict policy\n")
		}
		return nil

	case "buffered":
		if choice.bufferEvents <= 0 && choice.bufferBytes <= 0 {
			return fmt.Errorf("buffered policy requires --buffer-events > 0 or --buffer-bytes > 0")
		}
		return nil

	default:
		return fmt.Errorf("invalid policy: %s (must be strict or buffered)", choice.name)
	}
}

// buildAssembler creates the frame assembler for the chosen mode.
// Constructors apply their own defaults for zero sizes and timeouts.
func buildAssembler(choice framingChoice) framing.Assembler {
	if choice.mode == framing.ModePrefix {
		return framing.NewPrefixAssembler(choice.maxFrame, choice.assembleTimeout)
	}
	return framing.NewEventAssembler(choice.maxFrame)
}

// buildJournalClient creates the journal client based on CLI configuration.
// Returns nil if --journal-path is not specified (journaling disabled).
func buildJournalClient(choice journalChoice, sessionID string, startTime time.Time) (journal.Client, error) {
	if choice.path == "" {
		return nil, nil
	}

	cfg := journal.Config{
		Dataset:   journal.DefaultDataset,
		Source:    choice.source,
		Category:  choice.category,
		Day:       journal.DeriveDay(startTime),
		SessionID: sessionID,
	}

	switch choice.backend {
	case "fs", "":
		return journal.NewRecorder(cfg, choice.path)
	case "s3":
		bucket, prefix := journal.ParseS3Path(choice.path)
		s3cfg := journal.S3Config{
			Bucket: bucket,
			Prefix: prefix,
			Region: choice.s3Region,
		}
		return journal.NewRecorderS3(cfg, s3cfg)
	default:
		return nil, fmt.Errorf("unknown journal-backend: %s (must be fs or s3)", choice.backend)
	}
}

// buildDeliverySink assembles the sink chain from the configured outputs.
// With no sink configured the session still runs and counts messages; that
// keeps a bare `adit listen --device ...` useful as a line check.
func buildDeliverySink(choice sinkChoice, journalClient journal.Client, collector *metrics.Collector) (policy.Sink, error) {
	var sinks []policy.Sink

	if choice.log {
		sinks = append(sinks, policy.NewLogSink(nil))
	}

	var adapters []adapter.Adapter
	if choice.webhookURL != "" {
		wh, err := webhook.New(webhook.Config{URL: choice.webhookURL})
		if err != nil {
			return nil, fmt.Errorf("failed to create webhook adapter: %w", err)
		}
		adapters = append(adapters, wh)
	}
	if choice.redisAddr != "" {
		rd, err := redis.New(redis.Config{
			URL:     normalizeRedisURL(choice.redisAddr),
			Channel: choice.redisChannel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis adapter: %w", err)
		}
		adapters = append(adapters, rd)
	}
	if len(adapters) > 0 {
		sinks = append(sinks, adapter.NewSink(adapter.SinkConfig{}, adapters...))
	}

	if journalClient != nil {
		sinks = append(sinks, journal.NewInstrumentedSink(journal.NewSink(journalClient), collector))
	}

	switch len(sinks) {
	case 0:
		return policy.NewStubSink(), nil
	case 1:
		return sinks[0], nil
	default:
		return policy.NewFanoutSink(sinks...), nil
	}
}

// normalizeRedisURL accepts both host:port and full redis:// forms.
func normalizeRedisURL(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "redis://" + addr
}

func buildPolicy(choice policyChoice, sink policy.Sink, logger *log.Logger) (policy.Policy, error) {
	switch choice.name {
	case "strict":
		return policy.NewStrictPolicy(sink), nil

	case "buffered":
		config := policy.BufferedConfig{
			MaxEvents:     choice.bufferEvents,
			MaxBytes:      choice.bufferBytes,
			FlushEvery:    choice.flushEvery,
			FlushInterval: choice.flushInterval,
			Logger:        logger,
		}
		return policy.NewBufferedPolicy(sink, config)

	default:
		return nil, fmt.Errorf("unknown policy: %s", choice.name)
	}
}

func outcomeToExitCode(outcome pipeline.Outcome) int {
	switch outcome {
	case pipeline.OutcomeCompleted:
		return exitSuccess
	case pipeline.OutcomeFailed:
		return exitPortFailure
	default:
		return exitPortFailure
	}
}

// resolveString returns the CLI value when the flag was set on the command
// line, the config file value when present, and the flag default otherwise.
func resolveString(c *cli.Context, name, configVal string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if configVal != "" {
		return configVal
	}
	return c.String(name)
}

func resolveInt(c *cli.Context, name string, configVal int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	if configVal != 0 {
		return configVal
	}
	return c.Int(name)
}

func resolveInt64(c *cli.Context, name string, configVal int64) int64 {
	if c.IsSet(name) {
		return c.Int64(name)
	}
	if configVal != 0 {
		return configVal
	}
	return c.Int64(name)
}

func resolveBool(c *cli.Context, name string, configVal bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	if configVal {
		return true
	}
	return c.Bool(name)
}

func resolveDuration(c *cli.Context, name string, configVal time.Duration) time.Duration {
	if c.IsSet(name) {
		return c.Duration(name)
	}
	if configVal > 0 {
		return configVal
	}
	return c.Duration(name)
}

// configVal extracts a field from an optional config file, returning the
// zero value when no config was loaded.
func configVal[T any](cfg *config.Config, get func(*config.Config) T) T {
	var zero T
	if cfg == nil {
		return zero
	}
	return get(cfg)
}

func printSessionResult(result *pipeline.SessionResult) {
	fmt.Printf("\nsession_id=%s, device=%s, outcome=%s, duration=%s\n",
		result.Meta.SessionID,
		result.Meta.Device,
		result.Outcome,
		result.Duration.Round(time.Millisecond),
	)

	m := result.Metrics
	if m.Policy == "buffered" {
		fmt.Printf("policy=%s, drops=%d, flushes=%d\n",
			m.Policy,
			result.PolicyStats.Dropped,
			result.PolicyStats.FlushCount,
		)
	} else {
		fmt.Printf("policy=%s\n", m.Policy)
	}

	fmt.Printf("\n=== Link ===\n")
	fmt.Printf("Bytes Read:       %d\n", m.BytesRead)
	fmt.Printf("Chunks Read:      %d\n", m.ChunksRead)
	fmt.Printf("Frames Assembled: %d\n", m.FramesAssembled)
	fmt.Printf("Framing Errors:   %d\n", m.FramingErrors)
	fmt.Printf("Messages Decoded: %d\n", m.MessagesDecoded)
	fmt.Printf("Decode Failures:  %d\n", m.DecodeFailures)

	if m.FaultsOverflow > 0 || m.FaultsBufferFull > 0 {
		fmt.Printf("\n=== Faults ===\n")
		fmt.Printf("Overflow:    %d\n", m.FaultsOverflow)
		fmt.Printf("Buffer Full: %d\n", m.FaultsBufferFull)
	}

	fmt.Printf("\n=== Deliveries ===\n")
	fmt.Printf("Total:     %d\n", m.DeliveriesTotal)
	fmt.Printf("Persisted: %d\n", m.DeliveriesPersisted)
	fmt.Printf("Dropped:   %d\n", m.DeliveriesDropped)

	if m.JournalWriteSuccess > 0 || m.JournalWriteFailure > 0 {
		fmt.Printf("\n=== Journal ===\n")
		fmt.Printf("Writes OK:     %d\n", m.JournalWriteSuccess)
		fmt.Printf("Writes Failed: %d\n", m.JournalWriteFailure)
	}

	if result.Err != nil {
		fmt.Printf("\n=== Failure ===\n")
		fmt.Printf("%v\n", result.Err)
	}
}
