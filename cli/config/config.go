package config

import (
	"fmt"
	"time"

	"github.com/justapithecus/adit/framing"
)

// Config represents an adit.yaml configuration file.
// All values are optional and act as defaults for adit listen flags.
// CLI flags always override config values.
type Config struct {
	Device   string        `yaml:"device"`
	Baud     int           `yaml:"baud"`
	Framing  FramingConfig `yaml:"framing"`
	Buffer   BufferConfig  `yaml:"buffer"`
	Policy   PolicyConfig  `yaml:"policy"`
	Sinks    SinksConfig   `yaml:"sinks"`
	Journal  JournalConfig `yaml:"journal"`
	LogLevel string        `yaml:"log_level"`
}

// FramingConfig holds framing defaults from the config file.
type FramingConfig struct {
	Mode            string   `yaml:"mode"`
	MaxFrame        int      `yaml:"max_frame"`
	AssembleTimeout Duration `yaml:"assemble_timeout"`
}

// BufferConfig holds receive buffer defaults from the config file.
type BufferConfig struct {
	ReadBytes  int `yaml:"read_bytes"`
	QueueDepth int `yaml:"queue_depth"`
}

// PolicyConfig holds delivery policy defaults from the config file.
type PolicyConfig struct {
	Name          string   `yaml:"name"`
	BufferEvents  int      `yaml:"buffer_events"`
	BufferBytes   int64    `yaml:"buffer_bytes"`
	FlushEvery    int      `yaml:"flush_every"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// SinksConfig holds delivery sink defaults from the config file.
// Log is a pointer so an explicit `log: false` is distinguishable from
// the key being omitted; the log sink defaults to on, matching the
// receiver's standalone behavior.
type SinksConfig struct {
	Log          *bool  `yaml:"log,omitempty"`
	WebhookURL   string `yaml:"webhook_url"`
	RedisAddr    string `yaml:"redis_addr"`
	RedisChannel string `yaml:"redis_channel"`
}

// LogEnabled reports whether the log sink is on. Defaults to true when
// the key is omitted.
func (s *SinksConfig) LogEnabled() bool {
	if s.Log == nil {
		return true
	}
	return *s.Log
}

// JournalConfig holds capture journal defaults from the config file.
// An empty Path disables journaling.
type JournalConfig struct {
	Path     string `yaml:"path"`
	Backend  string `yaml:"backend"`
	S3Region string `yaml:"s3_region"`
	Source   string `yaml:"source"`
	Category string `yaml:"category"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks the values that are set. Zero values mean "use the
// flag default" and always pass; merging with flags happens in the CLI.
func (c *Config) Validate() error {
	if c.Baud < 0 {
		return fmt.Errorf("baud: must be positive, got %d", c.Baud)
	}
	if m := c.Framing.Mode; m != "" && !framing.Mode(m).Valid() {
		return fmt.Errorf("framing.mode: must be %q or %q, got %q", framing.ModeEvent, framing.ModePrefix, m)
	}
	if c.Framing.MaxFrame < 0 {
		return fmt.Errorf("framing.max_frame: must be positive, got %d", c.Framing.MaxFrame)
	}
	if c.Framing.AssembleTimeout.Duration < 0 {
		return fmt.Errorf("framing.assemble_timeout: must be positive, got %s", c.Framing.AssembleTimeout.Duration)
	}
	if c.Buffer.ReadBytes < 0 {
		return fmt.Errorf("buffer.read_bytes: must be positive, got %d", c.Buffer.ReadBytes)
	}
	if c.Buffer.QueueDepth < 0 {
		return fmt.Errorf("buffer.queue_depth: must be positive, got %d", c.Buffer.QueueDepth)
	}
	if n := c.Policy.Name; n != "" && n != "strict" && n != "buffered" {
		return fmt.Errorf("policy.name: must be \"strict\" or \"buffered\", got %q", n)
	}
	if c.Policy.BufferEvents < 0 {
		return fmt.Errorf("policy.buffer_events: must be positive, got %d", c.Policy.BufferEvents)
	}
	if c.Policy.BufferBytes < 0 {
		return fmt.Errorf("policy.buffer_bytes: must be positive, got %d", c.Policy.BufferBytes)
	}
	if c.Policy.FlushEvery < 0 {
		return fmt.Errorf("policy.flush_every: must be positive, got %d", c.Policy.FlushEvery)
	}
	if b := c.Journal.Backend; b != "" && b != "fs" && b != "s3" {
		return fmt.Errorf("journal.backend: must be \"fs\" or \"s3\", got %q", b)
	}
	if l := c.LogLevel; l != "" && l != "debug" && l != "info" && l != "warn" && l != "error" {
		return fmt.Errorf("log_level: must be debug, info, warn, or error, got %q", l)
	}
	return nil
}
