package wsrouter

import (
	"regexp"
	"time"

	"github.com/wsrouter/wsrouter/codec"
	"github.com/wsrouter/wsrouter/logging"
	"github.com/wsrouter/wsrouter/metrics"
	"github.com/wsrouter/wsrouter/tracing"
)

// HeartbeatConfig controls the built-in __heartbeat/__heartbeat_ack exchange.
type HeartbeatConfig struct {
	// IntervalMs is the server probe cadence. Zero disables server-initiated
	// probing; inbound client heartbeats are still answered.
	IntervalMs int
	// TimeoutMs closes the connection if no activity is observed within
	// this window. Zero disables the idle watchdog.
	TimeoutMs int
}

// LimitsConfig bounds per-connection concurrency and topic shape.
type LimitsConfig struct {
	MaxPending      int
	MaxPayloadBytes int
	TopicPattern    *regexp.Regexp
	MaxTopicLength  int
}

// RPCConfig bounds the correlation-id lifecycle manager.
type RPCConfig struct {
	MaxInflightPerSocket int
	IdleTimeoutMs        int
	DedupWindowMs        int
	CleanupCadenceMs     int
}

// Config is the full set of options a Router is constructed with.
type Config struct {
	Heartbeat         HeartbeatConfig
	Limits            LimitsConfig
	RPC               RPCConfig
	ValidateOutgoing  bool
	WarnIncompleteRPC bool
	Production        bool

	Logger  logging.Logger
	Metrics metrics.Recorder
	Tracer  tracing.Tracer
	Codec   codec.Codec
}

func defaultConfig() Config {
	return Config{
		Heartbeat: HeartbeatConfig{IntervalMs: 0, TimeoutMs: 0},
		Limits: LimitsConfig{
			MaxPending:      64,
			MaxPayloadBytes: 1 << 20,
			MaxTopicLength:  256,
		},
		RPC: RPCConfig{
			MaxInflightPerSocket: 32,
			IdleTimeoutMs:        30_000,
			DedupWindowMs:        60_000,
			CleanupCadenceMs:     1_000,
		},
		ValidateOutgoing: false,
		Production:       true,
		Logger:           logging.Default(),
		Metrics:          metrics.Noop{},
		Tracer:           tracing.Noop{},
		Codec:            codec.JSONCodec{},
	}
}

// WithCodec overrides the wire codec used to (de)serialize frames. Defaults
// to codec.JSONCodec{}; wsrouter/codec/msgpack.New() is the reference
// binary alternative.
func WithCodec(c codec.Codec) Option {
	return func(cfg *Config) { cfg.Codec = c }
}

// Option configures a Router at construction time.
type Option func(*Config)

// WithHeartbeat sets the heartbeat probe/timeout cadence.
func WithHeartbeat(interval, timeout time.Duration) Option {
	return func(c *Config) {
		c.Heartbeat.IntervalMs = int(interval / time.Millisecond)
		c.Heartbeat.TimeoutMs = int(timeout / time.Millisecond)
	}
}

// WithLimits sets per-connection admission limits.
func WithLimits(l LimitsConfig) Option {
	return func(c *Config) { c.Limits = l }
}

// WithRPC sets the RPC manager's bounds.
func WithRPC(r RPCConfig) Option {
	return func(c *Config) { c.RPC = r }
}

// WithValidateOutgoing sets the plugin-wide default for outbound validation.
func WithValidateOutgoing(v bool) Option {
	return func(c *Config) { c.ValidateOutgoing = v }
}

// WithWarnIncompleteRPC enables a development-mode warning when an RPC
// handler returns without calling Reply/Error.
func WithWarnIncompleteRPC(v bool) Option {
	return func(c *Config) { c.WarnIncompleteRPC = v }
}

// WithProduction toggles development-only warnings. The only such warning is
// the validation plugin's incomplete-RPC warning; namespace collisions and
// overwrites of Context fields are not detected.
func WithProduction(v bool) Option {
	return func(c *Config) { c.Production = v }
}

// WithLogger injects a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics injects a metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithTracer injects a tracer.
func WithTracer(t tracing.Tracer) Option {
	return func(c *Config) { c.Tracer = t }
}
