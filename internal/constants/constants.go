// Package constants provides all named constants for JVMPulse.
// Tuning parameters, sizes, timeouts, metric names and keys live here so
// no other package carries magic values.
package constants

import "time"

// ─── Agent Defaults ────────────────────────────────────────────────
const (
	// DefaultMetricsAddr is the default HTTP listen address for metrics/health.
	DefaultMetricsAddr = ":9464"

	// DefaultLogLevel is the default structured logging level.
	DefaultLogLevel = "info"

	// DefaultConfigPath is the default YAML config file path.
	DefaultConfigPath = "jvmpulse.yaml"

	// Version is the current agent version.
	Version = "0.3.0"
)

// ─── Environment Variable Keys ─────────────────────────────────────
const (
	EnvMetricsAddr = "JVMPULSE_METRICS_ADDR"
	EnvNodeName    = "JVMPULSE_NODE_NAME"
	EnvLogLevel    = "JVMPULSE_LOG_LEVEL"
	EnvConfigPath  = "JVMPULSE_CONFIG"

	EnvClickHouseDSN = "CLICKHOUSE_DSN"
	EnvNATSURL       = "NATS_URL"
	EnvRedisAddr     = "REDIS_ADDR"
	EnvAPIAddr       = "API_ADDR"
)

// ─── Agent Options ─────────────────────────────────────────────────
// Keys accepted in the -agentpath option string ("config=...,log_level=...").
const (
	OptConfig      = "config"
	OptLogLevel    = "log_level"
	OptMetricsAddr = "metrics_addr"
	OptNode        = "node"
	OptCollectors  = "collectors"

	// OptListSep separates values inside one option ("collectors=gc+threads").
	OptListSep = "+"
)

// ─── EventBus ──────────────────────────────────────────────────────
const (
	// DefaultEventBusBuffer is the default per-subscriber channel size.
	DefaultEventBusBuffer = 4096

	// MinEventBusBuffer is the minimum allowed event bus buffer size.
	MinEventBusBuffer = 64

	// EventPoolMapCapacity is the initial capacity for Event Label/Numeric maps.
	EventPoolMapCapacity = 4
)

// ─── Collector Names ───────────────────────────────────────────────
// Each collector owns a group of VM event kinds and is a config key.
const (
	CollectorLifecycle  = "lifecycle"
	CollectorThreads    = "threads"
	CollectorClasses    = "classes"
	CollectorExceptions = "exceptions"
	CollectorFields     = "fields"
	CollectorMethods    = "methods"
	CollectorMonitors   = "monitors"
	CollectorGC         = "gc"
	CollectorAlloc      = "alloc"
)

// ─── Sampling ──────────────────────────────────────────────────────
const (
	// DefaultSamplingRate is the default collector sampling rate (1.0 = 100%).
	DefaultSamplingRate = 1.0

	// MethodSamplingRate is the default for the method entry/exit collector.
	MethodSamplingRate = 0.01

	// DefaultMaxEventsPerSecond caps bus publishes per collector; 0 disables.
	DefaultMaxEventsPerSecond = 0
)

// ─── Thread Names ──────────────────────────────────────────────────
const (
	// UnknownThreadName is recorded when a thread's metadata cannot be read.
	UnknownThreadName = "<unknown>"
)

// ─── HTTP Server Timeouts ──────────────────────────────────────────
const (
	HTTPReadTimeout  = 5 * time.Second
	HTTPWriteTimeout = 10 * time.Second
	HTTPIdleTimeout  = 120 * time.Second
)

// ─── Shutdown ──────────────────────────────────────────────────────
const (
	// ShutdownTimeout is the max time allowed for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ExporterShutdownTimeout for HTTP server drain.
	ExporterShutdownTimeout = 5 * time.Second
)

// ─── Self-Observability ────────────────────────────────────────────
const (
	// StatsCollectInterval is how often the Prometheus exporter collects bus
	// and dispatch stats.
	StatsCollectInterval = 5 * time.Second
)

// ─── HTTP Paths ────────────────────────────────────────────────────
const (
	PathMetrics = "/metrics"
	PathHealthz = "/healthz"
	PathReadyz  = "/readyz"
)

// ─── Prometheus Metric Names ───────────────────────────────────────
const (
	MetricPrefix = "jvmpulse_"

	// VM
	MetricVMEvents          = MetricPrefix + "vm_events_total"
	MetricGCPause           = MetricPrefix + "gc_pause_seconds"
	MetricLiveThreads       = MetricPrefix + "live_threads"
	MetricThreadsStarted    = MetricPrefix + "threads_started_total"
	MetricExceptions        = MetricPrefix + "exceptions_total"
	MetricMonitorContention = MetricPrefix + "monitor_contended_enter_total"
	MetricAllocatedBytes    = MetricPrefix + "vm_object_alloc_bytes_total"
	MetricClassesLoaded     = MetricPrefix + "classes_loaded_total"
	MetricVMInfo            = MetricPrefix + "vm_info"

	// Self-observability
	MetricEventsProcessed  = MetricPrefix + "events_processed_total"
	MetricEventsDropped    = MetricPrefix + "events_dropped_total"
	MetricBusQueueDepth    = MetricPrefix + "eventbus_queue_depth"
	MetricCallbackDispatch = MetricPrefix + "callback_dispatch_total"
	MetricCallbackPanics   = MetricPrefix + "callback_panics_total"
)

// ─── Prometheus Label Names ────────────────────────────────────────
const (
	LabelNode       = "node"
	LabelKind       = "kind"
	LabelDaemon     = "daemon"
	LabelCaught     = "caught"
	LabelSubscriber = "subscriber"
	LabelVersion    = "jvmti_version"
	LabelAgent      = "agent_version"
)

// ─── Event Label / Numeric Keys ────────────────────────────────────
// Used as keys in Event.Labels and Event.Numeric maps.
const (
	KeyThreadID    = "thread_id"
	KeyMethod      = "method"
	KeyClass       = "class"
	KeyField       = "field"
	KeyObject      = "object"
	KeyCaught      = "caught"
	KeyPopped      = "popped_by_exception"
	KeySignature   = "signature"
	KeyTimedOut    = "timed_out"
	KeyTag         = "tag"
	KeyBytes       = "bytes"
	KeyPauseSec    = "pause_sec"
	KeyTimeoutSec  = "timeout_sec"
	KeyLiveThreads = "live_threads"
	KeyVersion     = "jvmti_version"
)

// ─── Exporter Names ───────────────────────────────────────────────
const (
	ExporterPrometheus = "prometheus"
	ExporterNATS       = "nats"
	ExporterRedis      = "redis"
)

// ─── NATS ──────────────────────────────────────────────────────────
const (
	NATSDefaultURL           = "nats://localhost:4222"
	NATSStream               = "JVMPULSE"
	NATSSubject              = "jvmpulse.events"
	NATSBatchSize            = 500
	NATSFlushInterval        = 100 * time.Millisecond
	NATSStreamMaxBytes int64 = 256 * 1024 * 1024 // 256 MB
)

// ─── Redis ─────────────────────────────────────────────────────────
const (
	RedisDefaultAddr   = "localhost:6379"
	RedisPoolSize      = 10
	RedisDialTimeout   = 3 * time.Second
	RedisPubSubChannel = "jvmpulse:live"
	RedisStatusKey     = "jvmpulse:status:"
	RedisStatusTTL     = 30 * time.Second
)

// ─── ClickHouse ────────────────────────────────────────────────────
const (
	ClickHouseDefaultDSN    = "clickhouse://localhost:9000/jvmpulse"
	ClickHouseMaxConns      = 4
	ClickHouseDatabase      = "jvmpulse"
	ClickHouseEventsTable   = "jvmpulse.events"
	ClickHouseBatchSize     = 5000
	ClickHouseFlushInterval = 2 * time.Second
	ClickHouseTTLDays       = 7
)

// ─── Sink (NATS → ClickHouse) ──────────────────────────────────────
const (
	SinkConsumerName = "jvmpulse-sink"
)

// ─── Query API ─────────────────────────────────────────────────────
const (
	APIDefaultAddr     = ":8088"
	APIDefaultPageSize = 100
	APIMaxPageSize     = 1000
	APIRateLimit       = 200 // requests per second per client
	APICacheTTL        = 10 * time.Second
)

const (
	// APIDefaultWindow is the lookback for aggregate queries without ?window.
	APIDefaultWindow = time.Hour
	// APIMaxWindow bounds ?window; the table TTL drops older rows anyway.
	APIMaxWindow = ClickHouseTTLDays * 24 * time.Hour
)
