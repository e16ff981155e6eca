// Package config provides YAML-based configuration for JVMPulse.
// Supports defaults, environment overrides, agent option strings and
// struct-tag validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sureshkrishnan-v/jvmpulse/internal/api"
	"github.com/sureshkrishnan-v/jvmpulse/internal/cache"
	"github.com/sureshkrishnan-v/jvmpulse/internal/capability"
	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/consumer"
	"github.com/sureshkrishnan-v/jvmpulse/internal/export"
	"github.com/sureshkrishnan-v/jvmpulse/internal/storage"
)

// Config is the top-level configuration for JVMPulse.
type Config struct {
	Agent AgentConfig `yaml:"agent"`

	// Capabilities are requested in addition to those the enabled
	// collectors need.
	Capabilities []string `yaml:"capabilities" validate:"dive,capability"`

	Collectors  map[string]*CollectorConfig `yaml:"collectors" validate:"dive"`
	Exporters   ExportersConfig             `yaml:"exporters"`
	Performance PerformanceConfig           `yaml:"performance"`

	// Backend services, run with `jvmpulse sink` and `jvmpulse api`.
	ClickHouse storage.ClickHouseConfig `yaml:"clickhouse"`
	Sink       consumer.Config          `yaml:"sink"`
	API        APIConfig                `yaml:"api"`
}

// AgentConfig holds global agent settings.
type AgentConfig struct {
	MetricsAddr string `yaml:"metrics_addr" validate:"required"`
	NodeName    string `yaml:"node_name"`
	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// CollectorConfig holds per-collector settings.
type CollectorConfig struct {
	Enabled      bool    `yaml:"enabled"`
	SamplingRate float64 `yaml:"sampling_rate" validate:"gte=0,lte=1"`
}

// ExportersConfig holds exporter settings.
type ExportersConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
	NATS       NATSConfig       `yaml:"nats"`
	Redis      RedisConfig      `yaml:"redis"`
}

// PrometheusConfig holds Prometheus exporter settings.
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required_if=Enabled true"`
}

// NATSConfig enables the JetStream exporter.
type NATSConfig struct {
	Enabled           bool `yaml:"enabled"`
	export.NATSConfig `yaml:",inline"`
}

// RedisConfig enables the live pub/sub exporter.
type RedisConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Channel           string `yaml:"channel" validate:"required_if=Enabled true"`
	cache.RedisConfig `yaml:",inline"`
}

// APIConfig holds query API settings and the Redis it reads status and live
// events from.
type APIConfig struct {
	api.Config `yaml:",inline"`
	Redis      cache.RedisConfig `yaml:"redis"`
}

// PerformanceConfig holds performance tuning parameters.
type PerformanceConfig struct {
	EventBusBuffer     int     `yaml:"event_bus_buffer" validate:"gte=64"`
	MaxEventsPerSecond float64 `yaml:"max_events_per_second" validate:"gte=0"`
}

// Default returns a Config with production defaults. Method and field
// collectors are off: they need capabilities that slow the interpreter down.
func Default() *Config {
	hostname, _ := os.Hostname()

	return &Config{
		Agent: AgentConfig{
			MetricsAddr: constants.DefaultMetricsAddr,
			NodeName:    hostname,
			LogLevel:    constants.DefaultLogLevel,
		},
		Collectors: map[string]*CollectorConfig{
			constants.CollectorLifecycle:  {Enabled: true, SamplingRate: constants.DefaultSamplingRate},
			constants.CollectorThreads:    {Enabled: true, SamplingRate: constants.DefaultSamplingRate},
			constants.CollectorClasses:    {Enabled: true, SamplingRate: constants.DefaultSamplingRate},
			constants.CollectorExceptions: {Enabled: true, SamplingRate: constants.DefaultSamplingRate},
			constants.CollectorMonitors:   {Enabled: true, SamplingRate: constants.DefaultSamplingRate},
			constants.CollectorGC:         {Enabled: true, SamplingRate: constants.DefaultSamplingRate},
			constants.CollectorAlloc:      {Enabled: true, SamplingRate: constants.DefaultSamplingRate},
			constants.CollectorMethods:    {Enabled: false, SamplingRate: constants.MethodSamplingRate},
			constants.CollectorFields:     {Enabled: false, SamplingRate: constants.DefaultSamplingRate},
		},
		Exporters: ExportersConfig{
			Prometheus: PrometheusConfig{Enabled: true, Addr: constants.DefaultMetricsAddr},
			NATS:       NATSConfig{NATSConfig: export.DefaultNATSConfig()},
			Redis: RedisConfig{
				Channel:     constants.RedisPubSubChannel,
				RedisConfig: cache.DefaultRedisConfig(),
			},
		},
		Performance: PerformanceConfig{
			EventBusBuffer:     constants.DefaultEventBusBuffer,
			MaxEventsPerSecond: constants.DefaultMaxEventsPerSecond,
		},
		ClickHouse: storage.DefaultClickHouseConfig(),
		Sink:       consumer.DefaultConfig(),
		API: APIConfig{
			Config: api.DefaultConfig(),
			Redis:  cache.DefaultRedisConfig(),
		},
	}
}

// Load reads a YAML config file and merges it over the defaults. A missing
// file yields the defaults. Environment variables are applied last:
// JVMPULSE_METRICS_ADDR, JVMPULSE_NODE_NAME, JVMPULSE_LOG_LEVEL and, for the
// backend services, CLICKHOUSE_DSN, NATS_URL, REDIS_ADDR and API_ADDR.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv(constants.EnvMetricsAddr); addr != "" {
		c.Agent.MetricsAddr = addr
		c.Exporters.Prometheus.Addr = addr
	}
	if node := os.Getenv(constants.EnvNodeName); node != "" {
		c.Agent.NodeName = node
	}
	if level := os.Getenv(constants.EnvLogLevel); level != "" {
		c.Agent.LogLevel = level
	}
	if dsn := os.Getenv(constants.EnvClickHouseDSN); dsn != "" {
		c.ClickHouse.DSN = dsn
	}
	if url := os.Getenv(constants.EnvNATSURL); url != "" {
		c.Sink.NATSURL = url
	}
	if addr := os.Getenv(constants.EnvRedisAddr); addr != "" {
		c.API.Redis.Addr = addr
	}
	if addr := os.Getenv(constants.EnvAPIAddr); addr != "" {
		c.API.Addr = addr
	}
}

var validate = mustValidator()

func newValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("capability", func(fl validator.FieldLevel) bool {
		return capability.Known(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("registering capability validation: %w", err)
	}
	return v, nil
}

func mustValidator() *validator.Validate {
	v, err := newValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks the config and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, describe(fe))
		}
	}
	for _, name := range sortedKeys(c.Collectors) {
		if !KnownCollector(name) {
			errs = append(errs, fmt.Sprintf("collectors.%s: unknown collector", name))
		}
		if c.Collectors[name] == nil {
			errs = append(errs, fmt.Sprintf("collectors.%s: empty", name))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	switch fe.Tag() {
	case "capability":
		return fmt.Sprintf("%s: unknown capability %q", ns, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s: %q is not one of [%s]", ns, fe.Value(), fe.Param())
	case "required", "required_if":
		return fmt.Sprintf("%s is required", ns)
	default:
		return fmt.Sprintf("%s must be %s %s", ns, fe.Tag(), fe.Param())
	}
}

var collectorNames = []string{
	constants.CollectorLifecycle,
	constants.CollectorThreads,
	constants.CollectorClasses,
	constants.CollectorExceptions,
	constants.CollectorFields,
	constants.CollectorMethods,
	constants.CollectorMonitors,
	constants.CollectorGC,
	constants.CollectorAlloc,
}

// KnownCollector reports whether name is a collector config key.
func KnownCollector(name string) bool {
	for _, n := range collectorNames {
		if n == name {
			return true
		}
	}
	return false
}

// CollectorEnabled reports whether the named collector is enabled. Collectors
// missing from the config are disabled.
func (c *Config) CollectorEnabled(name string) bool {
	col, ok := c.Collectors[name]
	return ok && col != nil && col.Enabled
}

// CollectorConf returns the config for a collector, or a full-rate default.
func (c *Config) CollectorConf(name string) *CollectorConfig {
	if col, ok := c.Collectors[name]; ok && col != nil {
		return col
	}
	return &CollectorConfig{Enabled: true, SamplingRate: constants.DefaultSamplingRate}
}

// RequestedCapabilities parses the capabilities list.
func (c *Config) RequestedCapabilities() (capability.Capabilities, error) {
	return capability.Parse(c.Capabilities)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
