package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jvmpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.CollectorEnabled(constants.CollectorGC))
	assert.False(t, cfg.CollectorEnabled(constants.CollectorMethods))
	assert.Equal(t, constants.MethodSamplingRate, cfg.CollectorConf(constants.CollectorMethods).SamplingRate)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultMetricsAddr, cfg.Agent.MetricsAddr)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
agent:
  node_name: jvm-7
  log_level: debug
capabilities:
  - can_get_line_numbers
collectors:
  methods:
    enabled: true
    sampling_rate: 0.5
exporters:
  nats:
    enabled: true
    subject: jvm.events
performance:
  event_bus_buffer: 1024
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "jvm-7", cfg.Agent.NodeName)
	assert.Equal(t, "debug", cfg.Agent.LogLevel)
	assert.Equal(t, constants.DefaultMetricsAddr, cfg.Agent.MetricsAddr)
	assert.True(t, cfg.CollectorEnabled(constants.CollectorMethods))
	assert.Equal(t, 0.5, cfg.CollectorConf(constants.CollectorMethods).SamplingRate)
	assert.True(t, cfg.CollectorEnabled(constants.CollectorGC), "unlisted collectors keep defaults")
	assert.True(t, cfg.Exporters.NATS.Enabled)
	assert.Equal(t, "jvm.events", cfg.Exporters.NATS.Subject)
	assert.Equal(t, constants.NATSDefaultURL, cfg.Exporters.NATS.URL)
	assert.Equal(t, 1024, cfg.Performance.EventBusBuffer)

	caps, err := cfg.RequestedCapabilities()
	require.NoError(t, err)
	assert.True(t, caps.CanGetLineNumbers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(constants.EnvMetricsAddr, ":19464")
	t.Setenv(constants.EnvNodeName, "from-env")
	t.Setenv(constants.EnvLogLevel, "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":19464", cfg.Agent.MetricsAddr)
	assert.Equal(t, ":19464", cfg.Exporters.Prometheus.Addr)
	assert.Equal(t, "from-env", cfg.Agent.NodeName)
	assert.Equal(t, "warn", cfg.Agent.LogLevel)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "agent: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Agent.MetricsAddr = ""
	cfg.Agent.LogLevel = "chatty"
	cfg.Capabilities = []string{"can_fly"}
	cfg.Collectors["methods"].SamplingRate = 2
	cfg.Collectors["jit"] = &CollectorConfig{Enabled: true}
	cfg.Performance.EventBusBuffer = 8

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"Agent.MetricsAddr is required",
		`"chatty"`,
		`unknown capability "can_fly"`,
		"SamplingRate",
		"collectors.jit: unknown collector",
		"EventBusBuffer",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestNewValidator_CapabilityTag(t *testing.T) {
	v, err := newValidator()
	require.NoError(t, err)

	require.NoError(t, v.Var("can_tag_objects", "capability"))
	require.Error(t, v.Var("can_fly", "capability"))
	require.NoError(t, v.Var([]string{"can_tag_objects", "can_get_bytecodes"}, "dive,capability"))
	require.Error(t, v.Var([]string{"can_tag_objects", ""}, "dive,capability"))
}

func TestValidate_CapabilityOnlyConfig(t *testing.T) {
	cfg := Default()
	cfg.Capabilities = []string{"can_tag_objects"}
	require.NoError(t, cfg.Validate())

	cfg.Capabilities = append(cfg.Capabilities, "can_teleport")
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown capability "can_teleport"`)
	assert.NotContains(t, err.Error(), "can_tag_objects")
}

func TestValidate_RedisChannelRequiredWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.Exporters.Redis.Enabled = true
	cfg.Exporters.Redis.Channel = ""
	require.Error(t, cfg.Validate())
}

func TestParseAgentOptions(t *testing.T) {
	o, err := ParseAgentOptions("config=/etc/jvmpulse.yaml,log_level=debug,metrics_addr=:9999,node=n1,collectors=gc+threads")
	require.NoError(t, err)
	assert.Equal(t, Options{
		ConfigPath:  "/etc/jvmpulse.yaml",
		LogLevel:    "debug",
		MetricsAddr: ":9999",
		Node:        "n1",
		Collectors:  []string{"gc", "threads"},
	}, o)
	assert.Equal(t, "/etc/jvmpulse.yaml", o.ConfigFile())

	o, err = ParseAgentOptions("")
	require.NoError(t, err)
	t.Setenv(constants.EnvConfigPath, "")
	assert.Equal(t, constants.DefaultConfigPath, o.ConfigFile())
	t.Setenv(constants.EnvConfigPath, "/opt/app/jvmpulse.yaml")
	assert.Equal(t, "/opt/app/jvmpulse.yaml", o.ConfigFile())

	for _, bad := range []string{"config", "color=red", "collectors=gc+jit", "node="} {
		_, err := ParseAgentOptions(bad)
		assert.Error(t, err, bad)
	}
}

func TestApplyOptions(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Apply(Options{
		LogLevel:    "error",
		MetricsAddr: ":1234",
		Node:        "n2",
		Collectors:  []string{constants.CollectorMethods},
	}))
	assert.Equal(t, "error", cfg.Agent.LogLevel)
	assert.Equal(t, ":1234", cfg.Exporters.Prometheus.Addr)
	assert.Equal(t, "n2", cfg.Agent.NodeName)
	assert.True(t, cfg.CollectorEnabled(constants.CollectorMethods))
	assert.False(t, cfg.CollectorEnabled(constants.CollectorGC))

	assert.Error(t, cfg.Apply(Options{LogLevel: "loud"}))
}

func TestLoad_BackendEnvOverrides(t *testing.T) {
	t.Setenv(constants.EnvClickHouseDSN, "clickhouse://ch:9000/jvmpulse")
	t.Setenv(constants.EnvNATSURL, "nats://bus:4222")
	t.Setenv(constants.EnvRedisAddr, "cache:6379")
	t.Setenv(constants.EnvAPIAddr, ":18088")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "clickhouse://ch:9000/jvmpulse", cfg.ClickHouse.DSN)
	assert.Equal(t, "nats://bus:4222", cfg.Sink.NATSURL)
	assert.Equal(t, "cache:6379", cfg.API.Redis.Addr)
	assert.Equal(t, ":18088", cfg.API.Addr)
	assert.Equal(t, constants.SinkConsumerName, cfg.Sink.ConsumerName)
}

func TestValidate_BackendSections(t *testing.T) {
	cfg := Default()
	cfg.Sink.BatchSize = 0
	cfg.API.CacheTTL = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Sink.BatchSize")
	assert.Contains(t, err.Error(), "API.Config.CacheTTL")
}
