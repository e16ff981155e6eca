package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
)

// Options are the settings carried in the -agentpath option string, e.g.
//
//	-agentpath:libjvmpulse.so=config=/etc/jvmpulse.yaml,log_level=debug,collectors=gc+threads
type Options struct {
	ConfigPath  string
	LogLevel    string
	MetricsAddr string
	Node        string
	Collectors  []string
}

// ParseAgentOptions parses a comma-separated key=value option string. An
// empty string yields zero Options.
func ParseAgentOptions(s string) (Options, error) {
	var o Options
	s = strings.TrimSpace(s)
	if s == "" {
		return o, nil
	}
	for _, kv := range strings.Split(s, ",") {
		if kv == "" {
			continue
		}
		key, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			return Options{}, fmt.Errorf("agent option %q: expected key=value", kv)
		}
		switch strings.TrimSpace(key) {
		case constants.OptConfig:
			o.ConfigPath = value
		case constants.OptLogLevel:
			o.LogLevel = value
		case constants.OptMetricsAddr:
			o.MetricsAddr = value
		case constants.OptNode:
			o.Node = value
		case constants.OptCollectors:
			for _, name := range strings.Split(value, constants.OptListSep) {
				if !KnownCollector(name) {
					return Options{}, fmt.Errorf("agent option %s: unknown collector %q", constants.OptCollectors, name)
				}
				o.Collectors = append(o.Collectors, name)
			}
		default:
			return Options{}, fmt.Errorf("unknown agent option %q", key)
		}
	}
	return o, nil
}

// ConfigFile returns the config path from the options, then from
// JVMPULSE_CONFIG, then the default.
func (o Options) ConfigFile() string {
	if o.ConfigPath != "" {
		return o.ConfigPath
	}
	if p := os.Getenv(constants.EnvConfigPath); p != "" {
		return p
	}
	return constants.DefaultConfigPath
}

// Apply overrides c with the options that are set. A collectors list enables
// exactly the named collectors and disables the rest.
func (c *Config) Apply(o Options) error {
	if o.LogLevel != "" {
		c.Agent.LogLevel = o.LogLevel
	}
	if o.MetricsAddr != "" {
		c.Agent.MetricsAddr = o.MetricsAddr
		c.Exporters.Prometheus.Addr = o.MetricsAddr
	}
	if o.Node != "" {
		c.Agent.NodeName = o.Node
	}
	if len(o.Collectors) > 0 {
		if c.Collectors == nil {
			c.Collectors = make(map[string]*CollectorConfig)
		}
		for _, name := range collectorNames {
			if c.Collectors[name] == nil {
				c.Collectors[name] = &CollectorConfig{SamplingRate: constants.DefaultSamplingRate}
			}
			c.Collectors[name].Enabled = false
		}
		for _, name := range o.Collectors {
			c.Collectors[name].Enabled = true
		}
	}
	return c.Validate()
}
