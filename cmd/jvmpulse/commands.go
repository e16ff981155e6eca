package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sureshkrishnan-v/jvmpulse/internal/agent"
	"github.com/sureshkrishnan-v/jvmpulse/internal/capability"
	"github.com/sureshkrishnan-v/jvmpulse/internal/collector"
	"github.com/sureshkrishnan-v/jvmpulse/internal/config"
	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
)

var (
	configPath   string
	agentOptions string

	rootCmd = &cobra.Command{
		Use:           "jvmpulse",
		Short:         "JVMPulse agent companion CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jvmpulse %s\n", constants.Version)
		},
	}

	checkConfigCmd = &cobra.Command{
		Use:   "check-config",
		Short: "Validate a config file and print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runCheckConfig,
	}

	capabilitiesCmd = &cobra.Command{
		Use:   "capabilities",
		Short: "List the JVMTI capability names accepted in config",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, n := range capability.All().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
		},
	}

	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "List the VM events the agent bridges, with their collector and required capability",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			writeEvents(cmd.OutOrStdout())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $JVMPULSE_CONFIG or "+constants.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVarP(&agentOptions, "options", "o", "", "agent option string, as passed after -agentpath:libjvmpulse.so=")

	simulateCmd.Flags().DurationVar(&simDuration, "duration", 0, "stop after this long (0 runs until interrupted)")
	simulateCmd.Flags().IntVar(&simRate, "rate", 200, "synthetic events per second")

	rootCmd.AddCommand(versionCmd, checkConfigCmd, capabilitiesCmd, eventsCmd, simulateCmd, sinkCmd, apiCmd)
}

// loadConfig resolves the config the same way the agent does, with --config
// taking precedence over a config= option.
func loadConfig() (*config.Config, error) {
	opts, err := config.ParseAgentOptions(agentOptions)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		opts.ConfigPath = configPath
	}
	cfg, err := config.Load(opts.ConfigFile())
	if err != nil {
		return nil, err
	}
	if err := cfg.Apply(opts); err != nil {
		return nil, fmt.Errorf("invalid agent options: %w", err)
	}
	return cfg, nil
}

func runCheckConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	want, err := cfg.RequestedCapabilities()
	if err != nil {
		return err
	}
	var enabled []string
	for _, c := range collector.All() {
		if cfg.CollectorEnabled(c.Name()) {
			enabled = append(enabled, c.Name())
			want = want.Union(agent.RequiredCapabilities(c.Kinds()))
		}
	}
	fmt.Fprintf(out, "# collectors: %s\n", strings.Join(enabled, ", "))
	fmt.Fprintf(out, "# capabilities: %s\n", strings.Join(want.Names(), ", "))
	return nil
}

func writeEvents(w io.Writer) {
	owner := make(map[event.Kind]string)
	for _, c := range collector.All() {
		for _, k := range c.Kinds() {
			owner[k] = c.Name()
		}
	}
	kinds := event.BridgedKinds()
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NUM\tEVENT\tCOLLECTOR\tCAPABILITY")
	for _, k := range kinds {
		need := strings.Join(agent.RequiredCapabilities([]event.Kind{k}).Names(), ",")
		if need == "" {
			need = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", int32(k), k, owner[k], need)
	}
	tw.Flush()
}
