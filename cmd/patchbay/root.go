package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"patchbay/internal/adapter"
	"patchbay/internal/config"
	"patchbay/internal/repository"
)

// app carries what every subcommand needs: the flag/env layer and the
// --config path
type app struct {
	v       *viper.Viper
	cfgFile string
	version string
}

func newRootCmd(version string) *cobra.Command {
	a := &app{v: viper.New(), version: version}
	a.v.SetEnvPrefix("PATCHBAY")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "patchbay",
		Short: "Remember and restore port connections",
		Long: `patchbay watches a port registry, records every connection made between
ports by display name, and re-creates those connections whenever the ports
come back.`,
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         a.runDaemon,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "",
		"config file (default: search $PATCHBAY_CONFIG, ./patchbay.yaml, ~/.config/patchbay/config.yaml)")
	pf.String("store", "", "connection store path (default: ~/.config/patchbay/connections.json)")
	pf.String("backend", "", "connection store backend: json or sqlite")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: console or json")

	f := rootCmd.Flags()
	f.BoolP("all", "a", false, "connect every compatible source and destination across clients")
	f.String("topology", "", "YAML topology seeding the in-memory registry")
	f.Duration("poll-interval", 0, "registry poll timeout (default 1s)")
	f.Bool("no-watch", false, "do not reload the store when the file is edited")

	a.bind("store.path", pf.Lookup("store"))
	a.bind("store.backend", pf.Lookup("backend"))
	a.bind("logging.level", pf.Lookup("log-level"))
	a.bind("logging.format", pf.Lookup("log-format"))
	a.bind("all", f.Lookup("all"))
	a.bind("registry.topology", f.Lookup("topology"))
	a.bind("poll_interval", f.Lookup("poll-interval"))

	rootCmd.AddCommand(
		a.listCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.forgetCmd(),
		a.versionCmd(),
	)
	return rootCmd
}

func (a *app) bind(key string, flag *pflag.Flag) {
	_ = a.v.BindPFlag(key, flag)
}

// loadConfig reads the config file and layers flags and PATCHBAY_* variables on top
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if a.cfgFile != "" {
		cfg, path, err = config.LoadFromPath(a.cfgFile)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, path, err
	}

	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		a.v.Set("watch", false)
	}
	cfg.ApplyOverrides(a.v)

	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, path, nil
}

// openStore opens the configured connection store
func openStore(cfg *config.Config) (repository.Store, error) {
	store, err := repository.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

// openRegistry builds the registry patchbay runs against
func openRegistry(cfg *config.Config) (*adapter.Memory, error) {
	reg := adapter.NewMemory(cfg.Registry.ClientName)
	if cfg.Registry.Topology == "" {
		return reg, nil
	}

	topo, err := adapter.LoadTopologyFile(cfg.Registry.Topology)
	if err != nil {
		reg.Close()
		return nil, err
	}
	if err := topo.Apply(reg); err != nil {
		reg.Close()
		return nil, fmt.Errorf("apply topology %s: %w", cfg.Registry.Topology, err)
	}
	return reg, nil
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "patchbay %s\n", a.version)
		},
	}
}
