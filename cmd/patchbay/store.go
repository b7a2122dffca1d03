package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"patchbay/internal/codec"
	"patchbay/internal/domain"
	"patchbay/internal/repository"
	"patchbay/internal/service"
)

// withStore loads config, opens the store, runs fn and closes the store
func (a *app) withStore(cmd *cobra.Command, fn func(repository.Store) error) (err error) {
	cfg, _, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()
	return fn(store)
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the stored connections, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(store repository.Store) error {
				set, err := store.Load(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, c := range set.Connections() {
					fmt.Fprintln(out, c)
				}
				return nil
			})
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored connections to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := codec.ForFormat(format)
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(store repository.Store) error {
				set, err := store.Load(cmd.Context())
				if err != nil {
					return err
				}
				return c.Export(set.Connections(), cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var (
		format  string
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge connections from a file into the store",
		Long: `Merge connections from a JSON or YAML file into the store. With --replace
the store ends up holding exactly the file's connections. The format is
taken from the file extension unless --format is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if format == "" {
				format = formatFromPath(path)
			}
			c, err := codec.ForFormat(format)
			if err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()

			conns, err := c.Parse(f)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}

			return a.withStore(cmd, func(store repository.Store) error {
				added, err := service.Import(cmd.Context(), store, conns, replace)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new connections\n", added)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "input format: json or yaml")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace the stored connections instead of merging")
	return cmd
}

func (a *app) forgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <sender> <dest>",
		Short: "Remove a connection from the store",
		Long: `Remove a connection from the store so it is no longer restored. Names are
the "<client>:<port>" display names shown by list.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := domain.NewConnection(domain.Name(args[0]), domain.Name(args[1]))
			return a.withStore(cmd, func(store repository.Store) error {
				removed, err := service.Forget(cmd.Context(), store, target)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("connection %s is not stored", target)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", target)
				return nil
			})
		},
	}
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}
