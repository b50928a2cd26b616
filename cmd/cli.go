// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"os"

	"biosignal/internal/acquisition"
	"biosignal/internal/config"
	applog "biosignal/internal/log"
	"biosignal/pkg/build"

	"github.com/spf13/cobra"
)

// options are the flags shared by every command.
type options struct {
	configPath string
	logLevel   string
}

// Execute runs the CLI with the process arguments.
func Execute() error {
	root := NewRootCommand()
	root.SetArgs(os.Args[1:])
	return root.Execute()
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	buildInfo := build.Get()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to a YAML configuration file (default: ./config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newRunCommand(opts),
		newDevicesCommand(),
		newProfileCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

// loadConfig loads the configuration file and applies the log level.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	level, ok := applog.ParseLevel(cfg.LogLevel)
	if !ok {
		return nil, fmt.Errorf("unknown log level '%s'", cfg.LogLevel)
	}
	applog.SetLevel(level)
	return cfg, nil
}

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := acquisition.Initialize(); err != nil {
				return err
			}
			defer acquisition.Terminate()

			devices, err := acquisition.HostDevices()
			if err != nil {
				return err
			}
			acquisition.ListDevices(cmd.OutOrStdout(), devices)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout(), build.Get())
		},
	}
}

func printVersion(w io.Writer, info build.Info) {
	fmt.Fprintf(w, "%s %s\n", info.Name, info.Version)
	fmt.Fprintf(w, "  commit: %s\n", info.Commit)
	fmt.Fprintf(w, "  built:  %s\n", info.Time)
	fmt.Fprintf(w, "  build:  %s\n", info.UUID)
}
