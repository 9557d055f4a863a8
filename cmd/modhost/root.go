package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/modhost/modhost"
)

var (
	configPath string
	verbose    bool

	// controllers is the registry handed to every site. Custom builds
	// embedding Go controllers populate it from their own init
	// functions before Execute runs.
	controllers = modhost.ControllerRegistry{}
)

var rootCmd = &cobra.Command{
	Use:          "modhost",
	Short:        "Multi-tenant request-routing and module-lifecycle host",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "modhost.toml", "Path to the host configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func newLogger() modhost.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return modhost.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func buildHost() (*modhost.DomainRegistry, *modhost.Config, error) {
	cfg, err := modhost.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	reg, err := modhost.NewHost(cfg, controllers, newLogger())
	if err != nil {
		return nil, nil, err
	}
	return reg, cfg, nil
}
