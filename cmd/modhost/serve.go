package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/modhost/modhost/server"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP front end",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, cfg, err := buildHost()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if serveWatch {
			go func() {
				if err := reg.Watch(ctx); err != nil {
					newLogger().Error("Binding watcher stopped", "error", err)
				}
			}()
		}

		return server.New(reg, newLogger()).Start(ctx, cfg.Listen)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "Reload the binding table on file changes")
	rootCmd.AddCommand(serveCmd)
}
