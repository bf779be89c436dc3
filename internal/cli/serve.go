package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rohmanhakim/krishield/internal/app"
	"github.com/rohmanhakim/krishield/internal/server"
	"github.com/spf13/cobra"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			addr := a.Config().ListenAddr()
			if listenAddr != "" {
				addr = listenAddr
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.New(a, a.Logger()).Run(ctx, addr)
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "address to listen on (default from config, :8080)")
}
