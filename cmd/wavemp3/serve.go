package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/go-wavemp3/internal/progress"
	"github.com/example/go-wavemp3/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP conversion server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := activeCfg
			log := slog.Default()

			hub := progress.NewHub()
			conv := newConverter(cfg)
			conv.Hub = hub

			h := server.NewHandler(conv, hub,
				server.WithWorkers(cfg.Server.Workers),
				server.WithRequestTimeout(time.Duration(cfg.Server.RequestTimeout)*time.Second),
				server.WithLogger(log),
			)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info("starting server", "addr", cfg.Server.ListenAddr)
			return server.New(cfg.Server.ListenAddr, h).Start(ctx)
		},
	}
}
