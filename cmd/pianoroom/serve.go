package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/pianoroom/internal/app"
	"github.com/vovakirdan/pianoroom/internal/config"
	"github.com/vovakirdan/pianoroom/internal/log"
	"github.com/vovakirdan/pianoroom/internal/tracing"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	overrides := config.Config{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the room server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLog := log.New(flags.logLevel)
			cfg, path, err := config.Load(bootLog, flags.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			overrides.LogLevel = flags.logLevel
			cfg.UpdateFrom(overrides)

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting pianoroom server")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
			if err != nil {
				return fmt.Errorf("setup tracing: %w", err)
			}
			defer func() {
				if err := shutdownTracing(context.Background()); err != nil {
					logger.Warn().Err(err).Msg("flush traces")
				}
			}()

			if err := app.New(&cfg, logger).Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	cmd.Flags().DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	cmd.Flags().DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	return cmd
}

