package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/livepoll-server/internal/app"
	"github.com/vovakirdan/livepoll-server/internal/auth"
	"github.com/vovakirdan/livepoll-server/internal/config"
	"github.com/vovakirdan/livepoll-server/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:          "livepoll-server",
		Short:        "Real-time classroom poll server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLog := log.New("info", "")
			cfg, path, err := config.Load(bootLog, configPath)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(overrides)

			logger := log.New(cfg.LogLevel, cfg.LogFile)
			logger.Info().Str("config", path).Msg("configuration loaded")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, &cfg, logger)
			if err != nil {
				return err
			}

			logger.Info().Str("addr", cfg.Addr).Msg("starting livepoll server")
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to config.yaml")
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.DatabasePath, "db", "", "SQLite history database path")
	flags.StringVar(&overrides.RespondentPolicy, "respondent-policy", "", "frozen or shrink")

	cmd.AddCommand(newHashPasscodeCmd())
	return cmd
}

func newHashPasscodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-passcode <passcode>",
		Short: "Print a bcrypt hash for teacher_passcode_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPasscode(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}
