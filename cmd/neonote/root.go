package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"neonote/internal/config"
)

const cliExecutable = "neonote"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	envFile   string
	logLevel  string
	logFormat string
}

func newRootCommand() *cobra.Command {
	var (
		opts rootOptions
		app  *application
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Upload lecture documents to NeoNote and track their processing jobs",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.LogLevel = strings.ToLower(opts.logLevel)
			}
			if opts.logFormat != "" {
				cfg.LogFormat = strings.ToLower(opts.logFormat)
			}

			logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}

			app, err = newApplication(cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			cmd.SetContext(withApplication(cmd.Context(), app))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app != nil {
				return app.Close()
			}
			return nil
		},
	}

	cmd.SilenceUsage = true
	cmd.Version = version

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load environment variables from this file (default .env if present)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override LOG_LEVEL (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Override LOG_FORMAT (console, json)")

	cmd.AddGroup(&cobra.Group{ID: "jobs", Title: "Job Commands"})
	cmd.AddGroup(&cobra.Group{ID: "account", Title: "Account Commands"})

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newUploadCommand())
	cmd.AddCommand(newLoginCommand())
	cmd.AddCommand(newRegisterCommand())
	cmd.AddCommand(newLogoutCommand())
	cmd.AddCommand(newChatCommand())

	return cmd
}

func newLogger(level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var logger zerolog.Logger
	switch format {
	case "json":
		logger = zerolog.New(os.Stderr)
	case "console", "":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", format)
	}
	return logger.Level(lvl).With().Timestamp().Logger(), nil
}
