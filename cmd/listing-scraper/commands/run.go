package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maltedev/listing-scraper/internal/app"
	"github.com/maltedev/listing-scraper/internal/config"
	"github.com/maltedev/listing-scraper/internal/logger"
)

type runFlags struct {
	site     string
	headless bool
	source   string
	sink     string
	logLevel string
	status   string
}

func newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrapes every URL of the work source and writes the rows to the result sink.",
		Long: `Scrapes every URL of the work source and writes the rows to the result sink.

Settings are read from the environment (SITE_KEY, SOURCE_TYPE, SINK_TYPE,
SPREADSHEET_ID, ...). Flags override the matching variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			f.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			code := run(cmd.Context(), cmd, cfg)
			if code != app.ExitOK {
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.site, "site", "", "Site layout key (overrides SITE_KEY)")
	cmd.Flags().BoolVar(&f.headless, "headless", true, "Run the browser headless (overrides BROWSER_HEADLESS)")
	cmd.Flags().StringVar(&f.source, "source", "", "Work source: sheets or csv (overrides SOURCE_TYPE)")
	cmd.Flags().StringVar(&f.sink, "sink", "", "Result sink: sheets, csv or postgres (overrides SINK_TYPE)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn, error or critical (overrides LOG_LEVEL)")
	cmd.Flags().StringVar(&f.status, "status-addr", "", "Serve /health, /status and /metrics on this address (overrides STATUS_ADDR)")
	return cmd
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("site") {
		cfg.Scraper.SiteKey = f.site
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = f.headless
	}
	if flags.Changed("source") {
		cfg.Source.Type = f.source
	}
	if flags.Changed("sink") {
		cfg.Sink.Type = f.sink
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if flags.Changed("status-addr") {
		cfg.Server.Addr = f.status
	}
}

func run(ctx context.Context, cmd *cobra.Command, cfg *config.Config) int {
	log, closer, err := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return app.ExitConfig
	}
	defer closer.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := app.Notifier(cfg, log)
	return app.Supervise(ctx, notifier, log, func(ctx context.Context) error {
		a, err := app.New(ctx, cfg, notifier, log)
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), summary.String())
		return nil
	})
}
