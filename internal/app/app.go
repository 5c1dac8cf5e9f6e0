// Package app assembles a scrape run from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/listing-scraper/internal/browser"
	"github.com/maltedev/listing-scraper/internal/config"
	"github.com/maltedev/listing-scraper/internal/database"
	"github.com/maltedev/listing-scraper/internal/events"
	"github.com/maltedev/listing-scraper/internal/layout"
	"github.com/maltedev/listing-scraper/internal/metrics"
	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/notify"
	"github.com/maltedev/listing-scraper/internal/runner"
	"github.com/maltedev/listing-scraper/internal/scrapeerr"
	"github.com/maltedev/listing-scraper/internal/scraper"
	"github.com/maltedev/listing-scraper/internal/server"
	"github.com/maltedev/listing-scraper/internal/session"
	"github.com/maltedev/listing-scraper/internal/sheets"
	"github.com/maltedev/listing-scraper/internal/storage"
)

// App is one configured scrape run.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	runID      string
	layout     *layout.SiteLayout
	metrics    *metrics.Metrics
	notifier   notify.Notifier
	source     runner.WorkSource
	sink       runner.ResultSink
	sessions   *session.Manager
	controller *runner.Controller
	server     *server.Server

	closers []func()
}

// Notifier returns the alert channel of the run. It is usable even when New
// fails part way.
func Notifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	if !cfg.Notify.Enabled {
		return notify.Noop{}
	}
	return notify.NewSMTP(notify.SMTPConfig{
		Server:     cfg.Notify.SMTPServer,
		Port:       cfg.Notify.SMTPPort,
		Sender:     cfg.Notify.Sender,
		Password:   cfg.Notify.Password,
		Recipients: cfg.Notify.Recipients,
	}, logger)
}

// LoadLayouts returns the built-in layouts merged with the optional layouts file.
func LoadLayouts(path string) (*layout.Registry, error) {
	reg := layout.DefaultRegistry()
	if path == "" {
		return reg, nil
	}
	if err := reg.LoadFile(path); err != nil {
		return nil, scrapeerr.New(scrapeerr.KindConfiguration, "load layouts", err)
	}
	return reg, nil
}

// New connects every backend named by cfg. On error everything opened so far
// is closed.
func New(ctx context.Context, cfg *config.Config, notifier notify.Notifier, logger *slog.Logger) (_ *App, err error) {
	a := &App{
		cfg:      cfg,
		logger:   logger,
		runID:    uuid.New().String(),
		metrics:  metrics.New(),
		notifier: notifier,
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	reg, err := LoadLayouts(cfg.Scraper.LayoutsFile)
	if err != nil {
		return nil, err
	}
	a.layout, err = reg.Get(cfg.Scraper.SiteKey)
	if err != nil {
		return nil, scrapeerr.New(scrapeerr.KindConfiguration, "select layout", err)
	}

	var sheetsAPI sheets.API
	if cfg.UsesSheets() {
		logger.Info("connecting to Google Sheets API")
		sheetsAPI, err = sheets.NewService(ctx, cfg.Sheets.CredentialsFile)
		if err != nil {
			return nil, scrapeerr.New(scrapeerr.KindConfiguration, "connect sheets", err)
		}
	}

	switch cfg.Source.Type {
	case config.BackendCSV:
		a.source = storage.NewFileSource(cfg.Source.File)
	default:
		a.source = sheets.NewSource(sheetsAPI, cfg.Sheets.SpreadsheetID, cfg.Sheets.InputTab, logger)
	}

	if a.sink, err = a.openSink(ctx, sheetsAPI); err != nil {
		return nil, err
	}

	publisher := a.openEvents(ctx)

	launcher := browser.NewLauncher(&browser.Options{
		Headless:          cfg.Browser.Headless,
		UserAgent:         cfg.Browser.UserAgent,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		ScriptTimeout:     cfg.Browser.ScriptTimeout,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		Locale:            cfg.Browser.Locale,
		TimezoneID:        cfg.Browser.TimezoneID,
		ProxyServer:       cfg.Browser.ProxyServer,
	}, cfg.Browser.Install, logger)

	extractor := scraper.NewExtractor(scraper.Options{
		MaxPages:          cfg.Scraper.MaxPages,
		LoadTimeout:       cfg.Scraper.LoadTimeout,
		ContentTimeout:    cfg.Scraper.ContentTimeout,
		PaginationTimeout: cfg.Scraper.PaginationTimeout,
		PollInterval:      cfg.Scraper.PollInterval,
		ScrollPause:       cfg.Scraper.ScrollPause,
	}, logger)

	a.sessions = session.NewManager(launcher, a.metrics, logger)

	deps := runner.Deps{
		RunID:     a.runID,
		Layout:    a.layout,
		Sessions:  a.sessions,
		Extractor: extractor,
		Sink:      a.sink,
		Metrics:   a.metrics,
	}
	if publisher != nil {
		deps.Events = publisher
	}
	if cfg.Notify.OnSkip {
		deps.OnSkip = SkipNotifier(notifier)
	}

	a.controller, err = runner.NewController(runner.Config{
		MaxRetriesPerURL:   cfg.Scraper.MaxRetriesPerURL,
		RestartDriverAfter: cfg.Scraper.RestartDriverAfter,
	}, deps, logger)
	if err != nil {
		return nil, scrapeerr.New(scrapeerr.KindConfiguration, "build controller", err)
	}

	if cfg.Server.Addr != "" {
		a.server = server.New(server.Config{
			Addr:            cfg.Server.Addr,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, a.controller.Progress(), a.metrics.Registry, logger)
	}

	return a, nil
}

func (a *App) openSink(ctx context.Context, api sheets.API) (runner.ResultSink, error) {
	cfg := a.cfg
	switch cfg.Sink.Type {
	case config.BackendCSV:
		return storage.NewCSVSink(cfg.Sink.File), nil

	case config.BackendPostgres:
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: int32(cfg.Database.MaxConns),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		store := database.NewRowStore(db, cfg.Scraper.SiteKey, a.runID, a.logger)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil

	default:
		return sheets.NewSink(api, cfg.Sheets.SpreadsheetID, cfg.Sheets.OutputTab, a.logger), nil
	}
}

// openEvents returns nil when no Redis address is configured or the server
// cannot be reached. Events are optional, the run goes on without them.
func (a *App) openEvents(ctx context.Context) *events.Publisher {
	if a.cfg.Redis.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		a.logger.Warn("Redis unavailable, running without events", "addr", a.cfg.Redis.Addr, "error", err)
		client.Close()
		return nil
	}

	publisher := events.NewPublisher(client, a.cfg.Redis.Stream, a.cfg.Redis.MaxLen, a.logger)
	a.closers = append(a.closers, func() {
		if err := publisher.Close(); err != nil {
			a.logger.Warn("failed to close Redis client", "error", err)
		}
	})
	return publisher
}

// SkipNotifier alerts about every URL given up on.
func SkipNotifier(n notify.Notifier) runner.SkipHook {
	return func(ctx context.Context, o models.Outcome) {
		n.Notify(ctx,
			fmt.Sprintf("URL Skipped: %s", o.Item.URL),
			fmt.Sprintf("The scraper failed to process the URL %s after %d attempts.\n\nLast error: %s",
				o.Item.URL, o.Attempts, o.LastError))
	}
}

// Run executes the scrape and, when configured, serves status until it ends.
func (a *App) Run(ctx context.Context) (models.Summary, error) {
	if a.server != nil {
		srvCtx, stop := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := a.server.Run(srvCtx); err != nil {
				a.logger.Error("status server stopped with error", "error", err)
			}
		}()
		defer func() {
			stop()
			<-done
		}()
	}

	a.logger.Info("--- Listing Scraper Started ---", "run_id", a.runID, "site", a.layout.Name)
	summary, err := a.controller.Run(ctx, a.source)
	if err == nil && summary.Skipped > 0 {
		a.logger.Warn("some URLs were skipped", "skipped_urls", summary.SkippedURL)
	}
	a.logger.Info("--- Listing Scraper Finished ---", "run_id", a.runID, "sessions_launched", a.sessions.Launched())
	return summary, err
}

// Close releases every backend. It is safe to call more than once.
func (a *App) Close() {
	if a.controller != nil {
		a.controller.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// RunID identifies the run in logs, events and stored rows.
func (a *App) RunID() string {
	return a.runID
}
