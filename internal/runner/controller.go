package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/listing-scraper/internal/browser"
	"github.com/maltedev/listing-scraper/internal/events"
	"github.com/maltedev/listing-scraper/internal/layout"
	"github.com/maltedev/listing-scraper/internal/logger"
	"github.com/maltedev/listing-scraper/internal/metrics"
	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/scrapeerr"
	"github.com/maltedev/listing-scraper/internal/session"
)

// Deps are the collaborators of a Controller. RunID, Events, Metrics, OnSkip
// and Progress are optional.
type Deps struct {
	RunID     string
	Layout    *layout.SiteLayout
	Sessions  Sessions
	Extractor Extractor
	Sink      ResultSink
	Events    Publisher
	Metrics   *metrics.Metrics
	OnSkip    SkipHook
	Progress  *Progress
}

// Controller owns the current browser session and the attempt state of a run.
// It is not safe for concurrent use.
type Controller struct {
	cfg       Config
	layout    *layout.SiteLayout
	sessions  Sessions
	extractor Extractor
	sink      ResultSink
	events    Publisher
	metrics   *metrics.Metrics
	onSkip    SkipHook
	progress  *Progress
	logger    *slog.Logger

	runID         string
	driver        browser.Driver
	sinceRotation int
}

func NewController(cfg Config, deps Deps, logger *slog.Logger) (*Controller, error) {
	if cfg.MaxRetriesPerURL < 1 {
		return nil, fmt.Errorf("max retries per URL must be at least 1, got %d", cfg.MaxRetriesPerURL)
	}
	if cfg.RestartDriverAfter < 1 {
		return nil, fmt.Errorf("restart driver threshold must be at least 1, got %d", cfg.RestartDriverAfter)
	}
	if deps.Layout == nil || deps.Sessions == nil || deps.Extractor == nil || deps.Sink == nil {
		return nil, errors.New("layout, sessions, extractor and sink are required")
	}

	progress := deps.Progress
	if progress == nil {
		progress = NewProgress()
	}
	runID := deps.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	return &Controller{
		cfg:       cfg,
		layout:    deps.Layout,
		sessions:  deps.Sessions,
		extractor: deps.Extractor,
		sink:      deps.Sink,
		events:    deps.Events,
		metrics:   deps.Metrics,
		onSkip:    deps.OnSkip,
		progress:  progress,
		logger:    logger.With("component", "runner", "run_id", runID),
		runID:     runID,
	}, nil
}

// RunID identifies this controller's run in logs, events and stored rows.
func (c *Controller) RunID() string {
	return c.runID
}

// Progress returns the live progress of the run.
func (c *Controller) Progress() *Progress {
	return c.progress
}

// Run processes every URL of source in order. The returned error is fatal:
// reading the source, writing the sink or starting a session failed, or ctx
// was cancelled. The last session is released in every case.
func (c *Controller) Run(ctx context.Context, source WorkSource) (summary models.Summary, err error) {
	summary = models.Summary{RunID: c.runID, StartedAt: time.Now()}
	c.progress.start(summary)

	defer func() {
		c.Close()
		summary.FinishedAt = time.Now()
		summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)
		c.progress.finish(summary, err)
		if err == nil {
			c.publish(ctx, events.Event{EventType: events.EventTypeRunFinished, Summary: &summary})
		}
	}()

	urls, err := source.URLs(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to read work items: %w", err)
	}
	summary.Total = len(urls)
	c.progress.record(summary)

	c.logger.Info("clearing the output for a fresh start")
	if err := c.sink.Clear(ctx); err != nil {
		return summary, fmt.Errorf("failed to clear output: %w", err)
	}
	if err := c.sink.AppendHeader(ctx, c.layout.Header()); err != nil {
		return summary, fmt.Errorf("failed to write header: %w", err)
	}

	if len(urls) == 0 {
		c.logger.Info("no URLs found to process")
		return summary, nil
	}

	c.logger.Info("starting run", "urls", len(urls), "site", c.layout.Name)
	started := summary
	c.publish(ctx, events.Event{EventType: events.EventTypeRunStarted, Summary: &started})

	if err := c.acquire(ctx); err != nil {
		return summary, err
	}

	for i, url := range urls {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if session.ShouldRotate(c.sinceRotation, c.cfg.RestartDriverAfter) {
			c.logger.Warn("restarting the browser for memory hygiene",
				"after", c.sinceRotation)
			if err := c.rotate(ctx, metrics.RotationProactive); err != nil {
				return summary, err
			}
			summary.Rotations++
		}

		c.logger.Info("processing URL", "index", i+1, "total", len(urls), "url", url)
		outcome, err := c.ProcessWorkItem(ctx, models.WorkItem{URL: url, Index: i})
		if err != nil {
			return summary, err
		}
		summary.Add(outcome)
		c.progress.record(summary)
		c.sinceRotation++
	}

	c.logger.Info("run finished",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"skipped", summary.Skipped,
		"rows", summary.Rows,
		"rotations", summary.Rotations)
	return summary, nil
}

// ProcessWorkItem scrapes one URL with up to MaxRetriesPerURL attempts. Every
// failed attempt replaces the session. When the attempts are exhausted the
// item is Skipped; that is an outcome, not an error. A returned error is fatal.
func (c *Controller) ProcessWorkItem(ctx context.Context, item models.WorkItem) (models.Outcome, error) {
	out := models.Outcome{Item: item}
	log := c.logger.With("url", item.URL)

	if c.driver == nil {
		if err := c.acquire(ctx); err != nil {
			return out, err
		}
	}

	for attempt := 0; attempt < c.cfg.MaxRetriesPerURL; attempt++ {
		out.Attempts = attempt + 1
		c.progress.attempt(item.URL, out.Attempts)

		started := time.Now()
		rows, err := c.extractor.Extract(ctx, c.driver, item.URL, c.layout)
		if err == nil {
			c.metrics.ObserveAttempt(time.Since(started), "")
			if err := c.write(ctx, log, rows); err != nil {
				return out, err
			}
			out.Status = models.StatusSucceeded
			out.Rows = len(rows)
			out.LastError = ""
			c.metrics.IncItem(string(out.Status))
			c.publish(ctx, events.Event{
				EventType: events.EventTypeItemSucceeded,
				URL:       item.URL,
				Attempt:   out.Attempts,
				Rows:      out.Rows,
			})
			return out, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}

		kind := scrapeerr.KindOf(err)
		c.metrics.ObserveAttempt(time.Since(started), string(kind))
		out.LastError = err.Error()
		log.Error("attempt failed",
			"attempt", out.Attempts,
			"max", c.cfg.MaxRetriesPerURL,
			"kind", kind,
			"classified", scrapeerr.IsAttemptFailure(err),
			"error", err)
		c.publish(ctx, events.Event{
			EventType: events.EventTypeAttemptFailed,
			URL:       item.URL,
			Attempt:   out.Attempts,
			Kind:      string(kind),
			Error:     err.Error(),
		})

		if out.Attempts < c.cfg.MaxRetriesPerURL {
			log.Warn("recovering by restarting the browser and retrying the same URL")
		} else {
			logger.Critical(ctx, log, "all attempts failed, URL will be skipped",
				"attempts", out.Attempts)
		}

		// The session is suspect after any failure, including the last one.
		if err := c.rotate(ctx, metrics.RotationFailure); err != nil {
			return out, err
		}
		out.Rotations++
	}

	out.Status = models.StatusSkipped
	c.metrics.IncItem(string(out.Status))
	c.publish(ctx, events.Event{
		EventType: events.EventTypeItemSkipped,
		URL:       item.URL,
		Attempt:   out.Attempts,
		Error:     out.LastError,
	})
	if c.onSkip != nil {
		c.onSkip(ctx, out)
	}
	return out, nil
}

// Close releases the current session, if any. It is safe to call repeatedly.
func (c *Controller) Close() {
	if c.driver == nil {
		return
	}
	c.sessions.Release(c.driver)
	c.driver = nil
}

func (c *Controller) write(ctx context.Context, log *slog.Logger, rows []models.ScrapedRow) error {
	if len(rows) == 0 {
		log.Warn("no data was scraped")
		return nil
	}
	if err := c.sink.AppendRows(ctx, models.Records(rows)); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	c.metrics.AddRows(len(rows))
	log.Info("rows written", "rows", len(rows))
	return nil
}

func (c *Controller) acquire(ctx context.Context) error {
	d, err := c.sessions.Acquire(ctx)
	if err != nil {
		return err
	}
	c.driver = d
	c.sinceRotation = 0
	return nil
}

func (c *Controller) rotate(ctx context.Context, reason string) error {
	d, err := c.sessions.Rotate(ctx, c.driver)
	if err != nil {
		// Rotate already released the old session.
		c.driver = nil
		return err
	}
	c.driver = d
	c.sinceRotation = 0
	c.metrics.IncRotation(reason)
	c.publish(ctx, events.Event{EventType: events.EventTypeSessionRotated, Reason: reason})
	return nil
}

func (c *Controller) publish(ctx context.Context, ev events.Event) {
	if c.events == nil {
		return
	}
	ev.RunID = c.runID
	c.events.Publish(ctx, ev)
}
