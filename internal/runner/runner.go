// Package runner drives a scrape run: it walks the work items in order and
// applies bounded per-URL retries, session rotation and terminal skips.
package runner

import (
	"context"

	"github.com/maltedev/listing-scraper/internal/browser"
	"github.com/maltedev/listing-scraper/internal/events"
	"github.com/maltedev/listing-scraper/internal/layout"
	"github.com/maltedev/listing-scraper/internal/models"
)

// WorkSource yields the URLs of a run in order.
type WorkSource interface {
	URLs(ctx context.Context) ([]string, error)
}

// ResultSink persists output rows. Every error it returns is fatal to the run.
type ResultSink interface {
	Clear(ctx context.Context) error
	AppendHeader(ctx context.Context, header []string) error
	AppendRows(ctx context.Context, rows [][]string) error
}

// Extractor scrapes every page of one listing URL.
type Extractor interface {
	Extract(ctx context.Context, d browser.Driver, url string, l *layout.SiteLayout) ([]models.ScrapedRow, error)
}

// Sessions hands out browser sessions.
type Sessions interface {
	Acquire(ctx context.Context) (browser.Driver, error)
	Rotate(ctx context.Context, current browser.Driver) (browser.Driver, error)
	Release(d browser.Driver)
}

// Publisher receives run events.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event)
}

// SkipHook is called once for every item given up on.
type SkipHook func(ctx context.Context, o models.Outcome)

// Config holds the retry policy.
type Config struct {
	MaxRetriesPerURL   int
	RestartDriverAfter int
}

// DefaultConfig returns the production retry policy.
func DefaultConfig() Config {
	return Config{
		MaxRetriesPerURL:   3,
		RestartDriverAfter: 25,
	}
}
