package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/listing-scraper/internal/browser"
	"github.com/maltedev/listing-scraper/internal/layout"
	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/scrapeerr"
	"github.com/maltedev/listing-scraper/internal/wait"
)

type Options struct {
	MaxPages          int
	LoadTimeout       time.Duration
	ContentTimeout    time.Duration
	PaginationTimeout time.Duration
	PollInterval      time.Duration
	ScrollPause       time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxPages:          120,
		LoadTimeout:       20 * time.Second,
		ContentTimeout:    10 * time.Second,
		PaginationTimeout: 15 * time.Second,
		PollInterval:      250 * time.Millisecond,
		ScrollPause:       time.Second,
	}
}

// Extractor scrapes every page of one listing URL.
type Extractor struct {
	opts   Options
	logger *slog.Logger
}

func NewExtractor(opts Options, logger *slog.Logger) *Extractor {
	return &Extractor{
		opts:   opts,
		logger: logger.With("component", "extractor"),
	}
}

// Extract navigates d to url and returns one row per product across all
// pages, up to MaxPages. Every failure is a *scrapeerr.Error tagged with url.
func (e *Extractor) Extract(ctx context.Context, d browser.Driver, url string, l *layout.SiteLayout) ([]models.ScrapedRow, error) {
	rows, err := e.extract(ctx, d, url, l)
	if err != nil {
		var se *scrapeerr.Error
		if errors.As(err, &se) {
			return nil, se.WithURL(url)
		}
		return nil, scrapeerr.New(scrapeerr.KindExtraction, "extract", err).WithURL(url)
	}
	return rows, nil
}

func (e *Extractor) extract(ctx context.Context, d browser.Driver, url string, l *layout.SiteLayout) ([]models.ScrapedRow, error) {
	if err := d.Navigate(url); err != nil {
		return nil, scrapeerr.New(scrapeerr.KindNavigation, "navigate", err)
	}

	first := l.FirstSelector()
	if err := e.waitVisible(ctx, d, first, e.opts.LoadTimeout); err != nil {
		return nil, scrapeerr.New(scrapeerr.KindLoadTimeout, "wait for product data", err)
	}
	e.logger.Info("product data has loaded", "url", url)

	total, err := e.totalPages(d, l)
	if err != nil {
		return nil, err
	}
	pages := PagesToScrape(total, e.opts.MaxPages)
	e.logger.Info("pagination resolved", "url", url, "detected", total, "scraping", pages)

	var rows []models.ScrapedRow
	for page := 1; page <= pages; page++ {
		e.logger.Info("scraping page", "url", url, "page", page, "pages", pages)

		if err := d.ScrollToBottom(); err != nil {
			return nil, scrapeerr.New(scrapeerr.KindExtraction, "scroll", err)
		}
		// Lazy-loaded items get a fixed head start before the content check.
		if err := wait.Sleep(ctx, e.opts.ScrollPause); err != nil {
			return nil, scrapeerr.New(scrapeerr.KindExtraction, "scroll pause", err)
		}

		if err := e.waitVisible(ctx, d, first, e.opts.ContentTimeout); err != nil {
			return nil, scrapeerr.Newf(scrapeerr.KindLoadTimeout, "wait for page content",
				"page %d: %w", page, err)
		}

		html, err := d.Content()
		if err != nil {
			return nil, scrapeerr.New(scrapeerr.KindExtraction, "read page", err)
		}
		pageRows, err := ParseListing(html, url, l)
		if err != nil {
			return nil, scrapeerr.Newf(scrapeerr.KindExtraction, "parse listing", "page %d: %w", page, err)
		}
		rows = append(rows, pageRows...)

		if page < pages {
			if err := e.nextPage(ctx, d, l, page, pages); err != nil {
				return nil, err
			}
		}
	}

	return rows, nil
}

func (e *Extractor) totalPages(d browser.Driver, l *layout.SiteLayout) (int, error) {
	if l.TotalPagesInfo == "" {
		return 1, nil
	}

	text, err := d.Text(l.TotalPagesInfo)
	if errors.Is(err, browser.ErrElementNotFound) {
		e.logger.Warn("pagination info not found, assuming a single page")
		return 1, nil
	}
	if err != nil {
		return 0, scrapeerr.New(scrapeerr.KindExtraction, "read pagination info", err)
	}
	return ParseTotalPages(text), nil
}

// nextPage clicks the next-page control and waits for the URL to show page+1.
// A missing control means the reported page count overstates what the site
// actually serves.
func (e *Extractor) nextPage(ctx context.Context, d browser.Driver, l *layout.SiteLayout, page, pages int) error {
	if err := d.ClickScript(l.NextPage); err != nil {
		if errors.Is(err, browser.ErrElementNotFound) {
			return scrapeerr.Newf(scrapeerr.KindStalePagination, "next page",
				"next control missing on page %d of %d: %w", page, pages, err)
		}
		return scrapeerr.New(scrapeerr.KindPagination, "click next page", err)
	}

	marker := l.PageURLMarker(page + 1)
	err := wait.Until(ctx, e.opts.PollInterval, e.opts.PaginationTimeout, func(context.Context) (bool, error) {
		return strings.Contains(d.CurrentURL(), marker), nil
	})
	if err != nil {
		return scrapeerr.Newf(scrapeerr.KindPagination, "wait for next page",
			"url never showed %q: %w", marker, err)
	}
	return nil
}

func (e *Extractor) waitVisible(ctx context.Context, d browser.Driver, selector string, timeout time.Duration) error {
	err := wait.Until(ctx, e.opts.PollInterval, timeout, func(context.Context) (bool, error) {
		return d.IsVisible(selector)
	})
	if err != nil {
		return fmt.Errorf("%s not visible: %w", selector, err)
	}
	return nil
}
