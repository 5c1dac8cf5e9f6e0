// Package session owns the lifecycle of browser sessions: creation, release
// and replacement.
package session

import (
	"context"
	"log/slog"

	"github.com/maltedev/listing-scraper/internal/browser"
	"github.com/maltedev/listing-scraper/internal/metrics"
	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

// Launcher starts a new browser session.
type Launcher interface {
	Launch() (browser.Driver, error)
}

type Manager struct {
	launcher Launcher
	metrics  *metrics.Metrics
	logger   *slog.Logger

	launched int
}

func NewManager(launcher Launcher, m *metrics.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		launcher: launcher,
		metrics:  m,
		logger:   logger.With("component", "session"),
	}
}

// Acquire launches a fresh, fully initialised session. A launch failure is
// a KindContextInit error and is not retried here.
func (m *Manager) Acquire(ctx context.Context) (browser.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, scrapeerr.New(scrapeerr.KindContextInit, "acquire", err)
	}

	d, err := m.launcher.Launch()
	if err != nil {
		return nil, scrapeerr.New(scrapeerr.KindContextInit, "launch", err)
	}

	m.launched++
	m.logger.Debug("session acquired", "launched", m.launched)
	return d, nil
}

// Rotate releases current and returns a replacement from Acquire.
func (m *Manager) Rotate(ctx context.Context, current browser.Driver) (browser.Driver, error) {
	m.Release(current)
	return m.Acquire(ctx)
}

// Release closes d. Failures are logged and swallowed: the old session is
// abandoned, never retried.
func (m *Manager) Release(d browser.Driver) {
	if d == nil {
		return
	}
	if err := d.Close(); err != nil {
		m.metrics.IncReleaseFailure()
		m.logger.Error("failed to quit the unresponsive browser",
			"error", scrapeerr.New(scrapeerr.KindRelease, "close", err))
	}
}

// Launched returns the number of sessions created so far.
func (m *Manager) Launched() int {
	return m.launched
}

// ShouldRotate reports whether a proactive rotation is due.
func ShouldRotate(unitsSinceRotation, threshold int) bool {
	return unitsSinceRotation >= threshold
}
