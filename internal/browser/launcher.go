package browser

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Launcher creates fresh browser sessions with fixed options.
type Launcher struct {
	opts    *Options
	install bool
	logger  *slog.Logger

	installOnce sync.Once
	installErr  error
}

// NewLauncher returns a launcher; when install is set the Chromium build is
// downloaded once before the first launch.
func NewLauncher(opts *Options, install bool, logger *slog.Logger) *Launcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		opts:    opts,
		install: install,
		logger:  logger.With("component", "launcher"),
	}
}

func (l *Launcher) Launch() (Driver, error) {
	if l.install {
		l.installOnce.Do(func() {
			l.logger.Info("installing browser engine")
			l.installErr = playwright.Install(&playwright.RunOptions{
				Browsers: []string{"chromium"},
			})
		})
		if l.installErr != nil {
			return nil, fmt.Errorf("failed to install browser engine: %w", l.installErr)
		}
	}

	l.logger.Info("initializing a fresh browser instance", "headless", l.opts.Headless)
	return New(l.opts, l.logger)
}
