package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/maltedev/listing-scraper/internal/logger"
	"github.com/maltedev/listing-scraper/internal/notify"
	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitFatal       = 1
	ExitConfig      = 2
	ExitInterrupted = 130
)

// CrashSubject is the subject of the alert sent for an unhandled failure.
const CrashSubject = "Product Scraper Alert: SCRIPT CRASHED"

// Supervise runs fn and turns its outcome into an exit code. Unhandled
// errors and panics are logged at critical level and reported through n;
// configuration errors and interruptions are only logged.
func Supervise(ctx context.Context, n notify.Notifier, log *slog.Logger, fn func(ctx context.Context) error) int {
	var stack []byte
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				stack = debug.Stack()
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn(ctx)
	}()

	switch {
	case err == nil:
		return ExitOK

	case errors.Is(err, context.Canceled):
		log.Warn("run interrupted", "error", err)
		return ExitInterrupted

	case scrapeerr.Is(err, scrapeerr.KindConfiguration):
		logger.Critical(ctx, log, "fatal configuration error", "error", err)
		return ExitConfig
	}

	if stack == nil {
		stack = debug.Stack()
	}
	logger.Critical(ctx, log, "a critical, unhandled error occurred",
		"error", err,
		"stack", string(stack))

	if n != nil {
		n.Notify(context.WithoutCancel(ctx), CrashSubject,
			fmt.Sprintf("Error:\n%v\n\nTraceback:\n%s", err, stack))
	}
	return ExitFatal
}
