package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

// worksheet is one tab of a spreadsheet.
type worksheet struct {
	api           API
	spreadsheetID string
	tab           string
	checked       bool
	logger        *slog.Logger
}

// rng quotes the tab name for A1 notation.
func (w *worksheet) rng(cells string) string {
	name := "'" + strings.ReplaceAll(w.tab, "'", "''") + "'"
	if cells == "" {
		return name
	}
	return name + "!" + cells
}

// ensure verifies once that the tab exists. A missing tab is a
// configuration error.
func (w *worksheet) ensure(ctx context.Context) error {
	if w.checked {
		return nil
	}

	titles, err := w.api.SheetTitles(ctx, w.spreadsheetID)
	if err != nil {
		return fmt.Errorf("failed to open spreadsheet %s: %w", w.spreadsheetID, err)
	}
	for _, t := range titles {
		if t == w.tab {
			w.checked = true
			return nil
		}
	}
	return scrapeerr.Newf(scrapeerr.KindConfiguration, "open worksheet",
		"worksheet %q was not found", w.tab)
}
