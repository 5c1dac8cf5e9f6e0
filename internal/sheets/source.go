package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Source reads listing URLs from column A of a worksheet. The first row is a
// header and blank cells are dropped.
type Source struct {
	ws worksheet
}

func NewSource(api API, spreadsheetID, tab string, logger *slog.Logger) *Source {
	return &Source{ws: worksheet{
		api:           api,
		spreadsheetID: spreadsheetID,
		tab:           tab,
		logger:        logger.With("component", "sheets_source", "worksheet", tab),
	}}
}

func (s *Source) URLs(ctx context.Context) ([]string, error) {
	if err := s.ws.ensure(ctx); err != nil {
		return nil, err
	}

	s.ws.logger.Info("fetching URLs")
	values, err := s.ws.api.GetValues(ctx, s.ws.spreadsheetID, s.ws.rng("A:A"))
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", s.ws.tab, err)
	}

	urls := make([]string, 0, len(values))
	for i, row := range values {
		if i == 0 || len(row) == 0 {
			continue
		}
		u := strings.TrimSpace(fmt.Sprint(row[0]))
		if u == "" {
			continue
		}
		urls = append(urls, u)
	}

	s.ws.logger.Info("fetched URLs to process", "count", len(urls))
	return urls, nil
}
