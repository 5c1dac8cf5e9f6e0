package sheets

import (
	"context"
	"fmt"
	"log/slog"
)

// Sink writes rows to a worksheet, replacing its previous content on Clear.
type Sink struct {
	ws worksheet
}

func NewSink(api API, spreadsheetID, tab string, logger *slog.Logger) *Sink {
	return &Sink{ws: worksheet{
		api:           api,
		spreadsheetID: spreadsheetID,
		tab:           tab,
		logger:        logger.With("component", "sheets_sink", "worksheet", tab),
	}}
}

func (s *Sink) Clear(ctx context.Context) error {
	if err := s.ws.ensure(ctx); err != nil {
		return err
	}
	if err := s.ws.api.ClearValues(ctx, s.ws.spreadsheetID, s.ws.rng("")); err != nil {
		return fmt.Errorf("failed to clear worksheet %q: %w", s.ws.tab, err)
	}
	return nil
}

func (s *Sink) AppendHeader(ctx context.Context, header []string) error {
	return s.AppendRows(ctx, [][]string{header})
}

func (s *Sink) AppendRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.ws.ensure(ctx); err != nil {
		return err
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		values[i] = cells
	}

	if err := s.ws.api.AppendValues(ctx, s.ws.spreadsheetID, s.ws.rng("A1"), values); err != nil {
		return fmt.Errorf("failed to append %d rows to worksheet %q: %w", len(rows), s.ws.tab, err)
	}
	s.ws.logger.Debug("rows appended", "rows", len(rows))
	return nil
}
