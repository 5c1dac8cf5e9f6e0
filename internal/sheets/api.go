// Package sheets reads work items from and writes result rows to Google
// Sheets worksheets.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// API is the subset of the Sheets service used by Source and Sink.
type API interface {
	SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)
	GetValues(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
	ClearValues(ctx context.Context, spreadsheetID, rng string) error
	AppendValues(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error
}

// Service implements API on top of the Sheets v4 client.
type Service struct {
	srv *gsheets.Service
}

// NewService authenticates with a service account key file.
func NewService(ctx context.Context, credentialsFile string) (*Service, error) {
	srv, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Service{srv: srv}, nil
}

func (s *Service) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	ss, err := s.srv.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

func (s *Service) GetValues(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	vr, err := s.srv.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return vr.Values, nil
}

func (s *Service) ClearValues(ctx context.Context, spreadsheetID, rng string) error {
	_, err := s.srv.Spreadsheets.Values.Clear(spreadsheetID, rng, &gsheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return err
}

// AppendValues appends rows interpreted as if typed by a user, so links and
// numbers keep their sheet formatting.
func (s *Service) AppendValues(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error {
	_, err := s.srv.Spreadsheets.Values.Append(spreadsheetID, rng, &gsheets.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}
