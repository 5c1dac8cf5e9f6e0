package models

import (
	"fmt"
	"strings"
	"time"
)

// SourceURLColumn is the first column of every output row.
const SourceURLColumn = "Source URL"

// WorkItem is one listing URL to scrape.
type WorkItem struct {
	URL   string `json:"url"`
	Index int    `json:"index"`
}

// ScrapedRow is one product record, values ordered like the layout fields.
type ScrapedRow struct {
	SourceURL string   `json:"source_url"`
	Values    []string `json:"values"`
}

// Record returns the row as written to a sink: source URL first.
func (r ScrapedRow) Record() []string {
	rec := make([]string, 0, len(r.Values)+1)
	rec = append(rec, r.SourceURL)
	return append(rec, r.Values...)
}

// Records converts a batch of rows into sink records.
func Records(rows []ScrapedRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Record())
	}
	return out
}

// OutcomeStatus is the terminal state of a work item.
type OutcomeStatus string

const (
	StatusSucceeded OutcomeStatus = "succeeded"
	StatusSkipped   OutcomeStatus = "skipped"
)

// Outcome is the result of processing one work item.
type Outcome struct {
	Item      WorkItem      `json:"item"`
	Status    OutcomeStatus `json:"status"`
	Rows      int           `json:"rows"`
	Attempts  int           `json:"attempts"`
	Rotations int           `json:"rotations"`
	LastError string        `json:"last_error,omitempty"`
}

// Summary aggregates a whole run.
type Summary struct {
	RunID      string        `json:"run_id"`
	Total      int           `json:"total"`
	Processed  int           `json:"processed"`
	Succeeded  int           `json:"succeeded"`
	Skipped    int           `json:"skipped"`
	Rows       int           `json:"rows"`
	Rotations  int           `json:"rotations"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	SkippedURL []string      `json:"skipped_urls,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Add folds an outcome into the summary.
func (s *Summary) Add(o Outcome) {
	s.Processed++
	s.Rotations += o.Rotations
	switch o.Status {
	case StatusSucceeded:
		s.Succeeded++
		s.Rows += o.Rows
	case StatusSkipped:
		s.Skipped++
		s.SkippedURL = append(s.SkippedURL, o.Item.URL)
	}
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d/%d processed, %d succeeded, %d skipped, %d rows, %d rotations",
		s.RunID, s.Processed, s.Total, s.Succeeded, s.Skipped, s.Rows, s.Rotations)
	if len(s.SkippedURL) > 0 {
		fmt.Fprintf(&b, "\nskipped:\n  %s", strings.Join(s.SkippedURL, "\n  "))
	}
	return b.String()
}
