package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrapedRow_Record(t *testing.T) {
	row := ScrapedRow{SourceURL: "https://site/x", Values: []string{"Roadster", "Slim Fit Shirt"}}
	assert.Equal(t, []string{"https://site/x", "Roadster", "Slim Fit Shirt"}, row.Record())
}

func TestRecords(t *testing.T) {
	rows := []ScrapedRow{
		{SourceURL: "u", Values: []string{"a"}},
		{SourceURL: "u", Values: []string{"b"}},
	}
	assert.Equal(t, [][]string{{"u", "a"}, {"u", "b"}}, Records(rows))
	assert.Empty(t, Records(nil))
}

func TestSummary_Add(t *testing.T) {
	var s Summary
	s.Add(Outcome{Item: WorkItem{URL: "a"}, Status: StatusSucceeded, Rows: 3, Rotations: 1})
	s.Add(Outcome{Item: WorkItem{URL: "b"}, Status: StatusSkipped, Rotations: 3})

	assert.Equal(t, 2, s.Processed)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 3, s.Rows)
	assert.Equal(t, 4, s.Rotations)
	assert.Equal(t, []string{"b"}, s.SkippedURL)
	assert.Contains(t, s.String(), "1 skipped")
}
