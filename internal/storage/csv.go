// Package storage provides file-backed work sources and result sinks for
// running without a spreadsheet.
package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

// FileSource reads URLs from the first column of a CSV file. The first row
// is a header; blank cells are skipped.
type FileSource struct {
	filename string
}

func NewFileSource(filename string) *FileSource {
	return &FileSource{filename: filename}
}

func (fs *FileSource) URLs(ctx context.Context) ([]string, error) {
	f, err := os.Open(fs.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, scrapeerr.New(scrapeerr.KindConfiguration, "open source file", err)
		}
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var urls []string
	for line := 0; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read source file: %w", err)
		}
		if line == 0 || len(rec) == 0 {
			continue
		}
		if u := strings.TrimSpace(rec[0]); u != "" {
			urls = append(urls, u)
		}
	}
	return urls, nil
}

// CSVSink writes rows to a CSV file. Clear truncates the file.
type CSVSink struct {
	filename string
	mu       sync.Mutex
}

func NewCSVSink(filename string) *CSVSink {
	return &CSVSink{filename: filename}
}

func (s *CSVSink) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ensureDir(s.filename); err != nil {
		return err
	}

	// Write to temp file first for atomicity
	tmpFile := s.filename + ".tmp"
	if err := os.WriteFile(tmpFile, nil, 0o644); err != nil {
		return fmt.Errorf("clear csv file: %w", err)
	}
	return os.Rename(tmpFile, s.filename)
}

func (s *CSVSink) AppendHeader(ctx context.Context, header []string) error {
	return s.AppendRows(ctx, [][]string{header})
}

func (s *CSVSink) AppendRows(ctx context.Context, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open csv file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write csv records: %w", err)
	}
	return f.Close()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}
