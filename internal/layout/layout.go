// Package layout holds the static selector descriptors for supported sites.
package layout

import (
	"fmt"
	"strings"

	"github.com/maltedev/listing-scraper/internal/models"
)

// DefaultPageMarker is matched against the page URL after clicking "next".
const DefaultPageMarker = "p=%d"

// Field maps an output column to the selector read inside each container.
type Field struct {
	Column   string `toml:"column"`
	Selector string `toml:"selector"`
}

// SiteLayout describes how to find products on one site's listing pages.
type SiteLayout struct {
	Name           string  `toml:"-"`
	Fields         []Field `toml:"fields"`
	Container      string  `toml:"container"`
	TotalPagesInfo string  `toml:"total_pages_info"`
	NextPage       string  `toml:"next_page"`
	PageMarker     string  `toml:"page_marker"`
}

// Validate checks the layout is usable by the extractor.
func (l *SiteLayout) Validate() error {
	if l == nil {
		return fmt.Errorf("layout is nil")
	}
	if len(l.Fields) == 0 {
		return fmt.Errorf("layout %q: at least one field is required", l.Name)
	}
	if strings.TrimSpace(l.Container) == "" {
		return fmt.Errorf("layout %q: container selector is required", l.Name)
	}
	if strings.TrimSpace(l.NextPage) == "" {
		return fmt.Errorf("layout %q: next page selector is required", l.Name)
	}
	if l.PageMarker != "" && !strings.Contains(l.PageMarker, "%d") {
		return fmt.Errorf("layout %q: page marker %q must contain %%d", l.Name, l.PageMarker)
	}

	seen := make(map[string]bool, len(l.Fields))
	for i, f := range l.Fields {
		if strings.TrimSpace(f.Column) == "" {
			return fmt.Errorf("layout %q: field %d has no column name", l.Name, i)
		}
		if strings.TrimSpace(f.Selector) == "" {
			return fmt.Errorf("layout %q: field %q has no selector", l.Name, f.Column)
		}
		if f.Column == models.SourceURLColumn {
			return fmt.Errorf("layout %q: column name %q is reserved", l.Name, f.Column)
		}
		if seen[f.Column] {
			return fmt.Errorf("layout %q: duplicate column %q", l.Name, f.Column)
		}
		seen[f.Column] = true
	}
	return nil
}

// Header returns the output columns: source URL followed by every field.
func (l *SiteLayout) Header() []string {
	return append([]string{models.SourceURLColumn}, l.Columns()...)
}

// Columns returns the field column names in order.
func (l *SiteLayout) Columns() []string {
	cols := make([]string, 0, len(l.Fields))
	for _, f := range l.Fields {
		cols = append(cols, f.Column)
	}
	return cols
}

// FirstSelector is the selector whose visibility signals rendered content.
func (l *SiteLayout) FirstSelector() string {
	return l.Fields[0].Selector
}

// PageURLMarker returns the URL fragment expected once page n is shown.
func (l *SiteLayout) PageURLMarker(n int) string {
	marker := l.PageMarker
	if marker == "" {
		marker = DefaultPageMarker
	}
	return fmt.Sprintf(marker, n)
}

func (l *SiteLayout) clone() *SiteLayout {
	cp := *l
	cp.Fields = append([]Field(nil), l.Fields...)
	return &cp
}
