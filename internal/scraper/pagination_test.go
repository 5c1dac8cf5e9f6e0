package scraper

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTotalPages(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"Product count", "Showing 1-20 of 57 products", 57},
		{"Page of pages", "Page 1 of 3", 3},
		{"Large", "Page 1 of 500", 500},
		{"No pattern", "Page 1", 1},
		{"Empty", "", 1},
		{"Zero", "Page 0 of 0", 1},
		{"Uppercase is not matched", "Page 1 OF 9", 1},
		{"Overflow saturates", "Page 1 of 99999999999999999999", math.MaxInt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseTotalPages(tt.input))
		})
	}
}

func TestPagesToScrape(t *testing.T) {
	assert.Equal(t, 120, PagesToScrape(500, 120))
	assert.Equal(t, 120, PagesToScrape(120, 120))
	assert.Equal(t, 3, PagesToScrape(3, 120))
	assert.Equal(t, 7, PagesToScrape(7, 0))
}

func TestPagesToScrape_OverflowingCountIsCapped(t *testing.T) {
	total := ParseTotalPages("Page 1 of 99999999999999999999")
	assert.Equal(t, 120, PagesToScrape(total, 120))
}
