package scraper

import (
	"errors"
	"math"
	"regexp"
	"strconv"
)

var totalPagesPattern = regexp.MustCompile(`of (\d+)`)

// ParseTotalPages extracts N from pagination text such as "Page 1 of 57".
// Text without the pattern, or with N below 1, counts as a single page. An N
// too large for an int saturates so that PagesToScrape still caps it.
func ParseTotalPages(text string) int {
	m := totalPagesPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt
	}
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// PagesToScrape caps the detected page count.
func PagesToScrape(total, maxPages int) int {
	if maxPages > 0 && total > maxPages {
		return maxPages
	}
	return total
}
