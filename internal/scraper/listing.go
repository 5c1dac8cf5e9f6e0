package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/maltedev/listing-scraper/internal/layout"
	"github.com/maltedev/listing-scraper/internal/models"
)

// ParseListing reads every product container in html. A container missing
// any configured field is an error: a partial row is never returned.
func ParseListing(html, sourceURL string, l *layout.SiteLayout) ([]models.ScrapedRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var rows []models.ScrapedRow
	var parseErr error

	doc.Find(l.Container).EachWithBreak(func(i int, container *goquery.Selection) bool {
		values := make([]string, 0, len(l.Fields))
		for _, f := range l.Fields {
			el := container.Find(f.Selector).First()
			if el.Length() == 0 {
				parseErr = fmt.Errorf("container %d: field %q (%s) not found", i, f.Column, f.Selector)
				return false
			}
			values = append(values, VisibleText(el))
		}
		rows = append(rows, models.ScrapedRow{SourceURL: sourceURL, Values: values})
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}
	return rows, nil
}

// VisibleText approximates the rendered text of sel: hidden subtrees are
// skipped and whitespace runs collapse to a single space.
func VisibleText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeVisible(&b, n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func writeVisible(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if hiddenNode(n) {
			return
		}
		if n.Data == "br" {
			b.WriteByte(' ')
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeVisible(b, c)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		b.WriteByte(' ')
	}
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true,
	"footer": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "li": true, "ol": true,
	"p": true, "section": true, "table": true, "td": true, "th": true,
	"tr": true, "ul": true,
}

func hiddenNode(n *html.Node) bool {
	switch n.Data {
	case "script", "style", "noscript", "template", "head":
		return true
	}
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "hidden":
			return true
		case "style":
			style := strings.ToLower(strings.Join(strings.Fields(a.Val), ""))
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}
