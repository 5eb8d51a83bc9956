package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/kismet-tech/NLWeb/internal/metrics"
	"github.com/kismet-tech/NLWeb/internal/text"
)

const StrategyHTML = "html"

// ExtractPage parses an HTML page into a Record: trimmed title, meta
// description, JSON-LD fragments in document order, and the visible text with
// scripts and styles removed.
func ExtractPage(ctx context.Context, body []byte, contentType string) (Record, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return Record{}, fmt.Errorf("%w: charset: %v", ErrParse, err)
	}
	root, err := html.Parse(r)
	if err != nil {
		return Record{}, fmt.Errorf("%w: html: %v", ErrParse, err)
	}
	doc := goquery.NewDocumentFromNode(root)

	rec := Record{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Description: doc.Find(`meta[name="description"]`).First().AttrOr("content", ""),
	}

	// 1. Structured data first; the script elements are removed below.
	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		fragments, err := ParseJSONLD([]byte(s.Text()))
		if err != nil {
			slog.DebugContext(ctx, "skipping JSON-LD block", "index", i, "error", err)
			return
		}
		rec.StructuredData = append(rec.StructuredData, fragments...)
	})

	// 2. Visible text.
	doc.Find("script, style").Remove()
	rec.Body = text.Truncate(text.CollapseWhitespace(doc.Text()), text.MaxPageChars)

	metrics.RecordsExtractedTotal.WithLabelValues(StrategyHTML).Inc()
	return rec, nil
}
