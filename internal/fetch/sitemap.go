package fetch

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html/charset"
)

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

type urlSet struct {
	URLs []sitemapLoc `xml:"url"`
}

type sitemapIndex struct {
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

// ParseSitemap returns the page locations of a <urlset> document, or the child
// sitemap locations of a <sitemapindex> document. Malformed <loc> entries are skipped.
func ParseSitemap(body []byte) (pages []string, children []string, err error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil, fmt.Errorf("parse sitemap: no root element")
			}
			return nil, nil, fmt.Errorf("parse sitemap: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "urlset":
			var set urlSet
			if err := dec.DecodeElement(&set, &se); err != nil {
				return nil, nil, fmt.Errorf("parse sitemap: %w", err)
			}
			return validLocs(set.URLs), nil, nil
		case "sitemapindex":
			var idx sitemapIndex
			if err := dec.DecodeElement(&idx, &se); err != nil {
				return nil, nil, fmt.Errorf("parse sitemap index: %w", err)
			}
			return nil, validLocs(idx.Sitemaps), nil
		default:
			return nil, nil, fmt.Errorf("parse sitemap: unexpected root element <%s>", se.Name.Local)
		}
	}
}

func validLocs(entries []sitemapLoc) []string {
	var out []string
	for _, e := range entries {
		loc := strings.TrimSpace(e.Loc)
		u, err := url.Parse(loc)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			slog.Debug("skipping malformed sitemap loc", "loc", loc)
			continue
		}
		out = append(out, loc)
	}
	return out
}

// Sitemap fetches sitemapURL and returns its page URLs. A sitemap index is
// expanded one level; a child sitemap that fails to fetch or parse is skipped.
func (r *Reader) Sitemap(ctx context.Context, sitemapURL string) ([]string, error) {
	res, err := r.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	pages, children, err := ParseSitemap(res.Body)
	if err != nil {
		return nil, err
	}

	for _, child := range children {
		childRes, err := r.Fetch(ctx, child)
		if err != nil {
			slog.WarnContext(ctx, "failed to fetch child sitemap", "url", child, "error", err)
			continue
		}
		childPages, _, err := ParseSitemap(childRes.Body)
		if err != nil {
			slog.WarnContext(ctx, "failed to parse child sitemap", "url", child, "error", err)
			continue
		}
		pages = append(pages, childPages...)
	}

	return pages, nil
}
