package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/kismet-tech/NLWeb/features/run"
	"github.com/kismet-tech/NLWeb/internal/document"
	"github.com/kismet-tech/NLWeb/internal/extract"
	"github.com/kismet-tech/NLWeb/internal/fetch"
	"github.com/kismet-tech/NLWeb/internal/profile"
)

// Crawl reads the profile's sitemap and builds one document per URL, followed
// by the profile's synthetic documents. Page fetches run one at a time with a
// fixed pause between them; a failing page is skipped.
func (p *Pipeline) Crawl(ctx context.Context, prof *profile.Profile) ([]document.Document, Report, error) {
	ctx, rep, started := p.begin(ctx, prof.Site, prof.SitemapURL)
	docs, err := p.crawl(ctx, rep, prof)
	return docs, *rep, p.finish(ctx, run.KindCrawl, rep, started, err)
}

func (p *Pipeline) crawl(ctx context.Context, rep *Report, prof *profile.Profile) ([]document.Document, error) {
	p.progress("Fetching sitemap from %s...", prof.SitemapURL)

	// 1. Discover
	var urls []string
	if prof.SitemapURL != "" {
		found, err := p.reader.Sitemap(ctx, prof.SitemapURL)
		if err != nil {
			slog.WarnContext(ctx, "sitemap unavailable", "url", prof.SitemapURL, "error", err)
			p.progress("Failed to fetch sitemap: %v", err)
		}
		urls = fetch.FilterLinks(allowedHost(prof), found, prof.Exclusions)
	}
	p.progress("Found %d URLs in sitemap", len(urls))

	// 2. Extract and build
	b := document.NewBuilder(prof.Site, prof)
	var docs []document.Document
	fetched := false

	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return docs, err
		}
		p.progress("Processing %s...", u)

		if document.IsNonHTML(u) {
			ph, ok := prof.PlaceholderFor(u)
			if !ok {
				ph = document.GenericPlaceholder(u)
			}
			docs = append(docs, b.FromPlaceholder(ph))
			continue
		}

		if fetched {
			if err := p.pause(ctx); err != nil {
				return docs, err
			}
		}
		fetched = true

		res, err := p.reader.Fetch(ctx, u)
		if err != nil {
			slog.WarnContext(ctx, "skipping page", "url", u, "error", err)
			p.progress("Failed to fetch %s: %v", u, err)
			rep.Skipped++
			continue
		}
		rec, err := extract.ExtractPage(ctx, res.Body, res.ContentType)
		if err != nil {
			slog.WarnContext(ctx, "skipping unparseable page", "url", u, "error", err)
			rep.Skipped++
			continue
		}
		docs = append(docs, b.FromPage(u, rec))
	}

	// 3. Synthetic documents
	for i, raw := range prof.Documents {
		doc, err := b.FromRaw(raw)
		if err != nil {
			slog.WarnContext(ctx, "skipping synthetic document", "index", i, "error", err)
			rep.Skipped++
			continue
		}
		docs = append(docs, doc)
	}

	rep.Found = len(docs)
	p.progress("Created %d documents", len(docs))
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	return docs, nil
}

// pause waits out the crawl delay measured from the end of the previous fetch.
func (p *Pipeline) pause(ctx context.Context) error {
	if p.delay <= 0 {
		return nil
	}
	t := time.NewTimer(p.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func allowedHost(prof *profile.Profile) string {
	if !prof.SameHostOnly {
		return ""
	}
	for _, raw := range []string{prof.BaseURL, prof.SitemapURL} {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return ""
}

// Load indexes an interchange file under site. Documents take the given site
// regardless of what the file says.
func (p *Pipeline) Load(ctx context.Context, path, site string, replace bool) (Report, error) {
	ctx, rep, started := p.begin(ctx, site, path)
	err := p.load(ctx, rep, path, replace)
	return *rep, p.finish(ctx, run.KindLoad, rep, started, err)
}

func (p *Pipeline) load(ctx context.Context, rep *Report, path string, replace bool) error {
	docs, err := document.ReadFile(path)
	if err != nil {
		return err
	}
	for i := range docs {
		docs[i].Site = rep.Site
	}
	rep.Found = len(docs)
	if len(docs) == 0 {
		p.progress("No documents found in %s", path)
		return ErrNoDocuments
	}
	return p.index(ctx, rep, docs, replace)
}

// SiteOptions controls RunSite.
type SiteOptions struct {
	// OutputPath keeps the interchange file at this path. Empty means a
	// temporary file removed after loading.
	OutputPath string
}

// RunSite crawls the profile's site, writes the interchange file, deletes the
// site's existing points and loads the file.
func (p *Pipeline) RunSite(ctx context.Context, prof *profile.Profile, opts SiteOptions) (Report, error) {
	ctx, rep, started := p.begin(ctx, prof.Site, prof.SitemapURL)
	err := p.runSite(ctx, rep, prof, opts)
	return *rep, p.finish(ctx, run.KindSite, rep, started, err)
}

func (p *Pipeline) runSite(ctx context.Context, rep *Report, prof *profile.Profile, opts SiteOptions) error {
	// 1. Crawl
	docs, err := p.crawl(ctx, rep, prof)
	if err != nil {
		return err
	}

	// 2. Hand off through the interchange file
	path := opts.OutputPath
	if path == "" {
		f, err := os.CreateTemp("", prof.Site+"-*.txt")
		if err != nil {
			return fmt.Errorf("create interchange file: %w", err)
		}
		path = f.Name()
		if err := f.Close(); err != nil {
			return err
		}
		defer func() {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.WarnContext(ctx, "failed to remove interchange file", "path", path, "error", err)
			}
		}()
	}
	if err := document.WriteFile(path, docs); err != nil {
		return err
	}
	p.progress("Saved %d documents to %s", len(docs), path)

	// 3. Delete, then load
	return p.load(ctx, rep, path, true)
}

// DeleteSite removes every point of site.
func (p *Pipeline) DeleteSite(ctx context.Context, site string) (Report, error) {
	ctx, rep, started := p.begin(ctx, site, "")
	deleted, err := p.indexer.DeleteSite(ctx, site)
	rep.Deleted = deleted
	if err == nil {
		p.progress("Deleted %d documents for site %s", deleted, site)
	}
	return *rep, p.finish(ctx, run.KindDelete, rep, started, err)
}
