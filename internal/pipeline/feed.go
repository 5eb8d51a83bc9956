package pipeline

import (
	"context"
	"log/slog"

	"github.com/kismet-tech/NLWeb/features/run"
	"github.com/kismet-tech/NLWeb/internal/document"
	"github.com/kismet-tech/NLWeb/internal/extract"
)

// RunFeed indexes every entry of one syndication feed under site.
func (p *Pipeline) RunFeed(ctx context.Context, feedURL, site string, replace bool) (Report, error) {
	ctx, rep, started := p.begin(ctx, site, feedURL)
	err := p.runFeed(ctx, rep, feedURL, replace)
	return *rep, p.finish(ctx, run.KindFeed, rep, started, err)
}

func (p *Pipeline) runFeed(ctx context.Context, rep *Report, feedURL string, replace bool) error {
	p.progress("Fetching RSS feed from %s...", feedURL)

	// 1. Extract
	records, strategy := p.chain.Run(ctx, extract.NewFeedSource(feedURL, p.reader))
	rep.Strategy = strategy
	if len(records) == 0 {
		p.progress("No documents found in feed")
		return ErrNoDocuments
	}
	p.progress("Found %d entries in feed", len(records))

	// 2. Build
	b := document.NewBuilder(rep.Site, nil)
	docs := make([]document.Document, 0, len(records))
	for _, rec := range records {
		p.progress("Processing: %s", rec.Title)
		docs = append(docs, b.FromFeedRecord(rec))
	}
	rep.Found = len(docs)
	slog.InfoContext(ctx, "feed documents built", "count", len(docs), "strategy", strategy)

	// 3. Index
	return p.index(ctx, rep, docs, replace)
}
