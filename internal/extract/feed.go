package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/gofeed"

	"github.com/kismet-tech/NLWeb/internal/fetch"
	"github.com/kismet-tech/NLWeb/internal/metrics"
)

const (
	StrategyFeedParser = "feed_parser"
	StrategyManualXML  = "manual_xml"
	StrategyFeedLevel  = "feed_level"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.FetchResult, error)
}

// FeedMeta is the feed's own channel metadata.
type FeedMeta struct {
	Title       string
	Link        string
	Description string
}

// FeedSource is one feed URL moving through the strategy chain. The raw payload
// is fetched at most once and shared between strategies.
type FeedSource struct {
	URL string

	fetcher Fetcher

	once sync.Once
	body []byte
	err  error

	mu   sync.Mutex
	meta *FeedMeta
}

func NewFeedSource(url string, f Fetcher) *FeedSource {
	return &FeedSource{URL: url, fetcher: f}
}

// Raw returns the feed payload, fetching it on first use.
func (s *FeedSource) Raw(ctx context.Context) ([]byte, error) {
	s.once.Do(func() {
		res, err := s.fetcher.Fetch(ctx, s.URL)
		if err != nil {
			s.err = err
			return
		}
		s.body = res.Body
	})
	return s.body, s.err
}

// Meta returns channel metadata captured by an earlier strategy, or nil.
func (s *FeedSource) Meta() *FeedMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// SetMeta records channel metadata unless some was already recorded.
func (s *FeedSource) SetMeta(m FeedMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta == nil {
		s.meta = &m
	}
}

// Strategy is one tier of the feed fallback chain. An empty result means
// "try the next tier".
type Strategy interface {
	Name() string
	Extract(ctx context.Context, src *FeedSource) ([]Record, error)
}

// Chain tries strategies in order and stops at the first nonempty result.
type Chain struct {
	strategies []Strategy
}

func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// NewFeedChain returns the standard chain: syndication parser, manual <item>
// walk, then a single feed-level record.
func NewFeedChain() *Chain {
	return NewChain(FeedParserStrategy{}, ManualXMLStrategy{}, FeedLevelStrategy{})
}

// Run returns the records of the first strategy that produced any, along with
// that strategy's name. Strategy errors are logged, never returned.
func (c *Chain) Run(ctx context.Context, src *FeedSource) ([]Record, string) {
	for _, s := range c.strategies {
		records, err := s.Extract(ctx, src)
		if err != nil {
			slog.WarnContext(ctx, "feed strategy failed", "strategy", s.Name(), "url", src.URL, "error", err)
		}
		if len(records) > 0 {
			slog.InfoContext(ctx, "feed strategy produced records", "strategy", s.Name(), "count", len(records))
			metrics.RecordsExtractedTotal.WithLabelValues(s.Name()).Add(float64(len(records)))
			return records, s.Name()
		}
		slog.InfoContext(ctx, "feed strategy found no entries", "strategy", s.Name(), "url", src.URL)
	}
	return nil, ""
}

// FeedParserStrategy parses the payload as RSS, Atom or JSON Feed.
type FeedParserStrategy struct{}

func (FeedParserStrategy) Name() string { return StrategyFeedParser }

func (FeedParserStrategy) Extract(ctx context.Context, src *FeedSource) ([]Record, error) {
	raw, err := src.Raw(ctx)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	src.SetMeta(FeedMeta{Title: feed.Title, Link: feed.Link, Description: feed.Description})
	slog.DebugContext(ctx, "feed parsed", "title", feed.Title, "entries", len(feed.Items))

	records := make([]Record, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		body := item.Content
		if body == "" {
			body = item.Description
		}
		records = append(records, Record{
			Title:       item.Title,
			Link:        item.Link,
			Body:        body,
			Description: item.Description,
			Published:   item.Published,
			PublishedAt: item.PublishedParsed,
		})
	}
	return records, nil
}

// FeedLevelStrategy synthesizes one homepage-level record from the channel metadata.
type FeedLevelStrategy struct{}

func (FeedLevelStrategy) Name() string { return StrategyFeedLevel }

func (FeedLevelStrategy) Extract(_ context.Context, src *FeedSource) ([]Record, error) {
	meta := src.Meta()
	if meta == nil || meta.Title == "" {
		return nil, nil
	}

	link := meta.Link
	if link == "" {
		link = src.URL
	}
	return []Record{{
		Title:       meta.Title,
		Link:        link,
		Body:        meta.Description,
		Description: meta.Description,
	}}, nil
}
