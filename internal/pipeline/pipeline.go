// Package pipeline sequences ingestion runs: discover source units, extract,
// build documents, optionally delete the site, then embed and upsert.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kismet-tech/NLWeb/features/run"
	"github.com/kismet-tech/NLWeb/internal/document"
	"github.com/kismet-tech/NLWeb/internal/extract"
	"github.com/kismet-tech/NLWeb/internal/fetch"
	"github.com/kismet-tech/NLWeb/internal/logger"
	"github.com/kismet-tech/NLWeb/internal/metrics"
)

const DefaultCrawlDelay = 500 * time.Millisecond

// ErrNoDocuments marks a run that found nothing to index. It is an explicit
// outcome, not a failure of any component.
var ErrNoDocuments = errors.New("no documents found")

type Reader interface {
	Fetch(ctx context.Context, url string) (*fetch.FetchResult, error)
	Sitemap(ctx context.Context, url string) ([]string, error)
}

type Indexer interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, docs []document.Document) (int, error)
	DeleteSite(ctx context.Context, site string) (int64, error)
}

type Recorder interface {
	Record(ctx context.Context, r *run.Run) error
}

// Report summarizes one run.
type Report struct {
	RunID    string
	Site     string
	Source   string
	Strategy string
	Found    int
	Indexed  int
	Skipped  int
	Deleted  int64
}

type Pipeline struct {
	reader   Reader
	indexer  Indexer
	recorder Recorder
	chain    *extract.Chain
	delay    time.Duration
	out      io.Writer
}

type Option func(*Pipeline)

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithCrawlDelay sets the fixed pause between consecutive page fetches.
func WithCrawlDelay(d time.Duration) Option {
	return func(p *Pipeline) { p.delay = d }
}

// WithProgress directs user-facing progress lines to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

func WithChain(c *extract.Chain) Option {
	return func(p *Pipeline) { p.chain = c }
}

func New(reader Reader, idx Indexer, opts ...Option) *Pipeline {
	p := &Pipeline{
		reader:  reader,
		indexer: idx,
		chain:   extract.NewFeedChain(),
		delay:   DefaultCrawlDelay,
		out:     io.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) progress(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// begin stamps the run id and site on ctx.
func (p *Pipeline) begin(ctx context.Context, site, source string) (context.Context, *Report, time.Time) {
	id := uuid.NewString()
	ctx = logger.WithSite(logger.WithRunID(ctx, id), site)
	return ctx, &Report{RunID: id, Site: site, Source: source}, time.Now()
}

// finish records the run outcome and passes err through.
func (p *Pipeline) finish(ctx context.Context, kind run.Kind, rep *Report, started time.Time, err error) error {
	status := run.StatusSucceeded
	switch {
	case errors.Is(err, ErrNoDocuments):
		status = run.StatusEmpty
	case err != nil:
		status = run.StatusFailed
	}

	finished := time.Now()
	metrics.RunDuration.WithLabelValues(string(kind), string(status)).Observe(finished.Sub(started).Seconds())

	r := &run.Run{
		ID:         rep.RunID,
		Kind:       kind,
		Site:       rep.Site,
		Source:     rep.Source,
		Found:      rep.Found,
		Indexed:    rep.Indexed,
		Skipped:    rep.Skipped,
		Deleted:    rep.Deleted,
		Status:     status,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if err != nil {
		r.Error = err.Error()
	}

	slog.InfoContext(ctx, "run finished", "kind", kind, "status", status, "found", rep.Found, "indexed", rep.Indexed, "skipped", rep.Skipped)
	if p.recorder != nil {
		// Recording problems are logged by the recorder and never fail the run.
		_ = p.recorder.Record(ctx, r)
	}
	return err
}

// index ensures the collection, optionally clears the site, and loads docs.
// A failed delete is a warning: the load still proceeds.
func (p *Pipeline) index(ctx context.Context, rep *Report, docs []document.Document, replace bool) error {
	if err := p.indexer.EnsureCollection(ctx); err != nil {
		return err
	}

	if replace {
		p.progress("Deleting existing documents for site %s...", rep.Site)
		deleted, err := p.indexer.DeleteSite(ctx, rep.Site)
		if err != nil {
			slog.WarnContext(ctx, "delete before load failed, loading anyway", "error", err)
			p.progress("Warning: could not delete existing documents: %v", err)
		} else {
			rep.Deleted = deleted
		}
	}

	p.progress("Indexing %d documents...", len(docs))
	indexed, err := p.indexer.Upsert(ctx, docs)
	rep.Indexed = indexed
	if err != nil {
		slog.ErrorContext(ctx, "indexing failed", "indexed", indexed, "error", err)
		return err
	}
	p.progress("Indexed %d documents for site %s", indexed, rep.Site)
	return nil
}
