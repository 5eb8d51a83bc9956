package app

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/kismet-tech/NLWeb/features/run"
	"github.com/kismet-tech/NLWeb/internal/config"
	"github.com/kismet-tech/NLWeb/internal/fetch"
	"github.com/kismet-tech/NLWeb/internal/indexer"
	"github.com/kismet-tech/NLWeb/internal/pipeline"
	"github.com/kismet-tech/NLWeb/internal/retrieval"
)

// SiteCounter reports how many points a site holds.
type SiteCounter interface {
	CountSite(ctx context.Context, site string) (int, error)
}

// App is the wired indexer used by every command.
type App struct {
	Pipeline  *pipeline.Pipeline
	Indexer   *indexer.Client
	Retrieval *retrieval.Service
	Runs      *run.Service

	counter SiteCounter
	closers []func() error
}

// New wires services on top of deps. Progress lines go to out.
func New(cfg *config.Config, deps *Dependencies, out io.Writer) (*App, error) {
	a := &App{counter: deps.VectorStore}

	// Feature: Run ledger
	var (
		repo run.Repository
		pub  run.EventPublisher
	)
	if deps.DB != nil {
		repo = run.NewPostgresRepo(deps.DB)
	}
	if deps.NSQProducer != nil {
		pub = deps.NSQProducer
	}
	a.Runs = run.NewService(repo, pub)

	// Indexing
	a.Indexer = indexer.New(deps.Embedder, deps.VectorStore, indexer.WithBatchSize(cfg.BatchSize))
	reader := fetch.NewReader(cfg.FetchTimeout, cfg.UserAgent, cfg.MaxContentBytes)
	a.Pipeline = pipeline.New(reader, a.Indexer,
		pipeline.WithRecorder(a.Runs),
		pipeline.WithCrawlDelay(cfg.CrawlDelay),
		pipeline.WithProgress(out),
	)

	// Feature: Retrieval
	var queryLogger *retrieval.QueryLogger
	if cfg.QueryLogPath != "" {
		l, closer, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
		if err != nil {
			slog.Warn("failed to create query logger, queries will not be logged", "path", cfg.QueryLogPath, "error", err)
		} else {
			queryLogger = l
			a.closers = append(a.closers, closer.Close)
		}
	}
	a.Retrieval = retrieval.NewService(deps.Embedder, deps.VectorStore, queryLogger)

	a.closers = append(a.closers, deps.Close)
	return a, nil
}

// SiteStats is the stored state of one site.
type SiteStats struct {
	Site   string
	Points int
	Runs   []run.Run
}

// Stats counts the site's points and lists its most recent runs when the
// ledger is enabled.
func (a *App) Stats(ctx context.Context, site string, limit int) (SiteStats, error) {
	stats := SiteStats{Site: site}

	n, err := a.counter.CountSite(ctx, site)
	if err != nil {
		return stats, err
	}
	stats.Points = n

	runs, err := a.Runs.Recent(ctx, site, limit)
	if err != nil {
		slog.WarnContext(ctx, "failed to list runs", "site", site, "error", err)
	}
	stats.Runs = runs
	return stats, nil
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
