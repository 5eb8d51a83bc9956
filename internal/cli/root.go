// Package cli is the nlweb-index command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kismet-tech/NLWeb/internal/app"
	"github.com/kismet-tech/NLWeb/internal/config"
	"github.com/kismet-tech/NLWeb/internal/logger"
	"github.com/kismet-tech/NLWeb/internal/metrics"
	"github.com/kismet-tech/NLWeb/internal/pipeline"
)

// BootstrapFunc builds the application from a validated configuration.
type BootstrapFunc func(ctx context.Context, cfg *config.Config, out io.Writer) (*app.App, error)

// Options lets tests replace configuration loading and client construction.
type Options struct {
	LoadConfig func() (*config.Config, error)
	Bootstrap  BootstrapFunc
	// Out receives results and progress; defaults to stdout.
	Out       io.Writer
	Err       io.Writer
	LogOutput io.Writer
}

// DefaultBootstrap connects every configured client.
func DefaultBootstrap(ctx context.Context, cfg *config.Config, out io.Writer) (*app.App, error) {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, deps, out)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	return a, nil
}

type runner struct {
	opts Options
	cfg  *config.Config
	app  *app.App
}

// NewRootCommand assembles the command tree.
func NewRootCommand(opts Options) *cobra.Command {
	root, _ := newRoot(opts)
	return root
}

func newRoot(opts Options) (*cobra.Command, *runner) {
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.Load
	}
	if opts.Bootstrap == nil {
		opts.Bootstrap = DefaultBootstrap
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	r := &runner{opts: opts}

	root := &cobra.Command{
		Use:   "nlweb-index",
		Short: "Index syndication feeds and websites into the NLWeb vector collection",
		Long: `nlweb-index crawls an RSS feed or a sitemap, turns every entry or page into a
schema.org-shaped document, embeds it and stores it in the shared vector
collection under a site name.`,
		SilenceErrors:     true,
		PersistentPreRunE: r.setup,
	}

	root.SetOut(opts.Out)
	root.SetErr(opts.Err)
	root.AddCommand(
		newRSSCommand(r),
		newSiteCommand(r),
		newCrawlCommand(r),
		newLoadCommand(r),
		newDeleteSiteCommand(r),
		newQueryCommand(r),
		newStatsCommand(r),
	)
	return root, r
}

// setup validates configuration before any client exists, then bootstraps.
func (r *runner) setup(cmd *cobra.Command, args []string) error {
	// Argument errors print usage; anything after this point does not.
	cmd.SilenceUsage = true

	cfg, err := r.opts.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if f := cmd.Flags().Lookup("batch-size"); f != nil && f.Changed {
		n, err := cmd.Flags().GetInt("batch-size")
		if err != nil {
			return err
		}
		cfg.BatchSize = n
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.cfg = cfg

	slog.SetDefault(logger.New(r.opts.LogOutput, cfg.LogLevel, cfg.LogFormat))
	metrics.Register()
	metrics.Serve(cmd.Context(), cfg.MetricsAddr)

	a, err := r.opts.Bootstrap(cmd.Context(), cfg, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	r.app = a
	return nil
}

func (r *runner) close() error {
	if r.app == nil {
		return nil
	}
	err := r.app.Close()
	r.app = nil
	return err
}

// finish turns the explicit zero-document outcome into a message instead of
// a failure.
func finish(cmd *cobra.Command, err error) error {
	if errors.Is(err, pipeline.ErrNoDocuments) {
		cmd.Println("No documents found to index")
		return nil
	}
	return err
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, opts Options) int {
	root, r := newRoot(opts)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if cerr := r.close(); cerr != nil {
		slog.Warn("failed to close clients", "error", cerr)
	}
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}
