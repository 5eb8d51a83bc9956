package cli

import (
	"github.com/spf13/cobra"

	"github.com/kismet-tech/NLWeb/internal/document"
	"github.com/kismet-tech/NLWeb/internal/pipeline"
	"github.com/kismet-tech/NLWeb/internal/profile"
)

type profileFlags struct {
	name    string
	sitemap string
	site    string
}

func (f *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "profile", profile.DefaultName, "built-in profile name or path to a profile YAML file")
	cmd.Flags().StringVar(&f.sitemap, "sitemap", "", "override the profile's sitemap URL")
	cmd.Flags().StringVar(&f.site, "site", "", "override the profile's site name")
}

func (f *profileFlags) load() (*profile.Profile, error) {
	p, err := profile.Load(f.name)
	if err != nil {
		return nil, err
	}
	if f.sitemap != "" {
		p.SitemapURL = f.sitemap
	}
	if f.site != "" {
		p.Site = f.site
	}
	return p, p.Validate()
}

func newSiteCommand(r *runner) *cobra.Command {
	var (
		pf       profileFlags
		keepFile bool
		output   string
	)

	cmd := &cobra.Command{
		Use:   "site",
		Short: "Crawl a site's sitemap and replace its documents in the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prof, err := pf.load()
			if err != nil {
				return err
			}
			opts := pipeline.SiteOptions{OutputPath: output}
			if keepFile && opts.OutputPath == "" {
				opts.OutputPath = prof.Site + "_documents.txt"
			}

			rep, err := r.app.Pipeline.RunSite(cmd.Context(), prof, opts)
			if err != nil {
				return finish(cmd, err)
			}
			cmd.Printf("Site %s: %d documents found, %d indexed, %d skipped, %d deleted\n",
				rep.Site, rep.Found, rep.Indexed, rep.Skipped, rep.Deleted)
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().BoolVar(&keepFile, "keep-file", false, "keep the interchange file after loading")
	cmd.Flags().StringVarP(&output, "output", "o", "", "path of the interchange file to keep")
	return cmd
}

func newCrawlCommand(r *runner) *cobra.Command {
	var pf profileFlags

	cmd := &cobra.Command{
		Use:   "crawl <output_file>",
		Short: "Crawl a site's sitemap into an interchange file without indexing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prof, err := pf.load()
			if err != nil {
				return err
			}

			docs, rep, err := r.app.Pipeline.Crawl(cmd.Context(), prof)
			if err != nil {
				return finish(cmd, err)
			}
			if err := document.WriteFile(args[0], docs); err != nil {
				return err
			}
			cmd.Printf("Saved %d documents to %s (%d skipped)\n", len(docs), args[0], rep.Skipped)
			return nil
		},
	}
	pf.register(cmd)
	return cmd
}
