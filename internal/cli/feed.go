package cli

import (
	"github.com/spf13/cobra"
)

func newRSSCommand(r *runner) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "rss <feed_url> <site_name>",
		Short: "Index every entry of an RSS or Atom feed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := r.app.Pipeline.RunFeed(cmd.Context(), args[0], args[1], replace)
			if err != nil {
				return finish(cmd, err)
			}
			cmd.Printf("Found %d documents, indexed %d (strategy %s)\n", rep.Found, rep.Indexed, rep.Strategy)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "delete the site's existing documents before loading")
	return cmd
}
