package cli

import (
	"github.com/spf13/cobra"
)

func newLoadCommand(r *runner) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "load <file> <site_name>",
		Short: "Load an interchange file into the index under a site name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := r.app.Pipeline.Load(cmd.Context(), args[0], args[1], replace)
			if err != nil {
				return finish(cmd, err)
			}
			cmd.Printf("Loaded %d of %d documents for site %s\n", rep.Indexed, rep.Found, rep.Site)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "delete the site's existing documents before loading")
	cmd.Flags().Int("batch-size", 0, "documents per vector store write (overrides BATCH_SIZE)")
	return cmd
}

func newDeleteSiteCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-site <site_name>",
		Short: "Remove every document of a site from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := r.app.Pipeline.DeleteSite(cmd.Context(), args[0])
			return err
		},
	}
}
