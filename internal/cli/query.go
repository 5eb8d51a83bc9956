package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kismet-tech/NLWeb/internal/retrieval"
)

func newQueryCommand(r *runner) *cobra.Command {
	var (
		site   string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Show the documents nearest to a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := r.app.Retrieval.Search(cmd.Context(), args[0], retrieval.SearchOptions{Site: site, Limit: limit})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if asJSON {
				data, err := json.MarshalIndent(results, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal results: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}

			if len(results) == 0 {
				cmd.Println("No results found.")
				return nil
			}
			for i, res := range results {
				cmd.Printf("  [%d] %s (%.3f)\n", i+1, res.Name, res.Score)
				cmd.Printf("      %s  %s  %s\n", res.TypeTag, res.Site, res.URL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "only search this site")
	cmd.Flags().IntVarP(&limit, "limit", "n", retrieval.DefaultLimit, "maximum number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func newStatsCommand(r *runner) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "stats <site_name>",
		Short: "Show the point count and recent runs for a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := r.app.Stats(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			cmd.Printf("Site %s: %d documents\n", stats.Site, stats.Points)
			for _, run := range stats.Runs {
				cmd.Printf("  %s  %-6s %-9s found=%d indexed=%d skipped=%d  %s\n",
					run.StartedAt.Format("2006-01-02 15:04:05"), run.Kind, run.Status,
					run.Found, run.Indexed, run.Skipped, run.Duration().Round(time.Millisecond))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of recent runs to list")
	return cmd
}
