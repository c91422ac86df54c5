package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

var (
	searchLimit    int
	searchCategory string
	searchMetier   string
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search ingested chunks",
	Long: `Embeds the query and ranks chunks of completed documents by cosine
similarity. Chunks holding a whole section get a small score boost. When
nothing matches semantically, a full-text keyword search is used instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "only search documents of this category")
	searchCmd.Flags().StringVar(&searchMetier, "metier", "", "only search documents of this trade")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if search == nil {
		return errNotConfigured
	}

	resp, err := search.Search(cmd.Context(), models.SearchRequest{
		Query: args[0],
		Limit: searchLimit,
		Filters: models.SearchFilters{
			Category: searchCategory,
			Metier:   searchMetier,
		},
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		data, err := json.MarshalIndent(resp.Results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	if resp.Mode == models.SearchModeKeyword {
		fmt.Fprintln(out, "No semantic matches, showing keyword matches.")
	}
	for i, r := range resp.Results {
		title := r.FileName
		if r.SectionTitle != nil && *r.SectionTitle != "" {
			title += " > " + *r.SectionTitle
		}
		fmt.Fprintf(out, "  [%d] %s (%.3f)\n", i+1, title, r.FinalScore)
		fmt.Fprintf(out, "      %s\n\n", snippet(r.Content, 160))
	}
	return nil
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
