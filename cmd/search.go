package main

import (
	"encoding/json"
	"strings"

	"mailcorpus/internal/display"
	"mailcorpus/internal/search"

	"github.com/spf13/cobra"
)

var (
	searchLimit  string
	searchLabel  string
	searchFilter string
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vs, err := openVectorStore()
		if err != nil {
			return err
		}
		defer vs.Close()

		opts := searchOptions(args, searchLimit, searchLabel, searchFilter)
		s := search.NewSearcher(vs, newStore(), cfg.Search.DefaultLimit, cfg.Search.MaxLimit)
		results, err := s.Search(cmd.Context(), opts)
		if err != nil {
			return err
		}

		if searchJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			if results == nil {
				results = []search.Result{}
			}
			return enc.Encode(results)
		}
		display.SearchResults(cmd.OutOrStdout(), opts.Query, results)
		return nil
	},
}

// searchOptions builds the search call from the command line. A non-numeric
// limit selects the configured default.
func searchOptions(args []string, limit, label, filter string) search.Options {
	return search.Options{
		Query:          strings.Join(args, " "),
		Limit:          search.ParseLimit(limit),
		CategoryName:   label,
		FilterCategory: filter,
	}
}

func init() {
	searchCmd.Flags().StringVar(&searchLimit, "limit", "", "Maximum number of results (default from configuration)")
	searchCmd.Flags().StringVar(&searchLabel, "label", "", "Category to apply to every returned email")
	searchCmd.Flags().StringVar(&searchFilter, "filter", "", "Only return emails in this category")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(searchCmd)
}
