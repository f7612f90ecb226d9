package main

import (
	"mailcorpus/internal/display"
	"mailcorpus/internal/ingest"
	"mailcorpus/internal/search"

	"github.com/spf13/cobra"
)

var clearVectors bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index every stored record into the vector store",
	RunE: func(cmd *cobra.Command, args []string) error {
		vs, err := openVectorStore()
		if err != nil {
			return err
		}
		defer vs.Close()

		p := ingest.NewProcessor(newParser(), newStore(), vs, cfg.EnableGuardrail)
		n, err := p.IndexCorpus(cmd.Context())
		if err != nil {
			return err
		}
		total, err := vs.Count(cmd.Context())
		if err != nil {
			return err
		}
		display.SuccessMsg(cmd.OutOrStdout(), "Indexed %d documents (%d in the index)", n, total)
		return nil
	},
}

var labelCmd = &cobra.Command{
	Use:   "label <category> <uid>...",
	Short: "Apply a category label to stored emails",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := search.ValidateCategoryName(args[0])
		if err != nil {
			return err
		}

		updated, err := newStore().ApplyCategoryLabel(args[1:], category)
		if err != nil {
			return err
		}
		if !updated {
			display.SuccessMsg(cmd.OutOrStdout(), "Nothing to update")
			return nil
		}
		display.SuccessMsg(cmd.OutOrStdout(), "Labelled with %s", category)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the corpus file",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := newStore()
		if err := store.Clear(); err != nil {
			return err
		}
		display.SuccessMsg(cmd.OutOrStdout(), "Cleared %s", store.Path())

		if !clearVectors {
			return nil
		}
		vs, err := openVectorStore()
		if err != nil {
			return err
		}
		defer vs.Close()
		if err := vs.Clear(cmd.Context()); err != nil {
			return err
		}
		display.SuccessMsg(cmd.OutOrStdout(), "Cleared vector index %s", cfg.VectorDBPath)
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearVectors, "vectors", false, "Also clear the vector index")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(clearCmd)
}
