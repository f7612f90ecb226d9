package main

import (
	"encoding/json"
	"io"

	"mailcorpus/internal/display"
	"mailcorpus/internal/ingest"
	"mailcorpus/internal/vectorstore"

	"github.com/spf13/cobra"
)

var (
	ingestIndex bool
	ingestJSON  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Parse every .eml file in a directory into the corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var indexer vectorstore.Indexer
		if ingestIndex {
			vs, err := openVectorStore()
			if err != nil {
				return err
			}
			defer vs.Close()
			indexer = vs
		}

		p := ingest.NewProcessor(newParser(), newStore(), indexer, cfg.EnableGuardrail)
		summary, err := p.IngestDir(cmd.Context(), args[0], ingestIndex)
		if summary != nil {
			printSummary(cmd.OutOrStdout(), summary, ingestJSON)
		}
		return err
	},
}

func printSummary(w io.Writer, s *ingest.Summary, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(s)
		return
	}
	display.IngestSummary(w, s)
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestIndex, "index", false, "Also index the accepted records into the vector store")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "Output the summary as JSON")
	rootCmd.AddCommand(ingestCmd)
}
