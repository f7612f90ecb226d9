package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mailcorpus/internal/config"
	"mailcorpus/internal/corpus"
	"mailcorpus/internal/logging"
	"mailcorpus/internal/mailparse"
	"mailcorpus/internal/models"
	"mailcorpus/internal/vectorstore"

	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	configPath string
	corpusPath string
	logLevel   string
	cfg        *models.Config
)

var rootCmd = &cobra.Command{
	Use:           "mailcorpus",
	Short:         "Ingest email into a searchable local corpus",
	Long:          "mailcorpus parses raw email into normalized records, stores them in a JSON corpus and searches them through a vector store.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.LoadDefault(configPath)
		if err != nil {
			return fmt.Errorf("reading configuration file: %w", err)
		}
		if corpusPath != "" {
			cfg.CorpusPath = corpusPath
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		logging.Configure(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mailcorpus version %s\n", Version)
	},
}

func newStore() *corpus.Store {
	return corpus.NewStore(cfg.CorpusPath)
}

func newParser() *mailparse.Parser {
	return mailparse.NewParser(cfg.MaxEmailBytes)
}

func openVectorStore() (*vectorstore.SQLiteStore, error) {
	vs, err := vectorstore.NewSQLiteStore(cfg.VectorDBPath)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	return vs, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Configuration file (missing file means defaults)")
	rootCmd.PersistentFlags().StringVar(&corpusPath, "corpus", "", "Corpus file path (default: $DATA_DIR/email_data.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Log.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}
