package main

import (
	"context"
	"fmt"
	"time"

	"mailcorpus/internal/display"
	imapclient "mailcorpus/internal/imap"
	"mailcorpus/internal/ingest"
	"mailcorpus/internal/logging"
	"mailcorpus/internal/vectorstore"

	"github.com/spf13/cobra"
)

const (
	backoffBase = 5 * time.Second
	backoffMax  = 5 * time.Minute
)

var (
	fetchOut     string
	fetchSince   time.Duration
	fetchLimit   int
	fetchIndex   bool
	fetchRetries int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch messages over IMAP into the corpus, or download them as .eml files",
	RunE: func(cmd *cobra.Command, args []string) error {
		email := cfg.Email
		if cmd.Flags().Changed("since") {
			email.Since = fetchSince
		}
		if cmd.Flags().Changed("limit") {
			email.Limit = fetchLimit
		}
		if email.Imap == "" {
			return fmt.Errorf("no IMAP server configured (email.imap or IMAP_SERVER)")
		}

		client := imapclient.NewStandardClient()
		if err := openWithRetry(cmd.Context(), func() error { return ingest.Open(client, email) }, fetchRetries); err != nil {
			return err
		}
		defer func(client *imapclient.StandardClient) {
			_ = client.Close()
		}(client)

		out := cmd.OutOrStdout()
		if fetchOut != "" {
			n, err := ingest.DownloadMailbox(cmd.Context(), client, email, fetchOut)
			if err != nil {
				return err
			}
			display.SuccessMsg(out, "Saved %d emails to %s", n, fetchOut)
			return nil
		}

		var indexer vectorstore.Indexer
		if fetchIndex {
			vs, err := openVectorStore()
			if err != nil {
				return err
			}
			defer vs.Close()
			indexer = vs
		}

		p := ingest.NewProcessor(newParser(), newStore(), indexer, cfg.EnableGuardrail)
		summary, err := p.IngestMailbox(cmd.Context(), client, email, fetchIndex)
		if summary != nil {
			display.IngestSummary(out, summary)
		}
		return err
	},
}

// openWithRetry runs open until it succeeds, backing off exponentially between attempts.
func openWithRetry(ctx context.Context, open func() error, retries int) error {
	var err error
	for failures := 0; ; failures++ {
		if err = open(); err == nil {
			return nil
		}
		if failures >= retries {
			return err
		}

		wait := backoff(failures)
		logging.Log.Warnf("IMAP failed %d times (%v), waiting %s before next attempt", failures+1, err, wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// backoff doubles from backoffBase per failure, capped at backoffMax.
func backoff(failures int) time.Duration {
	n := failures
	if n > 10 {
		n = 10
	}
	wait := backoffBase * time.Duration(1<<n)
	if wait > backoffMax {
		wait = backoffMax
	}
	return wait
}

func init() {
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "Download raw messages to this directory instead of ingesting them")
	fetchCmd.Flags().DurationVar(&fetchSince, "since", 0, "Only fetch messages received within this duration (e.g. 72h)")
	fetchCmd.Flags().IntVar(&fetchLimit, "limit", 0, "Maximum number of messages to fetch")
	fetchCmd.Flags().BoolVar(&fetchIndex, "index", false, "Also index the accepted records into the vector store")
	fetchCmd.Flags().IntVar(&fetchRetries, "retries", 3, "Connection retries before giving up")
	rootCmd.AddCommand(fetchCmd)
}
