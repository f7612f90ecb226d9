package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	imapclient "mailcorpus/internal/imap"
	"mailcorpus/internal/logging"
	"mailcorpus/internal/models"
)

// Open connects, logs in and selects the configured mailbox. On success the
// caller closes the client; on failure Open has already closed it.
func Open(client imapclient.Client, cfg models.EmailConfig) error {
	if err := client.Connect(cfg.Imap); err != nil {
		_ = client.Close()
		return err
	}
	if err := client.Login(cfg.Login, cfg.Password); err != nil {
		_ = client.Close()
		return fmt.Errorf("login error: %w", err)
	}
	if err := client.SelectMailbox(cfg.MailBox); err != nil {
		_ = client.Close()
		return fmt.Errorf("folder selection error: %w", err)
	}
	return nil
}

// listUIDs returns the mailbox UIDs, keeping the first limit when limit is positive.
func listUIDs(client imapclient.Client, cfg models.EmailConfig) ([]uint32, error) {
	uids, err := client.ListUIDs(cfg.Since)
	if err != nil {
		return nil, err
	}
	if cfg.Limit > 0 && len(uids) > cfg.Limit {
		uids = uids[:cfg.Limit]
	}
	logging.Log.WithField("mailbox", cfg.MailBox).Infof("Found %d messages to fetch", len(uids))
	return uids, nil
}

// IngestMailbox fetches messages from an opened client and ingests them with
// folder set to the mailbox name. Fetch failures are logged and skipped.
func (p *Processor) IngestMailbox(ctx context.Context, client imapclient.Client, cfg models.EmailConfig, index bool) (*Summary, error) {
	uids, err := listUIDs(client, cfg)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	items := make([]Item, 0, len(uids))
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		source := fmt.Sprintf("imap://%s/%d", cfg.MailBox, uid)
		raw, err := client.FetchRaw(uid)
		if err != nil {
			logging.Log.WithField("source", source).Errorf("Error fetching message: %v", err)
			items = append(items, Item{Path: source, Err: err})
			continue
		}
		items = append(items, p.ProcessMessage(raw, source, cfg.MailBox))
	}

	return p.store(ctx, items, index)
}

// DownloadMailbox writes each fetched message to outDir as email_NNNNN.eml and
// returns how many files were written.
func DownloadMailbox(ctx context.Context, client imapclient.Client, cfg models.EmailConfig, outDir string) (int, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", outDir, err)
	}

	uids, err := listUIDs(client, cfg)
	if err != nil {
		return 0, fmt.Errorf("listing messages: %w", err)
	}

	written := 0
	for i, uid := range uids {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		raw, err := client.FetchRaw(uid)
		if err != nil {
			logging.Log.WithField("uid", uid).Errorf("Error fetching message: %v", err)
			continue
		}
		name := filepath.Join(outDir, fmt.Sprintf("email_%05d.eml", i))
		if err := os.WriteFile(name, raw, 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", name, err)
		}
		written++
	}

	logging.Log.WithField("dir", outDir).Infof("Saved %d emails", written)
	return written, nil
}
