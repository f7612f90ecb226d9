package vectorstore

import (
	"strings"

	"mailcorpus/internal/mailparse"
	"mailcorpus/internal/models"
)

// DocumentFromRecord builds the index document for a record. Content is the
// Markdown body, else the text body, else text extracted from the raw body.
// It reports false when the record has nothing to index.
func DocumentFromRecord(r models.EmailRecord) (Document, bool) {
	content := strings.TrimSpace(r.BodyMarkdown)
	if content == "" {
		content = strings.TrimSpace(r.BodyText)
	}
	if content == "" && strings.TrimSpace(r.BodyRaw) != "" {
		if _, text := mailparse.Sanitize(r.BodyRaw); text != "" {
			content = text
		} else {
			content = strings.TrimSpace(r.BodyRaw)
		}
	}
	if content == "" {
		return Document{}, false
	}

	meta := map[string]any{
		"id": r.Identity(),
	}
	setIfPresent(meta, "uid", r.UID)
	setIfPresent(meta, "message_id", r.MessageID)
	setIfPresent(meta, "subject", r.Subject)
	setIfPresent(meta, "from", r.From)
	setIfPresent(meta, "date", r.Date)
	setIfPresent(meta, "folder", r.Folder)
	setIfPresent(meta, "category", r.Category)
	if len(r.Categories) > 0 {
		meta["categories"] = strings.Join(r.Categories, ", ")
	}
	if addr, ok := r.Metadata["from_addr"].(string); ok {
		setIfPresent(meta, "from_addr", addr)
	}

	return Document{PageContent: content, Metadata: meta}, true
}

func setIfPresent(meta map[string]any, key, value string) {
	if value != "" {
		meta[key] = value
	}
}
