// Package ingest runs raw messages through parsing, identity assignment and the
// guardrail, then stores them in the corpus and optionally indexes them.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mailcorpus/internal/corpus"
	"mailcorpus/internal/guardrail"
	"mailcorpus/internal/identity"
	"mailcorpus/internal/logging"
	"mailcorpus/internal/mailparse"
	"mailcorpus/internal/models"
	"mailcorpus/internal/vectorstore"

	"github.com/google/uuid"
)

// Item is the outcome for one message: either a record or an error.
type Item struct {
	Path   string              `json:"path"`
	Record *models.EmailRecord `json:"record,omitempty"`
	Err    error               `json:"-"`
}

// Summary aggregates one ingestion batch. Synthetic counts records that had no
// Message-ID and got a generated uid; ingesting the same file again stores them twice.
type Summary struct {
	Items     []Item           `json:"-"`
	Parsed    int              `json:"parsed"`
	Failed    int              `json:"failed"`
	Rejected  int              `json:"rejected"`
	Synthetic int              `json:"synthetic"`
	Added     corpus.AddResult `json:"added"`
	Indexed   int              `json:"indexed"`
}

type Processor struct {
	parser          *mailparse.Parser
	corpus          *corpus.Store
	indexer         vectorstore.Indexer
	enableGuardrail bool
}

// NewProcessor creates a Processor. indexer may be nil when indexing is not wanted.
func NewProcessor(parser *mailparse.Parser, store *corpus.Store, indexer vectorstore.Indexer, enableGuardrail bool) *Processor {
	return &Processor{
		parser:          parser,
		corpus:          store,
		indexer:         indexer,
		enableGuardrail: enableGuardrail,
	}
}

// ProcessMessage orchestrates one message: parse → identity → guardrail.
// It never fails the caller; problems are reported in the returned Item.
func (p *Processor) ProcessMessage(raw []byte, source, folder string) Item {
	locallog := logging.Log.WithField("trace_id", uuid.New().String()).WithField("source", source)

	record, err := p.parser.Parse(raw, source)
	if err != nil {
		locallog.Errorf("Error parsing email: %v", err)
		return Item{Path: source, Err: err}
	}
	record.Folder = folder

	uid := identity.AssignUID(record)
	if !guardrail.Apply(record, p.enableGuardrail) {
		locallog.WithField("uid", uid).Warnf("Email rejected by guardrail: %s", strings.Join(record.Guardrail.Notes, " "))
	} else {
		locallog.WithField("uid", uid).Debugf("Parsed email %q", record.Subject)
	}

	return Item{Path: source, Record: record}
}

// IngestDir ingests every *.eml file in dir in name order. A missing directory
// yields an empty summary. One file's failure never stops the batch.
func (p *Processor) IngestDir(ctx context.Context, dir string, index bool) (*Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Log.WithField("dir", dir).Warn("Ingestion directory does not exist")
			return &Summary{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".eml") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	items := make([]Item, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			logging.Log.WithField("source", path).Errorf("Error reading email file: %v", err)
			items = append(items, Item{Path: path, Err: err})
			continue
		}
		items = append(items, p.ProcessMessage(raw, path, ""))
	}

	return p.store(ctx, items, index)
}

// store adds the parsed records to the corpus and indexes the accepted ones.
func (p *Processor) store(ctx context.Context, items []Item, index bool) (*Summary, error) {
	summary := &Summary{Items: items}
	var records []models.EmailRecord
	for _, it := range items {
		if it.Err != nil {
			summary.Failed++
			continue
		}
		summary.Parsed++
		if it.Record.Guardrail != nil && it.Record.Guardrail.Status == models.GuardrailRejected {
			summary.Rejected++
		}
		if identity.IsSynthetic(it.Record.UID) {
			summary.Synthetic++
		}
		records = append(records, *it.Record)
	}

	added, err := p.corpus.AddItems(records)
	summary.Added = added
	if err != nil {
		return summary, fmt.Errorf("storing records: %w", err)
	}

	if index {
		n, err := p.Index(ctx, records)
		summary.Indexed = n
		if err != nil {
			return summary, err
		}
	}

	logging.Log.WithField("parsed", summary.Parsed).
		WithField("failed", summary.Failed).
		WithField("inserted", added.Inserted).
		WithField("duplicates", added.Duplicates).
		Info("Ingestion batch stored")
	return summary, nil
}

// Index upserts one document per indexable record, keyed by record identity.
// Rejected and empty records are skipped. It returns the number of documents written.
func (p *Processor) Index(ctx context.Context, records []models.EmailRecord) (int, error) {
	if p.indexer == nil {
		return 0, errors.New("no vector store configured")
	}

	var docs []vectorstore.Document
	var ids []string
	for i := range records {
		r := &records[i]
		if r.Guardrail != nil && r.Guardrail.Status == models.GuardrailRejected {
			continue
		}
		doc, ok := vectorstore.DocumentFromRecord(*r)
		if !ok {
			continue
		}
		docs = append(docs, doc)
		ids = append(ids, r.Identity())
	}
	if len(docs) == 0 {
		return 0, nil
	}

	if err := p.indexer.AddDocuments(ctx, docs, ids); err != nil {
		return 0, fmt.Errorf("indexing %d documents: %w", len(docs), err)
	}
	return len(docs), nil
}

// IndexCorpus indexes every record currently stored in the corpus.
func (p *Processor) IndexCorpus(ctx context.Context) (int, error) {
	return p.Index(ctx, p.corpus.Load())
}
