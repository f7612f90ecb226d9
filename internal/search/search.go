// Package search turns vector-store hits into uniform results, resolving
// identities and category labels against the corpus.
package search

import (
	"context"
	"fmt"
	"strings"

	"mailcorpus/internal/identity"
	"mailcorpus/internal/logging"
	"mailcorpus/internal/models"
	"mailcorpus/internal/vectorstore"
)

// SnippetLength caps the content preview of a result.
const SnippetLength = 200

// Corpus is the part of the corpus store search depends on.
type Corpus interface {
	Load() []models.EmailRecord
	ApplyCategoryLabel(ids []string, category string) (bool, error)
}

// Options describes one search call. Empty CategoryName and FilterCategory
// mean "not given"; a Limit of zero or less selects the default.
type Options struct {
	Query          string
	Limit          int
	CategoryName   string
	FilterCategory string
}

// Result is one normalized hit. Score is nil when the backend could only run an
// unscored search.
type Result struct {
	ID              string         `json:"id"`
	Subject         string         `json:"subject"`
	Sender          string         `json:"sender"`
	Date            string         `json:"date"`
	Category        string         `json:"category,omitempty"`
	Categories      []string       `json:"categories"`
	AppliedCategory string         `json:"applied_category,omitempty"`
	Snippet         string         `json:"snippet"`
	Score           *float64       `json:"score"`
	Metadata        map[string]any `json:"metadata"`
}

// Searcher runs searches against one vector store and one corpus.
type Searcher struct {
	store        vectorstore.VectorStore
	corpus       Corpus
	defaultLimit int
	maxLimit     int
}

// NewSearcher creates a Searcher. Limits are clamped the same way NormalizeLimit does.
func NewSearcher(store vectorstore.VectorStore, corpus Corpus, defaultLimit, maxLimit int) *Searcher {
	if maxLimit < 1 {
		maxLimit = 1
	}
	return &Searcher{
		store:        store,
		corpus:       corpus,
		defaultLimit: NormalizeLimit(0, defaultLimit, maxLimit),
		maxLimit:     maxLimit,
	}
}

type hit struct {
	doc   vectorstore.Document
	score *float64
}

// Search queries the vector store and normalizes the hits, preserving backend order.
//
// An empty query returns no results without touching the backend. A backend
// that fails entirely yields an empty result, not an error. When CategoryName is
// set it is added to every returned result and persisted to the corpus for the
// returned identities; persistence failures are logged.
func (s *Searcher) Search(ctx context.Context, opts Options) ([]Result, error) {
	query := strings.TrimSpace(opts.Query)
	if query == "" {
		return []Result{}, nil
	}

	label, err := optionalCategory("category_name", opts.CategoryName)
	if err != nil {
		return nil, err
	}
	filter, err := optionalCategory("filter_category", opts.FilterCategory)
	if err != nil {
		return nil, err
	}

	k := NormalizeLimit(opts.Limit, s.defaultLimit, s.maxLimit)
	hits := s.query(ctx, query, k)
	if len(hits) > k {
		hits = hits[:k]
	}

	records := indexCorpus(s.corpus.Load())

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		r := s.normalize(h, records, label)
		if filter != "" && !containsFold(r.Categories, filter) {
			continue
		}
		results = append(results, r)
	}

	if label != "" && len(results) > 0 {
		ids := make([]string, 0, len(results))
		for _, r := range results {
			if r.ID != "" {
				ids = append(ids, r.ID)
			}
		}
		if _, err := s.corpus.ApplyCategoryLabel(ids, label); err != nil {
			logging.Log.WithField("category", label).Errorf("Failed to persist category label: %v", err)
		}
	}

	return results, nil
}

func optionalCategory(field, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return validateCategory(field, value)
}

// query prefers the scored search and falls back to the unscored one on any error.
func (s *Searcher) query(ctx context.Context, query string, k int) []hit {
	scored, err := s.store.SimilaritySearchWithScore(ctx, query, k)
	if err == nil {
		hits := make([]hit, 0, len(scored))
		for _, sd := range scored {
			score := sd.Score
			hits = append(hits, hit{doc: sd.Document, score: &score})
		}
		return hits
	}
	logging.Log.Debugf("Scored search unavailable, falling back: %v", err)

	docs, err := s.store.SimilaritySearch(ctx, query, k)
	if err != nil {
		logging.Log.WithField("query", query).Warnf("Vector store unavailable, returning no results: %v", err)
		return nil
	}
	hits := make([]hit, 0, len(docs))
	for _, d := range docs {
		hits = append(hits, hit{doc: d})
	}
	return hits
}

func (s *Searcher) normalize(h hit, records map[string]*models.EmailRecord, label string) Result {
	meta := make(map[string]any, len(h.doc.Metadata)+1)
	for k, v := range h.doc.Metadata {
		meta[k] = v
	}

	uid := identity.Key(meta)
	if uid == "" {
		uid = identity.AssignMetadataUID(meta)
	}

	category := stringValue(meta["category"])
	var categories []string
	if rec, ok := records[uid]; ok {
		if rec.Category != "" {
			category = rec.Category
		}
		categories = append(categories, rec.Categories...)
	}
	if len(categories) == 0 {
		categories = categoryList(meta["categories"])
	}
	if label != "" && !contains(categories, label) {
		categories = append(categories, label)
	}
	if categories == nil {
		categories = []string{}
	}

	sender := stringValue(meta["from"])
	if sender == "" {
		sender = stringValue(meta["from_addr"])
	}

	return Result{
		ID:              uid,
		Subject:         stringValue(meta["subject"]),
		Sender:          sender,
		Date:            stringValue(meta["date"]),
		Category:        category,
		Categories:      categories,
		AppliedCategory: label,
		Snippet:         Snippet(h.doc.PageContent),
		Score:           h.score,
		Metadata:        meta,
	}
}

// Snippet collapses whitespace and caps the preview at SnippetLength characters,
// appending "..." when it had to cut.
func Snippet(text string) string {
	clean := strings.Join(strings.Fields(text), " ")
	runes := []rune(clean)
	if len(runes) <= SnippetLength {
		return clean
	}
	return strings.TrimRight(string(runes[:SnippetLength]), " ") + "..."
}

func indexCorpus(items []models.EmailRecord) map[string]*models.EmailRecord {
	out := make(map[string]*models.EmailRecord, len(items))
	for i := range items {
		r := &items[i]
		if r.MessageID != "" {
			out[r.MessageID] = r
		}
		if r.UID != "" {
			out[r.UID] = r
		}
	}
	return out
}

// categoryList accepts a comma separated string or a list of scalars.
func categoryList(v any) []string {
	var out []string
	switch t := v.(type) {
	case string:
		for _, part := range strings.Split(t, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	case []string:
		for _, s := range t {
			if p := strings.TrimSpace(s); p != "" {
				out = append(out, p)
			}
		}
	case []any:
		for _, item := range t {
			if p := stringValue(item); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool, int, int64, float64:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
