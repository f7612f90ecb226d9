package search

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"mailcorpus/internal/corpus"
	"mailcorpus/internal/identity"
	"mailcorpus/internal/models"
	"mailcorpus/internal/vectorstore"
)

// fakeStore records every call and serves canned documents.
type fakeStore struct {
	docs        []vectorstore.Document
	scores      []float64
	scoredErr   error
	unscoredErr error

	scoredCalls   int
	unscoredCalls int
	lastK         int
}

func (f *fakeStore) SimilaritySearchWithScore(_ context.Context, _ string, k int) ([]vectorstore.ScoredDocument, error) {
	f.scoredCalls++
	f.lastK = k
	if f.scoredErr != nil {
		return nil, f.scoredErr
	}
	var out []vectorstore.ScoredDocument
	for i, d := range f.docs {
		out = append(out, vectorstore.ScoredDocument{Document: d, Score: f.scores[i]})
	}
	return out, nil
}

func (f *fakeStore) SimilaritySearch(_ context.Context, _ string, k int) ([]vectorstore.Document, error) {
	f.unscoredCalls++
	f.lastK = k
	if f.unscoredErr != nil {
		return nil, f.unscoredErr
	}
	return f.docs, nil
}

func (f *fakeStore) calls() int { return f.scoredCalls + f.unscoredCalls }

// fakeCorpus keeps records in memory and can fail label persistence.
type fakeCorpus struct {
	items    []models.EmailRecord
	labelErr error

	labelCalls int
	labelIDs   []string
	labelName  string
}

func (c *fakeCorpus) Load() []models.EmailRecord { return c.items }

func (c *fakeCorpus) ApplyCategoryLabel(ids []string, category string) (bool, error) {
	c.labelCalls++
	c.labelIDs = ids
	c.labelName = category
	return c.labelErr == nil, c.labelErr
}

func doc(content string, meta map[string]any) vectorstore.Document {
	return vectorstore.Document{PageContent: content, Metadata: meta}
}

func TestSearch_LimitClamping(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		wantK int
	}{
		{name: "absent uses default", limit: 0, wantK: 3},
		{name: "above max is clamped", limit: 100, wantK: 5},
		{name: "negative uses default", limit: -4, wantK: 3},
		{name: "within range", limit: 4, wantK: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			s := NewSearcher(store, &fakeCorpus{}, 3, 5)
			if _, err := s.Search(context.Background(), Options{Query: "invoice", Limit: tt.limit}); err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if store.lastK != tt.wantK {
				t.Errorf("backend k = %d, want %d", store.lastK, tt.wantK)
			}
		})
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	store := &fakeStore{}
	s := NewSearcher(store, &fakeCorpus{}, 3, 5)

	for _, q := range []string{"", "   "} {
		got, err := s.Search(context.Background(), Options{Query: q})
		if err != nil || len(got) != 0 {
			t.Errorf("Search(%q) = %v, %v; want empty, nil", q, got, err)
		}
	}
	if store.calls() != 0 {
		t.Errorf("backend called %d times for empty queries", store.calls())
	}
}

func TestSearch_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "label with symbols", opts: Options{Query: "q", CategoryName: "bad;name"}},
		{name: "label whitespace only", opts: Options{Query: "q", CategoryName: "   "}},
		{name: "label too long", opts: Options{Query: "q", CategoryName: strings.Repeat("a", 65)}},
		{name: "filter with symbols", opts: Options{Query: "q", FilterCategory: "<script>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{docs: []vectorstore.Document{doc("x", map[string]any{"uid": "a"})}, scores: []float64{1}}
			c := &fakeCorpus{}
			s := NewSearcher(store, c, 3, 5)

			_, err := s.Search(context.Background(), tt.opts)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Search() error = %v, want *ValidationError", err)
			}
			if store.calls() != 0 || c.labelCalls != 0 {
				t.Errorf("validation failure must not reach the backend or corpus (backend=%d label=%d)", store.calls(), c.labelCalls)
			}
		})
	}
}

func TestSearch_FallbackToUnscored(t *testing.T) {
	store := &fakeStore{
		docs:      []vectorstore.Document{doc("body", map[string]any{"uid": "a", "subject": "Hello"})},
		scoredErr: vectorstore.ErrUnsupported,
	}
	s := NewSearcher(store, &fakeCorpus{}, 3, 5)

	got, err := s.Search(context.Background(), Options{Query: "hello"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].Score != nil {
		t.Errorf("Score = %v, want nil for unscored search", *got[0].Score)
	}
	if store.unscoredCalls != 1 {
		t.Errorf("unscored calls = %d, want 1", store.unscoredCalls)
	}
}

func TestSearch_ZeroScoreIsNotAbsent(t *testing.T) {
	store := &fakeStore{docs: []vectorstore.Document{doc("body", map[string]any{"uid": "a"})}, scores: []float64{0}}
	s := NewSearcher(store, &fakeCorpus{}, 3, 5)

	got, err := s.Search(context.Background(), Options{Query: "q"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got[0].Score == nil || *got[0].Score != 0 {
		t.Errorf("Score = %v, want pointer to 0", got[0].Score)
	}
}

func TestSearch_BackendUnavailable(t *testing.T) {
	store := &fakeStore{scoredErr: errors.New("down"), unscoredErr: errors.New("still down")}
	s := NewSearcher(store, &fakeCorpus{}, 3, 5)

	got, err := s.Search(context.Background(), Options{Query: "q", CategoryName: "Finance"})
	if err != nil {
		t.Fatalf("Search() error = %v, want nil", err)
	}
	if len(got) != 0 {
		t.Errorf("Search() = %v, want empty", got)
	}
}

func TestSearch_TruncatesToK(t *testing.T) {
	var docs []vectorstore.Document
	var scores []float64
	for _, id := range []string{"a", "b", "c", "d"} {
		docs = append(docs, doc(id, map[string]any{"uid": id}))
		scores = append(scores, 0.5)
	}
	s := NewSearcher(&fakeStore{docs: docs, scores: scores}, &fakeCorpus{}, 2, 5)

	got, err := s.Search(context.Background(), Options{Query: "q"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("Search() ids = %v, want [a b]", ids(got))
	}
}

func TestSearch_NormalizesHits(t *testing.T) {
	store := &fakeStore{
		docs: []vectorstore.Document{
			doc("  First   doc\ncontent ", map[string]any{"uid": "a", "subject": "Invoice", "from": "Billing <b@example.com>", "date": "Mon", "category": "Meta"}),
			doc("second", map[string]any{"message_id": "<m2>", "from_addr": "x@example.com", "categories": "Work, Travel"}),
			doc("third", map[string]any{"id": 42}),
			doc("fourth", map[string]any{"subject": "no identity", "categories": []any{"Misc", " "}}),
		},
		scores: []float64{0.9, 0.8, 0.7, 0.6},
	}
	c := &fakeCorpus{items: []models.EmailRecord{
		{UID: "a", Category: "Finance", Categories: []string{"Finance", "Bills"}},
	}}
	s := NewSearcher(store, c, 8, 50)

	got, err := s.Search(context.Background(), Options{Query: "q"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d results, want 4", len(got))
	}

	first := got[0]
	if first.ID != "a" || first.Subject != "Invoice" || first.Sender != "Billing <b@example.com>" || first.Date != "Mon" {
		t.Errorf("first = %+v", first)
	}
	if first.Category != "Finance" || !reflect.DeepEqual(first.Categories, []string{"Finance", "Bills"}) {
		t.Errorf("corpus categories should win: category=%q categories=%v", first.Category, first.Categories)
	}
	if first.Snippet != "First doc content" {
		t.Errorf("Snippet = %q", first.Snippet)
	}
	if first.Score == nil || *first.Score != 0.9 {
		t.Errorf("Score = %v", first.Score)
	}

	second := got[1]
	if second.ID != "<m2>" || second.Sender != "x@example.com" {
		t.Errorf("second = %+v", second)
	}
	if !reflect.DeepEqual(second.Categories, []string{"Work", "Travel"}) {
		t.Errorf("second categories = %v", second.Categories)
	}

	if got[2].ID != "42" {
		t.Errorf("third ID = %q, want the numeric id as text", got[2].ID)
	}
	if !reflect.DeepEqual(got[2].Categories, []string{}) {
		t.Errorf("third categories = %#v, want empty", got[2].Categories)
	}

	fourth := got[3]
	if !identity.IsSynthetic(fourth.ID) {
		t.Errorf("fourth ID = %q, want a synthetic id", fourth.ID)
	}
	if fourth.Metadata["uid"] != fourth.ID {
		t.Errorf("assigned id not recorded in metadata: %v", fourth.Metadata)
	}
	if !reflect.DeepEqual(fourth.Categories, []string{"Misc"}) {
		t.Errorf("fourth categories = %v", fourth.Categories)
	}
	if _, touched := store.docs[3].Metadata["uid"]; touched {
		t.Error("backend metadata map was mutated")
	}
}

func TestSearch_FilterCategoryIsCaseInsensitive(t *testing.T) {
	newStore := func() *fakeStore {
		return &fakeStore{
			docs: []vectorstore.Document{
				doc("a", map[string]any{"uid": "a"}),
				doc("b", map[string]any{"uid": "b", "categories": "Travel"}),
			},
			scores: []float64{1, 1},
		}
	}
	c := &fakeCorpus{items: []models.EmailRecord{{UID: "a", Category: "Finance", Categories: []string{"Finance"}}}}

	for _, filter := range []string{"Finance", "finance", "FINANCE"} {
		t.Run(filter, func(t *testing.T) {
			s := NewSearcher(newStore(), c, 8, 50)
			got, err := s.Search(context.Background(), Options{Query: "q", FilterCategory: filter})
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(got) != 1 || got[0].ID != "a" {
				t.Errorf("Search() ids = %v, want [a]", ids(got))
			}
		})
	}
}

func TestSearch_PrimaryCategoryIsNotACategorySet(t *testing.T) {
	newStore := func() *fakeStore {
		return &fakeStore{
			docs:   []vectorstore.Document{doc("a", map[string]any{"uid": "a", "category": "Finance"})},
			scores: []float64{1},
		}
	}

	got, err := NewSearcher(newStore(), &fakeCorpus{}, 8, 50).Search(context.Background(), Options{Query: "q"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].Category != "Finance" || !reflect.DeepEqual(got[0].Categories, []string{}) {
		t.Errorf("Search() = %+v, want primary category only", got)
	}

	filtered, err := NewSearcher(newStore(), &fakeCorpus{}, 8, 50).Search(context.Background(), Options{Query: "q", FilterCategory: "finance"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(filtered) != 0 {
		t.Errorf("filter matched a hit with no category set: %v", ids(filtered))
	}
}

func TestSearch_LabelAppliedToFilteredResults(t *testing.T) {
	store := &fakeStore{
		docs: []vectorstore.Document{
			doc("a", map[string]any{"uid": "a", "categories": "Travel"}),
			doc("b", map[string]any{"uid": "b", "categories": "Work"}),
			doc("c", map[string]any{"uid": "c", "categories": "travel, Misc"}),
		},
		scores: []float64{1, 1, 1},
	}
	c := &fakeCorpus{}
	s := NewSearcher(store, c, 8, 50)

	got, err := s.Search(context.Background(), Options{Query: "q", CategoryName: " Trips ", FilterCategory: "TRAVEL"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !reflect.DeepEqual(ids(got), []string{"a", "c"}) {
		t.Fatalf("Search() ids = %v, want [a c]", ids(got))
	}
	for _, r := range got {
		if r.AppliedCategory != "Trips" || !contains(r.Categories, "Trips") {
			t.Errorf("result %s: applied=%q categories=%v", r.ID, r.AppliedCategory, r.Categories)
		}
	}
	if c.labelCalls != 1 || c.labelName != "Trips" || !reflect.DeepEqual(c.labelIDs, []string{"a", "c"}) {
		t.Errorf("ApplyCategoryLabel calls=%d name=%q ids=%v", c.labelCalls, c.labelName, c.labelIDs)
	}
}

func TestSearch_LabelPersistenceFailureStillReturnsResults(t *testing.T) {
	store := &fakeStore{docs: []vectorstore.Document{doc("a", map[string]any{"uid": "a"})}, scores: []float64{1}}
	c := &fakeCorpus{labelErr: errors.New("disk full")}
	s := NewSearcher(store, c, 8, 50)

	got, err := s.Search(context.Background(), Options{Query: "q", CategoryName: "Finance"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || !contains(got[0].Categories, "Finance") {
		t.Errorf("Search() = %+v", got)
	}
}

func TestSearch_LabelPersistsToCorpusStore(t *testing.T) {
	store := corpus.NewStore(filepath.Join(t.TempDir(), "email_data.json"))
	if err := store.Save([]models.EmailRecord{{UID: "a", BodyRaw: "x"}, {MessageID: "<b>", BodyRaw: "y"}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	vs := &fakeStore{
		docs:   []vectorstore.Document{doc("a", map[string]any{"uid": "a"}), doc("b", map[string]any{"message_id": "<b>"})},
		scores: []float64{1, 1},
	}
	s := NewSearcher(vs, store, 8, 50)

	if _, err := s.Search(context.Background(), Options{Query: "q", CategoryName: "Receipts"}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	for _, r := range store.Load() {
		if r.Category != "Receipts" || !reflect.DeepEqual(r.Categories, []string{"Receipts"}) {
			t.Errorf("record %s: category=%q categories=%v", r.Identity(), r.Category, r.Categories)
		}
	}

	// The stored label now takes precedence over backend metadata.
	got, err := s.Search(context.Background(), Options{Query: "q", FilterCategory: "receipts"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("filtered search returned %d results, want 2", len(got))
	}
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("word ", 60)
	got := Snippet(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Snippet() = %q, want ellipsis", got)
	}
	if n := len([]rune(strings.TrimSuffix(got, "..."))); n > SnippetLength {
		t.Errorf("Snippet() body has %d characters, want <= %d", n, SnippetLength)
	}
	if got := Snippet(" a \n\t b "); got != "a b" {
		t.Errorf("Snippet() = %q, want %q", got, "a b")
	}
	if got := Snippet(""); got != "" {
		t.Errorf("Snippet(\"\") = %q", got)
	}
}

func ids(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.ID)
	}
	return out
}
