package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"mailcorpus/internal/identity"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id       TEXT PRIMARY KEY,
	content  TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}'
)`

// SQLiteStore keeps documents in a local SQLite file and ranks them by query
// term overlap. It stands in for an embedding backend behind the same interface.
type SQLiteStore struct {
	db *sqlx.DB
}

type documentRow struct {
	ID       string `db:"id"`
	Content  string `db:"content"`
	Metadata string `db:"metadata"`
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating vector store directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AddDocuments upserts docs. Without explicit ids each document is keyed by the
// identity found in its metadata, else a random id.
func (s *SQLiteStore) AddDocuments(ctx context.Context, docs []Document, ids []string) error {
	if len(docs) == 0 {
		return nil
	}
	if ids != nil && len(ids) != len(docs) {
		return fmt.Errorf("got %d ids for %d documents", len(ids), len(docs))
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO documents (id, content, metadata) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, metadata = excluded.metadata`)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for i, doc := range docs {
		id := ""
		if ids != nil {
			id = ids[i]
		}
		if id == "" {
			id = identity.Key(doc.Metadata)
		}
		if id == "" {
			id = uuid.New().String()
		}

		meta := doc.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %s: %w", id, err)
		}

		if _, err := stmt.ExecContext(ctx, id, doc.PageContent, string(metaJSON)); err != nil {
			return fmt.Errorf("upserting document %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// SimilaritySearchWithScore ranks documents by the share of distinct query terms
// they contain, in [0,1]. Documents sharing no term are left out; ties keep id order.
func (s *SQLiteStore) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]ScoredDocument, error) {
	terms := uniqueTerms(query)
	if len(terms) == 0 || k <= 0 {
		return nil, nil
	}

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT id, content, metadata FROM documents ORDER BY id"); err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}

	var scored []ScoredDocument
	for _, row := range rows {
		score := overlap(terms, row.Content)
		if score == 0 {
			continue
		}
		doc, err := row.document()
		if err != nil {
			return nil, err
		}
		scored = append(scored, ScoredDocument{Document: doc, Score: score})
	}

	// Stable sort keeps the id order among equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// SimilaritySearch returns the same ranking without scores.
func (s *SQLiteStore) SimilaritySearch(ctx context.Context, query string, k int) ([]Document, error) {
	scored, err := s.SimilaritySearchWithScore(ctx, query, k)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(scored))
	for _, sd := range scored {
		docs = append(docs, sd.Document)
	}
	return docs, nil
}

// Count returns the number of stored documents.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM documents"); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Clear removes every document.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("clearing documents: %w", err)
	}
	return nil
}

func (r documentRow) document() (Document, error) {
	meta := map[string]any{}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &meta); err != nil {
			return Document{}, fmt.Errorf("unmarshaling metadata for %s: %w", r.ID, err)
		}
	}
	return Document{PageContent: r.Content, Metadata: meta}, nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func uniqueTerms(s string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, t := range tokenize(s) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}

func overlap(terms []string, content string) float64 {
	words := make(map[string]struct{})
	for _, w := range tokenize(content) {
		words[w] = struct{}{}
	}
	matched := 0
	for _, t := range terms {
		if _, ok := words[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
