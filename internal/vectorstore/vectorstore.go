// Package vectorstore defines the similarity-search collaborator used by search
// and indexing, plus a local SQLite-backed implementation of it.
package vectorstore

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by stores that cannot serve the requested kind of search.
var ErrUnsupported = errors.New("vector store: operation not supported")

// Document is one indexed unit: page content plus loosely typed metadata.
// Metadata values are scalars or lists of scalars.
type Document struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}

// ScoredDocument pairs a document with its relevance score; higher is better.
type ScoredDocument struct {
	Document Document
	Score    float64
}

// VectorStore is the read side consumed by search.
type VectorStore interface {
	// SimilaritySearchWithScore returns up to k documents with scores.
	// Stores without scoring return ErrUnsupported.
	SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]ScoredDocument, error)
	// SimilaritySearch returns up to k documents in ranking order.
	SimilaritySearch(ctx context.Context, query string, k int) ([]Document, error)
}

// Indexer is the write side used by ingestion. ids, when given, must match docs one to one.
type Indexer interface {
	AddDocuments(ctx context.Context, docs []Document, ids []string) error
}
