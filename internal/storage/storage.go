// Package storage persists ingested manuals and serves the index queries.
// The backing store is embedded SQLite: FTS5 carries full-text ranking, tags
// live as JSON arrays queried through json_each, and page embeddings are
// little-endian float32 blobs compared by cosine similarity.
package storage

import (
	"context"
	"time"
)

// Document represents one ingested manual.
type Document struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	SystemCategory string    `json:"system_category"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

// Page is one indexed page of a document with its enrichment fields.
// The embedding is storage-internal and never serialized into API responses.
type Page struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	PageNumber   int       `json:"page_number"`
	System       string    `json:"system"`
	Tags         []string  `json:"tags"`
	Summary      string    `json:"summary"`
	Content      string    `json:"content"`
	Embedding    []float32 `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// TextResult is a full-text match with its normalized relevance score in (0,1].
type TextResult struct {
	Page
	Rank float64 `json:"rank"`
}

// VectorResult is a semantic match with its cosine similarity in [0,1].
type VectorResult struct {
	Page
	Similarity float64 `json:"similarity"`
}

// Store defines the interface for persisting and querying the manual index.
// An empty system argument means "all systems" everywhere it appears.
type Store interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	ListDocuments(ctx context.Context, system string) ([]*Document, error)

	// Page operations
	CreatePage(ctx context.Context, page *Page) error
	GetPage(ctx context.Context, id string) (*Page, error)

	// Search operations
	SearchText(ctx context.Context, query, system string, limit int) ([]TextResult, error)
	SearchTags(ctx context.Context, tags []string, system string) ([]*Page, error)
	SearchVector(ctx context.Context, vector []float32, system string, threshold float64, limit int) ([]VectorResult, error)

	// Browse operations, ordered by (document_name, page_number) ascending.
	// An empty tag means no tag filter.
	BrowsePages(ctx context.Context, system, tag string, limit, offset int) ([]*Page, error)
	CountPages(ctx context.Context, system, tag string) (int, error)

	// Aggregations
	SystemCounts(ctx context.Context) (map[string]int, error)
	// SystemTags returns the tags of the first sampleLimit pages of a system,
	// flattened in page insertion order.
	SystemTags(ctx context.Context, system string, sampleLimit int) ([]string, error)

	// Database operations
	Close() error
}
