// Package ingest orchestrates the document pipeline: extract pages, classify
// and enrich each one, persist everything to the index.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"consdocs/internal/ai"
	"consdocs/internal/embedder"
	"consdocs/internal/extractor"
	"consdocs/internal/storage"
	"consdocs/internal/taxonomy"
)

const (
	// documentType recorded for every ingested source
	documentType = "manual"

	// progressEvery controls how often page progress is logged
	progressEvery = 10

	// enrichWorkers bounds concurrent enrichment calls per document
	enrichWorkers = 4
)

// Report summarizes one completed ingestion run.
type Report struct {
	DocumentID     string `json:"document_id"`
	DocumentName   string `json:"document_name"`
	TotalPages     int    `json:"total_pages"`
	ProcessedPages int    `json:"processed_pages"`
	System         string `json:"system"`
}

// Ingestor runs the ingestion pipeline against a store.
type Ingestor struct {
	store      storage.Store
	summarizer *ai.Summarizer
	tagger     *ai.Tagger
	embedder   embedder.Embedder
	logger     *slog.Logger
}

// New creates an Ingestor. The summarizer and tagger must be non-nil (use
// their nil-client fallback modes when no service is configured); the
// embedder may be a disabled provider.
func New(store storage.Store, summarizer *ai.Summarizer, tagger *ai.Tagger, emb embedder.Embedder, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		store:      store,
		summarizer: summarizer,
		tagger:     tagger,
		embedder:   emb,
		logger:     logger,
	}
}

// enrichedPage carries one page through enrichment to persistence.
type enrichedPage struct {
	number  int
	content string
	system  string
	summary string
	tags    []string
	vector  []float32
}

// Ingest processes the document at path into the index and returns a report.
// Every run creates a new document record; re-ingesting the same file indexes
// it again under a fresh ID. Only extraction and storage failures abort the
// run. Enrichment never does: summaries and tags degrade to heuristics and a
// failed embedding becomes the zero vector.
func (ing *Ingestor) Ingest(ctx context.Context, path, systemHint string) (*Report, error) {
	name := filepath.Base(path)

	// The document record carries the hint or the default; per-page
	// classification still consults the filename and content.
	docSystem := systemHint
	if docSystem == "" {
		docSystem = taxonomy.Default
	}
	doc := &storage.Document{
		ID:             uuid.NewString(),
		Name:           name,
		Type:           documentType,
		SystemCategory: docSystem,
	}
	if err := ing.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	ing.logger.Info("ingestion started", "document", name, "document_id", doc.ID)

	result, err := extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}
	ing.logger.Info("pages extracted",
		"document", name, "total_pages", result.TotalPages, "non_blank", len(result.Pages))

	enriched := make([]enrichedPage, len(result.Pages))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(enrichWorkers)
	for i, page := range result.Pages {
		eg.Go(func() error {
			vector, err := ing.embedder.Embed(gctx, page.Text)
			if err != nil {
				ing.logger.Warn("embedding failed, storing zero vector",
					"document", name, "page", page.Number, "error", err)
				vector = embedder.ZeroVector()
			}
			enriched[i] = enrichedPage{
				number:  page.Number,
				content: page.Text,
				system:  taxonomy.Classify(page.Text, name, systemHint),
				summary: ing.summarizer.Summarize(gctx, page.Text),
				tags:    ing.tagger.Tag(gctx, page.Text),
				vector:  vector,
			}
			return gctx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("enrich %s: %w", name, err)
	}

	processed := 0
	for _, ep := range enriched {
		page := &storage.Page{
			ID:           uuid.NewString(),
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			PageNumber:   ep.number,
			System:       ep.system,
			Tags:         ep.tags,
			Summary:      ep.summary,
			Content:      ep.content,
			Embedding:    ep.vector,
		}
		if err := ing.store.CreatePage(ctx, page); err != nil {
			return nil, fmt.Errorf("store page %d of %s: %w", ep.number, name, err)
		}
		processed++
		if processed%progressEvery == 0 {
			ing.logger.Info("ingestion progress",
				"document", name, "page", ep.number, "processed", processed, "of", len(enriched))
		}
	}

	report := &Report{
		DocumentID:     doc.ID,
		DocumentName:   doc.Name,
		TotalPages:     result.TotalPages,
		ProcessedPages: processed,
		System:         doc.SystemCategory,
	}
	ing.logger.Info("ingestion complete",
		"document", name, "total_pages", report.TotalPages, "processed_pages", report.ProcessedPages,
		"system", report.System)
	return report, nil
}
