// Package query is the read side of the index: full-text, tag and semantic
// search, deterministic browsing, and per-system summaries.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"consdocs/internal/embedder"
	"consdocs/internal/storage"
	"consdocs/internal/taxonomy"
)

// Defaults and caps for query parameters.
const (
	DefaultTextLimit = 20
	MaxTextLimit     = 100

	DefaultSemanticLimit     = 10
	MaxSemanticLimit         = 50
	DefaultSemanticThreshold = 0.5

	DefaultPerPage = 20
	MaxPerPage     = 100

	// tagSampleLimit bounds how many pages per system feed the common-tags
	// summary. Sampling keeps Systems cheap on large indexes at the cost of
	// exactness, which a summary endpoint does not need.
	tagSampleLimit = 100

	topTagCount = 5
)

var (
	// ErrSemanticUnavailable is returned when no embedding service is
	// configured, so stored vectors are zero sentinels and query vectors
	// cannot be produced.
	ErrSemanticUnavailable = errors.New("semantic search unavailable: embeddings disabled")
	// ErrEmptyQuery is returned for blank search input.
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrUnknownSystem is returned for a system label outside the taxonomy.
	ErrUnknownSystem = errors.New("unknown system")
	// ErrInvalidThreshold is returned for similarity thresholds outside [0,1].
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")
)

// BrowseResult is one page of a system's records with pagination metadata.
type BrowseResult struct {
	Pages      []*storage.Page `json:"pages"`
	Page       int             `json:"page"`
	PerPage    int             `json:"per_page"`
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
}

// SystemSummary describes one system's slice of the index.
type SystemSummary struct {
	System     string   `json:"system"`
	PageCount  int      `json:"page_count"`
	CommonTags []string `json:"common_tags"`
}

// Service answers queries against a store, with an optional embedder for the
// semantic path.
type Service struct {
	store    storage.Store
	embedder embedder.Embedder
}

// New creates a query service. The embedder may be nil or disabled; only
// semantic search depends on it.
func New(store storage.Store, emb embedder.Embedder) *Service {
	return &Service{store: store, embedder: emb}
}

// validateSystem checks an optional system filter.
func validateSystem(system string) error {
	if system != "" && !taxonomy.Valid(system) {
		return fmt.Errorf("%w: %q", ErrUnknownSystem, system)
	}
	return nil
}

// SearchText runs ranked full-text search over page content, summaries and
// tags. The limit defaults to DefaultTextLimit and caps at MaxTextLimit.
func (s *Service) SearchText(ctx context.Context, query, system string, limit int) ([]storage.TextResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if err := validateSystem(system); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTextLimit
	}
	if limit > MaxTextLimit {
		limit = MaxTextLimit
	}
	return s.store.SearchText(ctx, query, system, limit)
}

// SearchTags returns pages carrying any of the requested tags. Tags are
// normalized to lowercase; blank entries are dropped.
func (s *Service) SearchTags(ctx context.Context, tags []string, system string) ([]*storage.Page, error) {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			normalized = append(normalized, tag)
		}
	}
	if len(normalized) == 0 {
		return nil, ErrEmptyQuery
	}
	if err := validateSystem(system); err != nil {
		return nil, err
	}
	return s.store.SearchTags(ctx, normalized, system)
}

// SearchSemantic embeds the query and returns nearest pages at or above the
// similarity threshold. An empty result set is a valid answer; an absent or
// disabled embedder is ErrSemanticUnavailable.
func (s *Service) SearchSemantic(ctx context.Context, query, system string, threshold float64, limit int) ([]storage.VectorResult, error) {
	if s.embedder == nil || !s.embedder.Enabled() {
		return nil, ErrSemanticUnavailable
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if err := validateSystem(system); err != nil {
		return nil, err
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	if limit <= 0 {
		limit = DefaultSemanticLimit
	}
	if limit > MaxSemanticLimit {
		limit = MaxSemanticLimit
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.store.SearchVector(ctx, vector, system, threshold, limit)
}

// Browse pages through one system's records ordered by document name and page
// number. The page argument is 1-based.
func (s *Service) Browse(ctx context.Context, system, tag string, page, perPage int) (*BrowseResult, error) {
	if !taxonomy.Valid(system) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSystem, system)
	}
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	tag = strings.ToLower(strings.TrimSpace(tag))

	total, err := s.store.CountPages(ctx, system, tag)
	if err != nil {
		return nil, err
	}
	pages, err := s.store.BrowsePages(ctx, system, tag, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}

	return &BrowseResult{
		Pages:      pages,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: (total + perPage - 1) / perPage,
	}, nil
}

// Systems summarizes every system present in the index: page count plus the
// most common tags sampled from its first pages, ordered by page count
// descending.
func (s *Service) Systems(ctx context.Context) ([]SystemSummary, error) {
	counts, err := s.store.SystemCounts(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]SystemSummary, 0, len(counts))
	for _, system := range taxonomy.Systems {
		count, ok := counts[system]
		if !ok || count == 0 {
			continue
		}
		tags, err := s.store.SystemTags(ctx, system, tagSampleLimit)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, SystemSummary{
			System:     system,
			PageCount:  count,
			CommonTags: topTags(tags, topTagCount),
		})
	}

	// stable: equal counts keep taxonomy order
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].PageCount > summaries[j].PageCount
	})
	return summaries, nil
}

// GetPage fetches one full page record.
func (s *Service) GetPage(ctx context.Context, id string) (*storage.Page, error) {
	return s.store.GetPage(ctx, id)
}

// Documents lists ingested documents, newest first.
func (s *Service) Documents(ctx context.Context, system string) ([]*storage.Document, error) {
	if err := validateSystem(system); err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, system)
}

// topTags ranks tags by frequency, breaking ties by first appearance in the
// sample, and returns at most n.
func topTags(tags []string, n int) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := make([]string, 0)
	for i, tag := range tags {
		if _, ok := counts[tag]; !ok {
			firstSeen[tag] = i
			order = append(order, tag)
		}
		counts[tag]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return firstSeen[order[i]] < firstSeen[order[j]]
	})

	if len(order) > n {
		order = order[:n]
	}
	return order
}
