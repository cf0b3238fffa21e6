package query

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consdocs/internal/embedder"
	"consdocs/internal/storage"
)

// stubEmbedder returns canned vectors for query texts.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}
func (s *stubEmbedder) Dimension() int   { return 3 }
func (s *stubEmbedder) Enabled() bool    { return true }
func (s *stubEmbedder) Provider() string { return "stub" }
func (s *stubEmbedder) Close() error     { return nil }

func seedStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	hvacDoc := &storage.Document{
		ID: uuid.NewString(), Name: "ahu.pdf", Type: "manual",
		SystemCategory: "HVAC", UploadedAt: time.Now().Add(-time.Hour),
	}
	plumbDoc := &storage.Document{
		ID: uuid.NewString(), Name: "pumps.pdf", Type: "manual",
		SystemCategory: "Plumbing", UploadedAt: time.Now(),
	}
	require.NoError(t, store.CreateDocument(ctx, hvacDoc))
	require.NoError(t, store.CreateDocument(ctx, plumbDoc))

	add := func(doc *storage.Document, number int, system, content string, tags []string, vec []float32) {
		require.NoError(t, store.CreatePage(ctx, &storage.Page{
			ID: uuid.NewString(), DocumentID: doc.ID, DocumentName: doc.Name,
			PageNumber: number, System: system, Tags: tags,
			Summary: "summary " + fmt.Sprint(number), Content: content, Embedding: vec,
		}))
	}

	add(hvacDoc, 1, "HVAC", "AHU filter maintenance schedule.", []string{"maintenance", "reference", "technical"}, []float32{1, 0, 0})
	add(hvacDoc, 2, "HVAC", "Duct installation details and diagram.", []string{"installation", "diagram", "reference"}, []float32{0.9, 0.1, 0})
	add(hvacDoc, 3, "HVAC", "Compressor troubleshooting chart.", []string{"troubleshooting", "table", "reference"}, []float32{0, 1, 0})
	add(plumbDoc, 1, "Plumbing", "Pump installation and valve torque.", []string{"installation", "warnings", "reference"}, []float32{0, 0, 1})
	add(plumbDoc, 2, "Plumbing", "Pump impeller parts list.", []string{"parts-list", "reference", "technical"}, nil)

	return store
}

func TestSearchText(t *testing.T) {
	ctx := context.Background()
	svc := New(seedStore(t), nil)

	t.Run("ranked results", func(t *testing.T) {
		results, err := svc.SearchText(ctx, "installation", "", 0)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		for _, r := range results {
			assert.Greater(t, r.Rank, 0.0)
		}
	})

	t.Run("system filter", func(t *testing.T) {
		results, err := svc.SearchText(ctx, "installation", "Plumbing", 0)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "pumps.pdf", results[0].DocumentName)
	})

	t.Run("blank query rejected", func(t *testing.T) {
		_, err := svc.SearchText(ctx, "   ", "", 0)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("unknown system rejected", func(t *testing.T) {
		_, err := svc.SearchText(ctx, "pump", "Landscaping", 0)
		assert.ErrorIs(t, err, ErrUnknownSystem)
	})
}

func TestSearchTags(t *testing.T) {
	ctx := context.Background()
	svc := New(seedStore(t), nil)

	t.Run("normalizes input tags", func(t *testing.T) {
		pages, err := svc.SearchTags(ctx, []string{"  Installation ", ""}, "")
		require.NoError(t, err)
		assert.Len(t, pages, 2)
	})

	t.Run("all blank tags rejected", func(t *testing.T) {
		_, err := svc.SearchTags(ctx, []string{" ", ""}, "")
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})
}

func TestSearchSemantic(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	emb := &stubEmbedder{vectors: map[string][]float32{
		"air handler":  {1, 0, 0},
		"water system": {0, 0, 1},
	}}
	svc := New(store, emb)

	t.Run("disabled embedder unavailable", func(t *testing.T) {
		_, err := New(store, embedder.NewDisabledProvider()).SearchSemantic(ctx, "q", "", 0.5, 0)
		assert.ErrorIs(t, err, ErrSemanticUnavailable)
	})

	t.Run("nil embedder unavailable", func(t *testing.T) {
		_, err := New(store, nil).SearchSemantic(ctx, "q", "", 0.5, 0)
		assert.ErrorIs(t, err, ErrSemanticUnavailable)
	})

	t.Run("nearest pages above threshold", func(t *testing.T) {
		results, err := svc.SearchSemantic(ctx, "air handler", "", 0.5, 0)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "AHU filter maintenance schedule.", results[0].Content)
		assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
	})

	t.Run("system filter", func(t *testing.T) {
		results, err := svc.SearchSemantic(ctx, "water system", "Plumbing", 0.5, 0)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Pump installation and valve torque.", results[0].Content)
	})

	t.Run("empty result set is valid", func(t *testing.T) {
		results, err := svc.SearchSemantic(ctx, "water system", "HVAC", 0.99, 0)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("threshold out of range rejected", func(t *testing.T) {
		_, err := svc.SearchSemantic(ctx, "q", "", 1.5, 0)
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	})
}

func TestBrowse(t *testing.T) {
	ctx := context.Background()
	svc := New(seedStore(t), nil)

	t.Run("pagination math", func(t *testing.T) {
		result, err := svc.Browse(ctx, "HVAC", "", 1, 2)
		require.NoError(t, err)
		assert.Len(t, result.Pages, 2)
		assert.Equal(t, 3, result.Total)
		assert.Equal(t, 2, result.TotalPages)
		assert.Equal(t, 1, result.Pages[0].PageNumber)
	})

	t.Run("last page is partial", func(t *testing.T) {
		result, err := svc.Browse(ctx, "HVAC", "", 2, 2)
		require.NoError(t, err)
		assert.Len(t, result.Pages, 1)
		assert.Equal(t, 3, result.Pages[0].PageNumber)
	})

	t.Run("page beyond end is empty with metadata", func(t *testing.T) {
		result, err := svc.Browse(ctx, "HVAC", "", 9, 2)
		require.NoError(t, err)
		assert.Empty(t, result.Pages)
		assert.Equal(t, 3, result.Total)
	})

	t.Run("tag filter", func(t *testing.T) {
		result, err := svc.Browse(ctx, "HVAC", "diagram", 1, 0)
		require.NoError(t, err)
		require.Len(t, result.Pages, 1)
		assert.Equal(t, 2, result.Pages[0].PageNumber)
	})

	t.Run("empty system is valid with zero pages", func(t *testing.T) {
		result, err := svc.Browse(ctx, "Structural", "", 1, 0)
		require.NoError(t, err)
		assert.Empty(t, result.Pages)
		assert.Zero(t, result.TotalPages)
	})

	t.Run("unknown system rejected", func(t *testing.T) {
		_, err := svc.Browse(ctx, "Landscaping", "", 1, 0)
		assert.ErrorIs(t, err, ErrUnknownSystem)
	})
}

func TestSystems(t *testing.T) {
	ctx := context.Background()
	svc := New(seedStore(t), nil)

	summaries, err := svc.Systems(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "HVAC", summaries[0].System)
	assert.Equal(t, 3, summaries[0].PageCount)
	assert.Equal(t, "Plumbing", summaries[1].System)
	assert.Equal(t, 2, summaries[1].PageCount)

	// "reference" appears on every HVAC page, so it ranks first
	require.NotEmpty(t, summaries[0].CommonTags)
	assert.Equal(t, "reference", summaries[0].CommonTags[0])
	assert.LessOrEqual(t, len(summaries[0].CommonTags), 5)
}

func TestGetPageAndDocuments(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	svc := New(store, nil)

	t.Run("missing page is ErrNotFound", func(t *testing.T) {
		_, err := svc.GetPage(ctx, uuid.NewString())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("documents newest first", func(t *testing.T) {
		docs, err := svc.Documents(ctx, "")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "pumps.pdf", docs[0].Name)
	})

	t.Run("documents system filter validated", func(t *testing.T) {
		_, err := svc.Documents(ctx, "Bogus")
		assert.ErrorIs(t, err, ErrUnknownSystem)
	})
}

func TestTopTags(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want []string
	}{
		{
			name: "frequency wins",
			tags: []string{"a", "b", "b", "c", "c", "c"},
			want: []string{"c", "b", "a"},
		},
		{
			name: "ties break by first appearance",
			tags: []string{"x", "y", "x", "y", "z"},
			want: []string{"x", "y", "z"},
		},
		{
			name: "caps at five",
			tags: []string{"a", "b", "c", "d", "e", "f", "g"},
			want: []string{"a", "b", "c", "d", "e"},
		},
		{
			name: "empty sample",
			tags: nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, topTags(tt.tags, 5))
		})
	}
}
