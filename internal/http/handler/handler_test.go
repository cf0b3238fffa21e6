package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consdocs/internal/query"
	"consdocs/internal/storage"
)

// stubEmbedder produces a fixed query vector for semantic search tests.
type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (stubEmbedder) Dimension() int   { return 3 }
func (stubEmbedder) Enabled() bool    { return true }
func (stubEmbedder) Provider() string { return "stub" }
func (stubEmbedder) Close() error     { return nil }

func seedStore(t *testing.T) (*storage.SQLiteStore, string) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	hvacDoc := &storage.Document{
		ID: uuid.NewString(), Name: "ahu.pdf", Type: "manual", SystemCategory: "HVAC",
	}
	plumbDoc := &storage.Document{
		ID: uuid.NewString(), Name: "pumps.pdf", Type: "manual", SystemCategory: "Plumbing",
	}
	require.NoError(t, store.CreateDocument(ctx, hvacDoc))
	require.NoError(t, store.CreateDocument(ctx, plumbDoc))

	firstPageID := uuid.NewString()
	pages := []*storage.Page{
		{
			ID: firstPageID, DocumentID: hvacDoc.ID, DocumentName: hvacDoc.Name,
			PageNumber: 1, System: "HVAC", Tags: []string{"maintenance", "reference"},
			Summary: "Filter maintenance intervals.", Content: "AHU filter maintenance schedule.",
			Embedding: []float32{1, 0, 0},
		},
		{
			ID: uuid.NewString(), DocumentID: hvacDoc.ID, DocumentName: hvacDoc.Name,
			PageNumber: 2, System: "HVAC", Tags: []string{"installation", "diagram"},
			Summary: "Duct installation.", Content: "Duct installation details and diagram.",
			Embedding: []float32{0.9, 0.1, 0},
		},
		{
			ID: uuid.NewString(), DocumentID: hvacDoc.ID, DocumentName: hvacDoc.Name,
			PageNumber: 3, System: "HVAC", Tags: []string{"troubleshooting", "reference"},
			Summary: "Compressor faults.", Content: "Compressor troubleshooting chart.",
			Embedding: []float32{0, 1, 0},
		},
		{
			ID: uuid.NewString(), DocumentID: plumbDoc.ID, DocumentName: plumbDoc.Name,
			PageNumber: 1, System: "Plumbing", Tags: []string{"installation", "warnings"},
			Summary: "Pump mounting.", Content: "Pump installation and valve torque.",
			Embedding: []float32{0, 0, 1},
		},
	}
	for _, p := range pages {
		require.NoError(t, store.CreatePage(ctx, p))
	}

	return store, firstPageID
}

func newTestApp(t *testing.T, svc *query.Service) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})
	RegisterRoutes(app, svc, nil)
	return app
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealth(t *testing.T) {
	store, _ := seedStore(t)
	app := newTestApp(t, query.New(store, nil))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestSearchTextEndpoint(t *testing.T) {
	store, _ := seedStore(t)
	app := newTestApp(t, query.New(store, nil))

	t.Run("success", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/search/text?q=installation", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Query   string               `json:"query"`
			Count   int                  `json:"count"`
			Results []storage.TextResult `json:"results"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, "installation", body.Query)
		assert.Equal(t, 2, body.Count)
		require.Len(t, body.Results, 2)
		assert.Greater(t, body.Results[0].Rank, 0.0)
	})

	t.Run("system filter", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/search/text?q=installation&system=Plumbing", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Count int `json:"count"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, 1, body.Count)
	})

	t.Run("blank query", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/search/text?q=", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		decodeBody(t, resp, &body)
		assert.Equal(t, "EMPTY_QUERY", body.Error.Code)
	})

	t.Run("unknown system", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/search/text?q=pump&system=Landscaping", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		decodeBody(t, resp, &body)
		assert.Equal(t, "UNKNOWN_SYSTEM", body.Error.Code)
	})

	t.Run("invalid limit", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/search/text?q=pump&limit=abc", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		decodeBody(t, resp, &body)
		assert.Equal(t, "INVALID_LIMIT", body.Error.Code)
	})
}

func TestSearchSemanticEndpoint(t *testing.T) {
	store, _ := seedStore(t)

	t.Run("unavailable without embedder", func(t *testing.T) {
		app := newTestApp(t, query.New(store, nil))

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/search/semantic?q=air+handler", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		decodeBody(t, resp, &body)
		assert.Equal(t, "SEMANTIC_UNAVAILABLE", body.Error.Code)
	})

	app := newTestApp(t, query.New(store, stubEmbedder{}))

	t.Run("success", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/search/semantic?q=air+handler&threshold=0.5", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Threshold float64                `json:"threshold"`
			Count     int                    `json:"count"`
			Results   []storage.VectorResult `json:"results"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, 0.5, body.Threshold)
		assert.Equal(t, 2, body.Count)
		require.NotEmpty(t, body.Results)
		assert.Equal(t, "AHU filter maintenance schedule.", body.Results[0].Content)
	})

	t.Run("malformed threshold", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/search/semantic?q=x&threshold=high", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		decodeBody(t, resp, &body)
		assert.Equal(t, "INVALID_THRESHOLD", body.Error.Code)
	})

	t.Run("threshold out of range", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/search/semantic?q=x&threshold=1.5", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		decodeBody(t, resp, &body)
		assert.Equal(t, "INVALID_THRESHOLD", body.Error.Code)
	})
}

func TestSearchTagsEndpoint(t *testing.T) {
	store, _ := seedStore(t)
	app := newTestApp(t, query.New(store, nil))

	t.Run("success", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/search/tags?tags=installation,diagram", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Count   int             `json:"count"`
			Results []*storage.Page `json:"results"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, 2, body.Count)
	})

	t.Run("missing tags", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/search/tags", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		decodeBody(t, resp, &body)
		assert.Equal(t, "EMPTY_QUERY", body.Error.Code)
	})
}

func TestBrowseEndpoint(t *testing.T) {
	store, _ := seedStore(t)
	app := newTestApp(t, query.New(store, nil))

	t.Run("paginated listing", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/browse/HVAC?per_page=2", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body query.BrowseResult
		decodeBody(t, resp, &body)
		assert.Len(t, body.Pages, 2)
		assert.Equal(t, 3, body.Total)
		assert.Equal(t, 2, body.TotalPages)
	})

	t.Run("unknown system", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/browse/Landscaping", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		decodeBody(t, resp, &body)
		assert.Equal(t, "UNKNOWN_SYSTEM", body.Error.Code)
	})

	t.Run("invalid page", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/browse/HVAC?page=two", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		decodeBody(t, resp, &body)
		assert.Equal(t, "INVALID_PAGE", body.Error.Code)
	})
}

func TestSystemsEndpoint(t *testing.T) {
	store, _ := seedStore(t)
	app := newTestApp(t, query.New(store, nil))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/systems", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Systems []query.SystemSummary `json:"systems"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Systems, 2)
	assert.Equal(t, "HVAC", body.Systems[0].System)
	assert.Equal(t, 3, body.Systems[0].PageCount)
}

func TestDocumentsEndpoint(t *testing.T) {
	store, _ := seedStore(t)
	app := newTestApp(t, query.New(store, nil))

	t.Run("all documents", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/documents", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Count     int                 `json:"count"`
			Documents []*storage.Document `json:"documents"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, 2, body.Count)
	})

	t.Run("unknown system", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/documents?system=Bogus", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetPageEndpoint(t *testing.T) {
	store, pageID := seedStore(t)
	app := newTestApp(t, query.New(store, nil))

	t.Run("success", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/page/"+pageID, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body storage.Page
		decodeBody(t, resp, &body)
		assert.Equal(t, pageID, body.ID)
		assert.Equal(t, "AHU filter maintenance schedule.", body.Content)
	})

	t.Run("not found", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/page/"+uuid.NewString(), nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body errorPayload
		decodeBody(t, resp, &body)
		assert.Equal(t, "NOT_FOUND", body.Error.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/page/not-a-uuid", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		decodeBody(t, resp, &body)
		assert.Equal(t, "INVALID_ID", body.Error.Code)
	})
}

func TestRouting(t *testing.T) {
	store, _ := seedStore(t)
	app := newTestApp(t, query.New(store, nil))

	t.Run("not found route", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/non-existent", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body errorPayload
		decodeBody(t, resp, &body)
		assert.Equal(t, "NOT_FOUND", body.Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

		var body errorPayload
		decodeBody(t, resp, &body)
		assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
	})
}
