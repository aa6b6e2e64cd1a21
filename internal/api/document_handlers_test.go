package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagetune/pagetune-server/internal/search"
)

func TestCreateDocument(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)

	doc := ts.createTempest(t)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "pdf", doc.Kind)
	assert.Equal(t, "paginated", doc.PositionKind)
	require.Len(t, doc.Chapters, 3)
	assert.Equal(t, 2, doc.Chapters[2].Index)
	assert.Equal(t, 80, doc.Chapters[2].Page)
}

func TestCreateDocument_BareKindAndSorting(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)

	resp := ts.api.Post("/api/v1/documents", map[string]any{
		"title":     "Notes",
		"file_name": "txt",
		"chapters": []map[string]any{
			{"title": "Two", "page": 20},
			{"title": "One", "page": 10},
		},
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	doc := decode[DocumentResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "txt", doc.Kind)
	assert.Equal(t, "sequential", doc.PositionKind)
	assert.Equal(t, "One", doc.Chapters[0].Title)
}

func TestCreateDocument_Validation(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"blank title", map[string]any{"title": "", "file_name": "a.pdf"}},
		{"unsupported file", map[string]any{"title": "Doc", "file_name": "a.docx"}},
		{"bad music url", map[string]any{
			"title": "Doc", "file_name": "a.pdf",
			"chapters": []map[string]any{{"title": "One", "page": 1, "music_url": "not a url"}},
		}},
		{"chapter past end", map[string]any{
			"title": "Doc", "file_name": "a.pdf", "total_pages": 10,
			"chapters": []map[string]any{{"title": "One", "page": 11}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/documents", tt.body)
			require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
			env := decodeError(t, resp.Body.Bytes())
			assert.Equal(t, "VALIDATION", env.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestGetDocument(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)
	created := ts.createTempest(t)

	resp := ts.api.Get("/api/v1/documents/" + created.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "The Tempest", decode[DocumentResponse](t, resp.Body.Bytes()).Data.Title)

	resp = ts.api.Get("/api/v1/documents/doc-missing")
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body.Bytes()).Code)
}

func TestListDocuments_Pages(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)
	for range 3 {
		ts.createTempest(t)
	}

	resp := ts.api.Get("/api/v1/documents?limit=2")
	require.Equal(t, http.StatusOK, resp.Code)
	page := decode[ListDocumentsResponse](t, resp.Body.Bytes()).Data
	assert.Len(t, page.Documents, 2)
	require.True(t, page.HasMore)

	resp = ts.api.Get("/api/v1/documents?limit=2&cursor=" + page.NextCursor)
	require.Equal(t, http.StatusOK, resp.Code)
	page = decode[ListDocumentsResponse](t, resp.Body.Bytes()).Data
	assert.Len(t, page.Documents, 1)
	assert.False(t, page.HasMore)
}

func TestSearchDocuments(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)
	ts.createTempest(t)

	resp := ts.api.Get("/api/v1/documents/search?q=tempest")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	result := decode[search.SearchResult](t, resp.Body.Bytes()).Data
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "The Tempest", result.Hits[0].Title)

	resp = ts.api.Get("/api/v1/documents/search?q=")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestReplaceChapters(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)
	created := ts.createTempest(t)

	resp := ts.api.Put("/api/v1/documents/"+created.ID+"/chapters", map[string]any{
		"chapters":    []map[string]any{{"title": "Whole Play", "page": 1}},
		"total_pages": 150,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	doc := decode[DocumentResponse](t, resp.Body.Bytes()).Data
	assert.Len(t, doc.Chapters, 1)
	assert.Equal(t, 150, doc.TotalPages)

	resp = ts.api.Put("/api/v1/documents/doc-missing/chapters", map[string]any{"chapters": []any{}})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteDocument(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)
	created := ts.createTempest(t)

	resp := ts.api.Delete("/api/v1/documents/" + created.ID)
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/documents/" + created.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Delete("/api/v1/documents/" + created.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
