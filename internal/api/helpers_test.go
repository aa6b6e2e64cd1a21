package api

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/pagetune/pagetune-server/internal/service"
	"github.com/pagetune/pagetune-server/internal/sse"
	"github.com/pagetune/pagetune-server/internal/store/sqlite"
)

// testEnvelope mirrors APIEnvelope with a typed payload.
type testEnvelope[T any] struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

type testServer struct {
	*Server
	api   humatest.TestAPI
	store *sqlite.Store
}

func newTestServer(t *testing.T, opts Options, sseManager *sse.Manager) *testServer {
	t.Helper()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	docs := service.NewDocumentService(st, nil, nil, nil, nil)
	var pub service.SessionPublisher
	if sseManager != nil {
		pub = sseManager
	}
	sessions := service.NewSessionService(st, st, nil, pub, service.SessionConfig{TickInterval: time.Hour}, nil)
	docs.SetChapterListener(sessions)
	t.Cleanup(func() { _ = sessions.Shutdown(context.Background()) })

	opts.DB = st
	s := NewServer(&Services{Documents: docs, Sessions: sessions}, sseManager, opts, nil)
	t.Cleanup(s.Close)

	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.api),
		store:  st,
	}
}

func decode[T any](t *testing.T, body []byte) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	return env
}

func decodeError(t *testing.T, body []byte) APIErrorEnvelope {
	t.Helper()
	var env APIErrorEnvelope
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	return env
}

// createTempest adds a three-act PDF with a track per act.
func (ts *testServer) createTempest(t *testing.T) DocumentResponse {
	t.Helper()
	resp := ts.api.Post("/api/v1/documents", map[string]any{
		"title":       "The Tempest",
		"author":      "William Shakespeare",
		"file_name":   "tempest.pdf",
		"total_pages": 120,
		"chapters": []map[string]any{
			{"title": "Act I", "page": 1, "music_url": "https://cdn.example/act1.mp3"},
			{"title": "Act II", "page": 40, "music_url": "https://cdn.example/act2.mp3"},
			{"title": "Act III", "page": 80, "music_url": "https://cdn.example/act3.mp3"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[DocumentResponse](t, resp.Body.Bytes()).Data
}

func (ts *testServer) openSession(t *testing.T, documentID string) SessionResponse {
	t.Helper()
	resp := ts.api.Post("/api/v1/sessions", map[string]any{"document_id": documentID})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[SessionResponse](t, resp.Body.Bytes()).Data
}
