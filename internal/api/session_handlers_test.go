package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagetune/pagetune-server/internal/domain"
	"github.com/pagetune/pagetune-server/internal/sse"
)

func TestOpenSession(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)
	doc := ts.createTempest(t)

	snap := ts.openSession(t, doc.ID)
	assert.True(t, strings.HasPrefix(snap.SessionID, "ses-"))
	assert.Equal(t, "playing", snap.State)
	assert.Equal(t, 0, snap.ActiveChapter)
	assert.Equal(t, 3, snap.ChapterCount)
	assert.Equal(t, "https://cdn.example/act1.mp3", snap.Playback.ActiveTrackURL)
	assert.Nil(t, snap.Warning)
}

func TestOpenSession_StartPaused(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)
	doc := ts.createTempest(t)

	resp := ts.api.Post("/api/v1/sessions", map[string]any{"document_id": doc.ID, "start_paused": true})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	snap := decode[SessionResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "paused", snap.State)
	assert.False(t, snap.Playback.IsPlaying)
}

func TestOpenSession_UnknownDocument(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)

	resp := ts.api.Post("/api/v1/sessions", map[string]any{"document_id": "doc-missing"})
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body.Bytes()).Code)
}

func TestOpenSession_RateLimited(t *testing.T) {
	ts := newTestServer(t, Options{SessionOpenRate: 1}, nil)
	doc := ts.createTempest(t)

	ts.openSession(t, doc.ID)
	resp := ts.api.Post("/api/v1/sessions", map[string]any{"document_id": doc.ID})
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestSessionPositionAndNavigation(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)
	doc := ts.createTempest(t)
	sid := ts.openSession(t, doc.ID).SessionID
	base := "/api/v1/sessions/" + sid

	// Totals are filled in from the session when omitted.
	resp := ts.api.Put(base+"/position", map[string]any{"kind": "paginated", "current_page": 45})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	snap := decode[SessionResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, 45, snap.Position.CurrentPage)
	assert.Equal(t, 120, snap.Position.TotalPages)
	assert.Equal(t, 1, snap.ActiveChapter)
	assert.Equal(t, "https://cdn.example/act2.mp3", snap.Playback.ActiveTrackURL)
	assert.NotNil(t, snap.LastSavedAt)

	cp, err := ts.store.GetCheckpoint(context.Background(), doc.ID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 45, cp.Position.CurrentPage)

	resp = ts.api.Post(base + "/next")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 46, decode[SessionResponse](t, resp.Body.Bytes()).Data.Position.CurrentPage)

	resp = ts.api.Post(base + "/prev")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 45, decode[SessionResponse](t, resp.Body.Bytes()).Data.Position.CurrentPage)

	resp = ts.api.Post(base + "/toggle")
	require.Equal(t, http.StatusOK, resp.Code)
	snap = decode[SessionResponse](t, resp.Body.Bytes()).Data
	assert.False(t, snap.Playback.IsPlaying)
	assert.Equal(t, "paused", snap.State)
}

func TestSetPosition_WrongKind(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)
	doc := ts.createTempest(t)
	sid := ts.openSession(t, doc.ID).SessionID

	resp := ts.api.Put("/api/v1/sessions/"+sid+"/position", map[string]any{
		"kind": "sequential", "current_chapter_index": 1, "total_chapters": 3,
	})
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
	assert.Equal(t, "VALIDATION", decodeError(t, resp.Body.Bytes()).Code)
}

func TestJumpAndPlayChapter(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)
	doc := ts.createTempest(t)
	sid := ts.openSession(t, doc.ID).SessionID

	resp := ts.api.Post("/api/v1/sessions/" + sid + "/chapters/2/jump")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	snap := decode[SessionResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, 80, snap.Position.CurrentPage)
	assert.Equal(t, 2, snap.ActiveChapter)

	// Playing a chapter leaves the reader where they are.
	resp = ts.api.Post("/api/v1/sessions/" + sid + "/chapters/0/play")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	snap = decode[SessionResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, 80, snap.Position.CurrentPage)
	assert.Equal(t, "https://cdn.example/act1.mp3", snap.Playback.ActiveTrackURL)

	resp = ts.api.Post("/api/v1/sessions/" + sid + "/chapters/9/jump")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestJumpToChapter_MissingTrackIsWarning(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)

	resp := ts.api.Post("/api/v1/documents", map[string]any{
		"title": "Half Scored", "file_name": "half.pdf", "total_pages": 50,
		"chapters": []map[string]any{
			{"title": "Scored", "page": 1, "music_url": "https://cdn.example/scored.mp3"},
			{"title": "Silent", "page": 25},
		},
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	doc := decode[DocumentResponse](t, resp.Body.Bytes()).Data
	sid := ts.openSession(t, doc.ID).SessionID

	resp = ts.api.Post("/api/v1/sessions/" + sid + "/chapters/1/jump")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	snap := decode[SessionResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, 25, snap.Position.CurrentPage)
	require.NotNil(t, snap.Warning)
	assert.Equal(t, "TRACK_RESOLUTION_FAILED", snap.Warning.Code)
}

func TestListGetAndCloseSession(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)
	doc := ts.createTempest(t)
	sid := ts.openSession(t, doc.ID).SessionID

	resp := ts.api.Get("/api/v1/sessions")
	require.Equal(t, http.StatusOK, resp.Code)
	list := decode[struct {
		Sessions []SessionResponse `json:"sessions"`
	}](t, resp.Body.Bytes()).Data
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, sid, list.Sessions[0].SessionID)

	resp = ts.api.Get("/api/v1/sessions/" + sid)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Delete("/api/v1/sessions/" + sid)
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/sessions/" + sid)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	resp = ts.api.Delete("/api/v1/sessions/" + sid)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestReplaceChapters_ReloadsOpenSession(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)
	doc := ts.createTempest(t)
	sid := ts.openSession(t, doc.ID).SessionID

	resp := ts.api.Put("/api/v1/documents/"+doc.ID+"/chapters", map[string]any{
		"chapters": []map[string]any{{"title": "Whole Play", "page": 1, "music_url": "https://cdn.example/all.mp3"}},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/sessions/" + sid)
	require.Equal(t, http.StatusOK, resp.Code)
	snap := decode[SessionResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, 1, snap.ChapterCount)
}

func TestSessionEvents_UnknownSession(t *testing.T) {
	mgr := sse.NewManager(nil)
	ts := newTestServer(t, Options{}, mgr)

	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/ses-missing/events", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec.Body.Bytes()).Code)
}

func TestSessionEvents_Streams(t *testing.T) {
	mgr := sse.NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Start(ctx)
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })

	ts := newTestServer(t, Options{}, mgr)
	doc := ts.createTempest(t)
	sid := ts.openSession(t, doc.ID).SessionID

	srv := httptest.NewServer(ts)
	defer srv.Close()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reqCancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL+"/api/v1/sessions/"+sid+"/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// A position change emits track and checkpoint events for the session.
	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = ts.services.Sessions.SetPosition(sid, domain.PagePosition(45, 120))
	}()

	buf := make([]byte, 4096)
	var got strings.Builder
	for !strings.Contains(got.String(), "checkpoint.saved") {
		n, err := resp.Body.Read(buf)
		got.Write(buf[:n])
		if err != nil {
			break
		}
	}
	assert.Contains(t, got.String(), "checkpoint.saved")
}
