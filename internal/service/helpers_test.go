package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pagetune/pagetune-server/internal/chaptersync"
	"github.com/pagetune/pagetune-server/internal/domain"
	"github.com/pagetune/pagetune-server/internal/search"
	"github.com/pagetune/pagetune-server/internal/sse"
	"github.com/pagetune/pagetune-server/internal/store/sqlite"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []sse.Event
}

func (p *recordingPublisher) Emit(evt sse.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) EmitToSession(sessionID string, evt sse.Event) {
	evt.SessionID = sessionID
	p.Emit(evt)
}

func (p *recordingPublisher) types() []sse.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]sse.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls []chaptersync.TrackRequest
}

func (g *fakeGenerator) GenerateTrack(_ context.Context, req chaptersync.TrackRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	return "https://music.example/gen/" + req.Preferences.Key() + ".mp3", nil
}

func (g *fakeGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type recordingForgetter struct {
	mu        sync.Mutex
	forgotten []string
}

func (f *recordingForgetter) ForgetDocument(documentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, documentID)
}

type testEnv struct {
	store     *sqlite.Store
	index     *search.SearchIndex
	events    *recordingPublisher
	forgetter *recordingForgetter
	generator *fakeGenerator
	docs      *DocumentService
	sessions  *SessionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	index, err := search.NewSearchIndex(search.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	env := &testEnv{
		store:     st,
		index:     index,
		events:    &recordingPublisher{},
		forgetter: &recordingForgetter{},
		generator: &fakeGenerator{},
	}
	env.docs = NewDocumentService(st, index, env.forgetter, env.events, nil)
	env.sessions = NewSessionService(st, st, env.generator, env.events, SessionConfig{
		TickInterval: time.Hour,
	}, nil)
	env.docs.SetChapterListener(env.sessions)
	t.Cleanup(func() { _ = env.sessions.Shutdown(context.Background()) })
	return env
}

func registerTempest(t *testing.T, env *testEnv) *domain.Document {
	t.Helper()
	doc, err := env.docs.Register(context.Background(), RegisterInput{
		Title:      "The Tempest",
		Author:     "William Shakespeare",
		FileName:   "tempest.pdf",
		TotalPages: 120,
		Chapters: []domain.Chapter{
			{Title: "Act I", Page: 1, MusicURL: "https://cdn.example/act1.mp3"},
			{Title: "Act II", Page: 40, MusicURL: "https://cdn.example/act2.mp3"},
			{Title: "Act III", Page: 80, MusicURL: "https://cdn.example/act3.mp3"},
		},
	})
	require.NoError(t, err)
	return doc
}
