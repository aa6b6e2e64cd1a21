package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagetune/pagetune-server/internal/domain"
	"github.com/pagetune/pagetune-server/internal/errors"
	"github.com/pagetune/pagetune-server/internal/sse"
)

func TestOpen_UnknownDocument(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.sessions.Open(context.Background(), OpenInput{DocumentID: "doc-missing"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Zero(t, env.sessions.Count())
}

func TestOpen_PlaysFirstChapter(t *testing.T) {
	env := newTestEnv(t)
	doc := registerTempest(t, env)

	snap, err := env.sessions.Open(context.Background(), OpenInput{DocumentID: doc.ID})
	require.NoError(t, err)

	assert.True(t, len(snap.SessionID) > 4 && snap.SessionID[:4] == "ses-")
	assert.Equal(t, doc.ID, snap.DocumentID)
	assert.Equal(t, domain.PagePosition(1, 120), snap.Position)
	assert.Equal(t, 0, snap.ActiveChapter)
	assert.Equal(t, 3, snap.ChapterCount)
	assert.Equal(t, domain.StatePlaying, snap.State)
	assert.True(t, snap.Playback.IsPlaying)
	assert.Equal(t, "https://cdn.example/act1.mp3", snap.Playback.ActiveTrackURL)

	types := env.events.types()
	assert.Contains(t, types, sse.EventPlayerLoad)
	assert.Contains(t, types, sse.EventPlayerPlay)
	assert.Contains(t, types, sse.EventTrackChanged)
	assert.Equal(t, 0, env.generator.count(), "no preferences means no generation")
}

func TestOpen_StartPaused(t *testing.T) {
	env := newTestEnv(t)
	doc := registerTempest(t, env)

	snap, err := env.sessions.Open(context.Background(), OpenInput{DocumentID: doc.ID, StartPaused: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaused, snap.State)
	assert.False(t, snap.Playback.IsPlaying)
	assert.NotContains(t, env.events.types(), sse.EventPlayerPlay)
}

func TestOpen_ChapterWithoutMusic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc, err := env.docs.Register(ctx, RegisterInput{
		Title:    "Silent",
		FileName: "silent.pdf",
		Chapters: []domain.Chapter{{Title: "Quiet", Page: 1}},
	})
	require.NoError(t, err)

	snap, err := env.sessions.Open(ctx, OpenInput{DocumentID: doc.ID})
	require.NoError(t, err, "a missing track must not fail the session")
	assert.Empty(t, snap.Playback.ActiveTrackURL)
	assert.Contains(t, env.events.types(), sse.EventTrackFailed)
}

func TestSetPosition_SwitchesChapterAndCheckpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := registerTempest(t, env)

	snap, err := env.sessions.Open(ctx, OpenInput{DocumentID: doc.ID})
	require.NoError(t, err)

	snap, err = env.sessions.SetPosition(snap.SessionID, domain.PagePosition(45, 120))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ActiveChapter)
	assert.Equal(t, "https://cdn.example/act2.mp3", snap.Playback.ActiveTrackURL)

	cp, err := env.store.GetCheckpoint(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 45, cp.Position.CurrentPage)
	assert.Contains(t, env.events.types(), sse.EventCheckpointSaved)

	_, err = env.sessions.SetPosition(snap.SessionID, domain.ChapterPosition(1, 3))
	assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))
}

func TestNavigationAndToggle(t *testing.T) {
	env := newTestEnv(t)
	doc := registerTempest(t, env)

	snap, err := env.sessions.Open(context.Background(), OpenInput{DocumentID: doc.ID})
	require.NoError(t, err)
	sid := snap.SessionID

	snap, err = env.sessions.NextPage(sid)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Position.CurrentPage)

	snap, err = env.sessions.PrevPage(sid)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Position.CurrentPage)

	snap, err = env.sessions.PrevPage(sid)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Position.CurrentPage, "clamped at the first page")

	snap, err = env.sessions.TogglePlayback(sid)
	require.NoError(t, err)
	assert.False(t, snap.Playback.IsPlaying)
	assert.Equal(t, domain.StatePaused, snap.State)
	assert.Contains(t, env.events.types(), sse.EventPlayerPause)
}

func TestJumpAndPlayChapter(t *testing.T) {
	env := newTestEnv(t)
	doc := registerTempest(t, env)

	snap, err := env.sessions.Open(context.Background(), OpenInput{DocumentID: doc.ID})
	require.NoError(t, err)
	sid := snap.SessionID

	snap, err = env.sessions.JumpToChapter(sid, 2)
	require.NoError(t, err)
	assert.Equal(t, 80, snap.Position.CurrentPage)
	assert.Equal(t, 2, snap.ActiveChapter)

	snap, err = env.sessions.PlayChapter(sid, 0)
	require.NoError(t, err)
	assert.Equal(t, 80, snap.Position.CurrentPage, "playing a chapter does not move the reader")
	assert.Equal(t, "https://cdn.example/act1.mp3", snap.Playback.ActiveTrackURL)

	_, err = env.sessions.JumpToChapter(sid, 9)
	assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))
}

func TestReopen_RestoresCheckpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := registerTempest(t, env)

	snap, err := env.sessions.Open(ctx, OpenInput{DocumentID: doc.ID})
	require.NoError(t, err)
	_, err = env.sessions.SetPosition(snap.SessionID, domain.PagePosition(85, 120))
	require.NoError(t, err)
	require.NoError(t, env.sessions.Close(ctx, snap.SessionID))

	snap, err = env.sessions.Open(ctx, OpenInput{DocumentID: doc.ID})
	require.NoError(t, err)
	assert.Equal(t, 85, snap.Position.CurrentPage)
	assert.Equal(t, 2, snap.ActiveChapter)
	assert.Equal(t, "https://cdn.example/act3.mp3", snap.Playback.ActiveTrackURL)
}

func TestOpen_GeneratesWithPreferences(t *testing.T) {
	env := newTestEnv(t)
	doc := registerTempest(t, env)

	snap, err := env.sessions.Open(context.Background(), OpenInput{
		DocumentID:  doc.ID,
		Preferences: []string{" LoFi ", "lofi"},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := env.sessions.Get(snap.SessionID)
		return err == nil && got.Playback.ActiveTrackURL == "https://music.example/gen/lofi.mp3"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, env.generator.count())
}

func TestReplaceChapters_ReachesLiveSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := registerTempest(t, env)

	snap, err := env.sessions.Open(ctx, OpenInput{DocumentID: doc.ID})
	require.NoError(t, err)

	_, err = env.docs.ReplaceChapters(ctx, doc.ID, []domain.Chapter{
		{Title: "Whole play", Page: 1, MusicURL: "https://cdn.example/all.mp3"},
	}, 0)
	require.NoError(t, err)

	snap, err = env.sessions.Get(snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ChapterCount)
	assert.Equal(t, "https://cdn.example/all.mp3", snap.Playback.ActiveTrackURL)
}

func TestClose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := registerTempest(t, env)

	snap, err := env.sessions.Open(ctx, OpenInput{DocumentID: doc.ID})
	require.NoError(t, err)
	assert.True(t, env.sessions.Exists(snap.SessionID))
	assert.Len(t, env.sessions.List(), 1)

	require.NoError(t, env.sessions.Close(ctx, snap.SessionID))
	assert.Contains(t, env.events.types(), sse.EventSessionTerminated)
	assert.Contains(t, env.events.types(), sse.EventPlayerStop)
	assert.False(t, env.sessions.Exists(snap.SessionID))

	_, err = env.sessions.Get(snap.SessionID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.True(t, errors.Is(env.sessions.Close(ctx, snap.SessionID), errors.ErrNotFound))
}

func TestShutdown_TerminatesAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := registerTempest(t, env)

	for range 3 {
		_, err := env.sessions.Open(ctx, OpenInput{DocumentID: doc.ID})
		require.NoError(t, err)
	}
	require.Equal(t, 3, env.sessions.Count())

	require.NoError(t, env.sessions.Shutdown(ctx))
	assert.Zero(t, env.sessions.Count())
}
