package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"

	"github.com/pagetune/pagetune-server/internal/audio"
	"github.com/pagetune/pagetune-server/internal/chaptersync"
	"github.com/pagetune/pagetune-server/internal/domain"
	"github.com/pagetune/pagetune-server/internal/errors"
	"github.com/pagetune/pagetune-server/internal/id"
	"github.com/pagetune/pagetune-server/internal/sse"
	"github.com/pagetune/pagetune-server/internal/store"
)

// SessionPublisher delivers session events to subscribers.
type SessionPublisher interface {
	Emit(sse.Event)
	EmitToSession(sessionID string, event sse.Event)
}

// PlayerFactory builds the audio output for a new session.
type PlayerFactory func(sessionID string) chaptersync.Player

// SessionConfig tunes the controllers a SessionService opens.
type SessionConfig struct {
	TickInterval    time.Duration
	GenerateTimeout time.Duration
	// NewPlayer defaults to a remote player publishing over SSE.
	NewPlayer PlayerFactory
	Clock     clock.Clock
}

// OpenInput describes a session to open.
type OpenInput struct {
	DocumentID  string
	Preferences []string
	StartPaused bool
}

// SessionService is the registry of live reading sessions. Each session
// owns one chaptersync.Controller.
type SessionService struct {
	docs        store.Documents
	checkpoints chaptersync.CheckpointStore
	generator   chaptersync.TrackGenerator
	events      SessionPublisher
	cfg         SessionConfig
	logger      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*liveSession
}

type liveSession struct {
	id         string
	documentID string
	ctrl       *chaptersync.Controller
	openedAt   time.Time
}

// NewSessionService creates a session registry. generator may be nil, in
// which case every session plays precomputed chapter tracks.
func NewSessionService(
	docs store.Documents,
	checkpoints chaptersync.CheckpointStore,
	generator chaptersync.TrackGenerator,
	events SessionPublisher,
	cfg SessionConfig,
	logger *slog.Logger,
) *SessionService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if events == nil {
		events = discardPublisher{}
	}
	if cfg.NewPlayer == nil {
		cfg.NewPlayer = func(sessionID string) chaptersync.Player {
			return audio.NewRemotePlayer(sessionID, events)
		}
	}
	return &SessionService{
		docs:        docs,
		checkpoints: checkpoints,
		generator:   generator,
		events:      events,
		cfg:         cfg,
		logger:      logger,
		sessions:    make(map[string]*liveSession),
	}
}

// Open starts a reading session: the document's chapters are loaded, the
// last checkpoint restored and the checkpoint timer started.
func (s *SessionService) Open(ctx context.Context, in OpenInput) (chaptersync.Snapshot, error) {
	doc, err := s.docs.GetDocument(ctx, in.DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return chaptersync.Snapshot{}, errors.NotFoundf("document %s not found", in.DocumentID)
		}
		return chaptersync.Snapshot{}, errors.ChapterListUnavailable(in.DocumentID, err)
	}

	sessionID, err := id.Generate(id.PrefixSession)
	if err != nil {
		return chaptersync.Snapshot{}, err
	}

	prefs := domain.NormalizePreferences(in.Preferences)
	var generator chaptersync.TrackGenerator
	if prefs.Enabled() && s.generator != nil {
		generator = s.generator
	}

	ctrl := chaptersync.New(chaptersync.Options{
		SessionID:       sessionID,
		DocumentID:      doc.ID,
		Kind:            doc.Kind.PositionKind(),
		Player:          s.cfg.NewPlayer(sessionID),
		Checkpoints:     s.checkpoints,
		Documents:       s.docs,
		Generator:       generator,
		Preferences:     prefs,
		Events:          &sessionSink{sessionID: sessionID, pub: s.events},
		StartPaused:     in.StartPaused,
		GenerateTimeout: s.cfg.GenerateTimeout,
		TickInterval:    s.cfg.TickInterval,
		Clock:           s.cfg.Clock,
		Logger:          s.logger,
	})

	restored := ctrl.Restore(ctx)
	if err := ctrl.LoadDocument(ctx); err != nil {
		if !errors.CodeOf(err).Recoverable() {
			_ = ctrl.Terminate(context.WithoutCancel(ctx))
			return chaptersync.Snapshot{}, err
		}
		// A chapter without music still leaves a readable session.
		s.logger.Warn("session opened without a track", "session_id", sessionID, "error", err)
	}
	ctrl.Start()

	s.mu.Lock()
	s.sessions[sessionID] = &liveSession{
		id:         sessionID,
		documentID: doc.ID,
		ctrl:       ctrl,
		openedAt:   time.Now(),
	}
	s.mu.Unlock()

	s.logger.Info("session opened",
		"session_id", sessionID,
		"document_id", doc.ID,
		"restored", restored != nil,
		"personalized", generator != nil,
	)
	return ctrl.Snapshot(), nil
}

func (s *SessionService) lookup(sessionID string) (*chaptersync.Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errors.NotFoundf("session %s not found", sessionID)
	}
	return sess.ctrl, nil
}

// Exists reports whether sessionID is live.
func (s *SessionService) Exists(sessionID string) bool {
	_, err := s.lookup(sessionID)
	return err == nil
}

// Get returns a session's snapshot.
func (s *SessionService) Get(sessionID string) (chaptersync.Snapshot, error) {
	ctrl, err := s.lookup(sessionID)
	if err != nil {
		return chaptersync.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// List returns snapshots of every live session, oldest first.
func (s *SessionService) List() []chaptersync.Snapshot {
	s.mu.RLock()
	sessions := lo.Values(s.sessions)
	s.mu.RUnlock()

	slices.SortFunc(sessions, func(a, b *liveSession) int {
		return a.openedAt.Compare(b.openedAt)
	})
	return lo.Map(sessions, func(sess *liveSession, _ int) chaptersync.Snapshot {
		return sess.ctrl.Snapshot()
	})
}

// apply runs op against a session and returns the resulting snapshot. A
// recoverable error such as a failed track switch is returned alongside
// a valid snapshot.
func (s *SessionService) apply(sessionID string, op func(*chaptersync.Controller) error) (chaptersync.Snapshot, error) {
	ctrl, err := s.lookup(sessionID)
	if err != nil {
		return chaptersync.Snapshot{}, err
	}
	err = op(ctrl)
	return ctrl.Snapshot(), err
}

// SetPosition moves a session's reader.
func (s *SessionService) SetPosition(sessionID string, pos domain.ReadingPosition) (chaptersync.Snapshot, error) {
	return s.apply(sessionID, func(c *chaptersync.Controller) error {
		return c.SetPosition(pos)
	})
}

// NextPage advances a session one page or chapter.
func (s *SessionService) NextPage(sessionID string) (chaptersync.Snapshot, error) {
	return s.apply(sessionID, (*chaptersync.Controller).NextPage)
}

// PrevPage steps a session back one page or chapter.
func (s *SessionService) PrevPage(sessionID string) (chaptersync.Snapshot, error) {
	return s.apply(sessionID, (*chaptersync.Controller).PrevPage)
}

// TogglePlayback flips a session between playing and paused.
func (s *SessionService) TogglePlayback(sessionID string) (chaptersync.Snapshot, error) {
	return s.apply(sessionID, func(c *chaptersync.Controller) error {
		_, err := c.TogglePlayback()
		return err
	})
}

// JumpToChapter moves a session to the start of a chapter.
func (s *SessionService) JumpToChapter(sessionID string, index int) (chaptersync.Snapshot, error) {
	return s.apply(sessionID, func(c *chaptersync.Controller) error {
		return c.JumpToChapter(index)
	})
}

// PlayChapter plays a chapter's track without moving the reader.
func (s *SessionService) PlayChapter(sessionID string, index int) (chaptersync.Snapshot, error) {
	return s.apply(sessionID, func(c *chaptersync.Controller) error {
		return c.PlayChapter(index)
	})
}

// Close terminates a session and writes its final checkpoint.
func (s *SessionService) Close(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return errors.NotFoundf("session %s not found", sessionID)
	}

	if err := sess.ctrl.Terminate(ctx); err != nil {
		s.logger.Warn("final checkpoint failed", "session_id", sessionID, "error", err)
		return err
	}
	s.logger.Info("session closed",
		"session_id", sessionID,
		"document_id", sess.documentID,
		"duration", time.Since(sess.openedAt).Round(time.Second),
	)
	return nil
}

// DocumentChaptersChanged pushes a new chapter list to every session
// reading doc.
func (s *SessionService) DocumentChaptersChanged(doc *domain.Document) {
	s.mu.RLock()
	readers := lo.Filter(lo.Values(s.sessions), func(sess *liveSession, _ int) bool {
		return sess.documentID == doc.ID
	})
	s.mu.RUnlock()

	for _, sess := range readers {
		if err := sess.ctrl.LoadChapters(doc.Chapters); err != nil {
			s.logger.Warn("failed to reload chapters",
				"session_id", sess.id,
				"document_id", doc.ID,
				"error", err,
			)
		}
	}
}

// Count returns the number of live sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown terminates every session.
func (s *SessionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sessions := lo.Values(s.sessions)
	clear(s.sessions)
	s.mu.Unlock()

	var errs []error
	for _, sess := range sessions {
		if err := sess.ctrl.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", sess.id, err))
		}
	}
	if len(sessions) > 0 {
		s.logger.Info("sessions terminated", "count", len(sessions))
	}
	return errors.Join(errs...)
}

type discardPublisher struct{}

func (discardPublisher) Emit(sse.Event)                  {}
func (discardPublisher) EmitToSession(string, sse.Event) {}

// sessionSink forwards controller events to SSE subscribers. Emit on the
// publisher never blocks.
type sessionSink struct {
	sessionID string
	pub       SessionPublisher
}

func (k *sessionSink) Emit(evt chaptersync.Event) {
	switch evt.Type {
	case chaptersync.EventTrackChanged:
		k.pub.EmitToSession(k.sessionID, sse.NewTrackEvent(sse.EventTrackChanged, k.sessionID, sse.TrackEventData{
			DocumentID:   evt.DocumentID,
			ChapterIndex: evt.ChapterIndex,
			TrackURL:     evt.TrackURL,
		}))
	case chaptersync.EventTrackFailed:
		data := sse.TrackEventData{DocumentID: evt.DocumentID, ChapterIndex: evt.ChapterIndex}
		if evt.Err != nil {
			data.Error = evt.Err.Error()
		}
		k.pub.EmitToSession(k.sessionID, sse.NewTrackEvent(sse.EventTrackFailed, k.sessionID, data))
	case chaptersync.EventCheckpointSaved:
		k.pub.EmitToSession(k.sessionID, sse.NewCheckpointSavedEvent(k.sessionID, evt.Checkpoint))
	case chaptersync.EventTerminated:
		k.pub.EmitToSession(k.sessionID, sse.NewSessionTerminatedEvent(k.sessionID))
	}
}
