package chaptersync

import (
	"context"

	"github.com/pagetune/pagetune-server/internal/domain"
)

// DocumentStore reads a document and its chapter markers.
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
}

// TrackRequest asks the generation service for one chapter's music.
type TrackRequest struct {
	DocumentID   string
	ChapterIndex int
	ChapterTitle string
	Preferences  domain.MusicPreferences
}

// TrackGenerator produces a personalized track URL for a chapter.
type TrackGenerator interface {
	GenerateTrack(ctx context.Context, req TrackRequest) (string, error)
}

// CheckpointStore persists progress checkpoints keyed by document ID.
// GetCheckpoint returns (nil, nil) when the document has none.
type CheckpointStore interface {
	GetCheckpoint(ctx context.Context, documentID string) (*domain.ProgressCheckpoint, error)
	PutCheckpoint(ctx context.Context, cp *domain.ProgressCheckpoint) error
}

// Player is the audio output a session drives. Play and Pause must be safe
// to call repeatedly.
type Player interface {
	Load(ctx context.Context, url string) error
	Play() error
	Pause() error
	Stop() error
	CurrentURL() string
}

// EventSink receives session events. Emit is called with the controller
// lock held, so it must not block or call back into the controller.
type EventSink interface {
	Emit(Event)
}
