package chaptersync

import "github.com/pagetune/pagetune-server/internal/domain"

// EventType identifies a session event.
type EventType string

// Session events.
const (
	EventTrackChanged    EventType = "track.changed"
	EventTrackFailed     EventType = "track.failed"
	EventCheckpointSaved EventType = "checkpoint.saved"
	EventTerminated      EventType = "session.terminated"
)

// Event is emitted when a session's track or checkpoint changes.
type Event struct {
	Type         EventType
	SessionID    string
	DocumentID   string
	ChapterIndex int
	TrackURL     string
	Err          error
	Checkpoint   *domain.ProgressCheckpoint
}

type discardSink struct{}

func (discardSink) Emit(Event) {}
