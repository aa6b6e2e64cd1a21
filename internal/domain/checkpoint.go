package domain

import "time"

// ProgressCheckpoint is the durable snapshot used to resume a document.
// It is replaced whole on every write, never merged field by field.
type ProgressCheckpoint struct {
	DocumentID         string          `json:"document_id"`
	Position           ReadingPosition `json:"position"`
	Percentage         float64         `json:"percentage"`
	AccumulatedMinutes int             `json:"accumulated_minutes"`
	LastSavedAt        time.Time       `json:"last_saved_at"`
}

// PlaybackState is the music side of a reading session.
type PlaybackState struct {
	ActiveTrackURL string `json:"active_track_url,omitempty"`
	IsPlaying      bool   `json:"is_playing"`
	IsLoadingTrack bool   `json:"is_loading_track"`
}

// HasTrack reports whether a track is resident.
func (s PlaybackState) HasTrack() bool {
	return s.ActiveTrackURL != ""
}

// SessionState is the lifecycle state of a chapter sync session.
type SessionState string

// Session states.
const (
	StateIdle           SessionState = "idle"
	StateLoaded         SessionState = "loaded"
	StateTrackSwitching SessionState = "track_switching"
	StatePlaying        SessionState = "playing"
	StatePaused         SessionState = "paused"
	StateTerminated     SessionState = "terminated"
)

func (s SessionState) String() string {
	return string(s)
}
