// Package sse implements Server-Sent Events for reading sessions: music
// commands for the browser player and progress notifications.
package sse

import (
	"time"

	"github.com/pagetune/pagetune-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventTrackChanged is sent when a chapter's track became active.
	EventTrackChanged EventType = "track.changed"
	// EventTrackFailed is sent when a chapter's track could not be resolved.
	EventTrackFailed EventType = "track.failed"
	// EventCheckpointSaved is sent after progress was persisted.
	EventCheckpointSaved EventType = "checkpoint.saved"
	// EventSessionTerminated is the last event of a session.
	EventSessionTerminated EventType = "session.terminated"

	// Player commands for the remote audio element.
	EventPlayerLoad  EventType = "player.load"
	EventPlayerPlay  EventType = "player.play"
	EventPlayerPause EventType = "player.pause"
	EventPlayerStop  EventType = "player.stop"

	// EventDocumentCreated is broadcast when a document joins the shelf.
	EventDocumentCreated EventType = "document.created"
	// EventDocumentUpdated is broadcast when a document's chapters change.
	EventDocumentUpdated EventType = "document.updated"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Type      EventType `json:"type"`

	// SessionID scopes the event to one reading session's subscribers.
	// Empty means broadcast to all.
	SessionID string `json:"session_id,omitempty"`
}

// TrackEventData is the payload of track events.
type TrackEventData struct {
	DocumentID   string `json:"document_id"`
	ChapterIndex int    `json:"chapter_index"`
	TrackURL     string `json:"track_url,omitempty"`
	Error        string `json:"error,omitempty"`
}

// PlayerEventData is the payload of player commands.
type PlayerEventData struct {
	TrackURL string `json:"track_url,omitempty"`
}

// CheckpointEventData is the payload of checkpoint.saved.
type CheckpointEventData struct {
	Checkpoint *domain.ProgressCheckpoint `json:"checkpoint"`
}

// DocumentEventData is the payload of document events.
type DocumentEventData struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Chapters   int    `json:"chapters"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewTrackEvent creates a track.changed or track.failed event.
func NewTrackEvent(t EventType, sessionID string, data TrackEventData) Event {
	return Event{
		Type:      t,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewPlayerEvent creates a player command for one session.
func NewPlayerEvent(t EventType, sessionID, trackURL string) Event {
	return Event{
		Type:      t,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      PlayerEventData{TrackURL: trackURL},
	}
}

// NewCheckpointSavedEvent creates a checkpoint.saved event.
func NewCheckpointSavedEvent(sessionID string, cp *domain.ProgressCheckpoint) Event {
	return Event{
		Type:      EventCheckpointSaved,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      CheckpointEventData{Checkpoint: cp},
	}
}

// NewSessionTerminatedEvent creates the final event of a session.
func NewSessionTerminatedEvent(sessionID string) Event {
	return Event{
		Type:      EventSessionTerminated,
		SessionID: sessionID,
		Timestamp: time.Now(),
	}
}

// NewDocumentEvent creates a shelf-wide document event.
func NewDocumentEvent(t EventType, doc *domain.Document) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		Data: DocumentEventData{
			DocumentID: doc.ID,
			Title:      doc.Title,
			Chapters:   len(doc.Chapters),
		},
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Timestamp: now,
		Data: HeartbeatEventData{
			ServerTime: now,
		},
	}
}
