// Package audio provides the players a reading session drives: a remote
// player that commands the reader's browser over SSE, and a local speaker
// player for the command-line client.
package audio

import (
	"context"
	"sync"

	"github.com/pagetune/pagetune-server/internal/chaptersync"
	"github.com/pagetune/pagetune-server/internal/sse"
)

// Publisher delivers events to one session's subscribers.
type Publisher interface {
	EmitToSession(sessionID string, event sse.Event)
}

// RemotePlayer mirrors playback state and forwards every change as a
// player.* event. Repeated Play or Pause calls are not re-sent.
type RemotePlayer struct {
	sessionID string
	pub       Publisher

	mu      sync.Mutex
	url     string
	playing bool
}

var _ chaptersync.Player = (*RemotePlayer)(nil)

// NewRemotePlayer creates a player for one session.
func NewRemotePlayer(sessionID string, pub Publisher) *RemotePlayer {
	return &RemotePlayer{sessionID: sessionID, pub: pub}
}

// Load makes url the resident track, paused.
func (p *RemotePlayer) Load(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.url = url
	p.playing = false
	p.publish(sse.EventPlayerLoad)
	return nil
}

// Play starts the resident track. Without one it does nothing.
func (p *RemotePlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.url == "" || p.playing {
		return nil
	}
	p.playing = true
	p.publish(sse.EventPlayerPlay)
	return nil
}

// Pause pauses the resident track.
func (p *RemotePlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		return nil
	}
	p.playing = false
	p.publish(sse.EventPlayerPause)
	return nil
}

// Stop unloads the track.
func (p *RemotePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.url == "" {
		return nil
	}
	p.url = ""
	p.playing = false
	p.publish(sse.EventPlayerStop)
	return nil
}

// CurrentURL returns the resident track, or "".
func (p *RemotePlayer) CurrentURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Playing reports whether the browser was last told to play.
func (p *RemotePlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// publish must be called with mu held so events leave in state order.
func (p *RemotePlayer) publish(t sse.EventType) {
	p.pub.EmitToSession(p.sessionID, sse.NewPlayerEvent(t, p.sessionID, p.url))
}
