//go:build !((linux && cgo) || windows || darwin)

package audio

import (
	"context"
	"errors"
	"time"
)

// LocalAvailable indicates whether speaker output is supported in this build.
// Speaker output requires cgo for the native sound libraries.
const LocalAvailable = false

// ErrLocalUnavailable is returned by Load in builds without speaker support.
var ErrLocalUnavailable = errors.New("audio: speaker output requires cgo")

// LocalPlayer is a no-op player for builds without cgo. Sessions still
// resolve tracks; nothing is heard.
type LocalPlayer struct{}

// NewLocalPlayer creates a no-op player.
func NewLocalPlayer(*Fetcher) *LocalPlayer {
	return &LocalPlayer{}
}

// Load always fails without speaker support.
func (p *LocalPlayer) Load(context.Context, string) error {
	return ErrLocalUnavailable
}

func (p *LocalPlayer) Play() error  { return nil }
func (p *LocalPlayer) Pause() error { return nil }
func (p *LocalPlayer) Stop() error  { return nil }

// CurrentURL returns "" since nothing is ever loaded.
func (p *LocalPlayer) CurrentURL() string { return "" }

// Position returns 0 when cgo is disabled.
func (p *LocalPlayer) Position() time.Duration { return 0 }
