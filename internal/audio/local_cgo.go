//go:build (linux && cgo) || windows || darwin

package audio

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

// LocalAvailable indicates whether speaker output is supported in this build.
const LocalAvailable = true

// speakerRate is the fixed output rate; tracks are resampled to it.
const speakerRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(speakerRate, speakerRate.N(time.Second/10))
	})
	return speakerErr
}

// LocalPlayer plays tracks on the machine's speaker.
type LocalPlayer struct {
	fetch *Fetcher

	mu       sync.Mutex
	url      string
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
}

// NewLocalPlayer creates a speaker player that fetches tracks with f.
func NewLocalPlayer(f *Fetcher) *LocalPlayer {
	return &LocalPlayer{fetch: f}
}

// Load fetches and decodes url, replacing the current track. The new
// track starts paused.
func (p *LocalPlayer) Load(ctx context.Context, url string) error {
	format, err := FormatOf(url)
	if err != nil {
		return err
	}
	data, err := p.fetch.Fetch(ctx, url)
	if err != nil {
		return err
	}

	var (
		streamer beep.StreamSeekCloser
		fmtInfo  beep.Format
	)
	switch format {
	case FormatWAV:
		streamer, fmtInfo, err = wav.Decode(bytes.NewReader(data))
	default:
		streamer, fmtInfo, err = mp3.Decode(nopCloser{bytes.NewReader(data)})
	}
	if err != nil {
		return err
	}

	if err := initSpeaker(); err != nil {
		streamer.Close()
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.url = url
	p.streamer = streamer
	p.format = fmtInfo
	p.ctrl = &beep.Ctrl{
		Streamer: beep.Resample(4, fmtInfo.SampleRate, speakerRate, streamer),
		Paused:   true,
	}
	speaker.Play(p.ctrl)
	return nil
}

// Play resumes the loaded track.
func (p *LocalPlayer) Play() error {
	p.setPaused(false)
	return nil
}

// Pause pauses the loaded track.
func (p *LocalPlayer) Pause() error {
	p.setPaused(true)
	return nil
}

// Stop halts playback and releases the track.
func (p *LocalPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

// CurrentURL returns the loaded track's URL.
func (p *LocalPlayer) CurrentURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Position returns how far into the track playback is.
func (p *LocalPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := p.streamer.Position()
	speaker.Unlock()
	return p.format.SampleRate.D(pos)
}

func (p *LocalPlayer) setPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctrl == nil {
		return
	}
	speaker.Lock()
	p.ctrl.Paused = paused
	speaker.Unlock()
}

// stopLocked stops playback (must be called with mu held).
func (p *LocalPlayer) stopLocked() {
	if p.ctrl != nil {
		speaker.Lock()
		p.ctrl.Paused = true
		p.ctrl.Streamer = nil
		speaker.Unlock()
	}
	if p.streamer != nil {
		p.streamer.Close()
		p.streamer = nil
	}
	p.ctrl = nil
	p.url = ""
}

// nopCloser wraps a bytes.Reader to implement io.ReadCloser.
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
