package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

// maxTrackBytes bounds how much of a track is read into memory.
const maxTrackBytes = 64 << 20

// ErrUnsupportedFormat is returned for tracks that are neither MP3 nor WAV.
var ErrUnsupportedFormat = errors.New("audio: unsupported track format")

// Format is a decodable track container.
type Format string

// Supported formats.
const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
)

// FormatOf guesses the format from a URL's extension. Extensionless URLs
// are assumed to be MP3, which is what the generation service returns.
func FormatOf(rawURL string) (Format, error) {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ".mp3", "":
		return FormatMP3, nil
	case ".wav":
		return FormatWAV, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// Fetcher reads track bytes from http(s) URLs, file URLs, or local paths.
type Fetcher struct {
	http *http.Client
}

// NewFetcher creates a Fetcher with the given request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{http: &http.Client{Timeout: timeout}}
}

// Fetch returns the whole track.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse track url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, rawURL)
	case "file":
		return readFile(u.Path)
	case "":
		return readFile(rawURL)
	default:
		return nil, fmt.Errorf("audio: unsupported url scheme %q", u.Scheme)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "PageTune/1.0")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch track: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch track: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxTrackBytes))
}

func readFile(p string) ([]byte, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxTrackBytes {
		return nil, fmt.Errorf("audio: track %s too large (%d bytes)", p, fi.Size())
	}
	return os.ReadFile(p)
}
