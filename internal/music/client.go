// Package music is the HTTP client for the AI music generation service.
package music

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pagetune/pagetune-server/internal/chaptersync"
	"github.com/pagetune/pagetune-server/internal/ratelimit"
)

const (
	// Per document: 1 request per second, burst of 3.
	defaultRPS   = 1.0
	defaultBurst = 3

	defaultTimeout   = 30 * time.Second
	defaultCacheSize = 256

	// Cap on response bodies we are willing to read.
	maxResponseBytes = 1 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RPS       float64
	Burst     int
	CacheSize int
}

// Client is a rate-limited, caching music generation client. It satisfies
// chaptersync.TrackGenerator.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	cache   *trackCache
	logger  *slog.Logger
}

var _ chaptersync.TrackGenerator = (*Client)(nil)

// New creates a music client. Zero config values take defaults.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("music: invalid service url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RPS <= 0 {
		cfg.RPS = defaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cache, err := newTrackCache(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("music: create cache: %w", err)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: ratelimit.New(cfg.RPS, cfg.Burst),
		cache:   cache,
		logger:  logger,
	}, nil
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

type generateRequest struct {
	DocumentID   string   `json:"document_id"`
	ChapterIndex int      `json:"chapter_index"`
	ChapterTitle string   `json:"chapter_title"`
	Preferences  []string `json:"preferences"`
}

type generateResponse struct {
	TrackURL string `json:"track_url"`
}

// GenerateTrack returns a track URL for the chapter, from the cache when
// the same chapter and preferences were generated before.
func (c *Client) GenerateTrack(ctx context.Context, req chaptersync.TrackRequest) (string, error) {
	if trackURL, ok := c.cache.get(req); ok {
		c.logger.Debug("music cache hit",
			"document_id", req.DocumentID,
			"chapter_index", req.ChapterIndex,
		)
		return trackURL, nil
	}

	payload, err := json.Marshal(generateRequest{
		DocumentID:   req.DocumentID,
		ChapterIndex: req.ChapterIndex,
		ChapterTitle: req.ChapterTitle,
		Preferences:  []string(req.Preferences),
	})
	if err != nil {
		return "", wrapError("generate", req.DocumentID, req.ChapterIndex, err)
	}

	body, err := c.doRequest(ctx, req.DocumentID, "/generate", payload)
	if err != nil {
		return "", wrapError("generate", req.DocumentID, req.ChapterIndex, err)
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", wrapError("generate", req.DocumentID, req.ChapterIndex, fmt.Errorf("parse response: %w", err))
	}
	if resp.TrackURL == "" {
		return "", wrapError("generate", req.DocumentID, req.ChapterIndex, ErrEmptyTrack)
	}

	c.cache.add(req, resp.TrackURL)
	return resp.TrackURL, nil
}

// ForgetDocument drops cached tracks for a document.
func (c *Client) ForgetDocument(documentID string) {
	if n := c.cache.purgeDocument(documentID); n > 0 {
		c.logger.Debug("music cache purged", "document_id", documentID, "entries", n)
	}
}

// doRequest POSTs payload to path, rate limited per document.
func (c *Client) doRequest(ctx context.Context, documentID, path string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx, documentID); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "PageTune/1.0")

	c.logger.Debug("music request", "path", path, "document_id", documentID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return body, nil
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return nil, ErrBadRequest
	default:
		if resp.StatusCode >= 500 {
			return nil, ErrServer
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}
