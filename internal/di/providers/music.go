package providers

import (
	"github.com/samber/do/v2"

	"github.com/pagetune/pagetune-server/internal/config"
	"github.com/pagetune/pagetune-server/internal/logger"
	"github.com/pagetune/pagetune-server/internal/music"
)

// MusicClientHandle wraps the generation client. Client is nil when no
// service URL is configured.
type MusicClientHandle struct {
	*music.Client
}

// Shutdown implements do.Shutdownable.
func (h *MusicClientHandle) Shutdown() error {
	if h.Client != nil {
		h.Close()
	}
	return nil
}

// ProvideMusicClient provides the music generation client.
func ProvideMusicClient(i do.Injector) (*MusicClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Music.ServiceURL == "" {
		log.Info("Music generation disabled, sessions play precomputed chapter tracks")
		return &MusicClientHandle{}, nil
	}

	client, err := music.New(music.Config{
		BaseURL:   cfg.Music.ServiceURL,
		Timeout:   cfg.Music.Timeout,
		RPS:       cfg.Music.RPS,
		Burst:     cfg.Music.Burst,
		CacheSize: cfg.Music.CacheSize,
	}, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Music generation client initialized", "url", cfg.Music.ServiceURL)
	return &MusicClientHandle{Client: client}, nil
}
