package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/pagetune/pagetune-server/internal/chaptersync"
	"github.com/pagetune/pagetune-server/internal/config"
	"github.com/pagetune/pagetune-server/internal/logger"
	"github.com/pagetune/pagetune-server/internal/service"
)

// ProvideDocumentService provides the bookshelf service.
func ProvideDocumentService(i do.Injector) (*service.DocumentService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	musicHandle := do.MustInvoke[*MusicClientHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	var tracks service.TrackForgetter
	if musicHandle.Client != nil {
		tracks = musicHandle.Client
	}

	return service.NewDocumentService(storeHandle.Store, indexHandle.SearchIndex, tracks, sseHandle.Manager, log.Logger), nil
}

// SessionServiceHandle wraps the session registry so shutdown closes every
// session and writes its final checkpoint.
type SessionServiceHandle struct {
	*service.SessionService
}

// Shutdown implements do.Shutdownable.
func (h *SessionServiceHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.SessionService.Shutdown(ctx)
}

// ProvideSessionService provides the reading session registry.
func ProvideSessionService(i do.Injector) (*SessionServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	checkpoints := do.MustInvoke[*CheckpointStoreHandle](i)
	musicHandle := do.MustInvoke[*MusicClientHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	docs := do.MustInvoke[*service.DocumentService](i)
	log := do.MustInvoke[*logger.Logger](i)

	var generator chaptersync.TrackGenerator
	if musicHandle.Client != nil {
		generator = musicHandle.Client
	}

	sessions := service.NewSessionService(
		storeHandle.Store,
		checkpoints.CheckpointStore,
		generator,
		sseHandle.Manager,
		service.SessionConfig{
			TickInterval:    cfg.Checkpoint.Interval,
			GenerateTimeout: cfg.Music.Timeout,
		},
		log.Logger,
	)

	// Open sessions reload chapters when a document's list is replaced.
	docs.SetChapterListener(sessions)

	return &SessionServiceHandle{SessionService: sessions}, nil
}
