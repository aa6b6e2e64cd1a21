package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/pagetune/pagetune-server/internal/config"
	"github.com/pagetune/pagetune-server/internal/library"
	"github.com/pagetune/pagetune-server/internal/logger"
	"github.com/pagetune/pagetune-server/internal/service"
)

// LibraryImporterHandle wraps the manifest importer. Importer is nil when
// no manifest directory is configured.
type LibraryImporterHandle struct {
	*library.Importer
}

// Shutdown implements do.Shutdownable.
func (h *LibraryImporterHandle) Shutdown() error {
	if h.Importer == nil {
		return nil
	}
	return h.Stop()
}

// ProvideLibraryImporter provides the manifest importer and starts watching.
func ProvideLibraryImporter(i do.Injector) (*LibraryImporterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Library.ManifestPath == "" {
		log.Info("No manifest path configured, library import disabled")
		return &LibraryImporterHandle{}, nil
	}

	docs := do.MustInvoke[*service.DocumentService](i)
	// Sessions must exist before imports so chapter reloads reach them.
	_ = do.MustInvoke[*SessionServiceHandle](i)

	importer := library.NewImporter(cfg.Library.ManifestPath, docs, log.Logger)
	if err := importer.Start(context.Background()); err != nil {
		// Non-fatal: the API still serves documents registered over HTTP.
		log.Warn("Library importer unavailable", "path", cfg.Library.ManifestPath, "error", err)
		return &LibraryImporterHandle{}, nil
	}

	log.Info("Library importer watching", "path", cfg.Library.ManifestPath)
	return &LibraryImporterHandle{Importer: importer}, nil
}
