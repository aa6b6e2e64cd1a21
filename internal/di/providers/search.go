package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/pagetune/pagetune-server/internal/config"
	"github.com/pagetune/pagetune-server/internal/logger"
	"github.com/pagetune/pagetune-server/internal/search"
	"github.com/pagetune/pagetune-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Data.BasePath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// TriggerSearchReindexIfNeeded rebuilds an empty index when the shelf has
// documents, e.g. after a mapping change discarded the old index.
// Should be called after all services are wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	docs := do.MustInvoke[*service.DocumentService](i)
	log := do.MustInvoke[*logger.Logger](i)

	if n, _ := indexHandle.DocumentCount(); n > 0 {
		return
	}

	ctx := context.Background()
	all, err := storeHandle.ListAllDocuments(ctx)
	if err != nil || len(all) == 0 {
		return
	}

	log.Info("Search index is empty but documents exist, triggering reindex", "document_count", len(all))

	go func() {
		if err := docs.RebuildIndex(ctx); err != nil {
			log.Error("Search reindex failed", "error", err)
			return
		}
		log.Info("Search reindex complete")
	}()
}
