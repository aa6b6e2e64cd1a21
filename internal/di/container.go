// Package di provides dependency injection configuration for the PageTune server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/pagetune/pagetune-server/internal/config"
	"github.com/pagetune/pagetune-server/internal/di/providers"
	"github.com/pagetune/pagetune-server/internal/logger"
	"github.com/pagetune/pagetune-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideCheckpointStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// External services
	do.Provide(injector, providers.ProvideMusicClient)

	// Business services
	do.Provide(injector, providers.ProvideDocumentService)
	do.Provide(injector, providers.ProvideSessionService)

	// Workers
	do.Provide(injector, providers.ProvideLibraryImporter)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)
	do.Provide(injector, providers.ProvideMDNSService)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.CheckpointStoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*providers.MusicClientHandle](injector)

	// Business services
	_ = do.MustInvoke[*service.DocumentService](injector)
	_ = do.MustInvoke[*providers.SessionServiceHandle](injector)

	// Workers
	_ = do.MustInvoke[*providers.LibraryImporterHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)
	_ = do.MustInvoke[*providers.MDNSServiceHandle](injector)

	// Trigger search reindex if needed
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
