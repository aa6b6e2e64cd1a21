package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/pagetune/pagetune-server/internal/chaptersync"
	"github.com/pagetune/pagetune-server/internal/config"
	"github.com/pagetune/pagetune-server/internal/logger"
	"github.com/pagetune/pagetune-server/internal/sse"
	"github.com/pagetune/pagetune-server/internal/store/kv"
	"github.com/pagetune/pagetune-server/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Manager.Shutdown(ctx)
	h.cancel()
	return err
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the SQLite store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the document database.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := sqlite.Open(cfg.DatabasePath(), log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", cfg.DatabasePath())
	return &StoreHandle{Store: db}, nil
}

// CheckpointStoreHandle is the configured progress checkpoint backend.
type CheckpointStoreHandle struct {
	chaptersync.CheckpointStore
	// kv is set when checkpoints live in their own badger database.
	kv *kv.Store
}

// Shutdown implements do.Shutdownable. The SQLite backend shares the
// document store and is closed with it.
func (h *CheckpointStoreHandle) Shutdown() error {
	if h.kv != nil {
		return h.kv.Close()
	}
	return nil
}

// ProvideCheckpointStore provides the checkpoint store selected by config.
func ProvideCheckpointStore(i do.Injector) (*CheckpointStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Checkpoint.Backend == config.BackendBadger {
		db, err := kv.Open(cfg.CheckpointKVPath(), log.Logger, kv.Options{})
		if err != nil {
			return nil, err
		}
		log.Info("Checkpoint store initialized", "backend", "badger", "path", cfg.CheckpointKVPath())
		return &CheckpointStoreHandle{CheckpointStore: db, kv: db}, nil
	}

	storeHandle := do.MustInvoke[*StoreHandle](i)
	log.Info("Checkpoint store initialized", "backend", "sqlite")
	return &CheckpointStoreHandle{CheckpointStore: storeHandle.Store}, nil
}
