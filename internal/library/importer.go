package library

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pagetune/pagetune-server/internal/chapters"
	"github.com/pagetune/pagetune-server/internal/domain"
	"github.com/pagetune/pagetune-server/internal/errors"
	"github.com/pagetune/pagetune-server/internal/watcher"
)

// Sink receives documents imported from manifests.
type Sink interface {
	// UpsertDocument creates the document, or replaces the chapters and
	// page count of an existing one with the same ID.
	UpsertDocument(ctx context.Context, doc *domain.Document) (*domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Importer imports every manifest under a directory and keeps the
// bookshelf in step as manifests change.
type Importer struct {
	dir    string
	sink   Sink
	logger *slog.Logger
	opts   watcher.Options

	mu  sync.Mutex
	ids map[string]string // manifest path -> document ID

	watcher *watcher.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewImporter creates an importer for dir. Watch options default to
// JSON files only.
func NewImporter(dir string, sink Sink, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Importer{
		dir:    filepath.Clean(dir),
		sink:   sink,
		logger: logger.With("component", "library"),
		opts:   watcher.Options{Extensions: []string{".json"}},
		ids:    make(map[string]string),
	}
}

// ScanAll imports every manifest under the directory. Bad manifests are
// logged and skipped. It returns the number imported.
func (im *Importer) ScanAll(ctx context.Context) (int, error) {
	imported := 0
	err := filepath.WalkDir(im.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			im.logger.Warn("failed to access path", "path", path, "error", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		hidden := strings.HasPrefix(d.Name(), ".") && path != im.dir
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}

		if err := im.ImportFile(ctx, path); err != nil {
			im.logger.Warn("skipping manifest", "path", path, "error", err)
			return nil
		}
		imported++
		return nil
	})
	if err != nil {
		return imported, err
	}

	im.logger.Info("library scan complete", "dir", im.dir, "imported", imported)
	return imported, nil
}

// ImportFile reads the manifest at path and upserts its document.
func (im *Importer) ImportFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := ParseManifest(f)
	if err != nil {
		return err
	}
	doc, err := m.ToDocument(path, time.Now().UTC())
	if err != nil {
		return err
	}

	saved, err := im.sink.UpsertDocument(ctx, doc)
	if err != nil {
		return err
	}

	im.mu.Lock()
	im.ids[filepath.Clean(path)] = saved.ID
	im.mu.Unlock()

	im.logger.Debug("manifest imported",
		"path", path,
		"document_id", saved.ID,
		"chapters", len(saved.Chapters),
	)
	if a := chapters.AnalyzeChapters(saved.Chapters); a.NeedsUpdate {
		im.logger.Warn("manifest chapters are mostly placeholders",
			"path", path,
			"document_id", saved.ID,
			"generic", a.GenericCount,
			"total", a.Total,
		)
	}
	return nil
}

// Remove deletes the document imported from the manifest at path.
func (im *Importer) Remove(ctx context.Context, path string) error {
	path = filepath.Clean(path)

	im.mu.Lock()
	docID, ok := im.ids[path]
	delete(im.ids, path)
	im.mu.Unlock()
	if !ok {
		docID = DocumentIDForPath(path)
	}

	if err := im.sink.DeleteDocument(ctx, docID); err != nil && !errors.Is(err, errors.ErrNotFound) {
		return err
	}
	im.logger.Info("manifest removed", "path", path, "document_id", docID)
	return nil
}

// Start scans the directory, then watches it until Stop.
func (im *Importer) Start(ctx context.Context) error {
	if _, err := os.Stat(im.dir); err != nil {
		return err
	}

	w, err := watcher.New(im.logger, im.opts)
	if err != nil {
		return err
	}
	if err := w.Watch(im.dir); err != nil {
		_ = w.Stop()
		return err
	}

	if _, err := im.ScanAll(ctx); err != nil {
		_ = w.Stop()
		return err
	}
	im.mu.Lock()
	for path := range im.ids {
		w.MarkKnown(path)
	}
	im.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	im.watcher = w
	im.cancel = cancel

	im.wg.Add(2)
	go func() {
		defer im.wg.Done()
		_ = w.Start(ctx)
	}()
	go func() {
		defer im.wg.Done()
		im.run(ctx)
	}()
	return nil
}

func (im *Importer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-im.watcher.Errors():
			im.logger.Warn("watch error", "error", err)
		case event := <-im.watcher.Events():
			im.handle(ctx, event)
		}
	}
}

func (im *Importer) handle(ctx context.Context, event watcher.Event) {
	var err error
	switch event.Type {
	case watcher.EventAdded, watcher.EventModified:
		err = im.ImportFile(ctx, event.Path)
	case watcher.EventRemoved:
		err = im.Remove(ctx, event.Path)
	}
	if err != nil {
		im.logger.Warn("manifest change not applied",
			"path", event.Path,
			"event", event.Type.String(),
			"error", err,
		)
	}
}

// Stop stops watching. It is safe to call before Start.
func (im *Importer) Stop() error {
	if im.cancel == nil {
		return nil
	}
	im.cancel()
	err := im.watcher.Stop()
	im.wg.Wait()
	return err
}
