// Package service provides the business logic layer: the bookshelf and the
// registry of live reading sessions.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/pagetune/pagetune-server/internal/domain"
	"github.com/pagetune/pagetune-server/internal/errors"
	"github.com/pagetune/pagetune-server/internal/id"
	"github.com/pagetune/pagetune-server/internal/search"
	"github.com/pagetune/pagetune-server/internal/sse"
	"github.com/pagetune/pagetune-server/internal/store"
)

// TrackForgetter drops cached generated tracks for a document.
type TrackForgetter interface {
	ForgetDocument(documentID string)
}

// EventEmitter broadcasts shelf events.
type EventEmitter interface {
	Emit(sse.Event)
}

// ChapterListener is told when a document's chapter list changes.
// This is set after construction to avoid a cycle with SessionService.
type ChapterListener interface {
	DocumentChaptersChanged(doc *domain.Document)
}

// RegisterInput describes a document being added to the shelf.
type RegisterInput struct {
	Title  string
	Author string
	// FileName determines the document kind by extension.
	FileName   string
	FileURL    string
	TotalPages int
	Chapters   []domain.Chapter
}

// DocumentService orchestrates bookshelf operations.
type DocumentService struct {
	store    store.Documents
	index    *search.SearchIndex
	tracks   TrackForgetter
	events   EventEmitter
	listener ChapterListener
	logger   *slog.Logger
}

// NewDocumentService creates a new document service. index and tracks may
// be nil: search then falls back to scanning the shelf, and there is no
// generated-track cache to invalidate.
func NewDocumentService(docs store.Documents, index *search.SearchIndex, tracks TrackForgetter, events EventEmitter, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DocumentService{
		store:  docs,
		index:  index,
		tracks: tracks,
		events: events,
		logger: logger,
	}
}

// SetChapterListener sets the listener notified of chapter replacements.
func (s *DocumentService) SetChapterListener(l ChapterListener) {
	s.listener = l
}

// Register adds a document to the shelf.
func (s *DocumentService) Register(ctx context.Context, in RegisterInput) (*domain.Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errors.Validation("title is required")
	}
	kind, ok := domain.KindFromFilename(in.FileName)
	if !ok {
		return nil, errors.Validationf("unsupported file type %q", in.FileName)
	}
	if err := checkChapters(in.Chapters, in.TotalPages); err != nil {
		return nil, err
	}

	docID, err := id.Generate(id.PrefixDocument)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:         docID,
		Title:      title,
		Author:     strings.TrimSpace(in.Author),
		Kind:       kind,
		FileURL:    in.FileURL,
		TotalPages: in.TotalPages,
		Chapters:   append([]domain.Chapter{}, in.Chapters...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpsertDocument creates doc, or replaces the chapters and page count of
// the existing document with its ID.
func (s *DocumentService) UpsertDocument(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	if err := checkChapters(doc.Chapters, doc.TotalPages); err != nil {
		return nil, err
	}

	_, err := s.store.GetDocument(ctx, doc.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := s.create(ctx, doc); err != nil {
			return nil, err
		}
		return doc, nil
	case err != nil:
		return nil, fmt.Errorf("get document: %w", err)
	}
	return s.ReplaceChapters(ctx, doc.ID, doc.Chapters, doc.TotalPages)
}

func (s *DocumentService) create(ctx context.Context, doc *domain.Document) error {
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return errors.Conflict(fmt.Sprintf("document %s already exists", doc.ID))
		}
		return fmt.Errorf("create document: %w", err)
	}

	s.reindex(doc)
	s.emit(sse.NewDocumentEvent(sse.EventDocumentCreated, doc))
	s.logger.Info("document registered",
		"document_id", doc.ID,
		"title", doc.Title,
		"kind", doc.Kind,
		"chapters", len(doc.Chapters),
	)
	return nil
}

// GetDocument returns a document with its chapters.
func (s *DocumentService) GetDocument(ctx context.Context, docID string) (*domain.Document, error) {
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("document %s not found", docID)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns a page of the shelf, oldest first.
func (s *DocumentService) ListDocuments(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[*domain.Document], error) {
	params.Validate()
	return s.store.ListDocuments(ctx, params)
}

// Search finds documents by title, author or chapter title.
func (s *DocumentService) Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, errors.Validation("query is required")
	}
	if s.index != nil {
		return s.index.Search(ctx, params)
	}
	return s.scanSearch(ctx, params)
}

// scanSearch matches folded substrings when no index is configured.
func (s *DocumentService) scanSearch(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	start := time.Now()
	docs, err := s.store.ListAllDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	needle := search.Fold(params.Query)
	matched := lo.Filter(docs, func(d *domain.Document, _ int) bool {
		if len(params.Kinds) > 0 && !lo.Contains(params.Kinds, string(d.Kind)) {
			return false
		}
		return strings.Contains(search.Fold(d.Title), needle) ||
			strings.Contains(search.Fold(d.Author), needle)
	})

	if params.Limit <= 0 {
		params.Limit = search.DefaultSearchParams().Limit
	}
	params.Offset = max(params.Offset, 0)
	page := lo.Subset(matched, params.Offset, uint(params.Limit))

	return &search.SearchResult{
		Query:  params.Query,
		Total:  uint64(len(matched)),
		TookMs: time.Since(start).Milliseconds(),
		Hits: lo.Map(page, func(d *domain.Document, _ int) search.SearchHit {
			return search.SearchHit{ID: d.ID, Title: d.Title, Author: d.Author, Kind: string(d.Kind)}
		}),
	}, nil
}

// ReplaceChapters swaps a document's chapter list. Live sessions reading
// the document pick up the new list, and generated tracks for it are
// forgotten. A positive totalPages also updates the page count.
func (s *DocumentService) ReplaceChapters(ctx context.Context, docID string, chapters []domain.Chapter, totalPages int) (*domain.Document, error) {
	if err := checkChapters(chapters, totalPages); err != nil {
		return nil, err
	}

	doc, err := s.store.ReplaceChapters(ctx, docID, chapters, totalPages)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("document %s not found", docID)
		}
		return nil, fmt.Errorf("replace chapters: %w", err)
	}

	if s.tracks != nil {
		s.tracks.ForgetDocument(docID)
	}
	s.reindex(doc)
	if s.listener != nil {
		s.listener.DocumentChaptersChanged(doc)
	}
	s.emit(sse.NewDocumentEvent(sse.EventDocumentUpdated, doc))

	s.logger.Info("chapters replaced", "document_id", docID, "chapters", len(doc.Chapters))
	return doc, nil
}

// DeleteDocument removes a document from the shelf. Its progress
// checkpoint is kept.
func (s *DocumentService) DeleteDocument(ctx context.Context, docID string) error {
	if err := s.store.DeleteDocument(ctx, docID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFoundf("document %s not found", docID)
		}
		return fmt.Errorf("delete document: %w", err)
	}

	if s.tracks != nil {
		s.tracks.ForgetDocument(docID)
	}
	if s.index != nil {
		if err := s.index.DeleteDocument(docID); err != nil {
			s.logger.Warn("failed to remove document from index", "document_id", docID, "error", err)
		}
	}
	s.logger.Info("document deleted", "document_id", docID)
	return nil
}

// RebuildIndex re-indexes the whole shelf.
func (s *DocumentService) RebuildIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	docs, err := s.store.ListAllDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	return s.index.Rebuild(lo.Map(docs, func(d *domain.Document, _ int) *search.SearchDocument {
		return search.FromDocument(d)
	}))
}

func (s *DocumentService) reindex(doc *domain.Document) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexDocument(search.FromDocument(doc)); err != nil {
		s.logger.Warn("failed to index document", "document_id", doc.ID, "error", err)
	}
}

func (s *DocumentService) emit(evt sse.Event) {
	if s.events != nil {
		s.events.Emit(evt)
	}
}

// checkChapters rejects negative pages and chapters past the last page.
func checkChapters(chapters []domain.Chapter, totalPages int) error {
	if totalPages < 0 {
		return errors.Validation("total_pages must not be negative")
	}
	for i, ch := range chapters {
		if ch.Page < 0 {
			return errors.Validationf("chapter %d: page must not be negative", i)
		}
		if totalPages > 0 && ch.Page > totalPages {
			return errors.Validationf("chapter %d: page %d is past the last page %d", i, ch.Page, totalPages)
		}
	}
	return nil
}
