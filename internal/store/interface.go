// Package store defines the persistence boundaries of the PageTune server
// and the errors and pagination types shared by their backends.
package store

import (
	"context"

	"github.com/pagetune/pagetune-server/internal/domain"
)

// Documents persists bookshelf documents and their chapter markers.
// Chapters are stored sorted ascending by page.
type Documents interface {
	CreateDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context, params PaginationParams) (*PaginatedResult[*domain.Document], error)
	ListAllDocuments(ctx context.Context) ([]*domain.Document, error)
	ReplaceChapters(ctx context.Context, id string, chapters []domain.Chapter, totalPages int) (*domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Checkpoints persists one progress checkpoint per document. Each put
// replaces the whole record. GetCheckpoint returns (nil, nil) when the
// document has none.
type Checkpoints interface {
	GetCheckpoint(ctx context.Context, documentID string) (*domain.ProgressCheckpoint, error)
	PutCheckpoint(ctx context.Context, cp *domain.ProgressCheckpoint) error
	ListCheckpoints(ctx context.Context) ([]*domain.ProgressCheckpoint, error)
	Close() error
}
