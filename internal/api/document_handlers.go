package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/samber/lo"

	"github.com/pagetune/pagetune-server/internal/domain"
	"github.com/pagetune/pagetune-server/internal/search"
	"github.com/pagetune/pagetune-server/internal/service"
	"github.com/pagetune/pagetune-server/internal/store"
)

func (s *Server) registerDocumentRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createDocument",
		Method:        http.MethodPost,
		Path:          "/api/v1/documents",
		Summary:       "Add document",
		Description:   "Adds a document and its chapter markers to the shelf",
		Tags:          []string{"Documents"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateDocument)

	huma.Register(s.api, huma.Operation{
		OperationID: "listDocuments",
		Method:      http.MethodGet,
		Path:        "/api/v1/documents",
		Summary:     "List documents",
		Description: "Returns a page of documents, oldest first",
		Tags:        []string{"Documents"},
	}, s.handleListDocuments)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchDocuments",
		Method:      http.MethodGet,
		Path:        "/api/v1/documents/search",
		Summary:     "Search documents",
		Description: "Full-text search over titles, authors and chapter titles",
		Tags:        []string{"Documents"},
	}, s.handleSearchDocuments)

	huma.Register(s.api, huma.Operation{
		OperationID: "getDocument",
		Method:      http.MethodGet,
		Path:        "/api/v1/documents/{id}",
		Summary:     "Get document",
		Description: "Returns a document with its chapters",
		Tags:        []string{"Documents"},
	}, s.handleGetDocument)

	huma.Register(s.api, huma.Operation{
		OperationID: "replaceChapters",
		Method:      http.MethodPut,
		Path:        "/api/v1/documents/{id}/chapters",
		Summary:     "Replace chapters",
		Description: "Replaces a document's chapter list. Open sessions reload the new list.",
		Tags:        []string{"Documents"},
	}, s.handleReplaceChapters)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteDocument",
		Method:        http.MethodDelete,
		Path:          "/api/v1/documents/{id}",
		Summary:       "Delete document",
		Description:   "Removes a document from the shelf. Its reading checkpoint is kept.",
		Tags:          []string{"Documents"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteDocument)
}

// ChapterRequest is one chapter marker in a request body.
type ChapterRequest struct {
	Title    string `json:"title" validate:"required,max=300" doc:"Chapter title"`
	Page     int    `json:"page" validate:"gte=0" doc:"First page of the chapter"`
	MusicURL string `json:"music_url,omitempty" validate:"omitempty,url" doc:"Precomputed track for the chapter"`
}

// CreateDocumentRequest is the body for adding a document.
type CreateDocumentRequest struct {
	Title      string           `json:"title" validate:"required,max=500" doc:"Document title"`
	Author     string           `json:"author,omitempty" validate:"max=300" doc:"Author"`
	FileName   string           `json:"file_name" validate:"required,document_kind" doc:"File name or kind (pdf, txt, epub)"`
	FileURL    string           `json:"file_url,omitempty" validate:"omitempty,url" doc:"Where the reader loads the file from"`
	TotalPages int              `json:"total_pages,omitempty" validate:"gte=0" doc:"Page count for paginated documents"`
	Chapters   []ChapterRequest `json:"chapters,omitempty" validate:"dive" doc:"Chapter markers ascending by page"`
}

// CreateDocumentInput wraps the create request for Huma.
type CreateDocumentInput struct {
	Body CreateDocumentRequest
}

// ReplaceChaptersRequest is the body for replacing a document's chapters.
type ReplaceChaptersRequest struct {
	Chapters   []ChapterRequest `json:"chapters" validate:"dive" doc:"New chapter markers ascending by page"`
	TotalPages int              `json:"total_pages,omitempty" validate:"gte=0" doc:"New page count; zero keeps the current one"`
}

// ReplaceChaptersInput wraps the replace request for Huma.
type ReplaceChaptersInput struct {
	ID   string `path:"id" doc:"Document ID"`
	Body ReplaceChaptersRequest
}

// DocumentIDInput identifies a document by path.
type DocumentIDInput struct {
	ID string `path:"id" doc:"Document ID"`
}

// ListDocumentsInput contains pagination parameters.
type ListDocumentsInput struct {
	Cursor string `query:"cursor" doc:"Pagination cursor"`
	Limit  int    `query:"limit" default:"50" doc:"Items per page (max 1000)"`
}

// SearchDocumentsInput contains search parameters.
type SearchDocumentsInput struct {
	Query  string   `query:"q" doc:"Search query"`
	Kinds  []string `query:"kind" doc:"Restrict to document kinds (pdf, txt, epub)"`
	Sort   string   `query:"sort" enum:"relevance,title,recent" default:"relevance" doc:"Sort order"`
	Limit  int      `query:"limit" default:"20" doc:"Max results (max 100)"`
	Offset int      `query:"offset" default:"0" doc:"Results to skip"`
}

// ChapterResponse is one chapter marker in API responses.
type ChapterResponse struct {
	Index    int    `json:"index" doc:"Position in the chapter list"`
	Title    string `json:"title" doc:"Chapter title"`
	Page     int    `json:"page" doc:"First page of the chapter"`
	MusicURL string `json:"music_url,omitempty" doc:"Precomputed track"`
}

// DocumentResponse is a document in API responses.
type DocumentResponse struct {
	ID           string            `json:"id" doc:"Document ID"`
	Title        string            `json:"title" doc:"Title"`
	Author       string            `json:"author,omitempty" doc:"Author"`
	Kind         string            `json:"kind" doc:"pdf, txt or epub"`
	PositionKind string            `json:"position_kind" doc:"paginated or sequential"`
	FileURL      string            `json:"file_url,omitempty" doc:"File location"`
	TotalPages   int               `json:"total_pages,omitempty" doc:"Page count"`
	Chapters     []ChapterResponse `json:"chapters" doc:"Chapter markers ascending by page"`
	CreatedAt    time.Time         `json:"created_at" doc:"Creation time"`
	UpdatedAt    time.Time         `json:"updated_at" doc:"Last update time"`
}

// DocumentOutput wraps a single document for Huma.
type DocumentOutput struct {
	Body DocumentResponse
}

// ListDocumentsResponse is a page of documents.
type ListDocumentsResponse struct {
	Documents  []DocumentResponse `json:"documents" doc:"Documents"`
	NextCursor string             `json:"next_cursor,omitempty" doc:"Cursor for the next page"`
	HasMore    bool               `json:"has_more" doc:"Whether more pages exist"`
}

// ListDocumentsOutput wraps the list response for Huma.
type ListDocumentsOutput struct {
	Body ListDocumentsResponse
}

// SearchDocumentsOutput wraps search results for Huma.
type SearchDocumentsOutput struct {
	Body search.SearchResult
}

// DeleteDocumentOutput is empty; deletion answers 204.
type DeleteDocumentOutput struct{}

func (s *Server) handleCreateDocument(ctx context.Context, input *CreateDocumentInput) (*DocumentOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, apiError(err)
	}

	fileName := input.Body.FileName
	if kind := domain.DocumentKind(strings.ToLower(fileName)); kind.Valid() {
		fileName = "document." + string(kind)
	}

	doc, err := s.services.Documents.Register(ctx, service.RegisterInput{
		Title:      input.Body.Title,
		Author:     input.Body.Author,
		FileName:   fileName,
		FileURL:    input.Body.FileURL,
		TotalPages: input.Body.TotalPages,
		Chapters:   toChapters(input.Body.Chapters),
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &DocumentOutput{Body: toDocumentResponse(doc)}, nil
}

func (s *Server) handleListDocuments(ctx context.Context, input *ListDocumentsInput) (*ListDocumentsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	page, err := s.services.Documents.ListDocuments(ctx, store.PaginationParams{
		Limit:  min(limit, maxListLimit),
		Cursor: input.Cursor,
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &ListDocumentsOutput{Body: ListDocumentsResponse{
		Documents:  lo.Map(page.Items, func(d *domain.Document, _ int) DocumentResponse { return toDocumentResponse(d) }),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}}, nil
}

func (s *Server) handleSearchDocuments(ctx context.Context, input *SearchDocumentsInput) (*SearchDocumentsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	result, err := s.services.Documents.Search(ctx, search.SearchParams{
		Query:  input.Query,
		Kinds:  lo.Compact(lo.Map(input.Kinds, func(k string, _ int) string { return strings.ToLower(strings.TrimSpace(k)) })),
		Limit:  min(limit, maxSearchLimit),
		Offset: max(input.Offset, 0),
		SortBy: input.Sort,
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &SearchDocumentsOutput{Body: *result}, nil
}

func (s *Server) handleGetDocument(ctx context.Context, input *DocumentIDInput) (*DocumentOutput, error) {
	doc, err := s.services.Documents.GetDocument(ctx, input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &DocumentOutput{Body: toDocumentResponse(doc)}, nil
}

func (s *Server) handleReplaceChapters(ctx context.Context, input *ReplaceChaptersInput) (*DocumentOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, apiError(err)
	}
	doc, err := s.services.Documents.ReplaceChapters(ctx, input.ID, toChapters(input.Body.Chapters), input.Body.TotalPages)
	if err != nil {
		return nil, apiError(err)
	}
	return &DocumentOutput{Body: toDocumentResponse(doc)}, nil
}

func (s *Server) handleDeleteDocument(ctx context.Context, input *DocumentIDInput) (*DeleteDocumentOutput, error) {
	if err := s.services.Documents.DeleteDocument(ctx, input.ID); err != nil {
		return nil, apiError(err)
	}
	return &DeleteDocumentOutput{}, nil
}

func toChapters(in []ChapterRequest) []domain.Chapter {
	return lo.Map(in, func(c ChapterRequest, _ int) domain.Chapter {
		return domain.Chapter{
			Title:    strings.TrimSpace(c.Title),
			Page:     c.Page,
			MusicURL: c.MusicURL,
		}
	})
}

func toDocumentResponse(d *domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:           d.ID,
		Title:        d.Title,
		Author:       d.Author,
		Kind:         string(d.Kind),
		PositionKind: string(d.Kind.PositionKind()),
		FileURL:      d.FileURL,
		TotalPages:   d.TotalPages,
		Chapters: lo.Map(d.Chapters, func(c domain.Chapter, i int) ChapterResponse {
			return ChapterResponse{Index: i, Title: c.Title, Page: c.Page, MusicURL: c.MusicURL}
		}),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
