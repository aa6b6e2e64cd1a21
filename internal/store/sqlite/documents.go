package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pagetune/pagetune-server/internal/domain"
	"github.com/pagetune/pagetune-server/internal/store"
)

var (
	_ store.Documents   = (*Store)(nil)
	_ store.Checkpoints = (*Store)(nil)
)

// documentColumns must match the scan order in scanDocument.
const documentColumns = `id, created_at, updated_at, title, author, kind, file_url, total_pages`

// scanDocument scans a sql.Row (or sql.Rows via its Scan method) into a domain.Document.
func scanDocument(scanner interface{ Scan(dest ...any) error }) (*domain.Document, error) {
	var (
		d         domain.Document
		createdAt string
		updatedAt string
		author    sql.NullString
		kind      string
		fileURL   sql.NullString
	)

	err := scanner.Scan(&d.ID, &createdAt, &updatedAt, &d.Title, &author, &kind, &fileURL, &d.TotalPages)
	if err != nil {
		return nil, err
	}

	d.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	d.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	d.Kind = domain.DocumentKind(kind)
	d.Author = author.String
	d.FileURL = fileURL.String
	return &d, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadChapters loads a document's chapters in list order.
func loadChapters(ctx context.Context, q querier, documentID string) ([]domain.Chapter, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT title, page, music_url
		FROM document_chapters
		WHERE document_id = ?
		ORDER BY idx ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chapters := []domain.Chapter{}
	for rows.Next() {
		var ch domain.Chapter
		var musicURL sql.NullString
		if err := rows.Scan(&ch.Title, &ch.Page, &musicURL); err != nil {
			return nil, err
		}
		ch.MusicURL = musicURL.String
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

// insertChapters stores chapters sorted by page. The sort is stable, so
// chapters sharing a page keep the order they were given in.
func insertChapters(ctx context.Context, tx *sql.Tx, documentID string, chapters []domain.Chapter) error {
	sorted := append([]domain.Chapter(nil), chapters...)
	domain.SortChapters(sorted)

	for i, ch := range sorted {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO document_chapters (document_id, idx, title, page, music_url)
			VALUES (?, ?, ?, ?, ?)`,
			documentID, i, ch.Title, ch.Page, nullString(ch.MusicURL),
		)
		if err != nil {
			return fmt.Errorf("insert chapter %d: %w", i, err)
		}
	}
	return nil
}

// CreateDocument inserts a document row and its chapters in a transaction.
// Returns store.ErrAlreadyExists on duplicate ID.
func (s *Store) CreateDocument(ctx context.Context, doc *domain.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID,
		formatTime(doc.CreatedAt),
		formatTime(doc.UpdatedAt),
		doc.Title,
		nullString(doc.Author),
		string(doc.Kind),
		nullString(doc.FileURL),
		doc.TotalPages,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}

	if err := insertChapters(ctx, tx, doc.ID, doc.Chapters); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	domain.SortChapters(doc.Chapters)
	return nil
}

// GetDocument retrieves a document with its chapters.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)

	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	d.Chapters, err = loadChapters(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("load chapters: %w", err)
	}
	return d, nil
}

// ListDocuments returns a page of documents, oldest first.
func (s *Store) ListDocuments(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[*domain.Document], error) {
	params.Validate()

	after, err := store.DecodeCursor(params.Cursor)
	if err != nil {
		return nil, store.ErrInvalidInput.WithCause(err)
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	args := []any{}
	if after != "" {
		createdAt, id, ok := strings.Cut(after, "|")
		if !ok {
			return nil, store.ErrInvalidInput.WithCause(fmt.Errorf("malformed cursor"))
		}
		query += ` WHERE (created_at, id) > (?, ?)`
		args = append(args, createdAt, id)
	}
	query += ` ORDER BY created_at, id LIMIT ?`
	// One extra row tells us whether another page exists.
	args = append(args, params.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*domain.Document, 0, params.Limit)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	result := &store.PaginatedResult[*domain.Document]{}
	if len(docs) > params.Limit {
		docs = docs[:params.Limit]
		last := docs[len(docs)-1]
		result.HasMore = true
		result.NextCursor = store.EncodeCursor(formatTime(last.CreatedAt) + "|" + last.ID)
	}

	for _, d := range docs {
		d.Chapters, err = loadChapters(ctx, s.db, d.ID)
		if err != nil {
			return nil, fmt.Errorf("load chapters for %s: %w", d.ID, err)
		}
	}

	result.Items = docs
	return result, nil
}

// ListAllDocuments returns every document with its chapters.
func (s *Store) ListAllDocuments(ctx context.Context) ([]*domain.Document, error) {
	var all []*domain.Document
	params := store.PaginationParams{Limit: 1000}
	for {
		page, err := s.ListDocuments(ctx, params)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if !page.HasMore {
			return all, nil
		}
		params.Cursor = page.NextCursor
	}
}

// ReplaceChapters swaps a document's whole chapter list. A positive
// totalPages also updates the page count.
func (s *Store) ReplaceChapters(ctx context.Context, id string, chapters []domain.Chapter, totalPages int) (*domain.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := formatTime(timeNow())
	res, err := tx.ExecContext(ctx, `
		UPDATE documents
		SET updated_at = ?,
		    total_pages = CASE WHEN ? > 0 THEN ? ELSE total_pages END
		WHERE id = ?`,
		now, totalPages, totalPages, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chapters WHERE document_id = ?`, id); err != nil {
		return nil, fmt.Errorf("clear chapters: %w", err)
	}
	if err := insertChapters(ctx, tx, id, chapters); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetDocument(ctx, id)
}

// DeleteDocument removes a document and, by cascade, its chapters.
// Its checkpoint is kept.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
