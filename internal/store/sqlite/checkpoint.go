package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pagetune/pagetune-server/internal/domain"
)

const checkpointColumns = `document_id, position_kind, current_page, total_pages,
	current_chapter_index, total_chapters, percentage, accumulated_minutes, last_saved_at`

func scanCheckpoint(scanner interface{ Scan(dest ...any) error }) (*domain.ProgressCheckpoint, error) {
	var (
		cp      domain.ProgressCheckpoint
		kind    string
		savedAt string
	)
	err := scanner.Scan(
		&cp.DocumentID,
		&kind,
		&cp.Position.CurrentPage,
		&cp.Position.TotalPages,
		&cp.Position.CurrentChapterIndex,
		&cp.Position.TotalChapters,
		&cp.Percentage,
		&cp.AccumulatedMinutes,
		&savedAt,
	)
	if err != nil {
		return nil, err
	}

	cp.Position.Kind = domain.PositionKind(kind)
	cp.LastSavedAt, err = parseTime(savedAt)
	if err != nil {
		return nil, fmt.Errorf("parse last_saved_at: %w", err)
	}
	return &cp, nil
}

// GetCheckpoint returns the checkpoint for a document, or (nil, nil) if
// none has been written.
func (s *Store) GetCheckpoint(ctx context.Context, documentID string) (*domain.ProgressCheckpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+checkpointColumns+` FROM progress_checkpoints WHERE document_id = ?`, documentID)

	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return cp, nil
}

// PutCheckpoint replaces the document's checkpoint in a single statement,
// so a reader never sees a half-written record.
func (s *Store) PutCheckpoint(ctx context.Context, cp *domain.ProgressCheckpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress_checkpoints (`+checkpointColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (document_id) DO UPDATE SET
			position_kind         = excluded.position_kind,
			current_page          = excluded.current_page,
			total_pages           = excluded.total_pages,
			current_chapter_index = excluded.current_chapter_index,
			total_chapters        = excluded.total_chapters,
			percentage            = excluded.percentage,
			accumulated_minutes   = excluded.accumulated_minutes,
			last_saved_at         = excluded.last_saved_at`,
		cp.DocumentID,
		string(cp.Position.Kind),
		cp.Position.CurrentPage,
		cp.Position.TotalPages,
		cp.Position.CurrentChapterIndex,
		cp.Position.TotalChapters,
		cp.Percentage,
		cp.AccumulatedMinutes,
		formatTime(cp.LastSavedAt),
	)
	if err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

// ListCheckpoints returns every checkpoint, most recently saved first.
func (s *Store) ListCheckpoints(ctx context.Context) ([]*domain.ProgressCheckpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+checkpointColumns+` FROM progress_checkpoints ORDER BY last_saved_at DESC, document_id`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []*domain.ProgressCheckpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}
