package kv

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/pagetune/pagetune-server/internal/domain"
	"github.com/pagetune/pagetune-server/internal/store"
)

const checkpointPrefix = "checkpoint:"

var _ store.Checkpoints = (*Store)(nil)

// GetCheckpoint returns the checkpoint for a document, or (nil, nil) if
// none has been written.
func (s *Store) GetCheckpoint(ctx context.Context, documentID string) (*domain.ProgressCheckpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := buildKey(checkpointPrefix, documentID)
	defer releaseKey(key)

	var cp domain.ProgressCheckpoint
	found, err := s.get(key, &cp)
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &cp, nil
}

// PutCheckpoint replaces the document's checkpoint. A single Badger
// transaction writes the whole value.
func (s *Store) PutCheckpoint(ctx context.Context, cp *domain.ProgressCheckpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cp.DocumentID == "" {
		return store.ErrInvalidInput.WithCause(fmt.Errorf("checkpoint without document id"))
	}

	key := buildKey(checkpointPrefix, cp.DocumentID)
	defer releaseKey(key)

	if err := s.set(key, cp); err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

// ListCheckpoints returns every checkpoint, most recently saved first.
func (s *Store) ListCheckpoints(ctx context.Context) ([]*domain.ProgressCheckpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*domain.ProgressCheckpoint
	err := s.scan(checkpointPrefix, func(val []byte) error {
		var cp domain.ProgressCheckpoint
		if err := json.Unmarshal(val, &cp); err != nil {
			return err
		}
		out = append(out, &cp)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	slices.SortFunc(out, func(a, b *domain.ProgressCheckpoint) int {
		if c := b.LastSavedAt.Compare(a.LastSavedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.DocumentID, b.DocumentID)
	})
	return out, nil
}
