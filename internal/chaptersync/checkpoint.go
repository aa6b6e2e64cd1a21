package chaptersync

import (
	"context"
	"time"

	"github.com/pagetune/pagetune-server/internal/domain"
	"github.com/pagetune/pagetune-server/internal/errors"
)

// Start launches the checkpoint ticker. It runs until Terminate.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tickerStarted || c.state == domain.StateTerminated {
		return
	}
	c.tickerStarted = true

	c.wg.Add(1)
	go c.runTicker()
}

func (c *Controller) runTicker() {
	defer c.wg.Done()

	ticker := c.clock.Ticker(c.interval)
	defer ticker.Stop()

	last := c.clock.Now()
	for {
		select {
		case <-c.ctx.Done():
			return
		case now := <-ticker.C:
			_ = c.Tick(c.ctx, now.Sub(last))
			last = now
		}
	}
}

// Tick adds elapsed reading time. Whole minutes move into the accumulated
// total and trigger a flush; the sub-minute remainder carries to the next
// tick. A tick also retries a flush that previously failed.
func (c *Controller) Tick(ctx context.Context, elapsed time.Duration) error {
	if elapsed < 0 {
		elapsed = 0
	}

	c.mu.Lock()
	if c.state == domain.StateTerminated {
		c.mu.Unlock()
		return nil
	}
	c.remainder += elapsed
	whole := c.remainder / time.Minute
	if whole > 0 {
		c.minutes += int(whole)
		c.remainder -= whole * time.Minute
		c.dirty = true
	}
	needFlush := whole > 0 || c.retryFlush
	c.mu.Unlock()

	if !needFlush {
		return nil
	}
	return c.flush(ctx)
}

// FlushCheckpoint writes the whole checkpoint now.
func (c *Controller) FlushCheckpoint(ctx context.Context) error {
	if c.State() == domain.StateTerminated {
		return errors.ErrSessionTerminated
	}
	return c.flush(ctx)
}

// flush snapshots the checkpoint under mu and writes it outside mu. flushMu
// keeps writes in snapshot order.
func (c *Controller) flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	cp := &domain.ProgressCheckpoint{
		DocumentID:         c.documentID,
		Position:           c.position,
		Percentage:         c.position.Percentage(),
		AccumulatedMinutes: c.minutes,
		LastSavedAt:        c.clock.Now().UTC(),
	}
	c.dirty = false
	c.mu.Unlock()

	if err := c.checkpoints.PutCheckpoint(ctx, cp); err != nil {
		c.mu.Lock()
		c.dirty = true
		c.retryFlush = true
		c.mu.Unlock()

		c.logger.Warn("checkpoint write failed, retrying next tick", "error", err)
		return errors.CheckpointWriteFailed(c.documentID, err)
	}

	c.mu.Lock()
	c.retryFlush = false
	c.lastSavedAt = cp.LastSavedAt
	ev := c.eventLocked(EventCheckpointSaved)
	ev.Checkpoint = cp
	c.events.Emit(ev)
	c.mu.Unlock()

	c.logger.Debug("checkpoint saved",
		"percentage", cp.Percentage,
		"accumulated_minutes", cp.AccumulatedMinutes,
	)
	return nil
}

// Restore reads the last checkpoint and seeds the session from it. It
// returns nil for a fresh read: no checkpoint, an unreadable one, or one
// recorded for a different position kind.
func (c *Controller) Restore(ctx context.Context) *domain.ReadingPosition {
	cp, err := c.checkpoints.GetCheckpoint(ctx, c.documentID)
	if err != nil {
		c.logger.Warn("starting fresh",
			"error", errors.CheckpointReadFailed(c.documentID, err))
		return nil
	}
	if cp == nil {
		return nil
	}
	if cp.Position.Kind != c.kind || cp.Position.Validate() != nil {
		c.logger.Warn("ignoring checkpoint for a different document layout",
			"checkpoint_kind", cp.Position.Kind)
		return nil
	}

	c.mu.Lock()
	if c.state == domain.StateTerminated {
		c.mu.Unlock()
		return nil
	}
	c.position = cp.Position
	c.minutes = cp.AccumulatedMinutes
	c.lastSavedAt = cp.LastSavedAt

	// Chapters may already be loaded if Restore runs late.
	var job *trackLoad
	if c.chapters != nil {
		if c.kind == domain.Sequential {
			c.position.TotalChapters = len(c.chapters)
		}
		job, _ = c.resolveLocked()
	}
	c.mu.Unlock()

	if job != nil {
		_ = c.runLoad(job)
	}
	pos := cp.Position
	return &pos
}
