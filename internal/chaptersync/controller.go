// Package chaptersync keeps a reading session's background music in step with
// the reader's position and checkpoints reading progress.
//
// A Controller owns one session. Position changes resolve the active chapter
// and switch tracks; a clock-driven ticker accumulates reading time and
// flushes checkpoints. Only the newest track switch may take effect: every
// resolution bumps a sequence number and results carrying an older number
// are dropped.
package chaptersync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/pagetune/pagetune-server/internal/domain"
	"github.com/pagetune/pagetune-server/internal/errors"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultGenerateTimeout = 30 * time.Second
	DefaultTickInterval    = time.Minute
)

// Options configures a Controller.
type Options struct {
	SessionID  string
	DocumentID string
	// Kind selects paginated or sequential positions for the session.
	Kind domain.PositionKind

	Player      Player
	Checkpoints CheckpointStore
	// Documents is used by LoadDocument. Optional.
	Documents DocumentStore
	// Generator is consulted only when Preferences is non-empty; otherwise
	// chapters play their precomputed MusicURL.
	Generator   TrackGenerator
	Preferences domain.MusicPreferences
	Events      EventSink

	// StartPaused disables autoplay of the first resolved track.
	StartPaused     bool
	GenerateTimeout time.Duration
	TickInterval    time.Duration
	Clock           clock.Clock
	Logger          *slog.Logger
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	SessionID          string                 `json:"session_id"`
	DocumentID         string                 `json:"document_id"`
	State              domain.SessionState    `json:"state"`
	Position           domain.ReadingPosition `json:"position"`
	Percentage         float64                `json:"percentage"`
	ActiveChapter      int                    `json:"active_chapter"`
	ChapterCount       int                    `json:"chapter_count"`
	Playback           domain.PlaybackState   `json:"playback"`
	AccumulatedMinutes int                    `json:"accumulated_minutes"`
	LastSavedAt        time.Time              `json:"last_saved_at,omitzero"`
}

// Controller synchronizes chapter music and progress for one session.
type Controller struct {
	sessionID   string
	documentID  string
	kind        domain.PositionKind
	player      Player
	checkpoints CheckpointStore
	documents   DocumentStore
	generator   TrackGenerator
	prefs       domain.MusicPreferences
	events      EventSink
	timeout     time.Duration
	interval    time.Duration
	clock       clock.Clock
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    domain.SessionState
	chapters []domain.Chapter
	position domain.ReadingPosition
	playback domain.PlaybackState
	// resolved is the chapter the latest resolution picked; trackChapter is
	// the chapter whose track is resident. They differ while a switch is in
	// flight.
	resolved       int
	trackChapter   int
	seq            uint64
	cancelSwitch   context.CancelFunc
	minutes        int
	remainder      time.Duration
	dirty          bool
	retryFlush     bool
	lastSavedAt    time.Time
	tickerStarted  bool

	// flushMu serializes checkpoint writes so a later snapshot never lands
	// before an earlier one.
	flushMu sync.Mutex
	// loadMu serializes Player.Load calls, which run without mu held.
	loadMu sync.Mutex
}

// trackLoad is a player load started under mu and finished by runLoad.
type trackLoad struct {
	seq    uint64
	idx    int
	url    string
	play   bool
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an Idle controller positioned at the start of the document.
func New(opts Options) *Controller {
	if opts.Kind == "" {
		opts.Kind = domain.Paginated
	}
	if opts.Events == nil {
		opts.Events = discardSink{}
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = DefaultGenerateTimeout
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		sessionID:    opts.SessionID,
		documentID:   opts.DocumentID,
		kind:         opts.Kind,
		player:       opts.Player,
		checkpoints:  opts.Checkpoints,
		documents:    opts.Documents,
		generator:    opts.Generator,
		prefs:        opts.Preferences,
		events:       opts.Events,
		timeout:      opts.GenerateTimeout,
		interval:     opts.TickInterval,
		clock:        opts.Clock,
		logger:       opts.Logger.With("session_id", opts.SessionID, "document_id", opts.DocumentID),
		ctx:          ctx,
		cancel:       cancel,
		state:        domain.StateIdle,
		resolved:     NoChapter,
		trackChapter: NoChapter,
	}
	c.playback.IsPlaying = !opts.StartPaused

	if opts.Kind == domain.Sequential {
		c.position = domain.ChapterPosition(0, 0)
	} else {
		c.position = domain.PagePosition(1, 0)
	}
	return c
}

// LoadDocument fetches the chapter list from the document store and loads
// it. On failure the controller stays Idle and the call may be retried.
func (c *Controller) LoadDocument(ctx context.Context) error {
	if c.documents == nil {
		return errors.ChapterListUnavailable(c.documentID, fmt.Errorf("no document store configured"))
	}
	doc, err := c.documents.GetDocument(ctx, c.documentID)
	if err != nil {
		c.logger.Warn("chapter list unavailable", "error", err)
		return errors.ChapterListUnavailable(c.documentID, err)
	}

	c.mu.Lock()
	if c.kind == domain.Paginated && c.position.TotalPages == 0 {
		c.position.TotalPages = doc.TotalPages
	}
	c.mu.Unlock()

	return c.LoadChapters(doc.Chapters)
}

// LoadChapters replaces the chapter list and resolves the current position
// against it. Chapters must already be sorted ascending by page.
func (c *Controller) LoadChapters(chapters []domain.Chapter) error {
	if !domain.ChaptersSorted(chapters) {
		return errors.Validation("chapters must be sorted ascending by page")
	}

	c.mu.Lock()
	if c.state == domain.StateTerminated {
		c.mu.Unlock()
		return errors.ErrSessionTerminated
	}

	c.chapters = make([]domain.Chapter, len(chapters))
	copy(c.chapters, chapters)
	if c.kind == domain.Sequential {
		c.position.TotalChapters = len(c.chapters)
	}

	// Indices into the old list mean nothing now.
	c.supersedeLocked()
	c.resolved = NoChapter
	c.trackChapter = NoChapter
	c.state = c.settledStateLocked()

	c.logger.Debug("chapters loaded", "count", len(c.chapters))
	job, err := c.resolveLocked()
	c.mu.Unlock()

	if job != nil {
		err = c.runLoad(job)
	}
	return err
}

// SetPosition moves the reader. A change of active chapter switches tracks;
// any change is checkpointed immediately.
func (c *Controller) SetPosition(pos domain.ReadingPosition) error {
	if pos.Kind != c.kind {
		return errors.Validationf("position kind %q does not match session kind %q", pos.Kind, c.kind)
	}
	if err := pos.Validate(); err != nil {
		return errors.Validation(err.Error())
	}

	c.mu.Lock()
	if c.state == domain.StateTerminated {
		c.mu.Unlock()
		return errors.ErrSessionTerminated
	}
	if pos == c.position && !c.dirty {
		c.mu.Unlock()
		return nil
	}
	c.position = pos
	c.dirty = true
	job, switchErr := c.resolveLocked()
	c.mu.Unlock()

	if job != nil {
		switchErr = c.runLoad(job)
	}

	// Write failures are retried by the ticker and never reach the reader.
	_ = c.flush(c.ctx)
	return switchErr
}

// NextPage advances one page or chapter, clamped to the document end.
func (c *Controller) NextPage() error {
	return c.SetPosition(c.Position().Next())
}

// PrevPage steps back one page or chapter, clamped to the document start.
func (c *Controller) PrevPage() error {
	return c.SetPosition(c.Position().Prev())
}

// JumpToChapter moves the position to the start of chapter index.
func (c *Controller) JumpToChapter(index int) error {
	c.mu.Lock()
	if index < 0 || index >= len(c.chapters) {
		c.mu.Unlock()
		return errors.Validationf("chapter index %d out of range", index)
	}
	pos := c.position
	if c.kind == domain.Paginated {
		pos.CurrentPage = c.chapters[index].Page
	} else {
		pos.CurrentChapterIndex = index
	}
	c.mu.Unlock()

	return c.SetPosition(pos)
}

// PlayChapter plays chapter index's track regardless of the position.
func (c *Controller) PlayChapter(index int) error {
	c.mu.Lock()
	if c.state == domain.StateTerminated {
		c.mu.Unlock()
		return errors.ErrSessionTerminated
	}
	if index < 0 || index >= len(c.chapters) {
		c.mu.Unlock()
		return errors.Validationf("chapter index %d out of range", index)
	}

	c.playback.IsPlaying = true
	if index == c.resolved && index == c.trackChapter && c.playback.HasTrack() {
		c.state = domain.StatePlaying
		err := c.playLocked()
		c.mu.Unlock()
		return err
	}

	c.resolved = index
	job, err := c.switchLocked(index, true)
	c.mu.Unlock()

	if job != nil {
		err = c.runLoad(job)
	}
	return err
}

// ResolveActiveChapter returns the active chapter for the current position.
func (c *Controller) ResolveActiveChapter() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := Resolve(c.chapters, c.position)
	return idx, idx != NoChapter
}

// TogglePlayback flips play/pause and returns the new playing flag. With no
// resident track only the flag changes.
func (c *Controller) TogglePlayback() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.StateTerminated {
		return false, errors.ErrSessionTerminated
	}

	c.playback.IsPlaying = !c.playback.IsPlaying
	if !c.playback.HasTrack() {
		return c.playback.IsPlaying, nil
	}

	var err error
	if c.playback.IsPlaying {
		err = c.playLocked()
	} else {
		err = c.player.Pause()
	}
	if c.state != domain.StateTrackSwitching {
		c.state = c.settledStateLocked()
	}
	if err != nil {
		return c.playback.IsPlaying, errors.Wrap(err, errors.CodeInternal, "player toggle failed")
	}
	return c.playback.IsPlaying, nil
}

// Position returns the current reading position.
func (c *Controller) Position() domain.ReadingPosition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// State returns the lifecycle state.
func (c *Controller) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the session's current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		SessionID:          c.sessionID,
		DocumentID:         c.documentID,
		State:              c.state,
		Position:           c.position,
		Percentage:         c.position.Percentage(),
		ActiveChapter:      c.resolved,
		ChapterCount:       len(c.chapters),
		Playback:           c.playback,
		AccumulatedMinutes: c.minutes,
		LastSavedAt:        c.lastSavedAt,
	}
}

// Terminate stops the track, cancels the ticker and any in-flight switch,
// and writes a final checkpoint. Calling it again is a no-op.
func (c *Controller) Terminate(ctx context.Context) error {
	c.mu.Lock()
	if c.state == domain.StateTerminated {
		c.mu.Unlock()
		return nil
	}
	c.supersedeLocked()
	c.state = domain.StateTerminated
	c.cancel()

	var stopErr error
	if c.playback.HasTrack() {
		stopErr = c.player.Stop()
	}
	c.playback.IsPlaying = false
	c.playback.IsLoadingTrack = false
	c.events.Emit(c.eventLocked(EventTerminated))
	c.mu.Unlock()

	// Late generation results see the bumped sequence and drop themselves.
	c.wg.Wait()

	err := c.flush(ctx)
	if stopErr != nil {
		c.logger.Warn("player stop failed", "error", stopErr)
	}
	c.logger.Info("session terminated")
	return err
}

// resolveLocked resolves the current position and starts a switch if the
// active chapter changed. A returned load must be finished with runLoad
// after mu is released.
func (c *Controller) resolveLocked() (*trackLoad, error) {
	idx := Resolve(c.chapters, c.position)
	if idx == c.resolved {
		return nil, nil
	}
	c.resolved = idx
	if idx == NoChapter {
		// No chapter is newer than whatever is still in flight.
		c.supersedeLocked()
		c.state = c.settledStateLocked()
		return nil, nil
	}
	return c.switchLocked(idx, false)
}

// switchLocked obtains chapter idx's track. Precomputed URLs are returned as
// a load for the caller to run; generated tracks are fetched on a goroutine
// whose result is dropped if a newer switch starts first.
func (c *Controller) switchLocked(idx int, play bool) (*trackLoad, error) {
	c.supersedeLocked()
	seq := c.seq
	ch := c.chapters[idx]

	if c.generator == nil || !c.prefs.Enabled() {
		if ch.MusicURL == "" {
			return nil, c.failSwitchLocked(idx, fmt.Errorf("chapter %q has no music", ch.Title))
		}
		return c.applyTrackLocked(idx, ch.MusicURL, play)
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	c.cancelSwitch = cancel
	c.state = domain.StateTrackSwitching
	c.playback.IsLoadingTrack = true

	req := TrackRequest{
		DocumentID:   c.documentID,
		ChapterIndex: idx,
		ChapterTitle: ch.Title,
		Preferences:  c.prefs,
	}

	c.wg.Add(1)
	go c.generate(ctx, cancel, seq, req, play)
	return nil, nil
}

func (c *Controller) generate(ctx context.Context, cancel context.CancelFunc, seq uint64, req TrackRequest, play bool) {
	defer c.wg.Done()
	defer cancel()

	url, err := c.generator.GenerateTrack(ctx, req)

	c.mu.Lock()
	if seq != c.seq || c.state == domain.StateTerminated {
		c.mu.Unlock()
		c.logger.Debug("discarding stale track", "chapter_index", req.ChapterIndex)
		return
	}
	c.cancelSwitch = nil

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("generation timed out after %s: %w", c.timeout, err)
		}
		_ = c.failSwitchLocked(req.ChapterIndex, err)
		c.mu.Unlock()
		return
	}
	job, _ := c.applyTrackLocked(req.ChapterIndex, url, play)
	c.mu.Unlock()

	if job != nil {
		_ = c.runLoad(job)
	}
}

// applyTrackLocked makes url the track for chapter idx. A url that is
// already resident commits at once; any other url is returned as a load.
func (c *Controller) applyTrackLocked(idx int, url string, play bool) (*trackLoad, error) {
	if url == c.playback.ActiveTrackURL {
		c.playback.IsLoadingTrack = false
		c.trackChapter = idx
		c.state = c.settledStateLocked()
		if play {
			return nil, c.playLocked()
		}
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	c.cancelSwitch = cancel
	c.state = domain.StateTrackSwitching
	c.playback.IsLoadingTrack = true
	return &trackLoad{seq: c.seq, idx: idx, url: url, play: play, ctx: ctx, cancel: cancel}, nil
}

// runLoad loads job's track with mu released and commits it only if no
// newer switch started meanwhile.
func (c *Controller) runLoad(job *trackLoad) error {
	defer job.cancel()

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.Lock()
	stale := job.seq != c.seq || c.state == domain.StateTerminated
	c.mu.Unlock()
	if stale {
		return nil
	}

	loadErr := c.player.Load(job.ctx, job.url)

	c.mu.Lock()
	if job.seq != c.seq || c.state == domain.StateTerminated {
		terminated := c.state == domain.StateTerminated
		resident := c.playback.ActiveTrackURL
		playing := c.playback.IsPlaying
		c.mu.Unlock()
		c.logger.Debug("discarding stale track", "chapter_index", job.idx)
		if loadErr == nil {
			c.restorePlayer(terminated, resident, playing)
		}
		return nil
	}
	defer c.mu.Unlock()
	c.cancelSwitch = nil

	if loadErr != nil {
		if errors.Is(job.ctx.Err(), context.DeadlineExceeded) {
			loadErr = fmt.Errorf("track load timed out after %s: %w", c.timeout, loadErr)
		}
		return c.failSwitchLocked(job.idx, loadErr)
	}
	return c.commitTrackLocked(job.idx, job.url, job.play)
}

// restorePlayer undoes a load that finished after it was superseded, so the
// player holds the resident track again. Called with loadMu held.
func (c *Controller) restorePlayer(terminated bool, resident string, playing bool) {
	if terminated || resident == "" {
		if err := c.player.Stop(); err != nil {
			c.logger.Warn("player stop failed", "error", err)
		}
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()
	if err := c.player.Load(ctx, resident); err != nil {
		c.logger.Warn("restoring resident track failed", "track_url", resident, "error", err)
		return
	}
	if playing {
		_ = c.player.Play()
	}
}

// commitTrackLocked records url as the resident track for chapter idx.
func (c *Controller) commitTrackLocked(idx int, url string, play bool) error {
	c.playback.IsLoadingTrack = false
	c.playback.ActiveTrackURL = url
	c.trackChapter = idx

	// Switching chapters keeps the music going if the reader had it on.
	var err error
	if play || c.playback.IsPlaying {
		err = c.playLocked()
	}
	c.state = c.settledStateLocked()

	ev := c.eventLocked(EventTrackChanged)
	ev.ChapterIndex = idx
	ev.TrackURL = url
	c.events.Emit(ev)
	c.logger.Info("track changed", "chapter_index", idx, "track_url", url)

	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "player play failed")
	}
	return nil
}

// failSwitchLocked keeps the previous track and surfaces a recoverable error.
func (c *Controller) failSwitchLocked(idx int, cause error) error {
	c.playback.IsLoadingTrack = false
	// Point back at the resident track so a later resolution retries.
	c.resolved = c.trackChapter
	c.state = c.settledStateLocked()

	err := errors.TrackResolutionFailed(idx, cause)
	ev := c.eventLocked(EventTrackFailed)
	ev.ChapterIndex = idx
	ev.Err = err
	c.events.Emit(ev)
	c.logger.Warn("track resolution failed", "chapter_index", idx, "error", cause)
	return err
}

// supersedeLocked invalidates any in-flight switch.
func (c *Controller) supersedeLocked() {
	c.seq++
	if c.cancelSwitch != nil {
		c.cancelSwitch()
		c.cancelSwitch = nil
	}
	c.playback.IsLoadingTrack = false
}

func (c *Controller) playLocked() error {
	if !c.playback.HasTrack() {
		return nil
	}
	return c.player.Play()
}

func (c *Controller) settledStateLocked() domain.SessionState {
	switch {
	case c.state == domain.StateTerminated:
		return domain.StateTerminated
	case c.playback.HasTrack() && c.playback.IsPlaying:
		return domain.StatePlaying
	case c.playback.HasTrack():
		return domain.StatePaused
	case c.chapters != nil:
		return domain.StateLoaded
	default:
		return domain.StateIdle
	}
}

func (c *Controller) eventLocked(t EventType) Event {
	return Event{
		Type:         t,
		SessionID:    c.sessionID,
		DocumentID:   c.documentID,
		ChapterIndex: c.resolved,
		TrackURL:     c.playback.ActiveTrackURL,
	}
}
