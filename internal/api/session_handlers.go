package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/pagetune/pagetune-server/internal/chaptersync"
	"github.com/pagetune/pagetune-server/internal/domain"
	domainerrors "github.com/pagetune/pagetune-server/internal/errors"
	"github.com/pagetune/pagetune-server/internal/service"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "openSession",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Open reading session",
		Description:   "Opens a document, restores its checkpoint and starts chapter music",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   huma.Middlewares{s.rateLimitSessions},
	}, s.handleOpenSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "listSessions",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions",
		Summary:     "List sessions",
		Description: "Returns every open session, oldest first",
		Tags:        []string{"Sessions"},
	}, s.handleListSessions)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Get session",
		Tags:        []string{"Sessions"},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "closeSession",
		Method:        http.MethodDelete,
		Path:          "/api/v1/sessions/{id}",
		Summary:       "Close session",
		Description:   "Stops music and writes the final checkpoint",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleCloseSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "setSessionPosition",
		Method:      http.MethodPut,
		Path:        "/api/v1/sessions/{id}/position",
		Summary:     "Set reading position",
		Description: "Moves the reader; switches music when the active chapter changes",
		Tags:        []string{"Sessions"},
	}, s.handleSetPosition)

	s.registerSessionAction("nextPage", "next", "Next page", (*service.SessionService).NextPage)
	s.registerSessionAction("prevPage", "prev", "Previous page", (*service.SessionService).PrevPage)
	s.registerSessionAction("togglePlayback", "toggle", "Toggle playback", (*service.SessionService).TogglePlayback)

	huma.Register(s.api, huma.Operation{
		OperationID: "jumpToChapter",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/chapters/{index}/jump",
		Summary:     "Jump to chapter",
		Description: "Moves the reader to the chapter's first page and plays its track",
		Tags:        []string{"Sessions"},
	}, func(_ context.Context, input *ChapterActionInput) (*SessionOutput, error) {
		return sessionResult(s.services.Sessions.JumpToChapter(input.ID, input.Index))
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "playChapter",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/chapters/{index}/play",
		Summary:     "Play chapter",
		Description: "Plays the chapter's track without moving the reader",
		Tags:        []string{"Sessions"},
	}, func(_ context.Context, input *ChapterActionInput) (*SessionOutput, error) {
		return sessionResult(s.services.Sessions.PlayChapter(input.ID, input.Index))
	})
}

// registerSessionAction registers a bodiless POST that applies op to a session.
func (s *Server) registerSessionAction(opID, path, summary string, op func(*service.SessionService, string) (chaptersync.Snapshot, error)) {
	huma.Register(s.api, huma.Operation{
		OperationID: opID,
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/" + path,
		Summary:     summary,
		Tags:        []string{"Sessions"},
	}, func(_ context.Context, input *SessionIDInput) (*SessionOutput, error) {
		return sessionResult(op(s.services.Sessions, input.ID))
	})
}

// OpenSessionRequest is the body for opening a session.
type OpenSessionRequest struct {
	DocumentID  string   `json:"document_id" validate:"required" doc:"Document to read"`
	Preferences []string `json:"preferences,omitempty" validate:"max=20,dive,max=50" doc:"Music preference tags; enables generated tracks"`
	StartPaused bool     `json:"start_paused,omitempty" doc:"Do not autoplay the first track"`
}

// OpenSessionInput wraps the open request for Huma.
type OpenSessionInput struct {
	Body OpenSessionRequest
}

// SessionIDInput identifies a session by path.
type SessionIDInput struct {
	ID string `path:"id" doc:"Session ID"`
}

// ChapterActionInput identifies a chapter within a session.
type ChapterActionInput struct {
	ID    string `path:"id" doc:"Session ID"`
	Index int    `path:"index" doc:"Chapter index"`
}

// PositionRequest is the body for moving the reader. Totals left zero are
// taken from the session's current position.
type PositionRequest struct {
	Kind                string `json:"kind" validate:"required,position_kind" enum:"paginated,sequential" doc:"Position kind"`
	CurrentPage         int    `json:"current_page,omitempty" validate:"gte=0" doc:"Page, for paginated documents"`
	TotalPages          int    `json:"total_pages,omitempty" validate:"gte=0" doc:"Page count"`
	CurrentChapterIndex int    `json:"current_chapter_index,omitempty" validate:"gte=0" doc:"Chapter, for sequential documents"`
	TotalChapters       int    `json:"total_chapters,omitempty" validate:"gte=0" doc:"Chapter count"`
}

// SetPositionInput wraps the position request for Huma.
type SetPositionInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body PositionRequest
}

// SessionWarning reports a recoverable failure. The session stays usable.
type SessionWarning struct {
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable message"`
}

// SessionResponse is a session snapshot in API responses.
type SessionResponse struct {
	SessionID          string                 `json:"session_id" doc:"Session ID"`
	DocumentID         string                 `json:"document_id" doc:"Document being read"`
	State              string                 `json:"state" doc:"idle, loaded, track_switching, playing, paused or terminated"`
	Position           domain.ReadingPosition `json:"position" doc:"Reading position"`
	Percentage         float64                `json:"percentage" doc:"Progress through the document"`
	ActiveChapter      int                    `json:"active_chapter" doc:"Active chapter index, -1 before the first chapter"`
	ChapterCount       int                    `json:"chapter_count" doc:"Number of chapters"`
	Playback           domain.PlaybackState   `json:"playback" doc:"Music state"`
	AccumulatedMinutes int                    `json:"accumulated_minutes" doc:"Reading time credited so far"`
	LastSavedAt        *time.Time             `json:"last_saved_at,omitempty" doc:"Last checkpoint write"`
	Warning            *SessionWarning        `json:"warning,omitempty" doc:"Recoverable failure from this request"`
}

// SessionOutput wraps a session for Huma.
type SessionOutput struct {
	Body SessionResponse
}

// ListSessionsOutput wraps the open sessions for Huma.
type ListSessionsOutput struct {
	Body struct {
		Sessions []SessionResponse `json:"sessions" doc:"Open sessions"`
	}
}

// CloseSessionOutput is empty; closing answers 204.
type CloseSessionOutput struct{}

// rateLimitSessions caps how fast one client can open sessions.
func (s *Server) rateLimitSessions(ctx huma.Context, next func(huma.Context)) {
	r, _ := humachi.Unwrap(ctx)
	if !allowClient(s.sessionLimiter, r) {
		s.logger.Warn("rate limit exceeded", "path", ctx.URL().Path, "remote", ctx.RemoteAddr())
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "too many sessions opened, try again later")
		return
	}
	next(ctx)
}

func (s *Server) handleOpenSession(ctx context.Context, input *OpenSessionInput) (*SessionOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, apiError(err)
	}
	snap, err := s.services.Sessions.Open(ctx, service.OpenInput{
		DocumentID:  input.Body.DocumentID,
		Preferences: input.Body.Preferences,
		StartPaused: input.Body.StartPaused,
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &SessionOutput{Body: toSessionResponse(snap)}, nil
}

func (s *Server) handleListSessions(_ context.Context, _ *struct{}) (*ListSessionsOutput, error) {
	out := &ListSessionsOutput{}
	out.Body.Sessions = lo.Map(s.services.Sessions.List(), func(snap chaptersync.Snapshot, _ int) SessionResponse {
		return toSessionResponse(snap)
	})
	return out, nil
}

func (s *Server) handleGetSession(_ context.Context, input *SessionIDInput) (*SessionOutput, error) {
	return sessionResult(s.services.Sessions.Get(input.ID))
}

func (s *Server) handleCloseSession(ctx context.Context, input *SessionIDInput) (*CloseSessionOutput, error) {
	if err := s.services.Sessions.Close(ctx, input.ID); err != nil {
		return nil, apiError(err)
	}
	return &CloseSessionOutput{}, nil
}

func (s *Server) handleSetPosition(_ context.Context, input *SetPositionInput) (*SessionOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, apiError(err)
	}

	current, err := s.services.Sessions.Get(input.ID)
	if err != nil {
		return nil, apiError(err)
	}

	body := input.Body
	pos := domain.ReadingPosition{
		Kind:                domain.PositionKind(body.Kind),
		CurrentPage:         body.CurrentPage,
		TotalPages:          lo.CoalesceOrEmpty(body.TotalPages, current.Position.TotalPages),
		CurrentChapterIndex: body.CurrentChapterIndex,
		TotalChapters:       lo.CoalesceOrEmpty(body.TotalChapters, current.Position.TotalChapters),
	}
	if pos.Kind == domain.Paginated {
		pos.CurrentChapterIndex, pos.TotalChapters = 0, 0
	} else {
		pos.CurrentPage, pos.TotalPages = 0, 0
	}

	return sessionResult(s.services.Sessions.SetPosition(input.ID, pos))
}

// handleSessionEvents streams one session's events over SSE.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if s.sseHandler == nil {
		writeErrorEnvelope(w, http.StatusServiceUnavailable, domainerrors.CodeInternal, "event streaming not configured")
		return
	}
	if s.services == nil || s.services.Sessions == nil || !s.services.Sessions.Exists(sessionID) {
		writeErrorEnvelope(w, http.StatusNotFound, domainerrors.CodeNotFound, "session "+sessionID+" not found")
		return
	}
	s.sseHandler.ServeSession(w, r, sessionID)
}

// sessionResult turns a service result into a response. Recoverable errors
// keep the snapshot and surface as a warning.
func sessionResult(snap chaptersync.Snapshot, err error) (*SessionOutput, error) {
	if err != nil && !domainerrors.CodeOf(err).Recoverable() {
		return nil, apiError(err)
	}
	resp := toSessionResponse(snap)
	if err != nil {
		var domainErr *domainerrors.Error
		if domainerrors.As(err, &domainErr) {
			resp.Warning = &SessionWarning{Code: string(domainErr.Code), Message: domainErr.Message}
		}
	}
	return &SessionOutput{Body: resp}, nil
}

func toSessionResponse(snap chaptersync.Snapshot) SessionResponse {
	resp := SessionResponse{
		SessionID:          snap.SessionID,
		DocumentID:         snap.DocumentID,
		State:              snap.State.String(),
		Position:           snap.Position,
		Percentage:         snap.Percentage,
		ActiveChapter:      snap.ActiveChapter,
		ChapterCount:       snap.ChapterCount,
		Playback:           snap.Playback,
		AccumulatedMinutes: snap.AccumulatedMinutes,
	}
	if !snap.LastSavedAt.IsZero() {
		t := snap.LastSavedAt
		resp.LastSavedAt = &t
	}
	return resp
}

func writeErrorEnvelope(w http.ResponseWriter, status int, code domainerrors.Code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIErrorEnvelope{
		Version: EnvelopeVersion,
		Error:   msg,
		Code:    string(code),
		Message: msg,
	})
}
