package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/api/v1/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Sessions   int                        `json:"sessions" doc:"Number of open reading sessions"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"database": s.checkDatabase(),
		"search":   s.checkSearchIndex(),
		"sse":      s.checkSSEManager(),
	}

	overall := "healthy"
	for _, c := range components {
		switch {
		case c.Status == "unhealthy":
			overall = "unhealthy"
		case c.Status == "degraded" && overall == "healthy":
			overall = "degraded"
		}
	}

	sessions := 0
	if s.services != nil && s.services.Sessions != nil {
		sessions = s.services.Sessions.Count()
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Sessions:   sessions,
			Components: components,
		},
	}, nil
}

// checkDatabase verifies SQLite is reachable.
func (s *Server) checkDatabase() ComponentHealth {
	if s.db == nil {
		return ComponentHealth{Status: "degraded", Message: "database not configured"}
	}

	start := time.Now()
	err := s.db.Ping()
	latency := time.Since(start)
	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "database ping failed",
		}
	}
	return ComponentHealth{Status: "healthy", Latency: latency.String()}
}

// checkSearchIndex verifies the Bleve index is accessible. Search falls back
// to a shelf scan without one, so a missing index only degrades.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.index == nil {
		return ComponentHealth{Status: "degraded", Message: "search index not configured"}
	}

	start := time.Now()
	count, err := s.index.DocumentCount()
	latency := time.Since(start)
	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "search index unreachable",
		}
	}
	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
		Message: strconv.FormatUint(count, 10) + " documents indexed",
	}
}

// checkSSEManager reports connected event stream clients.
func (s *Server) checkSSEManager() ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{Status: "degraded", Message: "SSE manager not configured"}
	}
	return ComponentHealth{
		Status:  "healthy",
		Message: formatSSEStatus(s.sseManager.ClientCount()),
	}
}

func formatSSEStatus(count int) string {
	switch count {
	case 0:
		return "no connected clients"
	case 1:
		return "1 connected client"
	default:
		return strconv.Itoa(count) + " connected clients"
	}
}
