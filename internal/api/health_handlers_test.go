package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, Options{}, nil)

	resp := ts.api.Get("/api/v1/health")
	require.Equal(t, http.StatusOK, resp.Code)

	env := decode[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.True(t, env.Success)
	assert.Equal(t, "healthy", env.Data.Components["database"].Status)
	// No index and no SSE manager in this server.
	assert.Equal(t, "degraded", env.Data.Components["search"].Status)
	assert.Equal(t, "degraded", env.Data.Status)
	assert.Zero(t, env.Data.Sessions)
}

func TestFormatSSEStatus(t *testing.T) {
	assert.Equal(t, "no connected clients", formatSSEStatus(0))
	assert.Equal(t, "1 connected client", formatSSEStatus(1))
	assert.Equal(t, "12 connected clients", formatSSEStatus(12))
}
