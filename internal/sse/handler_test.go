package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_StreamsSessionEvents(t *testing.T) {
	m := NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	h := NewHandler(m, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeSession(w, r, "ses-1")
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 32)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	next := func() string {
		select {
		case l, ok := <-lines:
			if !ok {
				return ""
			}
			return l
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for SSE line")
			return ""
		}
	}

	assert.Equal(t, "event: connected", next())
	assert.Contains(t, next(), `"session_id":"ses-1"`)
	assert.Equal(t, "", next())

	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	m.EmitToSession("ses-2", NewPlayerEvent(EventPlayerPlay, "", ""))
	m.EmitToSession("ses-1", NewPlayerEvent(EventPlayerLoad, "", "https://cdn.example/x.mp3"))

	assert.Equal(t, "event: player.load", next())
	data := next()
	assert.True(t, strings.HasPrefix(data, "data: "))
	assert.Contains(t, data, "https://cdn.example/x.mp3")
	assert.Equal(t, "", next())

	// The terminal event ends the stream.
	m.EmitToSession("ses-1", NewSessionTerminatedEvent(""))
	assert.Equal(t, "event: session.terminated", next())
	next()
	next()
	assert.Equal(t, "", next())
	require.Eventually(t, func() bool { return m.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHandler_RejectsNonGet(t *testing.T) {
	h := NewHandler(NewManager(nil), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
