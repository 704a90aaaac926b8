package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recapstudio-backend/internal/events"
	"recapstudio-backend/internal/models"
)

func dial(t *testing.T, srv *httptest.Server, query string) (*gws.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	return gws.DefaultDialer.Dial(url, nil)
}

func TestHub_RejectsMissingRunID(t *testing.T) {
	hub := NewHub(events.NewMemoryBus(), zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	_, resp, err := dial(t, srv, "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHub_ForwardsRunUpdates(t *testing.T) {
	bus := events.NewMemoryBus()
	hub := NewHub(bus, zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	runID := uuid.New()
	ws, _, err := dial(t, srv, "?run_id="+runID.String())
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return hub.Connections(runID) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), runID, models.WSMessage{
		Type:    "status_update",
		Payload: models.StatusUpdate{RunID: runID, Stage: models.StageGeneratingScript, Progress: 75},
	}))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string              `json:"type"`
		Payload models.StatusUpdate `json:"payload"`
	}
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "status_update", msg.Type)
	assert.Equal(t, models.StageGeneratingScript, msg.Payload.Stage)
	assert.Equal(t, 75, msg.Payload.Progress)

	ws.Close()
	require.Eventually(t, func() bool { return hub.Connections(runID) == 0 }, 2*time.Second, 10*time.Millisecond)
}
