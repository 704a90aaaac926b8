package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"recapstudio-backend/internal/events"
	"recapstudio-backend/internal/handlers"
	"recapstudio-backend/internal/services"
	"recapstudio-backend/internal/store"
	"recapstudio-backend/internal/websocket"
)

func TestRouter_Wiring(t *testing.T) {
	kv := store.NewMemory()
	r := New(Handlers{
		Settings: handlers.NewSettingsHandler(services.NewAdvisor(kv, nil)),
		Stats:    handlers.NewStatsHandler(services.NewStatsService(kv), zerolog.Nop()),
		Health:   handlers.NewHealthHandler(nil, nil),
		WSHub:    websocket.NewHub(events.NewMemoryBus(), zerolog.Nop()),
	}, "*", zerolog.Nop())

	tests := []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/v1/settings/suggest?genre=drama", http.StatusOK},
		{http.MethodGet, "/api/v1/settings/timing", http.StatusOK},
		{http.MethodGet, "/api/v1/stats", http.StatusOK},
		{http.MethodGet, "/api/v1/ws", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.status, rr.Code)
			assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
		})
	}
}
