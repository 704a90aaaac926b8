package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"recapstudio-backend/internal/sampling"
	"recapstudio-backend/internal/services"
)

type SettingsHandler struct {
	advisor *services.Advisor
}

func NewSettingsHandler(advisor *services.Advisor) *SettingsHandler {
	return &SettingsHandler{advisor: advisor}
}

// Suggest handles GET /settings/suggest?genre=.
func (h *SettingsHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	genre := strings.TrimSpace(r.URL.Query().Get("genre"))
	if genre == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"genre": "genre is required"}, r))
		return
	}
	writeJSON(w, http.StatusOK, h.advisor.Suggest(genre))
}

// Timing handles GET /settings/timing. Missing values fall back to the
// studio defaults of 30s duration, 8s interval and 1s capture.
func (h *SettingsHandler) Timing(w http.ResponseWriter, r *http.Request) {
	fields := make(map[string]string)
	duration := queryInt(r, "duration", 30, fields)
	interval := queryInt(r, "interval", 8, fields)
	capture := queryInt(r, "capture", 1, fields)
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	writeJSON(w, http.StatusOK, sampling.Breakdown(duration, interval, capture))
}

func queryInt(r *http.Request, name string, def int, fields map[string]string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		fields[name] = "must be an integer"
		return def
	}
	return v
}
