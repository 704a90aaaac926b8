package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"recapstudio-backend/internal/models"
	"recapstudio-backend/internal/services"
)

const clientIDHeader = "X-Client-ID"

type StatsHandler struct {
	stats  *services.StatsService
	logger zerolog.Logger
}

func NewStatsHandler(stats *services.StatsService, logger zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		stats:  stats,
		logger: logger.With().Str("component", "stats_handler").Logger(),
	}
}

// Get handles GET /stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Get(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load stats")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load stats", r))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Rate handles POST /stats/rating. Each client may rate once; clients are
// told apart by X-Client-ID, falling back to their address.
func (h *StatsHandler) Rate(w http.ResponseWriter, r *http.Request) {
	var req models.RatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	stats, err := h.stats.Rate(r.Context(), raterID(r), req.Rating)
	switch {
	case errors.Is(err, services.ErrInvalidRating):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"rating": "must be between 1 and 5"}, r))
	case errors.Is(err, services.ErrAlreadyRated):
		writeJSON(w, http.StatusConflict, errorResp("ALREADY_RATED", "You have already rated the studio", r))
	case err != nil:
		h.logger.Error().Err(err).Msg("failed to record rating")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to record rating", r))
	default:
		writeJSON(w, http.StatusOK, stats)
	}
}

func raterID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(clientIDHeader)); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
