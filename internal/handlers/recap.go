package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"recapstudio-backend/internal/models"
	"recapstudio-backend/internal/recap"
	"recapstudio-backend/internal/worker"
)

const maxUploadBytes = 2 << 30

var allowedVideoExts = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".m4v":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
}

type RecapHandler struct {
	orchestrator *recap.Orchestrator
	pool         *worker.Pool
	registry     *worker.Registry
	videos       *recap.FileVideoStore
	downloader   recap.Downloader
	uploadDir    string
	logger       zerolog.Logger
}

func NewRecapHandler(
	orchestrator *recap.Orchestrator,
	pool *worker.Pool,
	registry *worker.Registry,
	videos *recap.FileVideoStore,
	downloader recap.Downloader,
	uploadDir string,
	logger zerolog.Logger,
) *RecapHandler {
	return &RecapHandler{
		orchestrator: orchestrator,
		pool:         pool,
		registry:     registry,
		videos:       videos,
		downloader:   downloader,
		uploadDir:    uploadDir,
		logger:       logger.With().Str("component", "recap_handler").Logger(),
	}
}

// Create handles POST /recaps. The multipart form carries a "settings" JSON
// part and either a "video" file or a source_url.
func (h *RecapHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "Video exceeds the upload limit", r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Expected a multipart form", r))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var settings models.RecapSettings
	if raw := r.FormValue("settings"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &settings); err != nil {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"settings": "must be valid JSON"}, r))
			return
		}
	}
	if u := strings.TrimSpace(r.FormValue("source_url")); u != "" {
		settings.SourceURL = u
	}

	source, cleanup, err := h.source(r, settings)
	if err != nil {
		var fieldErr *uploadError
		if errors.As(err, &fieldErr) {
			writeJSON(w, fieldErr.status, errorRespWithFields(fieldErr.code, fieldErr.message,
				map[string]string{"video": fieldErr.message}, r))
			return
		}
		h.logger.Error().Err(err).Msg("failed to spool upload")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store the uploaded video", r))
		return
	}

	ticket, err := h.orchestrator.Reserve(recap.Request{Settings: settings, Source: source})
	if err != nil {
		cleanup()
		var runErr *recap.RunError
		switch {
		case errors.As(err, &runErr) && runErr.Kind == recap.KindValidation:
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", runErr.Message, runErr.Fields, r))
		case errors.Is(err, recap.ErrRunInProgress):
			writeJSON(w, http.StatusConflict, errorResp("RUN_IN_PROGRESS", "A recap is already being created. Please wait for it to finish.", r))
		default:
			h.logger.Error().Err(err).Msg("failed to reserve run")
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to start the recap", r))
		}
		return
	}

	if err := h.pool.Submit(worker.Job{Ticket: ticket, Settings: settings, Cleanup: cleanup}); err != nil {
		cleanup()
		writeJSON(w, http.StatusServiceUnavailable, errorResp("QUEUE_FULL", "The recap queue is full. Please try again shortly.", r))
		return
	}

	plan := ticket.Plan()
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id":          ticket.RunID(),
		"estimated_clips": plan.EstimatedClips,
		"overlapping":     plan.Overlapping,
	})
}

type uploadError struct {
	status  int
	code    string
	message string
}

func (e *uploadError) Error() string {
	return e.message
}

// source picks the uploaded file over the URL. The returned cleanup removes
// whatever was spooled and is always safe to call.
func (h *RecapHandler) source(r *http.Request, settings models.RecapSettings) (recap.Source, func(), error) {
	noop := func() {}

	file, header, err := r.FormFile("video")
	if errors.Is(err, http.ErrMissingFile) {
		if settings.SourceURL == "" {
			return nil, noop, nil
		}
		if h.downloader == nil {
			return nil, noop, &uploadError{http.StatusBadRequest, "VALIDATION_ERROR", "Video links are not supported by this server"}
		}
		return &recap.URLSource{URL: settings.SourceURL, Downloader: h.downloader}, noop, nil
	}
	if err != nil {
		return nil, noop, &uploadError{http.StatusBadRequest, "VALIDATION_ERROR", "Could not read the uploaded video"}
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, _ := io.ReadFull(file, buf)
	mimeType := http.DetectContentType(buf[:n])
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !isAllowedVideo(mimeType, ext) {
		return nil, noop, &uploadError{http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", "File type not supported"}
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, noop, fmt.Errorf("rewind upload: %w", err)
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return nil, noop, fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(h.uploadDir, "upload-"+uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return nil, noop, fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		return nil, noop, fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return nil, noop, fmt.Errorf("close upload file: %w", err)
	}

	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger.Warn().Err(err).Str("path", path).Msg("failed to remove upload")
		}
	}
	return recap.FileSource{Path: path, DisplayName: header.Filename}, cleanup, nil
}

func isAllowedVideo(mimeType, ext string) bool {
	if strings.HasPrefix(mimeType, "video/") {
		return true
	}
	return mimeType == "application/octet-stream" && allowedVideoExts[ext]
}

// Get handles GET /recaps/{id}.
func (h *RecapHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := runIDParam(w, r)
	if !ok {
		return
	}

	run, found := h.registry.Get(id)
	if !found {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Recap run not found", r))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Video handles GET /recaps/{id}/video.
func (h *RecapHandler) Video(w http.ResponseWriter, r *http.Request) {
	id, ok := runIDParam(w, r)
	if !ok {
		return
	}

	run, found := h.registry.Get(id)
	if !found || run.Output == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Recap video not available", r))
		return
	}

	f, err := h.videos.Open(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Recap video not available", r))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to read recap video", r))
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeContent(w, r, id.String()+".mp4", info.ModTime(), f)
}

// ReleaseVideo handles DELETE /recaps/{id}/video. The output is detached
// from the run and its file removed.
func (h *RecapHandler) ReleaseVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := runIDParam(w, r)
	if !ok {
		return
	}

	if _, found := h.registry.TakeOutput(id); !found {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Recap video not available", r))
		return
	}

	if err := h.videos.Release(id); err != nil {
		h.logger.Error().Err(err).Str("run_id", id.String()).Msg("failed to release video")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to release recap video", r))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
