package models

import (
	"time"

	"github.com/google/uuid"
)

// Stage is one state of a recap run. Stages only move forward; Completed and
// Error are terminal.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageLoadingEngine    Stage = "loading_engine"
	StageEnriching        Stage = "enriching"
	StageSamplingVideo    Stage = "sampling_video"
	StageGeneratingScript Stage = "generating_script"
	StageCompleted        Stage = "completed"
	StageError            Stage = "error"
)

var stageOrder = map[Stage]int{
	StageIdle:             0,
	StageLoadingEngine:    1,
	StageEnriching:        2,
	StageSamplingVideo:    3,
	StageGeneratingScript: 4,
	StageCompleted:        5,
	StageError:            5,
}

// Terminal reports whether no further transition may leave the stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// Before reports whether s comes strictly earlier in the run than other.
func (s Stage) Before(other Stage) bool {
	return stageOrder[s] < stageOrder[other]
}

type RecapSettings struct {
	DurationSeconds int    `json:"duration_seconds"`
	IntervalSeconds int    `json:"interval_seconds"`
	CaptureSeconds  int    `json:"capture_seconds"`
	Title           string `json:"title"`
	Genre           string `json:"genre"`
	Description     string `json:"description"`

	ChannelID              string `json:"channel_id,omitempty"`
	EnableEnrichmentSearch bool   `json:"enable_enrichment_search"`
	EnableStyleLearning    bool   `json:"enable_style_learning"`

	// Credentials for the external APIs. Never serialized back to clients.
	GeminiAPIKey  string `json:"gemini_api_key,omitempty"`
	YouTubeAPIKey string `json:"youtube_api_key,omitempty"`

	// SourceURL is an optional YouTube link used instead of an uploaded file.
	SourceURL string `json:"source_url,omitempty"`
}

// Redacted returns a copy with credentials removed, safe to log or echo.
func (s RecapSettings) Redacted() RecapSettings {
	s.GeminiAPIKey = ""
	s.YouTubeAPIKey = ""
	return s
}

type ProcessingStatus struct {
	Stage       Stage  `json:"stage"`
	Progress    int    `json:"progress"`
	Message     string `json:"message"`
	ErrorKind   string `json:"error_kind,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

// RecapOutput is the immutable result of a successful run. The holder owns the
// video referenced by VideoURL and must release it once it is no longer shown.
type RecapOutput struct {
	VideoURL       string `json:"video_url"`
	Script         string `json:"script"`
	EstimatedClips int    `json:"estimated_clips"`
}

// RecapRun is the in-memory record the server keeps for one run.
type RecapRun struct {
	ID        uuid.UUID        `json:"id"`
	Settings  RecapSettings    `json:"settings"`
	Status    ProcessingStatus `json:"status"`
	Output    *RecapOutput     `json:"output,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
