package models

import (
	"encoding/json"
	"time"
)

type CriticalMoment struct {
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
}

// MovieInfo is the enrichment payload returned by the metadata lookup.
type MovieInfo struct {
	Title           string           `json:"title"`
	Genre           string           `json:"genre"`
	Plot            string           `json:"plot"`
	KeyScenes       []string         `json:"key_scenes"`
	Themes          []string         `json:"themes"`
	CriticalMoments []CriticalMoment `json:"critical_moments"`
}

type WebSearchCacheEntry struct {
	QueryKey  string          `json:"query_key"`
	Payload   json.RawMessage `json:"payload"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type StyleAnalysis struct {
	SourceVideoID            string   `json:"source_video_id"`
	EditingStyle             string   `json:"editing_style"`
	AverageClipLengthSeconds int      `json:"average_clip_length_seconds"`
	TransitionTags           []string `json:"transition_tags"`
	PopularityScore          float64  `json:"popularity_score"`
}

type LearningSource struct {
	ChannelID      string    `json:"channel_id"`
	VideoID        string    `json:"video_id"`
	EditingStyle   string    `json:"editing_style"`
	TransitionTags []string  `json:"transition_tags"`
	AnalyzedVideos int       `json:"analyzed_videos"`
	RecordedAt     time.Time `json:"recorded_at"`
}

type StyleWeights struct {
	Pacing         float64 `json:"pacing"`
	DramaTiming    float64 `json:"drama_timing"`
	ComedyTiming   float64 `json:"comedy_timing"`
	ActionSequence float64 `json:"action_sequence"`
}

type LearningPattern struct {
	ClipDuration    int          `json:"clip_duration"`
	IntervalPattern int          `json:"interval_pattern"`
	Genre           string       `json:"genre"`
	StyleWeights    StyleWeights `json:"style_weights"`
}

// SuggestedSettings is what the advisor returns for a genre.
type SuggestedSettings struct {
	Genre           string `json:"genre"`
	ClipDuration    int    `json:"clip_duration"`
	IntervalPattern int    `json:"interval_pattern"`
	FromHistory     bool   `json:"from_history"`
	Samples         int    `json:"samples"`
}
