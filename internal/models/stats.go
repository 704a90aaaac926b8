package models

// AppStats are the public usage counters.
type AppStats struct {
	RecapsCreated  int64   `json:"recaps_created"`
	TotalRatingSum int64   `json:"total_rating_sum"`
	RatingCount    int64   `json:"rating_count"`
	AverageRating  float64 `json:"average_rating"`
}

type RatingRequest struct {
	Rating int `json:"rating"`
}

// TimingBreakdown is the hours:minutes:seconds view of the sampling settings.
type TimingBreakdown struct {
	DurationSeconds int  `json:"duration_seconds"`
	IntervalSeconds int  `json:"interval_seconds"`
	CaptureSeconds  int  `json:"capture_seconds"`
	DurationHours   int  `json:"duration_hours"`
	DurationMinutes int  `json:"duration_minutes"`
	DurationSecs    int  `json:"duration_secs"`
	IntervalMinutes int  `json:"interval_minutes"`
	IntervalSecs    int  `json:"interval_secs"`
	EstimatedClips  int  `json:"estimated_clips"`
	Overlapping     bool `json:"overlapping"`
}
