package sampling

import "recapstudio-backend/internal/models"

// Breakdown clamps raw settings and splits them into the fields the
// settings form shows.
func Breakdown(duration, interval, capture int) models.TimingBreakdown {
	plan := NewPlan(duration, interval, capture)
	d := Decompose(plan.DurationSeconds)

	return models.TimingBreakdown{
		DurationSeconds: plan.DurationSeconds,
		IntervalSeconds: plan.IntervalSeconds,
		CaptureSeconds:  plan.CaptureSeconds,
		DurationHours:   d.Hours,
		DurationMinutes: d.Minutes,
		DurationSecs:    d.Seconds,
		IntervalMinutes: plan.IntervalSeconds / 60,
		IntervalSecs:    plan.IntervalSeconds % 60,
		EstimatedClips:  plan.EstimatedClips,
		Overlapping:     plan.Overlapping,
	}
}
