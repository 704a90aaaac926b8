package sampling

import (
	"fmt"
	"strings"
)

// FilterBuilder constructs an ffmpeg video filter chain.
type FilterBuilder struct {
	filters []string
}

func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0, 2),
	}
}

// SelectWindows keeps a capture-second window at the start of every
// interval-second period of the input timeline.
func (fb *FilterBuilder) SelectWindows(interval, capture int) *FilterBuilder {
	fb.filters = append(fb.filters, fmt.Sprintf("select='lt(mod(t,%d),%d)'", interval, capture))
	return fb
}

// ResetTimestamps rewrites presentation timestamps so the kept frames play
// back to back instead of leaving gaps.
func (fb *FilterBuilder) ResetTimestamps() *FilterBuilder {
	fb.filters = append(fb.filters, "setpts=N/FRAME_RATE/TB")
	return fb
}

// Build returns the filters joined with commas
func (fb *FilterBuilder) Build() string {
	return strings.Join(fb.filters, ",")
}

// Plan is the fully resolved sampling command for one run.
type Plan struct {
	DurationSeconds int
	IntervalSeconds int
	CaptureSeconds  int
	EstimatedClips  int
	// Overlapping is set when the requested capture window was not shorter
	// than the interval. The window is clamped to the interval, so every
	// frame is kept until the duration cap is reached.
	Overlapping bool
	Filter      string
}

// NewPlan clamps the raw settings and builds the sampling filter.
func NewPlan(durationSeconds, intervalSeconds, captureSeconds int) Plan {
	duration := ClampDuration(durationSeconds)
	interval := ClampInterval(intervalSeconds)
	capture := ClampCapture(captureSeconds)

	overlapping := capture >= interval
	if capture > interval {
		capture = interval
	}

	filter := NewFilterBuilder().
		SelectWindows(interval, capture).
		ResetTimestamps().
		Build()

	return Plan{
		DurationSeconds: duration,
		IntervalSeconds: interval,
		CaptureSeconds:  capture,
		EstimatedClips:  duration / interval,
		Overlapping:     overlapping,
		Filter:          filter,
	}
}

// Args returns the ffmpeg argument vector reading input and writing output.
// Audio is dropped: the recap is a silent video narrated separately.
func (p Plan) Args(input, output string) []string {
	return []string{
		"-i", input,
		"-vf", p.Filter,
		"-an",
		"-t", fmt.Sprintf("%d", p.DurationSeconds),
		"-y",
		output,
	}
}

// ExpectedOutputSeconds estimates how long the sampled output will be given
// the length of the input, for progress reporting. Unknown input length
// (zero or negative) falls back to the duration cap.
func (p Plan) ExpectedOutputSeconds(inputSeconds float64) float64 {
	limit := float64(p.DurationSeconds)
	if inputSeconds <= 0 {
		return limit
	}
	kept := inputSeconds * float64(p.CaptureSeconds) / float64(p.IntervalSeconds)
	if kept <= 0 {
		return limit
	}
	if kept < limit {
		return kept
	}
	return limit
}
