// Package sampling turns recap timing settings into the numbers and the
// ffmpeg filter expression used to cut a highlight video.
package sampling

const (
	MinDurationSeconds = 1
	MaxDurationSeconds = 3 * 60 * 60
	MinIntervalSeconds = 1
	MinCaptureSeconds  = 1

	maxDurationHours = 3
	maxFieldValue    = 59
)

// ClampDuration bounds a total output duration to [1, 10800] seconds.
func ClampDuration(seconds int) int {
	if seconds < MinDurationSeconds {
		return MinDurationSeconds
	}
	if seconds > MaxDurationSeconds {
		return MaxDurationSeconds
	}
	return seconds
}

// ClampInterval bounds a sampling period to at least one second.
func ClampInterval(seconds int) int {
	if seconds < MinIntervalSeconds {
		return MinIntervalSeconds
	}
	return seconds
}

// ClampCapture bounds a capture window to at least one second.
func ClampCapture(seconds int) int {
	if seconds < MinCaptureSeconds {
		return MinCaptureSeconds
	}
	return seconds
}

// EstimatedClipCount is floor(duration/interval) after clamping. It is only
// used for display.
func EstimatedClipCount(durationSeconds, intervalSeconds int) int {
	return ClampDuration(durationSeconds) / ClampInterval(intervalSeconds)
}

// HMS is an hours:minutes:seconds decomposition of a number of seconds.
type HMS struct {
	Hours   int
	Minutes int
	Seconds int
}

// Total returns the number of seconds represented, without clamping.
func (h HMS) Total() int {
	return h.Hours*3600 + h.Minutes*60 + h.Seconds
}

// Decompose splits total seconds into hours, minutes and seconds.
func Decompose(total int) HMS {
	if total < 0 {
		total = 0
	}
	return HMS{
		Hours:   total / 3600,
		Minutes: (total % 3600) / 60,
		Seconds: total % 60,
	}
}

// RecomposeDuration is the inverse of Decompose for the overall duration.
// Each field is capped the way the settings form caps it and the total is
// clamped to [1, 10800].
func RecomposeDuration(h HMS) int {
	h.Hours = clampField(h.Hours, maxDurationHours)
	h.Minutes = clampField(h.Minutes, maxFieldValue)
	h.Seconds = clampField(h.Seconds, maxFieldValue)
	return ClampDuration(h.Total())
}

// RecomposeInterval rebuilds an interval from minutes and seconds, clamped to
// at least one second. Minutes are not capped.
func RecomposeInterval(minutes, seconds int) int {
	if minutes < 0 {
		minutes = 0
	}
	if seconds < 0 {
		seconds = 0
	}
	return ClampInterval(minutes*60 + seconds)
}

// SetDurationField replaces one field of the current duration and returns the
// new clamped total. part is "hours", "minutes" or "seconds".
func SetDurationField(current int, part string, value int) int {
	h := Decompose(current)
	switch part {
	case "hours":
		h.Hours = value
	case "minutes":
		h.Minutes = value
	case "seconds":
		h.Seconds = value
	}
	return RecomposeDuration(h)
}

// SetIntervalField replaces the minutes or seconds of an interval.
func SetIntervalField(current int, part string, value int) int {
	minutes, seconds := current/60, current%60
	switch part {
	case "minutes":
		minutes = value
	case "seconds":
		seconds = value
	}
	return RecomposeInterval(minutes, seconds)
}

func clampField(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
