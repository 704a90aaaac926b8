package sampling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreakdown(t *testing.T) {
	got := Breakdown(30, 8, 1)
	assert.Equal(t, 3, got.EstimatedClips)
	assert.Equal(t, 0, got.IntervalMinutes)
	assert.Equal(t, 8, got.IntervalSecs)
	assert.False(t, got.Overlapping)

	got = Breakdown(20000, 90, 2)
	assert.Equal(t, MaxDurationSeconds, got.DurationSeconds)
	assert.Equal(t, 3, got.DurationHours)
	assert.Equal(t, 0, got.DurationMinutes)
	assert.Equal(t, 1, got.IntervalMinutes)
	assert.Equal(t, 30, got.IntervalSecs)
	assert.Equal(t, 120, got.EstimatedClips)
}
