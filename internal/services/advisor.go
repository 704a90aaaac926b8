package services

import (
	"context"
	"math"
	"strings"
	"sync"

	"recapstudio-backend/internal/models"
	"recapstudio-backend/internal/store"
)

const (
	learningDataKey    = "ai_learning_data"
	maxLearningHistory = 100
)

// GenreDefault is a suggested clip length and interval, in seconds.
type GenreDefault struct {
	ClipDuration    int
	IntervalPattern int
}

var fallbackDefault = GenreDefault{ClipDuration: 3, IntervalPattern: 8}

// DefaultGenreSettings returns the built-in suggestion table.
func DefaultGenreSettings() map[string]GenreDefault {
	return map[string]GenreDefault{
		"action":      {2, 6},
		"comedy":      {3, 8},
		"drama":       {4, 10},
		"horror":      {3, 7},
		"scifi":       {3, 8},
		"thriller":    {2, 6},
		"romance":     {4, 10},
		"documentary": {5, 12},
	}
}

// DefaultStyleWeights are attached to every recorded outcome.
func DefaultStyleWeights() models.StyleWeights {
	return models.StyleWeights{
		Pacing:         0.8,
		DramaTiming:    0.7,
		ComedyTiming:   0.6,
		ActionSequence: 0.9,
	}
}

// Advisor keeps the last 100 successful settings and suggests new ones per
// genre. The whole history is written back on every change.
type Advisor struct {
	kv       store.KV
	defaults map[string]GenreDefault

	mu      sync.RWMutex
	history []models.LearningPattern
}

// NewAdvisor merges overrides over the built-in defaults.
func NewAdvisor(kv store.KV, overrides map[string]GenreDefault) *Advisor {
	defaults := DefaultGenreSettings()
	for genre, d := range overrides {
		defaults[normalizeGenre(genre)] = d
	}
	return &Advisor{kv: kv, defaults: defaults}
}

// Load replaces the in-memory history with the persisted one. A missing key
// leaves the history empty.
func (a *Advisor) Load(ctx context.Context) error {
	var history []models.LearningPattern
	if _, err := store.GetJSON(ctx, a.kv, learningDataKey, &history); err != nil {
		return err
	}
	if len(history) > maxLearningHistory {
		history = history[len(history)-maxLearningHistory:]
	}

	a.mu.Lock()
	a.history = history
	a.mu.Unlock()
	return nil
}

// RecordOutcome appends one successful run, evicting the oldest entry past
// the cap, and persists the collection.
func (a *Advisor) RecordOutcome(ctx context.Context, genre string, clipDuration, intervalPattern int) error {
	a.mu.Lock()
	a.history = append(a.history, models.LearningPattern{
		ClipDuration:    clipDuration,
		IntervalPattern: intervalPattern,
		Genre:           normalizeGenre(genre),
		StyleWeights:    DefaultStyleWeights(),
	})
	if len(a.history) > maxLearningHistory {
		a.history = append([]models.LearningPattern(nil), a.history[len(a.history)-maxLearningHistory:]...)
	}
	snapshot := append([]models.LearningPattern(nil), a.history...)
	a.mu.Unlock()

	return store.SetJSON(ctx, a.kv, learningDataKey, snapshot)
}

// Suggest returns the rounded mean of recorded outcomes for genre, or the
// default for the genre when there are none.
func (a *Advisor) Suggest(genre string) models.SuggestedSettings {
	genre = normalizeGenre(genre)

	a.mu.RLock()
	defer a.mu.RUnlock()

	var clipSum, intervalSum, n int
	for _, p := range a.history {
		if p.Genre != genre {
			continue
		}
		clipSum += p.ClipDuration
		intervalSum += p.IntervalPattern
		n++
	}

	if n == 0 {
		d, ok := a.defaults[genre]
		if !ok {
			d = fallbackDefault
		}
		return models.SuggestedSettings{Genre: genre, ClipDuration: d.ClipDuration, IntervalPattern: d.IntervalPattern}
	}

	return models.SuggestedSettings{
		Genre:           genre,
		ClipDuration:    roundMean(clipSum, n),
		IntervalPattern: roundMean(intervalSum, n),
		FromHistory:     true,
		Samples:         n,
	}
}

// History returns a copy of the recorded outcomes, oldest first.
func (a *Advisor) History() []models.LearningPattern {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.LearningPattern(nil), a.history...)
}

func roundMean(sum, n int) int {
	return int(math.Floor(float64(sum)/float64(n) + 0.5))
}

func normalizeGenre(genre string) string {
	return strings.ToLower(strings.TrimSpace(genre))
}
