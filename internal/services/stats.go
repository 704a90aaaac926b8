package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"recapstudio-backend/internal/models"
	"recapstudio-backend/internal/store"
)

const (
	statsKey       = "app_stats"
	ratedKeyPrefix = "has_rated:"
)

var (
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrAlreadyRated  = errors.New("this client has already submitted a rating")
)

// StatsService keeps the usage counters. Updates are serialized within the
// process; there is no cross-process consistency.
type StatsService struct {
	kv store.KV
	mu sync.Mutex
}

func NewStatsService(kv store.KV) *StatsService {
	return &StatsService{kv: kv}
}

type statsRecord struct {
	RecapsCreated  int64 `json:"recaps_created"`
	TotalRatingSum int64 `json:"total_rating_sum"`
	RatingCount    int64 `json:"rating_count"`
}

func (s *StatsService) Get(ctx context.Context) (*models.AppStats, error) {
	var rec statsRecord
	if _, err := store.GetJSON(ctx, s.kv, statsKey, &rec); err != nil {
		return nil, err
	}
	return toAppStats(rec), nil
}

// IncrementRecaps adds one to the recaps created counter.
func (s *StatsService) IncrementRecaps(ctx context.Context) error {
	return s.update(ctx, func(rec *statsRecord) error {
		rec.RecapsCreated++
		return nil
	})
}

// Rate records a 1 to 5 rating, once per rater.
func (s *StatsService) Rate(ctx context.Context, rater string, rating int) (*models.AppStats, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	if rater == "" {
		return nil, fmt.Errorf("rater id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ratedKey := ratedKeyPrefix + rater
	if _, err := s.kv.Get(ctx, ratedKey); err == nil {
		return nil, ErrAlreadyRated
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var rec statsRecord
	if _, err := store.GetJSON(ctx, s.kv, statsKey, &rec); err != nil {
		return nil, err
	}
	rec.TotalRatingSum += int64(rating)
	rec.RatingCount++

	// Count first: a failed write must not mark the rater.
	if err := store.SetJSON(ctx, s.kv, statsKey, rec); err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, ratedKey, []byte("true")); err != nil {
		return nil, err
	}
	return toAppStats(rec), nil
}

func (s *StatsService) update(ctx context.Context, fn func(*statsRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec statsRecord
	if _, err := store.GetJSON(ctx, s.kv, statsKey, &rec); err != nil {
		return err
	}
	if err := fn(&rec); err != nil {
		return err
	}
	return store.SetJSON(ctx, s.kv, statsKey, rec)
}

func toAppStats(rec statsRecord) *models.AppStats {
	stats := &models.AppStats{
		RecapsCreated:  rec.RecapsCreated,
		TotalRatingSum: rec.TotalRatingSum,
		RatingCount:    rec.RatingCount,
	}
	if rec.RatingCount > 0 {
		stats.AverageRating = math.Round(float64(rec.TotalRatingSum)/float64(rec.RatingCount)*10) / 10
	}
	return stats
}
