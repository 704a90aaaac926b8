package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recapstudio-backend/internal/store"
)

func TestStats_CountersStartAtZero(t *testing.T) {
	stats, err := NewStatsService(store.NewMemory()).Get(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.RecapsCreated)
	assert.Zero(t, stats.AverageRating)
}

func TestStats_IncrementRecaps(t *testing.T) {
	ctx := context.Background()
	svc := NewStatsService(store.NewMemory())

	require.NoError(t, svc.IncrementRecaps(ctx))
	require.NoError(t, svc.IncrementRecaps(ctx))

	stats, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.RecapsCreated)
}

func TestStats_RateOncePerClient(t *testing.T) {
	ctx := context.Background()
	svc := NewStatsService(store.NewMemory())

	stats, err := svc.Rate(ctx, "client-a", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.RatingCount)

	_, err = svc.Rate(ctx, "client-a", 4)
	assert.ErrorIs(t, err, ErrAlreadyRated)

	stats, err = svc.Rate(ctx, "client-b", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(9), stats.TotalRatingSum)
	assert.Equal(t, int64(2), stats.RatingCount)
	assert.Equal(t, 4.5, stats.AverageRating)
}

func TestStats_RejectsOutOfRangeRating(t *testing.T) {
	svc := NewStatsService(store.NewMemory())

	for _, r := range []int{0, 6, -1} {
		_, err := svc.Rate(context.Background(), "c", r)
		assert.ErrorIs(t, err, ErrInvalidRating)
	}
}

// failingKV fails writes to one key and delegates everything else.
type failingKV struct {
	*store.Memory
	failKey string
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if key == f.failKey {
		return errors.New("write refused")
	}
	return f.Memory.Set(ctx, key, value)
}

func TestStats_FailedRatingWriteDoesNotMarkRater(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{Memory: store.NewMemory(), failKey: statsKey}
	svc := NewStatsService(kv)

	_, err := svc.Rate(ctx, "client-a", 5)
	require.Error(t, err)

	_, err = kv.Get(ctx, ratedKeyPrefix+"client-a")
	assert.ErrorIs(t, err, store.ErrNotFound)

	kv.failKey = ""
	stats, err := svc.Rate(ctx, "client-a", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.RatingCount)
}
