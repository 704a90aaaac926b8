package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recapstudio-backend/internal/models"
	"recapstudio-backend/internal/store"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "inception scifi", CacheKey("  Inception ", "SciFi"))
	assert.Equal(t, "inception", CacheKey("Inception", ""))
}

func TestEnrichmentCache_SetThenGet(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	cache := NewEnrichmentCache(store.NewMemory(), clock.Now)

	require.NoError(t, cache.Set(ctx, "heat thriller", json.RawMessage(`{"plot":"p"}`)))

	payload, hit, err := cache.Get(ctx, "heat thriller")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.JSONEq(t, `{"plot":"p"}`, string(payload))
}

func TestEnrichmentCache_ExpiresAfterSevenDays(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := store.NewMemory()
	cache := NewEnrichmentCache(kv, clock.Now)

	require.NoError(t, cache.Set(ctx, "k", json.RawMessage(`1`)))

	clock.Advance(7*24*time.Hour - time.Second)
	_, hit, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, hit)

	clock.Advance(time.Second)
	_, hit, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)

	// Reads never delete.
	_, err = kv.Get(ctx, "search_cache:k")
	assert.NoError(t, err)
}

func TestEnrichmentCache_SetOverwritesAndRenewsExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	cache := NewEnrichmentCache(store.NewMemory(), clock.Now)

	require.NoError(t, cache.Set(ctx, "k", json.RawMessage(`"old"`)))
	clock.Advance(6 * 24 * time.Hour)
	require.NoError(t, cache.Set(ctx, "k", json.RawMessage(`"new"`)))
	clock.Advance(3 * 24 * time.Hour)

	payload, hit, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, `"new"`, string(payload))
}

func TestEnrichmentCache_Purge(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := store.NewMemory()
	cache := NewEnrichmentCache(kv, clock.Now)

	require.NoError(t, cache.Set(ctx, "old", json.RawMessage(`1`)))
	clock.Advance(8 * 24 * time.Hour)
	require.NoError(t, cache.Set(ctx, "fresh", json.RawMessage(`2`)))
	require.NoError(t, kv.Set(ctx, "search_cache:corrupt", []byte("{")))
	require.NoError(t, kv.Set(ctx, "ai_learning_data", []byte("[]")))

	purged, err := cache.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	keys, err := kv.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ai_learning_data", "search_cache:fresh"}, keys)
}

type countingLookup struct {
	calls int
	err   error
}

func (l *countingLookup) Lookup(ctx context.Context, title, genre string) (*models.MovieInfo, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return CatalogLookup{}.Lookup(ctx, title, genre)
}

type stubStyles struct {
	styles []models.StyleAnalysis
	err    error
	calls  int
}

func (s *stubStyles) AnalyzeChannel(ctx context.Context, channelID, apiKey string) ([]models.StyleAnalysis, error) {
	s.calls++
	return s.styles, s.err
}

func TestEnrich_CachesMetadataButNotStyles(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	lookup := &countingLookup{}
	styles := &stubStyles{styles: []models.StyleAnalysis{AnalyzeVideoStyle("v1", "Movie Recap", "", 0, 1)}}
	svc := NewEnrichmentService(NewEnrichmentCache(kv, nil), lookup, styles, kv, zerolog.Nop())

	settings := models.RecapSettings{
		Title:                  "Heat",
		Genre:                  "thriller",
		ChannelID:              "UC123",
		EnableEnrichmentSearch: true,
		EnableStyleLearning:    true,
	}

	for i := 0; i < 2; i++ {
		out, err := svc.Enrich(ctx, settings)
		require.NoError(t, err)
		require.NotNil(t, out.Movie)
		assert.Equal(t, "A comprehensive plot summary for Heat", out.Movie.Plot)
		assert.Len(t, out.Movie.KeyScenes, 5)
		require.Len(t, out.Styles, 1)
	}

	assert.Equal(t, 1, lookup.calls)
	assert.Equal(t, 2, styles.calls)
}

func TestEnrich_PartialFailureKeepsOtherResult(t *testing.T) {
	kv := store.NewMemory()
	styles := &stubStyles{err: errors.New("quota exceeded")}
	svc := NewEnrichmentService(NewEnrichmentCache(kv, nil), &countingLookup{}, styles, kv, zerolog.Nop())

	out, err := svc.Enrich(context.Background(), models.RecapSettings{
		Title:                  "Heat",
		ChannelID:              "UC123",
		EnableEnrichmentSearch: true,
		EnableStyleLearning:    true,
	})

	assert.ErrorContains(t, err, "quota exceeded")
	assert.NotNil(t, out.Movie)
	assert.Empty(t, out.Styles)
}

func TestEnrich_DisabledDoesNothing(t *testing.T) {
	kv := store.NewMemory()
	lookup := &countingLookup{}
	styles := &stubStyles{}
	svc := NewEnrichmentService(NewEnrichmentCache(kv, nil), lookup, styles, kv, zerolog.Nop())

	out, err := svc.Enrich(context.Background(), models.RecapSettings{Title: "Heat", ChannelID: "UC1"})
	require.NoError(t, err)
	assert.Nil(t, out.Movie)
	assert.Equal(t, 0, lookup.calls+styles.calls)
}

func TestRecordLearningSource(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	svc := NewEnrichmentService(NewEnrichmentCache(kv, nil), CatalogLookup{}, nil, kv, zerolog.Nop())
	svc.now = newFakeClock().Now

	styles := []models.StyleAnalysis{
		AnalyzeVideoStyle("top", "Trailer", "a comedy with action", 0, 2),
		AnalyzeVideoStyle("second", "Review", "", 1, 2),
	}
	require.NoError(t, svc.RecordLearningSource(ctx, "UC9", styles))

	var src models.LearningSource
	found, err := store.GetJSON(ctx, kv, "youtube_learning_source:UC9", &src)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "top", src.VideoID)
	assert.Equal(t, "dramatic", src.EditingStyle)
	assert.Equal(t, []string{"quick-cut", "jump-cut"}, src.TransitionTags)
	assert.Equal(t, 2, src.AnalyzedVideos)

	require.NoError(t, svc.RecordLearningSource(ctx, "UC9", nil))
}
