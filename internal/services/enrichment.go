package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"recapstudio-backend/internal/models"
	"recapstudio-backend/internal/store"
)

const learningSourcePrefix = "youtube_learning_source:"

// StyleAnalyzer derives editing-style hints for a channel.
type StyleAnalyzer interface {
	AnalyzeChannel(ctx context.Context, channelID, apiKey string) ([]models.StyleAnalysis, error)
}

// Enrichment is the optional context added to a script prompt. Either part
// may be empty.
type Enrichment struct {
	Movie  *models.MovieInfo
	Styles []models.StyleAnalysis
}

// EnrichmentService runs the metadata and style lookups for a run.
type EnrichmentService struct {
	cache  *EnrichmentCache
	lookup MetadataLookup
	styles StyleAnalyzer
	kv     store.KV
	now    func() time.Time
	logger zerolog.Logger
}

func NewEnrichmentService(cache *EnrichmentCache, lookup MetadataLookup, styles StyleAnalyzer, kv store.KV, logger zerolog.Logger) *EnrichmentService {
	return &EnrichmentService{
		cache:  cache,
		lookup: lookup,
		styles: styles,
		kv:     kv,
		now:    time.Now,
		logger: logger.With().Str("component", "enrichment").Logger(),
	}
}

// Enrich performs whichever lookups the settings enable. Failures of one
// lookup do not prevent the other; every failure is returned joined with
// whatever data was gathered.
func (s *EnrichmentService) Enrich(ctx context.Context, settings models.RecapSettings) (Enrichment, error) {
	var out Enrichment
	var errs []error

	if settings.EnableEnrichmentSearch && settings.Title != "" {
		movie, err := s.movieInfo(ctx, settings.Title, settings.Genre)
		if err != nil {
			errs = append(errs, err)
		} else {
			out.Movie = movie
		}
	}

	if settings.EnableStyleLearning && settings.ChannelID != "" && s.styles != nil {
		styles, err := s.styles.AnalyzeChannel(ctx, settings.ChannelID, settings.YouTubeAPIKey)
		if err != nil {
			errs = append(errs, err)
		} else {
			out.Styles = styles
		}
	}

	return out, errors.Join(errs...)
}

// movieInfo serves the lookup from the cache, filling it on a miss. Cache
// errors degrade to a direct lookup.
func (s *EnrichmentService) movieInfo(ctx context.Context, title, genre string) (*models.MovieInfo, error) {
	key := CacheKey(title, genre)

	payload, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("enrichment cache read failed")
	}
	if hit {
		var movie models.MovieInfo
		if err := json.Unmarshal(payload, &movie); err == nil {
			return &movie, nil
		}
		s.logger.Warn().Str("key", key).Msg("discarding undecodable cache payload")
	}

	movie, err := s.lookup.Lookup(ctx, title, genre)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(movie)
	if err == nil {
		err = s.cache.Set(ctx, key, data)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("enrichment cache write failed")
	}
	return movie, nil
}

// RecordLearningSource upserts the channel's top analysed video.
func (s *EnrichmentService) RecordLearningSource(ctx context.Context, channelID string, styles []models.StyleAnalysis) error {
	if channelID == "" || len(styles) == 0 {
		return nil
	}
	top := styles[0]
	return store.SetJSON(ctx, s.kv, learningSourcePrefix+channelID, models.LearningSource{
		ChannelID:      channelID,
		VideoID:        top.SourceVideoID,
		EditingStyle:   top.EditingStyle,
		TransitionTags: top.TransitionTags,
		AnalyzedVideos: len(styles),
		RecordedAt:     s.now().UTC(),
	})
}
