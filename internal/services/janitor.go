package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// CacheJanitor purges expired enrichment cache entries on a cron schedule.
type CacheJanitor struct {
	cache    *EnrichmentCache
	schedule string
	logger   zerolog.Logger
	cron     *cron.Cron
}

func NewCacheJanitor(cache *EnrichmentCache, schedule string, logger zerolog.Logger) *CacheJanitor {
	return &CacheJanitor{
		cache:    cache,
		schedule: schedule,
		logger:   logger.With().Str("component", "cache_janitor").Logger(),
		// Prevent overlapping purges
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
	}
}

// Start registers the purge job and starts the scheduler. An empty schedule
// disables the janitor.
func (j *CacheJanitor) Start() error {
	if j.schedule == "" {
		j.logger.Info().Msg("cache janitor disabled")
		return nil
	}

	if _, err := j.cron.AddFunc(j.schedule, j.RunOnce); err != nil {
		return fmt.Errorf("invalid cache purge schedule %q: %w", j.schedule, err)
	}

	j.cron.Start()
	j.logger.Info().Str("schedule", j.schedule).Msg("cache janitor started")
	return nil
}

// RunOnce performs a single purge.
func (j *CacheJanitor) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	purged, err := j.cache.Purge(ctx)
	if err != nil {
		j.logger.Error().Err(err).Int("purged", purged).Msg("cache purge failed")
		return
	}
	j.logger.Debug().Int("purged", purged).Msg("cache purge completed")
}

// Stop waits for a running purge to finish.
func (j *CacheJanitor) Stop() {
	<-j.cron.Stop().Done()
}
