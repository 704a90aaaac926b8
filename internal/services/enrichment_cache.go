package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"recapstudio-backend/internal/metrics"
	"recapstudio-backend/internal/models"
	"recapstudio-backend/internal/store"
)

const (
	searchCachePrefix = "search_cache:"
	searchCacheTTL    = 7 * 24 * time.Hour
)

// EnrichmentCache stores lookup payloads for seven days. Expired entries are
// reported as misses and left in place until Purge runs.
type EnrichmentCache struct {
	kv  store.KV
	now func() time.Time
}

func NewEnrichmentCache(kv store.KV, now func() time.Time) *EnrichmentCache {
	if now == nil {
		now = time.Now
	}
	return &EnrichmentCache{kv: kv, now: now}
}

// CacheKey is the query key for a title and genre pair.
func CacheKey(title, genre string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimSpace(title) + " " + strings.TrimSpace(genre)))
}

// Get returns the payload stored under key when it has not expired.
func (c *EnrichmentCache) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var entry models.WebSearchCacheEntry
	found, err := store.GetJSON(ctx, c.kv, searchCachePrefix+key, &entry)
	if err != nil {
		return nil, false, err
	}
	if !found || !c.now().Before(entry.ExpiresAt) {
		metrics.Metrics.CacheMisses.Inc()
		return nil, false, nil
	}
	metrics.Metrics.CacheHits.Inc()
	return entry.Payload, true, nil
}

// Set writes payload under key, replacing any previous entry, with an
// expiry seven days from now.
func (c *EnrichmentCache) Set(ctx context.Context, key string, payload json.RawMessage) error {
	entry := models.WebSearchCacheEntry{
		QueryKey:  key,
		Payload:   payload,
		ExpiresAt: c.now().Add(searchCacheTTL),
	}
	return store.SetJSON(ctx, c.kv, searchCachePrefix+key, entry)
}

// Purge deletes expired entries and returns how many were removed. The store
// must implement store.Scanner.
func (c *EnrichmentCache) Purge(ctx context.Context) (int, error) {
	scanner, ok := c.kv.(store.Scanner)
	if !ok {
		return 0, errors.New("enrichment cache store cannot enumerate keys")
	}

	keys, err := scanner.Keys(ctx, searchCachePrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list cache keys: %w", err)
	}

	now := c.now()
	purged := 0
	for _, key := range keys {
		var entry models.WebSearchCacheEntry
		found, err := store.GetJSON(ctx, c.kv, key, &entry)
		if err != nil {
			// Unreadable entries can never be hits.
			if delErr := scanner.Delete(ctx, key); delErr == nil {
				purged++
			}
			continue
		}
		if !found || now.Before(entry.ExpiresAt) {
			continue
		}
		if err := scanner.Delete(ctx, key); err != nil {
			return purged, fmt.Errorf("failed to delete %s: %w", key, err)
		}
		purged++
	}

	metrics.Metrics.CachePurged.Add(float64(purged))
	return purged, nil
}
