// Package store holds the key-value collaborators used for the enrichment
// cache, the learning history and the usage counters. Values are opaque JSON
// blobs; any backend that can get and set a key is substitutable.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("store: key not found")

// KV is the narrow key-value contract the core depends on.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Scanner is implemented by backends that can enumerate and delete keys. It
// is only needed for housekeeping such as purging expired cache entries.
type Scanner interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// GetJSON loads key into dst. It reports false when the key is absent.
func GetJSON(ctx context.Context, kv KV, key string, dst interface{}) (bool, error) {
	data, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, kv KV, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, data)
}
