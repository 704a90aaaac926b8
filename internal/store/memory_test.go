package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetMissing(t *testing.T) {
	m := NewMemory()

	_, err := m.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_SetCopiesValue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	value := []byte(`{"a":1}`)
	require.NoError(t, m.Set(ctx, "k", value))
	value[2] = 'X'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))
}

func TestMemory_KeysAndDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "search_cache:b", []byte("1")))
	require.NoError(t, m.Set(ctx, "search_cache:a", []byte("2")))
	require.NoError(t, m.Set(ctx, "ai_learning_data", []byte("3")))

	keys, err := m.Keys(ctx, "search_cache:")
	require.NoError(t, err)
	assert.Equal(t, []string{"search_cache:a", "search_cache:b"}, keys)

	require.NoError(t, m.Delete(ctx, "search_cache:a"))
	keys, err = m.Keys(ctx, "search_cache:")
	require.NoError(t, err)
	assert.Equal(t, []string{"search_cache:b"}, keys)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	type counters struct {
		Created int `json:"created"`
	}

	var c counters
	found, err := GetJSON(ctx, m, "stats", &c)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, m, "stats", counters{Created: 4}))

	found, err = GetJSON(ctx, m, "stats", &c)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 4, c.Created)
}

func TestGetJSON_CorruptValue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "broken", []byte("{")))

	var v map[string]int
	_, err := GetJSON(ctx, m, "broken", &v)
	assert.Error(t, err)
}
