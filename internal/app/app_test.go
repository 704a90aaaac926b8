package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recapstudio-backend/internal/config"
	"recapstudio-backend/internal/store"
)

func memoryConfig() *config.Config {
	return &config.Config{
		StoreBackend:         "memory",
		GeminiModel:          "gemini-1.5-flash-latest",
		GeminiBaseURL:        "http://127.0.0.1:0",
		GeminiTransport:      "rest",
		GeminiConcurrentReqs: 1,
		GeminiTimeout:        time.Second,
		ScriptLanguage:       "English",
		Overlay: config.Overlay{
			GenreDefaults: map[string]config.GenreDefault{
				"Western": {ClipDuration: 6, IntervalPattern: 15},
			},
		},
	}
}

func TestNew_MemoryBackend(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), zerolog.Nop(), false)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &store.Memory{}, a.KV)
	assert.Nil(t, a.Redis)
	assert.Nil(t, a.PGPool)
	assert.NotNil(t, a.Scripts)
	assert.NotNil(t, a.Enrichment)
	assert.False(t, a.Engine.Loaded())

	got := a.Advisor.Suggest("western")
	assert.Equal(t, 6, got.ClipDuration)
	assert.Equal(t, 15, got.IntervalPattern)
}

func TestNew_RejectsUnknownTransport(t *testing.T) {
	cfg := memoryConfig()
	cfg.GeminiTransport = "carrier-pigeon"

	_, err := New(context.Background(), cfg, zerolog.Nop(), false)
	assert.Error(t, err)
}
