package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Key-value store
	StoreBackend string
	DatabaseURL  string
	RedisURL     string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiBaseURL        string
	GeminiTransport      string
	GeminiConcurrentReqs int
	GeminiTimeout        time.Duration
	ScriptLanguage       string

	// YouTube
	YouTubeAPIKey string

	// Media
	StoragePath   string
	EngineWorkDir string
	FFmpegThreads int

	// Workers
	WorkerQueueSize    int
	CachePurgeSchedule string

	// Frontend
	FrontendURL string

	// Overlay holds values only settable from the YAML file named by CONFIG_FILE.
	Overlay Overlay
}

// Overlay is the optional YAML configuration file.
type Overlay struct {
	GenreDefaults      map[string]GenreDefault `yaml:"genre_defaults"`
	ScriptInstructions string                  `yaml:"script_instructions"`
}

type GenreDefault struct {
	ClipDuration    int `yaml:"clip_duration"`
	IntervalPattern int `yaml:"interval_pattern"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		StoreBackend:         getEnvOrDefault("STORE_BACKEND", "redis"),
		DatabaseURL:          getEnvOrDefault("DATABASE_URL", ""),
		RedisURL:             getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash-latest"),
		GeminiBaseURL:        getEnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiTransport:      getEnvOrDefault("GEMINI_TRANSPORT", "rest"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 2),
		GeminiTimeout:        getEnvAsDurationOrDefault("GEMINI_TIMEOUT", 60*time.Second),
		ScriptLanguage:       getEnvOrDefault("SCRIPT_LANGUAGE", "Hebrew"),
		YouTubeAPIKey:        getEnvOrDefault("YOUTUBE_API_KEY", ""),
		StoragePath:          getEnvOrDefault("STORAGE_PATH", "./recaps"),
		EngineWorkDir:        getEnvOrDefault("ENGINE_WORK_DIR", ""),
		FFmpegThreads:        getEnvAsIntOrDefault("FFMPEG_THREADS", 0),
		WorkerQueueSize:      getEnvAsIntOrDefault("WORKER_QUEUE_SIZE", 4),
		CachePurgeSchedule:   getEnvOrDefault("CACHE_PURGE_SCHEDULE", "@hourly"),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		overlay, err := LoadOverlay(path)
		if err != nil {
			return nil, err
		}
		cfg.Overlay = *overlay
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case "memory", "redis":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.GeminiTransport {
	case "rest", "sdk":
	default:
		return fmt.Errorf("unsupported GEMINI_TRANSPORT %q", c.GeminiTransport)
	}

	if c.GeminiConcurrentReqs < 1 {
		c.GeminiConcurrentReqs = 1
	}
	if c.WorkerQueueSize < 1 {
		c.WorkerQueueSize = 1
	}
	return nil
}

// LoadOverlay reads the YAML overlay file.
func LoadOverlay(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var overlay Overlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	for genre, d := range overlay.GenreDefaults {
		if d.ClipDuration < 1 || d.IntervalPattern < 1 {
			return nil, fmt.Errorf("genre_defaults.%s: clip_duration and interval_pattern must be positive", genre)
		}
	}
	return &overlay, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
