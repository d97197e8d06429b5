package engine

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"gopkg.in/yaml.v3"
)

// Store drivers understood by store.Open.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Config holds all service configuration. It is built once in main and
// handed to every constructor; nothing reads it from package state.
type Config struct {
	MCPPort  string `yaml:"mcp_port"`
	HTTPAddr string `yaml:"http_addr"`

	LLMAPIBase         string        `yaml:"llm_api_base"`
	LLMAPIKey          string        `yaml:"llm_api_key"`
	LLMAPIKeyFallbacks []string      `yaml:"llm_api_key_fallbacks"`
	LLMModel           string        `yaml:"llm_model"`
	LLMTemperature     float64       `yaml:"llm_temperature"`
	LLMMaxTokens       int           `yaml:"llm_max_tokens"`
	LLMRPS             float64       `yaml:"llm_rps"` // 0 = unlimited
	StageTimeout       time.Duration `yaml:"stage_timeout"`

	ChunkMaxTokens     int    `yaml:"chunk_max_tokens"`
	ChunkConcurrency   int    `yaml:"chunk_concurrency"`
	TokenEncodingModel string `yaml:"token_encoding_model"`

	StoreDriver   string `yaml:"store_driver"`
	DatabaseURL   string `yaml:"database_url"`
	SQLitePath    string `yaml:"sqlite_path"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`

	RedisURL             string        `yaml:"redis_url"`
	CacheTTL             time.Duration `yaml:"cache_ttl"`
	CacheMaxEntries      int           `yaml:"cache_max_entries"`
	CacheCleanupInterval time.Duration `yaml:"cache_cleanup_interval"`

	YouTubeAPIKey         string        `yaml:"youtube_api_key"`
	YouTubeAPIKeyFallback string        `yaml:"youtube_api_key_fallback"`
	CaptionLangs          []string      `yaml:"caption_langs"`
	WebshareAPIKey        string        `yaml:"webshare_api_key"`
	FetchTimeout          time.Duration `yaml:"fetch_timeout"`

	SpeechEnabled     bool   `yaml:"speech_enabled"`
	GoogleCredentials string `yaml:"google_credentials"`
	SpeechLanguage    string `yaml:"speech_language"`
	SpeechChunkMB     int    `yaml:"speech_chunk_mb"`
	GCSBucket         string `yaml:"gcs_bucket"`
	YTDLPPath         string `yaml:"ytdlp_path"`
	FFmpegPath        string `yaml:"ffmpeg_path"`
	FFprobePath       string `yaml:"ffprobe_path"`
	WorkDir           string `yaml:"work_dir"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		MCPPort:              "8893",
		HTTPAddr:             ":8894",
		LLMAPIBase:           "https://generativelanguage.googleapis.com/v1beta/openai",
		LLMModel:             "gemini-2.5-flash",
		LLMTemperature:       0.3,
		LLMMaxTokens:         8192,
		StageTimeout:         3 * time.Minute,
		ChunkMaxTokens:       12000,
		ChunkConcurrency:     1,
		TokenEncodingModel:   "gpt-4",
		StoreDriver:          StoreSQLite,
		SQLitePath:           "go_book.db",
		MongoDatabase:        "go_book",
		CacheTTL:             6 * time.Hour,
		CacheMaxEntries:      500,
		CacheCleanupInterval: 5 * time.Minute,
		CaptionLangs:         []string{"en"},
		FetchTimeout:         20 * time.Second,
		SpeechLanguage:       "en-US",
		SpeechChunkMB:        25,
		YTDLPPath:            "yt-dlp",
		FFmpegPath:           "ffmpeg",
		FFprobePath:          "ffprobe",
		WorkDir:              os.TempDir(),
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// LoadConfig layers defaults, an optional YAML file and the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(c *Config) {
	c.MCPPort = env.Str("MCP_PORT", c.MCPPort)
	c.HTTPAddr = env.Str("HTTP_ADDR", c.HTTPAddr)

	c.LLMAPIBase = env.Str("LLM_API_BASE", c.LLMAPIBase)
	c.LLMAPIKey = env.Str("LLM_API_KEY", c.LLMAPIKey)
	if keys := env.List("LLM_API_KEY_FALLBACKS", ""); len(keys) > 0 {
		c.LLMAPIKeyFallbacks = keys
	}
	c.LLMModel = env.Str("LLM_MODEL", c.LLMModel)
	c.LLMTemperature = env.Float("LLM_TEMPERATURE", c.LLMTemperature)
	c.LLMMaxTokens = env.Int("LLM_MAX_TOKENS", c.LLMMaxTokens)
	c.LLMRPS = env.Float("LLM_RPS", c.LLMRPS)
	c.StageTimeout = env.Duration("STAGE_TIMEOUT", c.StageTimeout)

	c.ChunkMaxTokens = env.Int("CHUNK_MAX_TOKENS", c.ChunkMaxTokens)
	c.ChunkConcurrency = env.Int("CHUNK_CONCURRENCY", c.ChunkConcurrency)
	c.TokenEncodingModel = env.Str("TOKEN_ENCODING_MODEL", c.TokenEncodingModel)

	c.StoreDriver = env.Str("STORE_DRIVER", c.StoreDriver)
	c.DatabaseURL = env.Str("DATABASE_URL", c.DatabaseURL)
	c.SQLitePath = env.Str("SQLITE_PATH", c.SQLitePath)
	c.MongoURI = env.Str("MONGO_URI", c.MongoURI)
	c.MongoDatabase = env.Str("MONGO_DATABASE", c.MongoDatabase)

	c.RedisURL = env.Str("REDIS_URL", c.RedisURL)
	c.CacheTTL = env.Duration("CACHE_TTL", c.CacheTTL)
	c.CacheMaxEntries = env.Int("CACHE_MAX_ENTRIES", c.CacheMaxEntries)
	c.CacheCleanupInterval = env.Duration("CACHE_CLEANUP_INTERVAL", c.CacheCleanupInterval)

	c.YouTubeAPIKey = env.Str("YOUTUBE_API_KEY", c.YouTubeAPIKey)
	c.YouTubeAPIKeyFallback = env.Str("YOUTUBE_API_KEY_FALLBACK", c.YouTubeAPIKeyFallback)
	if langs := env.List("CAPTION_LANGS", ""); len(langs) > 0 {
		c.CaptionLangs = langs
	}
	c.WebshareAPIKey = env.Str("WEBSHARE_API_KEY", c.WebshareAPIKey)
	c.FetchTimeout = env.Duration("FETCH_TIMEOUT", c.FetchTimeout)

	c.SpeechEnabled = envBool("SPEECH_ENABLED", c.SpeechEnabled)
	c.GoogleCredentials = env.Str("GOOGLE_APPLICATION_CREDENTIALS", c.GoogleCredentials)
	c.SpeechLanguage = env.Str("SPEECH_LANGUAGE", c.SpeechLanguage)
	c.SpeechChunkMB = env.Int("SPEECH_CHUNK_MB", c.SpeechChunkMB)
	c.GCSBucket = env.Str("GCS_BUCKET", c.GCSBucket)
	c.YTDLPPath = env.Str("YTDLP_PATH", c.YTDLPPath)
	c.FFmpegPath = env.Str("FFMPEG_PATH", c.FFmpegPath)
	c.FFprobePath = env.Str("FFPROBE_PATH", c.FFprobePath)
	c.WorkDir = env.Str("WORK_DIR", c.WorkDir)

	c.LogLevel = env.Str("LOG_LEVEL", c.LogLevel)
	c.LogFormat = env.Str("LOG_FORMAT", c.LogFormat)
}

// envBool reads a boolean variable; unparsable values keep the default.
func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(env.Str(key, ""))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// Validate rejects configurations that cannot start.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("postgres store requires DATABASE_URL"))
		}
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("mongo store requires MONGO_URI"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.StoreDriver))
	}
	if c.ChunkMaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("chunk_max_tokens must be positive, got %d", c.ChunkMaxTokens))
	}
	if c.ChunkConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("chunk_concurrency must be positive, got %d", c.ChunkConcurrency))
	}
	if c.SpeechChunkMB <= 0 {
		errs = append(errs, fmt.Errorf("speech_chunk_mb must be positive, got %d", c.SpeechChunkMB))
	}
	return errors.Join(errs...)
}

// CapableLLM reports whether the LLM-driven content backend can be used.
func (c Config) CapableLLM() bool {
	return c.LLMAPIKey != "" && c.LLMAPIBase != "" && c.LLMModel != ""
}

// CapableSpeech reports whether audio transcription through Google Speech is enabled.
func (c Config) CapableSpeech() bool {
	return c.SpeechEnabled && c.YTDLPPath != "" && c.FFmpegPath != ""
}
