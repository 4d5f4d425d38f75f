// Package config loads process configuration from the environment and an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Embedding provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Vector backend names.
const (
	BackendQdrant = "qdrant"
	BackendRedis  = "redis"
)

type EmbedConfig struct {
	Provider     string
	Model        string
	OpenAIKey    string
	OpenAIURL    string
	GeminiKey    string
	OllamaURL    string
	Dimensions   int
	CacheSize    int
	CacheDB      string
	RatePerSec   float64
	MaxAttempts  int
	FailureLimit int
}

type RetrievalConfig struct {
	Backend    string
	QdrantURL  string
	Collection string
	RedisURL   string
	Namespace  string
	Threshold  float64
	Corpus     string
}

type EvalConfig struct {
	Workers     int
	CallTimeout time.Duration
	Fixtures    string
	// RatePerSec bounds API-triggered runs; zero leaves them unlimited.
	RatePerSec float64
}

type GraphConfig struct {
	URL  string
	User string
	Pass string
}

type ServerConfig struct {
	Port       string
	CORSOrigin string
	NATSURL    string
	LogLevel   string
}

type Config struct {
	Embed     EmbedConfig
	Retrieval RetrievalConfig
	Eval      EvalConfig
	Graph     GraphConfig
	Server    ServerConfig
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Embed: EmbedConfig{
			Provider:     strings.ToLower(getEnv("EMBED_PROVIDER", ProviderOpenAI)),
			Model:        getEnv("EMBED_MODEL", ""),
			OpenAIKey:    getEnv("OPENAI_API_KEY", ""),
			OpenAIURL:    getEnv("OPENAI_BASE_URL", ""),
			GeminiKey:    getEnv("GEMINI_API_KEY", ""),
			OllamaURL:    getEnv("OLLAMA_URL", "http://localhost:11434"),
			Dimensions:   getEnvInt("EMBED_DIMENSIONS", 1536),
			CacheSize:    getEnvInt("EMBED_CACHE_SIZE", 1024),
			CacheDB:      getEnv("EMBED_CACHE_DB", ""),
			RatePerSec:   getEnvFloat("EMBED_RATE_PER_SEC", 20),
			MaxAttempts:  getEnvInt("EMBED_MAX_ATTEMPTS", 3),
			FailureLimit: getEnvInt("EMBED_BREAKER_FAILURES", 5),
		},
		Retrieval: RetrievalConfig{
			Backend:    strings.ToLower(getEnv("VECTOR_BACKEND", BackendQdrant)),
			QdrantURL:  getEnv("QDRANT_URL", "localhost:6334"),
			Collection: getEnv("QDRANT_COLLECTION", "travel-destination-index"),
			RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379"),
			Namespace:  getEnv("NAMESPACE", "travel-destination-namespace"),
			Threshold:  getEnvFloat("SIMILARITY_THRESHOLD", 0.75),
			Corpus:     getEnv("CORPUS_FILE", "destinations.json"),
		},
		Eval: EvalConfig{
			Workers:     getEnvInt("EVAL_WORKERS", 4),
			CallTimeout: getEnvDuration("EVAL_CALL_TIMEOUT", 10*time.Second),
			Fixtures:    getEnv("EVAL_FIXTURES", ""),
			RatePerSec:  getEnvFloat("EVAL_RATE_PER_SEC", 0),
		},
		Graph: GraphConfig{
			URL:  getEnv("NEO4J_URL", ""),
			User: getEnv("NEO4J_USER", "neo4j"),
			Pass: getEnv("NEO4J_PASS", "password"),
		},
		Server: ServerConfig{
			Port:       getEnv("PORT", "8080"),
			CORSOrigin: getEnv("CORS_ORIGIN", "*"),
			NATSURL:    getEnv("NATS_URL", ""),
			LogLevel:   getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

// Validate checks ranges and enumerated values. It does not require API keys,
// since Ollama and Redis deployments run without them.
func (c *Config) Validate() error {
	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be within [0,1], got %g", c.Retrieval.Threshold)
	}
	if c.Embed.Dimensions <= 0 {
		return fmt.Errorf("EMBED_DIMENSIONS must be positive, got %d", c.Embed.Dimensions)
	}
	switch c.Embed.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("EMBED_PROVIDER must be one of openai, gemini, ollama, got %q", c.Embed.Provider)
	}
	switch c.Retrieval.Backend {
	case BackendQdrant, BackendRedis:
	default:
		return fmt.Errorf("VECTOR_BACKEND must be qdrant or redis, got %q", c.Retrieval.Backend)
	}
	if c.Eval.Workers <= 0 {
		return fmt.Errorf("EVAL_WORKERS must be positive, got %d", c.Eval.Workers)
	}
	if c.Eval.RatePerSec < 0 {
		return fmt.Errorf("EVAL_RATE_PER_SEC must not be negative, got %g", c.Eval.RatePerSec)
	}
	if c.Eval.CallTimeout <= 0 {
		return fmt.Errorf("EVAL_CALL_TIMEOUT must be positive, got %s", c.Eval.CallTimeout)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("10s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
