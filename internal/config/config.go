package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DotEnvCandidates are the locations searched for a .env file, in order.
var DotEnvCandidates = []string{".env", "../.env"}

// Config holds all configuration for docqa
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RAG       RAGConfig       `mapstructure:"rag"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Session   SessionConfig   `mapstructure:"session"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
}

// AdminConfig holds admin authentication configuration
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig holds the history database configuration.
// An empty path disables history recording.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig holds transient upload storage configuration
type StorageConfig struct {
	TempDir string `mapstructure:"temp_dir"`
}

// RAGConfig holds chunking, embedding and retrieval parameters
type RAGConfig struct {
	ChunkSize      int `mapstructure:"chunk_size"`
	ChunkOverlap   int `mapstructure:"chunk_overlap"`
	EmbedBatchSize int `mapstructure:"embed_batch_size"`
	TopK           int `mapstructure:"top_k"`
	ContextChars   int `mapstructure:"context_chars"`
}

// LLMConfig holds LLM provider configuration
type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	ChatModel      string        `mapstructure:"chat_model"`
	Temperature    float64       `mapstructure:"temperature"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// SessionConfig bounds the live session registry
type SessionConfig struct {
	MaxSessions int           `mapstructure:"max_sessions"`
	TTL         time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

// LogConfig selects the zap preset
type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// LoadDotEnv loads the first existing file among candidates, overriding any
// variables already present in the environment. It returns the loaded path,
// or "" when no candidate exists.
func LoadDotEnv(candidates ...string) (string, error) {
	if len(candidates) == 0 {
		candidates = DotEnvCandidates
	}
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return "", fmt.Errorf("failed to load %s: %w", path, err)
		}
		return path, nil
	}
	return "", nil
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("DOCQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "DOCQA_LLM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.LLM.APIKey = strings.TrimSpace(cfg.LLM.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration produced by Load with no file and an empty environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("admin.api_key", "")

	v.SetDefault("database.path", "./data/docqa.db")
	v.SetDefault("storage.temp_dir", "")

	v.SetDefault("rag.chunk_size", 800)
	v.SetDefault("rag.chunk_overlap", 100)
	v.SetDefault("rag.embed_batch_size", 50)
	v.SetDefault("rag.top_k", 3)
	v.SetDefault("rag.context_chars", 400)

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.chat_model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 0)

	v.SetDefault("session.max_sessions", 1000)
	v.SetDefault("session.ttl", "1h")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.burst", 10)

	v.SetDefault("log.development", false)
}

// Validate checks the parameters the pipelines depend on
func (c *Config) Validate() error {
	switch {
	case c.RAG.ChunkSize <= 0:
		return fmt.Errorf("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize)
	case c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize:
		return fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size), got %d", c.RAG.ChunkOverlap)
	case c.RAG.EmbedBatchSize <= 0:
		return fmt.Errorf("rag.embed_batch_size must be positive, got %d", c.RAG.EmbedBatchSize)
	case c.RAG.TopK <= 0:
		return fmt.Errorf("rag.top_k must be positive, got %d", c.RAG.TopK)
	case c.Session.MaxSessions <= 0:
		return fmt.Errorf("session.max_sessions must be positive, got %d", c.Session.MaxSessions)
	case c.Session.TTL <= 0:
		return fmt.Errorf("session.ttl must be positive, got %s", c.Session.TTL)
	case c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0:
		return fmt.Errorf("rate_limit.requests_per_minute must be positive, got %d", c.RateLimit.RequestsPerMinute)
	case c.RateLimit.Enabled && c.RateLimit.Burst <= 0:
		return fmt.Errorf("rate_limit.burst must be positive, got %d", c.RateLimit.Burst)
	}
	return nil
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
