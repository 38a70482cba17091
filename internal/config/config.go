// Package config loads DreamSight configuration from YAML with
// environment-variable overrides. A missing config file is not an error;
// defaults apply so the binary runs with nothing but env vars set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all DreamSight configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Cache     CacheConfig     `yaml:"cache"`
	Supabase  SupabaseConfig  `yaml:"supabase"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	APISecretKey   string   `yaml:"api_secret_key"`
	CronSecret     string   `yaml:"cron_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Rate limiting: requests per window per client IP.
	RateLimitRequests int    `yaml:"rate_limit_requests"`
	RateLimitWindow   string `yaml:"rate_limit_window"`

	MaxDreamLength int `yaml:"max_dream_length"`
	MinDreamLength int `yaml:"min_dream_length"`
}

// LLMConfig configures the Gemini text-generation client.
type LLMConfig struct {
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"base_url"`
	Timeout         string  `yaml:"timeout"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Temperature     float64 `yaml:"temperature"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	TaskType string `yaml:"task_type"`
}

// KnowledgeConfig configures the vector store.
type KnowledgeConfig struct {
	DatabasePath     string `yaml:"database_path"`
	RetrievalTimeout string `yaml:"retrieval_timeout"`
}

// AnalysisConfig configures the orchestration pipeline.
type AnalysisConfig struct {
	MaxRetries    int    `yaml:"max_retries"`
	RetryDelay    string `yaml:"retry_delay"`
	DreambookPath string `yaml:"dreambook_path"`
}

// CacheConfig configures the analyze-path result cache.
type CacheConfig struct {
	TTL     string `yaml:"ttl"`
	MaxSize int    `yaml:"max_size"`
}

// SupabaseConfig configures the external auth/persistence collaborator.
type SupabaseConfig struct {
	URL     string `yaml:"url"`
	Key     string `yaml:"key"`
	Timeout string `yaml:"timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "DreamSight",
		Version: "1.0.0",

		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			AllowedOrigins:    []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			RateLimitRequests: 5,
			RateLimitWindow:   "1m",
			MaxDreamLength:    1000,
			MinDreamLength:    10,
		},

		LLM: LLMConfig{
			Model:           "gemini-2.0-flash",
			BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
			Timeout:         "60s",
			MaxOutputTokens: 4096,
			Temperature:     0.7,
		},

		Embedding: EmbeddingConfig{
			Model:    "gemini-embedding-001",
			TaskType: "RETRIEVAL_QUERY",
		},

		Knowledge: KnowledgeConfig{
			DatabasePath:     "data/dreamsight.db",
			RetrievalTimeout: "10s",
		},

		Analysis: AnalysisConfig{
			MaxRetries: 2,
			RetryDelay: "1s",
		},

		Cache: CacheConfig{
			TTL:     "1h",
			MaxSize: 100,
		},

		Supabase: SupabaseConfig{
			Timeout: "10s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file, then applies env overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = key
		}
	}
	if key := os.Getenv("GEMINI_EMBEDDING_API_KEY"); key != "" {
		c.Embedding.APIKey = key
	}
	if url := os.Getenv("SUPABASE_URL"); url != "" {
		c.Supabase.URL = url
	}
	if key := os.Getenv("SUPABASE_KEY"); key != "" {
		c.Supabase.Key = key
	}
	if key := os.Getenv("DREAMSIGHT_API_SECRET_KEY"); key != "" {
		c.Server.APISecretKey = key
	}
	if key := os.Getenv("DREAMSIGHT_CRON_SECRET"); key != "" {
		c.Server.CronSecret = key
	}
	if port := os.Getenv("DREAMSIGHT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if path := os.Getenv("DREAMSIGHT_DB_PATH"); path != "" {
		c.Knowledge.DatabasePath = path
	}
	if origins := os.Getenv("DREAMSIGHT_ALLOWED_ORIGINS"); origins != "" {
		var list []string
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				list = append(list, o)
			}
		}
		c.Server.AllowedOrigins = list
	}
	if level := os.Getenv("DREAMSIGHT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// ParseDuration parses a duration config string, falling back to def when the
// value is empty or malformed. A bad duration should not take the service down.
func ParseDuration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

// Addr returns the host:port the HTTP server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
