// Package config loads process configuration from a YAML file merged
// with .env-sourced environment variables, with sane defaults so a
// zero-value load still runs against local services.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ObsConfig struct {
	OTLP           string `yaml:"otlp"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
}

type EmbeddingConfig struct {
	BaseURL   string            `yaml:"base_url"`
	Path      string            `yaml:"path"`
	Model     string            `yaml:"model"`
	APIKey    string            `yaml:"api_key"`
	APIHeader string            `yaml:"api_header"`
	Headers   map[string]string `yaml:"headers"`
	Timeout   int               `yaml:"timeout_seconds"`
}

type LLMConfig struct {
	Backend   string `yaml:"backend"` // "openai" | "anthropic"
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
}

type QdrantConfig struct {
	DSN        string `yaml:"dsn"`
	Collection string `yaml:"collection"`
	Dimensions int    `yaml:"dimensions"`
	Metric     string `yaml:"metric"`
}

type PostgresConfig struct {
	DSN             string `yaml:"dsn"`
	NotifyChannel   string `yaml:"notify_channel"`
	RefreshOnListen bool   `yaml:"refresh_on_listen"`
}

type EncyclopediaConfig struct {
	SearchURL string `yaml:"search_url"`
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

// ResearchConfig holds every tunable named by the orchestration core.
type ResearchConfig struct {
	HistoryTokenLimit       int `yaml:"history_token_limit"`
	ContextTokenCap         int `yaml:"context_token_cap"`
	MaxIterSimple           int `yaml:"max_iter_simple"`
	MaxIterDeep             int `yaml:"max_iter_deep"`
	FuzzyMatchThreshold     int `yaml:"fuzzy_match_threshold"`
	ClassifierMaxAttempts   int `yaml:"classifier_max_attempts"`
	PlannerMaxParseAttempts int `yaml:"planner_max_parse_attempts"`
	HTTPTimeoutSeconds      int `yaml:"http_timeout_seconds"`
	FanOutWorkers           int `yaml:"fan_out_workers"`
	VectorLimit             int `yaml:"vector_limit"`
}

func (r ResearchConfig) HTTPTimeout() time.Duration {
	return time.Duration(r.HTTPTimeoutSeconds) * time.Second
}

type Config struct {
	LogPath  string             `yaml:"log_path"`
	LogLevel string             `yaml:"log_level"`
	OTel     ObsConfig          `yaml:"otel"`
	LLM      LLMConfig          `yaml:"llm"`
	Embed    EmbeddingConfig    `yaml:"embedding"`
	Qdrant   QdrantConfig       `yaml:"qdrant"`
	Postgres PostgresConfig     `yaml:"postgres"`
	Sep      EncyclopediaConfig `yaml:"encyclopedia"`
	Research ResearchConfig     `yaml:"research"`
}

// defaults mirror the literal design values enumerated in the
// orchestration core's configuration table.
func defaults() Config {
	return Config{
		LogLevel: "info",
		LLM: LLMConfig{
			Backend:   "openai",
			Model:     "gpt-4o-mini",
			MaxTokens: 2048,
		},
		Qdrant: QdrantConfig{
			DSN:        "http://localhost:6334",
			Collection: "philosophy_sources",
			Dimensions: 1536,
			Metric:     "cosine",
		},
		Postgres: PostgresConfig{
			NotifyChannel:   "sources_changed",
			RefreshOnListen: true,
		},
		Sep: EncyclopediaConfig{
			SearchURL: "https://plato.stanford.edu/search/searcher.py",
			BaseURL:   "https://plato.stanford.edu",
			UserAgent: "philoagent-research/1.0",
		},
		Embed: EmbeddingConfig{
			Path:    "/v1/embeddings",
			Model:   "text-embedding-3-small",
			Timeout: 30,
		},
		Research: ResearchConfig{
			HistoryTokenLimit:       10_000,
			ContextTokenCap:         100_000,
			MaxIterSimple:           4,
			MaxIterDeep:             8,
			FuzzyMatchThreshold:     80,
			ClassifierMaxAttempts:   3,
			PlannerMaxParseAttempts: 5,
			HTTPTimeoutSeconds:      10,
			FanOutWorkers:           2,
			VectorLimit:             1,
		},
	}
}

// Load reads an optional YAML file at path (skipped silently if empty or
// missing), then applies .env/process-environment overrides for secrets
// that should never live in a checked-in file.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	_ = godotenv.Load()
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.Backend == "openai" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.LLM.Backend == "anthropic" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embed.APIKey = v
	}
	if v := os.Getenv("QDRANT_DSN"); v != "" {
		cfg.Qdrant.DSN = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTel.OTLP = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("RESEARCH_MAX_ITER_DEEP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Research.MaxIterDeep = n
		}
	}
}
