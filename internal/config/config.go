// Package config holds all VoxelGPT configuration. Config is loaded from
// a YAML file once at startup, then selected fields can be overridden
// from the environment. Nothing on the query path re-reads config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all VoxelGPT configuration.
type Config struct {
	// LLM configures the chat model used by every chain.
	LLM LLMConfig `yaml:"llm"`

	// Embedding configures the embedding provider and on-disk cache.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Docs configures the documentation corpus and vector store.
	Docs DocsConfig `yaml:"docs"`

	// Geocoder configures the geocoding endpoint used by geo stages.
	Geocoder GeocoderConfig `yaml:"geocoder"`

	// Audit configures the user-query audit table.
	Audit AuditConfig `yaml:"audit"`

	// Logging configures categorized debug logging.
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the chat model.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // genai, ollama
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	CachePath      string `yaml:"cache_path"` // directory for cached vectors
}

// DocsConfig configures documentation retrieval.
type DocsConfig struct {
	CorpusPath  string `yaml:"corpus_path"`  // rendered-HTML documentation tree
	SidecarPath string `yaml:"sidecar_path"` // per-section embedding sidecars
	StorePath   string `yaml:"store_path"`   // sqlite-vec database file
	ChunkTokens int    `yaml:"chunk_tokens"` // target tokens per chunk
	TopK        int    `yaml:"top_k"`        // chunks retrieved per question
}

// GeocoderConfig configures the geocoding provider.
type GeocoderConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UserAgent string `yaml:"user_agent"`
	Timeout   string `yaml:"timeout"`
}

// AuditConfig configures the query audit table.
type AuditConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
	ProjectID    string `yaml:"project_id"`
	DatasetID    string `yaml:"dataset_id"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Directory string `yaml:"directory"`
	Level     string `yaml:"level"`
}

// DefaultConfig returns sensible defaults. Paths are rooted under
// ~/.voxelgpt so a bare binary works without a config file.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	root := filepath.Join(home, ".voxelgpt")

	return &Config{
		LLM: LLMConfig{
			Provider: "gemini",
			// Model and BaseURL empty: each provider client applies its
			// own defaults, so switching providers needs one knob.
			Timeout: "120s",
		},
		Embedding: EmbeddingConfig{
			Provider:       "genai",
			GenAIModel:     "gemini-embedding-001",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			CachePath:      filepath.Join(root, "embeddings"),
		},
		Docs: DocsConfig{
			CorpusPath:  filepath.Join(root, "docs_html"),
			SidecarPath: filepath.Join(root, "docs_embeddings"),
			StorePath:   filepath.Join(root, "docs.db"),
			ChunkTokens: 200,
			TopK:        5,
		},
		Geocoder: GeocoderConfig{
			Endpoint:  "https://nominatim.openstreetmap.org",
			UserAgent: "voxelgpt",
			Timeout:   "15s",
		},
		Audit: AuditConfig{
			Enabled:      false,
			DatabasePath: filepath.Join(root, "audit.db"),
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Directory: filepath.Join(root, "logs"),
			Level:     "info",
		},
	}
}

// Load reads configuration from the given YAML file, falling back to
// defaults for anything unset, then applies environment overrides.
// A missing file is not an error; defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets secrets and endpoints come from the
// environment so config files never need to hold keys.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VOXELGPT_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("VOXELGPT_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("VOXELGPT_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("VOXELGPT_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.Embedding.GenAIAPIKey == "" {
		c.Embedding.GenAIAPIKey = v
	}
	if v := os.Getenv("VOXELGPT_DOCS_CORPUS"); v != "" {
		c.Docs.CorpusPath = v
	}
	if v := os.Getenv("VOXELGPT_GEOCODER_ENDPOINT"); v != "" {
		c.Geocoder.Endpoint = v
	}
	if v := os.Getenv("VOXELGPT_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
	}
}

// Validate checks invariants that would otherwise fail deep inside the
// pipeline.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}
	switch c.Embedding.Provider {
	case "genai", "ollama":
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}
	if c.Docs.ChunkTokens <= 0 {
		return fmt.Errorf("docs.chunk_tokens must be positive")
	}
	if c.Docs.TopK <= 0 {
		return fmt.Errorf("docs.top_k must be positive")
	}
	return nil
}

// LLMTimeout parses the configured LLM timeout, defaulting to 120s.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// GeocoderTimeout parses the configured geocoder timeout, defaulting to 15s.
func (c *Config) GeocoderTimeout() time.Duration {
	d, err := time.ParseDuration(c.Geocoder.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}
