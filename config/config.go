package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	EnableAdmin    bool     `yaml:"enable_admin"`
}

// CorpusConfig points at the scraped case-study files.
type CorpusConfig struct {
	Path             string `yaml:"path"`
	PDFLicenseKey    string `yaml:"-"`
	MaxDocumentBytes int64  `yaml:"max_document_bytes"`
}

type ChunkingConfig struct {
	Strategy string `yaml:"strategy"`
	Size     int    `yaml:"size"`
	Overlap  int    `yaml:"overlap"`
}

// EmbedderConfig selects the embedding service. Provider is "ollama" or
// "openai" (any OpenAI-compatible endpoint).
type EmbedderConfig struct {
	Provider    string `yaml:"provider"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	APIKey      string `yaml:"-"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
	CacheSize   int    `yaml:"cache_size"`
}

// LLMConfig selects the completion service. Provider is "gemini", "openai"
// (OpenAI-compatible, e.g. Groq) or "ollama".
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"-"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// IndexConfig selects the vector index backend: "chromem", "chroma" or "pgvector".
type IndexConfig struct {
	Provider   string `yaml:"provider"`
	Collection string `yaml:"collection"`
	Dimension  int    `yaml:"dimension"`
	Path       string `yaml:"path"`
	URL        string `yaml:"url"`
	DSN        string `yaml:"-"`
}

type RetrievalConfig struct {
	TopK       int `yaml:"top_k"`
	SearchTopK int `yaml:"search_top_k"`
}

type SynthesisConfig struct {
	HighThreshold   float64 `yaml:"high_threshold"`
	MediumThreshold float64 `yaml:"medium_threshold"`
	HighMinChunks   int     `yaml:"high_min_chunks"`
}

// TimeoutConfig bounds every external call.
type TimeoutConfig struct {
	Router    time.Duration `yaml:"router"`
	Embedding time.Duration `yaml:"embedding"`
	Retrieval time.Duration `yaml:"retrieval"`
	Synthesis time.Duration `yaml:"synthesis"`
	Build     time.Duration `yaml:"build"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Caller bool   `yaml:"caller"`
}

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	LLM       LLMConfig       `yaml:"llm"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8000",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Corpus: CorpusConfig{
			Path:             "./data/scraped_articles",
			MaxDocumentBytes: 10 << 20,
		},
		Chunking: ChunkingConfig{Strategy: "window", Size: 1000, Overlap: 200},
		Embedder: EmbedderConfig{
			Provider:    "ollama",
			BaseURL:     "http://localhost:11434",
			Model:       "all-minilm",
			BatchSize:   32,
			Concurrency: 4,
			CacheSize:   512,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.2,
			MaxTokens:   2048,
		},
		Index: IndexConfig{
			Provider:   "chromem",
			Collection: "convotrack-casestudies",
			Dimension:  384,
			Path:       "./data/index",
			URL:        "http://localhost:8001",
		},
		Retrieval: RetrievalConfig{TopK: 15, SearchTopK: 5},
		Synthesis: SynthesisConfig{HighThreshold: 0.75, MediumThreshold: 0.5, HighMinChunks: 3},
		Timeouts: TimeoutConfig{
			Router:    10 * time.Second,
			Embedding: 30 * time.Second,
			Retrieval: 10 * time.Second,
			Synthesis: 90 * time.Second,
			Build:     30 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// .env and environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Corpus.Path, "CONVOTRACK_CORPUS_PATH")
	setString(&cfg.Corpus.PDFLicenseKey, "UNIDOC_LICENSE_KEY")
	setString(&cfg.Index.Provider, "CONVOTRACK_INDEX_PROVIDER")
	setString(&cfg.Index.URL, "CHROMA_URL")
	setString(&cfg.Index.DSN, "DATABASE_URL")
	setString(&cfg.Embedder.Provider, "CONVOTRACK_EMBEDDER_PROVIDER")
	setString(&cfg.Embedder.BaseURL, "CONVOTRACK_EMBEDDER_BASE_URL")
	setString(&cfg.Embedder.APIKey, "EMBEDDING_API_KEY")
	setString(&cfg.LLM.Provider, "CONVOTRACK_LLM_PROVIDER")
	setString(&cfg.LLM.Model, "CONVOTRACK_LLM_MODEL")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	if v, err := strconv.ParseBool(os.Getenv("CONVOTRACK_ENABLE_ADMIN")); err == nil {
		cfg.Server.EnableAdmin = v
	}
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "gemini":
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			cfg.LLM.APIKey = firstNonEmpty(os.Getenv("GROQ_API_KEY"), os.Getenv("OPENAI_API_KEY"))
		}
	}
	if cfg.Embedder.APIKey == "" && cfg.Embedder.Provider == "openai" {
		cfg.Embedder.APIKey = firstNonEmpty(os.Getenv("HUGGINGFACE_API_TOKEN"), os.Getenv("OPENAI_API_KEY"))
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Chunking.Strategy == "" {
		cfg.Chunking.Strategy = def.Chunking.Strategy
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = def.Chunking.Size
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = def.Embedder.BatchSize
	}
	if cfg.Embedder.Concurrency == 0 {
		cfg.Embedder.Concurrency = def.Embedder.Concurrency
	}
	if cfg.Index.Dimension == 0 {
		cfg.Index.Dimension = def.Index.Dimension
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = def.Index.Collection
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.Retrieval.SearchTopK == 0 {
		cfg.Retrieval.SearchTopK = def.Retrieval.SearchTopK
	}
	if cfg.Synthesis.HighMinChunks == 0 {
		cfg.Synthesis.HighMinChunks = def.Synthesis.HighMinChunks
	}
	t := &cfg.Timeouts
	for _, pair := range []struct {
		dst *time.Duration
		def time.Duration
	}{
		{&t.Router, def.Timeouts.Router},
		{&t.Embedding, def.Timeouts.Embedding},
		{&t.Retrieval, def.Timeouts.Retrieval},
		{&t.Synthesis, def.Timeouts.Synthesis},
		{&t.Build, def.Timeouts.Build},
	} {
		if *pair.dst <= 0 {
			*pair.dst = pair.def
		}
	}
}

// Validate rejects configurations that cannot produce a working pipeline.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return errors.New("config: chunking.size must be greater than zero")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("config: chunking.overlap %d must be in [0, %d)", c.Chunking.Overlap, c.Chunking.Size)
	}
	switch c.Chunking.Strategy {
	case "window", "recursive":
	default:
		return fmt.Errorf("config: unknown chunking.strategy %q", c.Chunking.Strategy)
	}
	switch c.Index.Provider {
	case "chromem", "chroma":
	case "pgvector":
		if c.Index.DSN == "" {
			return errors.New("config: pgvector index requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("config: unknown index.provider %q", c.Index.Provider)
	}
	if c.Index.Dimension <= 0 {
		return errors.New("config: index.dimension must be greater than zero")
	}
	switch c.Embedder.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("config: unknown embedder.provider %q", c.Embedder.Provider)
	}
	switch c.LLM.Provider {
	case "gemini", "openai", "ollama":
	default:
		return fmt.Errorf("config: unknown llm.provider %q", c.LLM.Provider)
	}
	if c.Synthesis.MediumThreshold > c.Synthesis.HighThreshold {
		return errors.New("config: synthesis.medium_threshold must not exceed high_threshold")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
