package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"vaultrag/internal/domain"
)

// EnvPrefix is the prefix for environment overrides. A double underscore
// separates nesting levels: VAULTRAG_EMBEDDING__MODEL sets embedding.model.
const EnvPrefix = "VAULTRAG_"

// Config holds all configuration for the vault engine.
type Config struct {
	Index      IndexConfig      `yaml:"index" koanf:"index"`
	Embedding  EmbeddingConfig  `yaml:"embedding" koanf:"embedding"`
	Retrieve   RetrieveConfig   `yaml:"retrieve" koanf:"retrieve"`
	Assemble   AssembleConfig   `yaml:"assemble" koanf:"assemble"`
	Session    SessionConfig    `yaml:"session" koanf:"session"`
	Generation GenerationConfig `yaml:"generation" koanf:"generation"`
	Server     ServerConfig     `yaml:"server" koanf:"server"`
	Logging    LoggingConfig    `yaml:"logging" koanf:"logging"`
}

// IndexConfig holds ingestion and chunking configuration.
type IndexConfig struct {
	Includes   []string `yaml:"includes" koanf:"includes"`
	Excludes   []string `yaml:"excludes" koanf:"excludes"`
	WindowSize int      `yaml:"window_size" koanf:"window_size"` // runes per chunk
	Overlap    int      `yaml:"overlap" koanf:"overlap"`         // runes shared by consecutive chunks
	Workers    int      `yaml:"workers" koanf:"workers"`
	BatchSize  int      `yaml:"batch_size" koanf:"batch_size"`
}

// EmbeddingConfig holds embedding gateway configuration.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider" koanf:"provider"` // "ollama", "openai", "mock"
	Model             string        `yaml:"model" koanf:"model"`
	BaseURL           string        `yaml:"base_url" koanf:"base_url"`
	APIKeyEnv         string        `yaml:"api_key_env" koanf:"api_key_env"`
	Dimension         int           `yaml:"dimension" koanf:"dimension"`
	Timeout           time.Duration `yaml:"timeout" koanf:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" koanf:"requests_per_second"` // 0 = unlimited
}

// RetrieveConfig holds hybrid ranking configuration.
type RetrieveConfig struct {
	TopK             int           `yaml:"top_k" koanf:"top_k"`
	WidenFactor      int           `yaml:"widen_factor" koanf:"widen_factor"`
	FilenameBonus    float64       `yaml:"filename_bonus" koanf:"filename_bonus"`
	BodyTermBonus    float64       `yaml:"body_term_bonus" koanf:"body_term_bonus"`
	MaxBodyTerms     int           `yaml:"max_body_terms" koanf:"max_body_terms"`
	TypeBoost        float64       `yaml:"type_boost" koanf:"type_boost"`
	PreferTypes      []string      `yaml:"prefer_types" koanf:"prefer_types"`
	DedupOverlapping bool          `yaml:"dedup_overlapping" koanf:"dedup_overlapping"`
	DedupBucket      int           `yaml:"dedup_bucket" koanf:"dedup_bucket"` // runes; 0 = index.window_size
	CacheSize        int           `yaml:"cache_size" koanf:"cache_size"`     // 0 disables the query cache
	CacheTTL         time.Duration `yaml:"cache_ttl" koanf:"cache_ttl"`
}

// AssembleConfig holds context assembly configuration.
type AssembleConfig struct {
	HistoryTurns       int     `yaml:"history_turns" koanf:"history_turns"`
	HistoryBudgetChars int     `yaml:"history_budget_chars" koanf:"history_budget_chars"`
	ExcerptHigh        int     `yaml:"excerpt_high" koanf:"excerpt_high"`
	ExcerptLow         int     `yaml:"excerpt_low" koanf:"excerpt_low"`
	HighRelevance      float64 `yaml:"high_relevance" koanf:"high_relevance"`
}

// SessionConfig holds conversation memory configuration.
type SessionConfig struct {
	MaxTurns    int           `yaml:"max_turns" koanf:"max_turns"`
	TTL         time.Duration `yaml:"ttl" koanf:"ttl"`
	JournalPath string        `yaml:"journal_path" koanf:"journal_path"` // empty disables the SQLite journal
}

// GenerationConfig holds the chat model configuration.
type GenerationConfig struct {
	Provider    string        `yaml:"provider" koanf:"provider"` // "openai" (any OpenAI-compatible endpoint), "mock"
	Model       string        `yaml:"model" koanf:"model"`
	BaseURL     string        `yaml:"base_url" koanf:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env" koanf:"api_key_env"`
	MaxTokens   int           `yaml:"max_tokens" koanf:"max_tokens"`
	Temperature float32       `yaml:"temperature" koanf:"temperature"`
	Timeout     time.Duration `yaml:"timeout" koanf:"timeout"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" koanf:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Includes:   []string{"**/*.md", "**/*.txt", "**/*.json"},
			Excludes:   []string{"**/.git/**", "**/.obsidian/**", "**/.vaultrag/**", "**/.trash/**", "**/node_modules/**"},
			WindowSize: 1000,
			Overlap:    200,
			Workers:    4,
			BatchSize:  16,
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			BaseURL:   "http://localhost:11434",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 768,
			Timeout:   30 * time.Second,
		},
		Retrieve: RetrieveConfig{
			TopK:          5,
			WidenFactor:   10,
			FilenameBonus: 0.5,
			BodyTermBonus: 0.1,
			MaxBodyTerms:  3,
			TypeBoost:     0.15,
			PreferTypes:   []string{string(domain.DocTypeInventory), string(domain.DocTypeHardware)},
			CacheSize:     256,
			CacheTTL:      10 * time.Minute,
		},
		Assemble: AssembleConfig{
			HistoryTurns:       6,
			HistoryBudgetChars: 2000,
			ExcerptHigh:        600,
			ExcerptLow:         300,
			HighRelevance:      0.7,
		},
		Session: SessionConfig{
			MaxTurns: 20,
			TTL:      2 * time.Hour,
		},
		Generation: GenerationConfig{
			Provider:    "openai",
			Model:       "llama3.1:8b",
			BaseURL:     "http://localhost:11434/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   1024,
			Temperature: 0.2,
			Timeout:     2 * time.Minute,
		},
		Server: ServerConfig{
			Port: 8000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (VAULTRAG_*). A missing file yields defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a vault directory
// (looks for vaultrag.yaml, then .vaultrag/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "vaultrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}
	return Load(filepath.Join(dir, ".vaultrag", "config.yaml"))
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validEmbeddingProviders = map[string]bool{"ollama": true, "openai": true, "mock": true}

var validGenerationProviders = map[string]bool{"openai": true, "mock": true}

// Validate checks that the configuration contains usable values.
// Every failure wraps domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Index.WindowSize <= 0 {
		return invalid("index.window_size must be positive")
	}
	if c.Index.Overlap < 0 || c.Index.Overlap >= c.Index.WindowSize {
		return invalid("index.overlap %d must be in [0, %d)", c.Index.Overlap, c.Index.WindowSize)
	}
	if c.Index.Workers < 1 {
		return invalid("index.workers must be at least 1")
	}
	if c.Index.BatchSize < 1 {
		return invalid("index.batch_size must be at least 1")
	}

	if !validEmbeddingProviders[c.Embedding.Provider] {
		return invalid("invalid embedding.provider %q: must be one of ollama, openai, mock", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return invalid("embedding.dimension must be positive")
	}
	if c.Embedding.RequestsPerSecond < 0 {
		return invalid("embedding.requests_per_second must be non-negative")
	}

	r := c.Retrieve
	if r.TopK < 1 || r.WidenFactor < 1 {
		return invalid("retrieve.top_k and retrieve.widen_factor must be at least 1")
	}
	if r.FilenameBonus < 0 || r.BodyTermBonus < 0 || r.TypeBoost < 0 || r.MaxBodyTerms < 0 {
		return invalid("retrieve bonuses must be non-negative")
	}
	if r.BodyTermBonus*float64(r.MaxBodyTerms)+r.TypeBoost >= r.FilenameBonus {
		return invalid("retrieve: body_term_bonus*max_body_terms + type_boost must stay below filename_bonus")
	}
	for _, t := range r.PreferTypes {
		if _, ok := domain.ParseDocType(t); !ok {
			return invalid("unknown doc type %q in retrieve.prefer_types", t)
		}
	}

	if c.Assemble.HistoryTurns < 0 || c.Assemble.HistoryBudgetChars < 0 {
		return invalid("assemble history limits must be non-negative")
	}
	if c.Session.MaxTurns < 1 {
		return invalid("session.max_turns must be at least 1")
	}
	if !validGenerationProviders[c.Generation.Provider] {
		return invalid("invalid generation.provider %q: must be one of openai, mock", c.Generation.Provider)
	}
	return nil
}

// PreferredTypes returns retrieve.prefer_types as doc types. Unknown names
// are skipped; Validate rejects them earlier.
func (c *Config) PreferredTypes() []domain.DocType {
	var types []domain.DocType
	for _, t := range c.Retrieve.PreferTypes {
		if dt, ok := domain.ParseDocType(t); ok {
			types = append(types, dt)
		}
	}
	return types
}

// Boost returns the default boost configuration for searches.
func (c *Config) Boost() domain.BoostConfig {
	return domain.BoostConfig{PreferTypes: c.PreferredTypes(), TypeBoost: c.Retrieve.TypeBoost}
}

// IndexDBPath returns the path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".vaultrag", "index.db")
}

// EnsureDataDir ensures the .vaultrag directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".vaultrag"), 0755)
}
