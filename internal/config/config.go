package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the prethrift API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Vision     VisionConfig     `yaml:"vision"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Guardrail  GuardrailConfig  `yaml:"guardrail"`
	Ranking    RankingConfig    `yaml:"ranking"`
	Feedback   FeedbackConfig   `yaml:"feedback"`
	Index      IndexConfig      `yaml:"index"`
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// OpenAIConfig holds credentials and the token budget shared by every
// OpenAI-backed component (embeddings, vision, extraction assist).
type OpenAIConfig struct {
	APIKey  string       `yaml:"api_key"`
	BaseURL string       `yaml:"base_url"`
	Budget  BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit      int64   `yaml:"daily_token_limit"`       // 0 = unlimited
	MonthlyTokenLimit    int64   `yaml:"monthly_token_limit"`     // 0 = unlimited
	CostPerMillionTokens float64 `yaml:"cost_per_million_tokens"` // for the usage report
	Action               string  `yaml:"action"`                  // "reject" | "warn" (default)
}

// EmbeddingConfig holds embedding settings. Dimensions are fixed for the
// lifetime of a deployment; changing them requires a full reindex.
type EmbeddingConfig struct {
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"`
}

// VisionConfig holds image description settings for ingest.
type VisionConfig struct {
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// ExtractionConfig holds attribute extraction settings. The assisted pass is
// best-effort: when disabled or failing, the rule pass alone is used.
type ExtractionConfig struct {
	AssistEnabled bool   `yaml:"assist_enabled"`
	Model         string `yaml:"model"`
	TimeoutSec    int    `yaml:"timeout_sec"`
}

// GuardrailConfig holds query gate settings.
type GuardrailConfig struct {
	// OffTopicThreshold is the minimum fashion-vocabulary token ratio;
	// queries below it are classified off-topic.
	OffTopicThreshold float64 `yaml:"offtopic_threshold"`
}

// RankingConfig holds hybrid scorer settings.
type RankingConfig struct {
	SimilarityWeight    float64 `yaml:"similarity_weight"`
	AttributeWeight     float64 `yaml:"attribute_weight"`
	PreferenceWeight    float64 `yaml:"preference_weight"`
	TextModalityWeight  float64 `yaml:"text_modality_weight"`
	ImageModalityWeight float64 `yaml:"image_modality_weight"`
	// FallbackDiscount scales the similarity term when the query vector came
	// from the deterministic fallback embedder.
	FallbackDiscount float64 `yaml:"fallback_discount"`
	// CategoryFilterConfidence is the minimum confidence for pushing the
	// extracted category down to the index as a pre-filter.
	CategoryFilterConfidence float64 `yaml:"category_filter_confidence"`
	// CandidateFactor over-fetches candidates (limit*factor) before re-ranking.
	CandidateFactor int `yaml:"candidate_factor"`
}

// FeedbackConfig holds preference learning settings.
type FeedbackConfig struct {
	Delta        float64 `yaml:"delta"`
	MaxWeight    float64 `yaml:"max_weight"`
	HalfLifeDays int     `yaml:"half_life_days"`
	DedupeTTLSec int     `yaml:"dedupe_ttl_sec"`
}

// IndexConfig holds HNSW index and batch settings.
type IndexConfig struct {
	HNSWM           int  `yaml:"hnsw_m"`
	HNSWEFConstruct int  `yaml:"hnsw_ef_construction"`
	MaxBatchSize    int  `yaml:"max_batch_size"`
	Recreate        bool `yaml:"recreate"` // drop and rebuild the index on startup
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(fmt.Sprintf("%s.yaml", env))

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Embedding.CacheTTLSec <= 0 {
		c.Embedding.CacheTTLSec = 3600
	}
	if c.Vision.Model == "" {
		c.Vision.Model = "gpt-4o-mini"
	}
	if c.Vision.TimeoutSec <= 0 {
		c.Vision.TimeoutSec = 20
	}
	if c.Extraction.Model == "" {
		c.Extraction.Model = "gpt-4o-mini"
	}
	if c.Extraction.TimeoutSec <= 0 {
		c.Extraction.TimeoutSec = 3
	}
	if c.Guardrail.OffTopicThreshold <= 0 {
		c.Guardrail.OffTopicThreshold = 0.2
	}
	if c.Ranking.SimilarityWeight <= 0 {
		c.Ranking.SimilarityWeight = 0.5
	}
	if c.Ranking.AttributeWeight <= 0 {
		c.Ranking.AttributeWeight = 0.3
	}
	if c.Ranking.PreferenceWeight <= 0 {
		c.Ranking.PreferenceWeight = 0.2
	}
	if c.Ranking.TextModalityWeight <= 0 {
		c.Ranking.TextModalityWeight = 0.6
	}
	if c.Ranking.ImageModalityWeight <= 0 {
		c.Ranking.ImageModalityWeight = 0.4
	}
	if c.Ranking.FallbackDiscount <= 0 {
		c.Ranking.FallbackDiscount = 0.5
	}
	if c.Ranking.CategoryFilterConfidence <= 0 {
		c.Ranking.CategoryFilterConfidence = 0.65
	}
	if c.Ranking.CandidateFactor <= 0 {
		c.Ranking.CandidateFactor = 3
	}
	if c.Feedback.Delta <= 0 {
		c.Feedback.Delta = 0.2
	}
	if c.Feedback.MaxWeight <= 0 {
		c.Feedback.MaxWeight = 3
	}
	if c.Feedback.HalfLifeDays <= 0 {
		c.Feedback.HalfLifeDays = 30
	}
	if c.Feedback.DedupeTTLSec <= 0 {
		c.Feedback.DedupeTTLSec = 7 * 24 * 3600
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}
	if c.Index.MaxBatchSize <= 0 {
		c.Index.MaxBatchSize = 100
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "prethrift:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.OpenAI.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"openai.budget.action must be \"warn\" or \"reject\", got %q",
			c.OpenAI.Budget.Action,
		)
	}
	if c.Guardrail.OffTopicThreshold >= 1 {
		return fmt.Errorf("guardrail.offtopic_threshold must be below 1, got %g", c.Guardrail.OffTopicThreshold)
	}
	if c.Ranking.FallbackDiscount > 1 {
		return fmt.Errorf("ranking.fallback_discount must be at most 1, got %g", c.Ranking.FallbackDiscount)
	}
	return nil
}

// findConfigPath locates a config file by name. It prefers config/ under the
// working directory, then config/ at the project root so tests run from any
// package directory still find it.
func findConfigPath(filename string) string {
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
