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

// Config holds the recall pipeline configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Sources   SourcesConfig   `yaml:"sources"`
	Eval      EvalConfig      `yaml:"eval"`
	Ops       OpsConfig       `yaml:"ops"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider and model settings.
type EmbeddingConfig struct {
	Providers    map[string]ProviderConfig `yaml:"providers"`
	Models       map[string]ModelConfig    `yaml:"models"`
	DefaultModel string                    `yaml:"default_model"`
}

// ProviderConfig holds one OpenAI-compatible endpoint.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ModelConfig binds a model ID to a provider endpoint and a fixed dimensionality.
type ModelConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"` // имя модели на стороне API
	Dimensions int    `yaml:"dimensions"`
}

// RetrievalConfig holds hybrid search tuning.
type RetrievalConfig struct {
	Fusion          string  `yaml:"fusion"` // weighted, rrf
	WDense          float64 `yaml:"w_dense"`
	WLexical        float64 `yaml:"w_lexical"`
	RRFK            int     `yaml:"rrf_k"`
	OverfetchFactor int     `yaml:"overfetch_factor"`
	OverfetchMin    int     `yaml:"overfetch_min"`
	DefaultK        int     `yaml:"default_k"`
}

// IndexingConfig holds bulk/delta indexing tuning.
type IndexingConfig struct {
	BatchSize       int         `yaml:"batch_size"`
	Workers         int         `yaml:"workers"`
	HNSWM           int         `yaml:"hnsw_m"`
	HNSWEFConstruct int         `yaml:"hnsw_ef_construction"`
	Cache           CacheConfig `yaml:"cache"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"` // 0 = no expiry
}

// SourcesConfig holds the raw document locations.
type SourcesConfig struct {
	DumpDir       string `yaml:"dump_dir"`
	NewTicketsDir string `yaml:"new_tickets_dir"`
}

// EvalConfig holds the evaluation fixture settings.
type EvalConfig struct {
	Fixture string `yaml:"fixture"`
	K       int    `yaml:"k"`
}

// OpsConfig holds the operational HTTP listener settings.
type OpsConfig struct {
	MetricsPort int `yaml:"metrics_port"` // 0 = disabled
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

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
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Retrieval.Fusion == "" {
		c.Retrieval.Fusion = "weighted"
	}
	if c.Retrieval.WDense == 0 && c.Retrieval.WLexical == 0 {
		c.Retrieval.WDense = 0.5
		c.Retrieval.WLexical = 0.5
	}
	if c.Retrieval.RRFK <= 0 {
		c.Retrieval.RRFK = 60
	}
	if c.Retrieval.OverfetchFactor <= 0 {
		c.Retrieval.OverfetchFactor = 4
	}
	if c.Retrieval.OverfetchMin <= 0 {
		c.Retrieval.OverfetchMin = 20
	}
	if c.Retrieval.DefaultK <= 0 {
		c.Retrieval.DefaultK = 5
	}
	if c.Indexing.BatchSize <= 0 {
		c.Indexing.BatchSize = 64
	}
	if c.Indexing.Workers <= 0 {
		c.Indexing.Workers = 4
	}
	if c.Indexing.HNSWM <= 0 {
		c.Indexing.HNSWM = 32
	}
	if c.Indexing.HNSWEFConstruct <= 0 {
		c.Indexing.HNSWEFConstruct = 400
	}
	if c.Eval.K <= 0 {
		c.Eval.K = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if len(c.Embedding.Models) == 0 {
		return fmt.Errorf("embedding.models is required")
	}
	for id, m := range c.Embedding.Models {
		if m.Dimensions <= 0 {
			return fmt.Errorf("embedding.models.%s.dimensions must be positive, got %d", id, m.Dimensions)
		}
		if _, ok := c.Embedding.Providers[m.Provider]; !ok {
			return fmt.Errorf("embedding.models.%s references unknown provider %q", id, m.Provider)
		}
	}
	if c.Embedding.DefaultModel != "" {
		if _, ok := c.Embedding.Models[c.Embedding.DefaultModel]; !ok {
			return fmt.Errorf("embedding.default_model %q is not declared in embedding.models", c.Embedding.DefaultModel)
		}
	}
	switch c.Retrieval.Fusion {
	case "weighted", "rrf":
		// ok
	default:
		return fmt.Errorf("retrieval.fusion must be \"weighted\" or \"rrf\", got %q", c.Retrieval.Fusion)
	}
	if c.Ops.MetricsPort < 0 || c.Ops.MetricsPort > 65535 {
		return fmt.Errorf("ops.metrics_port must be between 0 and 65535, got %d", c.Ops.MetricsPort)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
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
