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

// Config holds the phytodex API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	CORS       CORSConfig       `yaml:"cors"`
	Logging    LoggingConfig    `yaml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Chat       ChatConfig       `yaml:"chat"`
	Vision     VisionConfig     `yaml:"vision"`
	Classifier ClassifierConfig `yaml:"classifier"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// CORSConfig holds browser cross-origin settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
}

// DatabaseConfig holds knowledge store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // "redis" (default) or "valkey"
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RateLimitConfig holds the per-client rate limit applied to the
// inference endpoints. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// KnowledgeConfig holds vector index and document chunking settings.
type KnowledgeConfig struct {
	Collection      string `yaml:"collection"`
	Dimensions      int    `yaml:"dimensions"`
	TopK            int    `yaml:"top_k"`
	MaxTopK         int    `yaml:"max_top_k"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	ChunkSize       int    `yaml:"chunk_size"`
	ChunkOverlap    int    `yaml:"chunk_overlap"`
	MinChunkChars   int    `yaml:"min_chunk_chars"`
	MaxBatchSize    int    `yaml:"max_batch_size"`
}

// BudgetConfig holds token budget settings for one AI provider.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// EmbeddingConfig holds the embedding provider settings. The defaults
// target Cohere embed-english-v3.0 via its OpenAI-compatible endpoint.
type EmbeddingConfig struct {
	APIKey              string       `yaml:"api_key"`
	BaseURL             string       `yaml:"base_url"`
	Model               string       `yaml:"model"`
	Dimensions          int          `yaml:"dimensions"` // 0 = provider default
	QueryInstruction    string       `yaml:"query_instruction"`
	DocumentInstruction string       `yaml:"document_instruction"`
	Budget              BudgetConfig `yaml:"budget"`
}

// ChatConfig holds the chat completion provider settings. The defaults
// target Groq llama3-70b-8192.
type ChatConfig struct {
	APIKey      string       `yaml:"api_key"`
	BaseURL     string       `yaml:"base_url"`
	Model       string       `yaml:"model"`
	Temperature float32      `yaml:"temperature"` // 0 = default (0.1)
	MaxTokens   int          `yaml:"max_tokens"`  // 0 = provider default
	Budget      BudgetConfig `yaml:"budget"`
}

// VisionConfig holds the model inference sidecar settings.
type VisionConfig struct {
	BaseURL    string               `yaml:"base_url"`
	TimeoutSec int                  `yaml:"timeout_sec"`
	Generate   VisionGenerateConfig `yaml:"generate"`
}

// VisionGenerateConfig tunes treatment text generation on the sidecar.
type VisionGenerateConfig struct {
	MaxTokens int `yaml:"max_tokens"`
	NumBeams  int `yaml:"num_beams"`
}

// ClassifierConfig holds disease label prompts and image preprocessing
// settings. Empty labels fall back to the built-in potato classes.
type ClassifierConfig struct {
	Labels []LabelConfig `yaml:"labels"`
	Image  ImageConfig   `yaml:"image"`
}

// LabelConfig pairs a disease class with its scoring prompt.
type LabelConfig struct {
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt"`
}

// ImageConfig bounds uploaded leaf photos before inference.
type ImageConfig struct {
	MaxWidth    int `yaml:"max_width"`
	MaxHeight   int `yaml:"max_height"`
	JPEGQuality int `yaml:"jpeg_quality"`
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
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Predict and chat wait on model inference.
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = int(c.RateLimit.RPS) + 1
	}

	if c.Knowledge.Collection == "" {
		c.Knowledge.Collection = "passages"
	}
	if c.Knowledge.Dimensions <= 0 {
		c.Knowledge.Dimensions = 1024
	}
	if c.Knowledge.TopK <= 0 {
		c.Knowledge.TopK = 3
	}
	if c.Knowledge.MaxTopK <= 0 {
		c.Knowledge.MaxTopK = 20
	}
	if c.Knowledge.HNSWM <= 0 {
		c.Knowledge.HNSWM = 32
	}
	if c.Knowledge.HNSWEFConstruct <= 0 {
		c.Knowledge.HNSWEFConstruct = 400
	}
	if c.Knowledge.ChunkSize <= 0 {
		c.Knowledge.ChunkSize = 1000
	}
	if c.Knowledge.ChunkOverlap <= 0 {
		c.Knowledge.ChunkOverlap = 150
	}
	if c.Knowledge.MinChunkChars <= 0 {
		c.Knowledge.MinChunkChars = 80
	}
	if c.Knowledge.MaxBatchSize <= 0 {
		c.Knowledge.MaxBatchSize = 256
	}

	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = "https://api.cohere.com/compatibility/v1"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "embed-english-v3.0"
	}

	if c.Chat.BaseURL == "" {
		c.Chat.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.Chat.Model == "" {
		c.Chat.Model = "llama3-70b-8192"
	}
	if c.Chat.Temperature <= 0 {
		c.Chat.Temperature = 0.1
	}

	if c.Vision.BaseURL == "" {
		c.Vision.BaseURL = "http://localhost:8500"
	}
	if c.Vision.TimeoutSec <= 0 {
		c.Vision.TimeoutSec = 30
	}
	if c.Vision.Generate.MaxTokens <= 0 {
		c.Vision.Generate.MaxTokens = 512
	}
	if c.Vision.Generate.NumBeams <= 0 {
		c.Vision.Generate.NumBeams = 4
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

	if err := c.Embedding.Budget.validate("embedding"); err != nil {
		return err
	}
	if err := c.Chat.Budget.validate("chat"); err != nil {
		return err
	}

	if c.Embedding.Dimensions > 0 && c.Embedding.Dimensions != c.Knowledge.Dimensions {
		return fmt.Errorf(
			"embedding.dimensions (%d) must match knowledge.dimensions (%d)",
			c.Embedding.Dimensions, c.Knowledge.Dimensions,
		)
	}
	if c.Knowledge.TopK > c.Knowledge.MaxTopK {
		return fmt.Errorf(
			"knowledge.top_k (%d) must not exceed knowledge.max_top_k (%d)",
			c.Knowledge.TopK, c.Knowledge.MaxTopK,
		)
	}
	if c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		return fmt.Errorf(
			"knowledge.chunk_overlap (%d) must be smaller than knowledge.chunk_size (%d)",
			c.Knowledge.ChunkOverlap, c.Knowledge.ChunkSize,
		)
	}

	for i, l := range c.Classifier.Labels {
		if l.Name == "" || l.Prompt == "" {
			return fmt.Errorf("classifier.labels[%d] requires both name and prompt", i)
		}
	}

	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps must not be negative, got %f", c.RateLimit.RPS)
	}

	return nil
}

func (b *BudgetConfig) validate(section string) error {
	switch b.Action {
	case "", "warn", "reject":
		return nil
	default:
		return fmt.Errorf(
			"%s.budget.action must be \"warn\" or \"reject\", got %q",
			section, b.Action,
		)
	}
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
