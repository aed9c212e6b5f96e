package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values
const (
	DefaultMaxBodySize int64 = 8 * 1024 * 1024 // 8MB, diffs can be large
	DefaultConfigPath        = "config.yaml"
)

// LogRotation configures lumberjack-based file rotation.
type LogRotation struct {
	MaxSize    int  `yaml:"max_size"` // megabytes
	MaxBackups int  `yaml:"max_backups"`
	MaxAge     int  `yaml:"max_age"` // days
	Compress   bool `yaml:"compress"`
}

// LLMConfig selects and configures the LLM backend.
type LLMConfig struct {
	Backend     string        `yaml:"backend"` // openai, langchain, gemini
	Model       string        `yaml:"model"`
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"api_key"` // From YAML or Env
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

// EmbeddingConfig configures the batch embedder.
type EmbeddingConfig struct {
	Model     string        `yaml:"model"`
	Endpoint  string        `yaml:"endpoint"`
	APIKey    string        `yaml:"-"` // From Env
	Dimension int           `yaml:"dimension"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// QdrantConfig configures the vector store connection.
type QdrantConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	APIKey           string        `yaml:"-"` // From Env
	UseTLS           bool          `yaml:"use_tls"`
	CollectionPrefix string        `yaml:"collection_prefix"`
	Timeout          time.Duration `yaml:"timeout"`
}

// IndexingConfig bounds repository indexing.
type IndexingConfig struct {
	IncludePatterns []string `yaml:"include_patterns"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
	MaxFileSize     int64    `yaml:"max_file_size"` // bytes
	MaxFiles        int      `yaml:"max_files"`
	MaxChunks       int      `yaml:"max_chunks"`
	BatchSize       int      `yaml:"batch_size"`
	MaxChunkSize    int      `yaml:"max_chunk_size"` // characters
	MinChunkSize    int      `yaml:"min_chunk_size"` // characters
	ChunkOverlap    int      `yaml:"chunk_overlap"`  // characters
}

// ReviewConfig bounds the review pipeline.
type ReviewConfig struct {
	MaxParallelStage1 int     `yaml:"max_parallel_stage_1"`
	MaxFilesPerBatch  int     `yaml:"max_files_per_batch"`
	TopK              int     `yaml:"top_k"`
	MinScore          float64 `yaml:"min_score"`
	PriorityReranking bool    `yaml:"priority_reranking"`
	RepairAttempts    int     `yaml:"repair_attempts"`
	MaxContextChars   int     `yaml:"max_context_chars"`
	PRIndexing        bool    `yaml:"pr_indexing"` // hybrid mode
}

// PromptsConfig holds configuration for prompt loading
type PromptsConfig struct {
	Dir string `yaml:"dir"` // Root directory for prompt template overrides
}

// StorageConfig holds configuration for review audit persistence
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite
	DSN    string `yaml:"dsn"`    // Connection string
}

// Config holds the configuration for the review orchestrator
type Config struct {
	Log struct {
		Level    string      `yaml:"level"`  // DEBUG, INFO, WARN, ERROR
		Format   string      `yaml:"format"` // text, json
		Output   string      `yaml:"output"` // stdout, stderr, /path/to/file
		Rotation LogRotation `yaml:"rotation"`
	} `yaml:"log"`

	Server struct {
		Port         int           `yaml:"port"`
		Workers      int           `yaml:"workers"`
		QueueSize    int           `yaml:"queue_size"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		MaxBodySize  int64         `yaml:"max_body_size"`
	} `yaml:"server"`

	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Review    ReviewConfig    `yaml:"review"`
	Prompts   PromptsConfig   `yaml:"prompts"`
	Storage   StorageConfig   `yaml:"storage"`
}

// GetLogLevel returns the slog.Level based on Log.Level string
func (c *Config) GetLogLevel() slog.Level {
	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadConfig loads configuration from YAML file and supplements with environment variables
func LoadConfig() *Config {
	cfg := Defaults()

	// Try to load from YAML
	configPath := getEnv("CONFIG_PATH", DefaultConfigPath)
	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			slog.Error("unmarshal config failed", "error", err, "path", configPath)
			os.Exit(1)
		}
		slog.Info("config loaded", "path", configPath)
	} else {
		if !os.IsNotExist(err) {
			slog.Error("read config failed", "error", err, "path", configPath)
			os.Exit(1)
		}
		slog.Info("config not found, using defaults", "path", configPath)
	}

	// Always supplement/override with environment variables for secrets and critical items
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.Embedding.APIKey = getEnv("EMBEDDING_API_KEY", getEnv("LLM_API_KEY", cfg.Embedding.APIKey))
	cfg.Qdrant.APIKey = getEnv("QDRANT_API_KEY", cfg.Qdrant.APIKey)

	if envPort := getEnvInt("PORT", 0); envPort != 0 {
		cfg.Server.Port = envPort
	}
	if envLogLevel := os.Getenv("LOG_LEVEL"); envLogLevel != "" {
		cfg.Log.Level = envLogLevel
	}
	if envLogFormat := os.Getenv("LOG_FORMAT"); envLogFormat != "" {
		cfg.Log.Format = envLogFormat
	}
	if envLogOutput := os.Getenv("LOG_OUTPUT"); envLogOutput != "" {
		cfg.Log.Output = envLogOutput
	}

	return cfg
}

// Defaults returns a Config populated with every default value.
func Defaults() *Config {
	cfg := &Config{}

	cfg.Log.Level = "INFO"
	cfg.Log.Format = "text"
	cfg.Log.Output = "stdout"
	cfg.Log.Rotation = LogRotation{MaxSize: 100, MaxBackups: 5, MaxAge: 28, Compress: true}

	cfg.Server.Port = 8080
	cfg.Server.Workers = 2
	cfg.Server.QueueSize = 16
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Minute // reviews are slow
	cfg.Server.MaxBodySize = DefaultMaxBodySize

	cfg.LLM.Backend = "openai"
	cfg.LLM.Model = "gpt-4o"
	cfg.LLM.Endpoint = "https://api.openai.com/v1"
	cfg.LLM.Temperature = 0.1
	cfg.LLM.Timeout = 5 * time.Minute
	cfg.LLM.MaxRetries = 3
	cfg.LLM.Backoff = 1 * time.Second
	cfg.LLM.MaxBackoff = 30 * time.Second

	cfg.Embedding.Model = "text-embedding-3-small"
	cfg.Embedding.Endpoint = "https://api.openai.com/v1"
	cfg.Embedding.Dimension = 1536
	cfg.Embedding.BatchSize = 64
	cfg.Embedding.Timeout = 60 * time.Second

	cfg.Qdrant.Host = "localhost"
	cfg.Qdrant.Port = 6334
	cfg.Qdrant.CollectionPrefix = "repo"
	cfg.Qdrant.Timeout = 15 * time.Second

	cfg.Indexing.ExcludePatterns = DefaultExcludePatterns
	cfg.Indexing.MaxFileSize = 1 << 20 // 1MB
	cfg.Indexing.MaxFiles = 10000
	cfg.Indexing.MaxChunks = 200000
	cfg.Indexing.BatchSize = 50
	cfg.Indexing.MaxChunkSize = 4000
	cfg.Indexing.MinChunkSize = 100
	cfg.Indexing.ChunkOverlap = 200

	cfg.Review.MaxParallelStage1 = 5
	cfg.Review.MaxFilesPerBatch = 7
	cfg.Review.TopK = 12
	cfg.Review.MinScore = 0.35
	cfg.Review.PriorityReranking = true
	cfg.Review.RepairAttempts = 2
	cfg.Review.MaxContextChars = 24000

	cfg.Prompts.Dir = "prompts"

	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	if c.LLM.APIKey == "" {
		errs = append(errs, "LLM_API_KEY is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid server port: %d", c.Server.Port))
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, "embedding dimension must be positive")
	}
	if c.Qdrant.Host == "" {
		errs = append(errs, "qdrant host is required")
	}
	if c.Review.MaxFilesPerBatch < 1 {
		errs = append(errs, "max_files_per_batch must be at least 1")
	}
	if c.Review.MaxParallelStage1 < 1 {
		errs = append(errs, "max_parallel_stage_1 must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
