package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_URL: OpenAI-compatible endpoint URL (default: http://localhost:11434/v1)
// - LLM_API_KEY: API key, optional for local backends
// - LLM_MODEL: Default model name (default: llama3.1:8b)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 2048)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.7)
// - LLM_TIMEOUT: Request timeout in seconds (default: 120)
//
// Orchestrator Configuration:
// - DATA_DIR: Root directory for checkpoints and the run registry (default: ./data)
// - WORKFLOW_DIR: Directory of workflow definition YAML files (default: ./workflows)
// - CRON_EXPR: Schedule for the workflow sweep (default: every hour)
// - QUEUE_WORKERS: Concurrent run workers (default: 1, local GPUs rarely want more)
// - CHECKPOINT_INTERVAL: Batch results between checkpoint flushes (default: 5)
// - EXPORT_PREVIEW_CHARS: Truncation limit for text fields in CSV exports (default: 120)
// - LOG_LEVEL: debug|info|warn|error (default: info)
type Config struct {
	LLM          LLMConfig          `json:"llm"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
}

// LLMConfig holds the configuration for the LLM client
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

// OrchestratorConfig holds the configuration for the execution engine
type OrchestratorConfig struct {
	DataDir            string `json:"data_dir"`
	WorkflowDir        string `json:"workflow_dir"`
	CronExpr           string `json:"cron_expr"`
	QueueWorkers       int    `json:"queue_workers"`
	CheckpointInterval int    `json:"checkpoint_interval"`
	ExportPreviewChars int    `json:"export_preview_chars"`
	LogLevel           string `json:"log_level"`
}

// CheckpointDir is where snapshot documents live.
func (c OrchestratorConfig) CheckpointDir() string {
	return filepath.Join(c.DataDir, "checkpoints")
}

// RegistryPath is the run registry database file.
func (c OrchestratorConfig) RegistryPath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

// ExportDir is where finished batch runs drop their result exports.
func (c OrchestratorConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "http://localhost:11434/v1"),
			Model:       getEnvString("LLM_MODEL", "llama3.1:8b"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			Timeout:     getEnvInt("LLM_TIMEOUT", 120),
		},
		Orchestrator: OrchestratorConfig{
			DataDir:            getEnvString("DATA_DIR", "./data"),
			WorkflowDir:        getEnvString("WORKFLOW_DIR", "./workflows"),
			CronExpr:           getEnvString("CRON_EXPR", "0 * * * *"),
			QueueWorkers:       getEnvInt("QUEUE_WORKERS", 1),
			CheckpointInterval: getEnvInt("CHECKPOINT_INTERVAL", 5),
			ExportPreviewChars: getEnvInt("EXPORT_PREVIEW_CHARS", 120),
			LogLevel:           getEnvString("LOG_LEVEL", "info"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIURL == "" {
		return fmt.Errorf("LLM_API_URL is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL is required")
	}
	if c.Orchestrator.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.Orchestrator.QueueWorkers < 1 {
		return fmt.Errorf("QUEUE_WORKERS must be at least 1")
	}
	if c.Orchestrator.CheckpointInterval < 1 {
		return fmt.Errorf("CHECKPOINT_INTERVAL must be at least 1")
	}
	if c.Orchestrator.ExportPreviewChars < 1 {
		return fmt.Errorf("EXPORT_PREVIEW_CHARS must be at least 1")
	}
	if _, err := cron.ParseStandard(c.Orchestrator.CronExpr); err != nil {
		return fmt.Errorf("invalid CRON_EXPR: %w", err)
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
