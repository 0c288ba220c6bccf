package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.APIURL)
	assert.Equal(t, "llama3.1:8b", cfg.LLM.Model)
	assert.Equal(t, 1, cfg.Orchestrator.QueueWorkers)
	assert.Equal(t, 5, cfg.Orchestrator.CheckpointInterval)
	assert.Equal(t, 120, cfg.Orchestrator.ExportPreviewChars)
	assert.Equal(t, "./data", cfg.Orchestrator.DataDir)
}

func TestNewFromEnv_ReadsEnvironment(t *testing.T) {
	t.Setenv("LLM_MODEL", "qwen2.5:14b")
	t.Setenv("QUEUE_WORKERS", "2")
	t.Setenv("DATA_DIR", "/var/lib/orchestrator")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5:14b", cfg.LLM.Model)
	assert.Equal(t, 2, cfg.Orchestrator.QueueWorkers)
	assert.Equal(t, "/var/lib/orchestrator/checkpoints", cfg.Orchestrator.CheckpointDir())
	assert.Equal(t, "/var/lib/orchestrator/runs.db", cfg.Orchestrator.RegistryPath())
	assert.Equal(t, "/var/lib/orchestrator/exports", cfg.Orchestrator.ExportDir())
}

func TestNewFromEnv_InvalidValuesRejected(t *testing.T) {
	t.Run("bad cron", func(t *testing.T) {
		t.Setenv("CRON_EXPR", "not-a-cron")
		_, err := NewFromEnv()
		require.Error(t, err)
	})

	t.Run("zero workers", func(t *testing.T) {
		t.Setenv("QUEUE_WORKERS", "0")
		_, err := NewFromEnv()
		require.Error(t, err)
	})

	t.Run("zero checkpoint interval", func(t *testing.T) {
		t.Setenv("CHECKPOINT_INTERVAL", "0")
		_, err := NewFromEnv()
		require.Error(t, err)
	})

	t.Run("zero export preview chars", func(t *testing.T) {
		t.Setenv("EXPORT_PREVIEW_CHARS", "0")
		_, err := NewFromEnv()
		require.Error(t, err)
	})
}

func TestNewFromEnv_Options(t *testing.T) {
	cfg, err := NewFromEnv(func(c *Config) {
		c.Orchestrator.CheckpointInterval = 10
	})
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Orchestrator.CheckpointInterval)
}
