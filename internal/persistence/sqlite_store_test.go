package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/jobs"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_RunsRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	run := &jobs.OrchestrationRun{
		ID:        "run-1",
		Source:    "manual",
		DedupeKey: "k",
		Payload: jobs.RunPayload{
			Kind:          jobs.KindBatch,
			ModelID:       "llama3.1:8b",
			Prompts:       []string{"p1", "p2"},
			ErrorStrategy: "threshold:2",
		},
		Status:       jobs.StatusPending,
		CheckpointID: "job-abc123",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.UpsertRun(ctx, run))

	all, err := store.LoadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, run.ID, all[0].ID)
	assert.Equal(t, run.Status, all[0].Status)
	assert.Equal(t, run.Payload.Kind, all[0].Payload.Kind)
	assert.Equal(t, run.Payload.Prompts, all[0].Payload.Prompts)
	assert.Equal(t, run.Payload.ErrorStrategy, all[0].Payload.ErrorStrategy)
	assert.Equal(t, run.CheckpointID, all[0].CheckpointID)
}

func TestSQLiteStore_UpsertUpdatesExistingRun(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	run := &jobs.OrchestrationRun{
		ID:        "run-1",
		Payload:   jobs.RunPayload{Kind: jobs.KindWorkflow, DefinitionPath: "workflows/a.yaml"},
		Status:    jobs.StatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.UpsertRun(ctx, run))

	run.Status = jobs.StatusFailed
	run.Error = "backend unavailable"
	require.NoError(t, store.UpsertRun(ctx, run))

	all, err := store.LoadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, jobs.StatusFailed, all[0].Status)
	assert.Equal(t, "backend unavailable", all[0].Error)
}

func TestSQLiteStore_DeleteRun(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	run := &jobs.OrchestrationRun{
		ID:        "run-1",
		Payload:   jobs.RunPayload{Kind: jobs.KindBatch, ModelID: "m", Prompts: []string{"p"}},
		Status:    jobs.StatusSuccess,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.UpsertRun(ctx, run))
	require.NoError(t, store.DeleteRun(ctx, "run-1"))

	all, err := store.LoadRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
