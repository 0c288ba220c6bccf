package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	runs map[string]*OrchestrationRun
}

func newMemoryStore() *memoryStore {
	return &memoryStore{runs: make(map[string]*OrchestrationRun)}
}

func (m *memoryStore) LoadRuns(_ context.Context) ([]*OrchestrationRun, error) {
	ret := make([]*OrchestrationRun, 0, len(m.runs))
	for _, r := range m.runs {
		ret = append(ret, cloneRun(r))
	}
	return ret, nil
}

func (m *memoryStore) UpsertRun(_ context.Context, run *OrchestrationRun) error {
	m.runs[run.ID] = cloneRun(run)
	return nil
}

func (m *memoryStore) DeleteRun(_ context.Context, runID string) error {
	delete(m.runs, runID)
	return nil
}

func TestQueue_RecoversPendingAndRunningRunsFromStore(t *testing.T) {
	store := newMemoryStore()
	now := time.Now()
	store.runs["run-1"] = &OrchestrationRun{
		ID:        "run-1",
		Source:    "cron",
		DedupeKey: "workflows/a.yaml",
		Status:    StatusPending,
		Payload:   RunPayload{Kind: KindWorkflow, DefinitionPath: "workflows/a.yaml"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	store.runs["run-2"] = &OrchestrationRun{
		ID:        "run-2",
		Source:    "cron",
		DedupeKey: "workflows/b.yaml",
		Status:    StatusRunning,
		Payload:   RunPayload{Kind: KindWorkflow, DefinitionPath: "workflows/b.yaml"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	q := NewQueue(1, store)

	runs := q.List()
	require.Len(t, runs, 2)
	byID := map[string]*OrchestrationRun{}
	for _, r := range runs {
		byID[r.ID] = r
	}
	// Runs that were mid-flight at crash time go back to pending.
	require.Contains(t, byID, "run-2")
	assert.Equal(t, StatusPending, byID["run-2"].Status)

	q.Start(func(_ context.Context, _ *OrchestrationRun) error { return nil })
	defer q.Stop()

	require.Eventually(t, func() bool {
		got, ok := q.Get("run-1")
		return ok && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		got, ok := q.Get("run-2")
		return ok && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_IDCounterContinuesAfterRecovery(t *testing.T) {
	store := newMemoryStore()
	now := time.Now()
	store.runs["run-7"] = &OrchestrationRun{
		ID:        "run-7",
		Status:    StatusSuccess,
		Payload:   batchPayload("p"),
		CreatedAt: now,
		UpdatedAt: now,
	}

	q := NewQueue(1, store)
	run, created := q.Enqueue(EnqueueRequest{Source: "manual", Payload: batchPayload("p")})
	require.True(t, created)
	assert.Equal(t, "run-8", run.ID)
}
