package jobs

import "context"

// Store persists run states for queue restart recovery.
type Store interface {
	LoadRuns(ctx context.Context) ([]*OrchestrationRun, error)
	UpsertRun(ctx context.Context, run *OrchestrationRun) error
	DeleteRun(ctx context.Context, runID string) error
}
