package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueue_Worker_TransitionsStatus(t *testing.T) {
	q := NewQueue(1, nil)
	q.Start(func(_ context.Context, _ *OrchestrationRun) error { return nil })
	defer q.Stop()

	run, _ := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: "k1",
		Payload:   batchPayload("p1"),
	})

	require.Eventually(t, func() bool {
		got, ok := q.Get(run.ID)
		if !ok || got == nil {
			return false
		}
		return got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)
}
