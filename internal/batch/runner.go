package batch

import (
	"context"
	"time"

	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/checkpoint"
	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/orchestrator"
	"github.com/isndotbiz/llm-optimization-framework-sub001/pkg/log"
)

// DefaultCheckpointInterval bounds data loss on crash to at most
// interval-1 unsaved results.
const DefaultCheckpointInterval = 5

// ProgressFunc is invoked synchronously after each processed prompt with
// the current job state and the 1-based count of prompts processed so far.
// It runs on the processing goroutine and must not block indefinitely.
type ProgressFunc func(job *Job, processed int)

// Runner drives sequential batch execution with periodic checkpointing.
// Prompts run strictly in order on the calling goroutine; the only
// suspension point is the blocking call into the model executor.
type Runner struct {
	store    *checkpoint.FileStore
	interval int
}

func NewRunner(store *checkpoint.FileStore) *Runner {
	return &Runner{store: store, interval: DefaultCheckpointInterval}
}

// WithCheckpointInterval overrides the flush cadence. Values below 1 keep
// the default.
func (r *Runner) WithCheckpointInterval(n int) *Runner {
	if n >= 1 {
		r.interval = n
	}
	return r
}

// CreateJob registers a new pending job for the given model and prompts.
// An empty prompt list is rejected before any state is created.
func (r *Runner) CreateJob(modelID string, prompts []string) (*Job, error) {
	if len(prompts) == 0 {
		return nil, orchestrator.NewError(orchestrator.ErrInvalidInput, "prompt list is empty")
	}
	if modelID == "" {
		return nil, orchestrator.NewError(orchestrator.ErrInvalidInput, "model id is required")
	}

	id := newJobID()
	job := &Job{
		ID:           id,
		ModelID:      modelID,
		Prompts:      append([]string(nil), prompts...),
		TotalPrompts: len(prompts),
		Status:       StatusPending,
		CheckpointID: id,
	}
	return job, nil
}

// ProcessBatch runs every prompt of the job in order against the executor,
// applying the parsed error strategy and flushing a checkpoint every
// interval results and once more at the end regardless of outcome.
//
// An early stop forced by the error strategy is not an error return: the
// job ends in StatusFailed and the partial results are flushed and
// returned. The error return covers invalid arguments only.
func (r *Runner) ProcessBatch(ctx context.Context, job *Job, exec orchestrator.ModelExecutor, errorStrategy string, progress ProgressFunc) ([]Result, error) {
	if job == nil {
		return nil, orchestrator.NewError(orchestrator.ErrInvalidInput, "job is nil")
	}
	if exec == nil {
		return nil, orchestrator.NewError(orchestrator.ErrInvalidInput, "executor is nil")
	}
	if job.Status.Terminal() {
		return nil, orchestrator.NewError(orchestrator.ErrInvalidInput, "job already finished").
			WithContext("job_id", job.ID).
			WithContext("status", string(job.Status))
	}

	strategy := ParseErrorStrategy(errorStrategy)

	now := time.Now()
	job.Status = StatusRunning
	job.StartedAt = &now

	results := make([]Result, 0, len(job.Prompts))
	stopped := false

	for i, prompt := range job.Prompts {
		output, err := exec.Execute(ctx, job.ModelID, prompt)

		result := Result{Index: i, Prompt: prompt}
		if err != nil {
			job.Failed++
			result.Success = false
			result.ErrorMessage = err.Error()
			log.Warn("Job %s prompt %d failed: %v", job.ID, i, err)
		} else {
			job.Completed++
			result.Success = true
			result.Response = output.Text
			result.TokensIn = output.TokensIn
			result.TokensOut = output.TokensOut
			result.DurationSeconds = output.Duration.Seconds()
		}
		results = append(results, result)

		if progress != nil {
			progress(job, i+1)
		}

		if err != nil && strategy.ShouldAbort(job.Failed) {
			stopped = true
			break
		}

		if (i+1)%r.interval == 0 {
			r.flush(job, results)
		}
	}

	end := time.Now()
	job.CompletedAt = &end
	switch {
	case stopped:
		job.Status = StatusFailed
	case job.Failed == 0:
		job.Status = StatusCompleted
	default:
		job.Status = StatusCompletedWithErrors
	}

	// Unconditional final flush so an early stop still leaves a
	// consistent, loadable checkpoint.
	r.flush(job, results)

	log.Info("Job %s finished: status=%s completed=%d failed=%d", job.ID, job.Status, job.Completed, job.Failed)
	return results, nil
}

// LoadCheckpoint reconstructs a job and its flushed results from the
// store. A missing id surfaces NotFound, an unreadable document Corrupt;
// neither is ever replaced with a fabricated empty job.
func (r *Runner) LoadCheckpoint(id string) (*Job, []Result, error) {
	var doc Document
	if err := r.store.Load(id, &doc); err != nil {
		return nil, nil, err
	}
	if doc.Job == nil {
		return nil, nil, orchestrator.NewError(orchestrator.ErrCorrupt, "checkpoint has no job section").
			WithContext("id", id)
	}
	return doc.Job, doc.Results, nil
}

// DeleteJob removes the job's checkpoint. Jobs are never deleted
// automatically; this is an explicit operator action.
func (r *Runner) DeleteJob(id string) error {
	return r.store.Delete(id)
}

func (r *Runner) flush(job *Job, results []Result) {
	doc := Document{
		Job:       job,
		Results:   results,
		Timestamp: time.Now(),
	}
	if err := r.store.Save(job.CheckpointID, doc); err != nil {
		log.Error("Failed to flush checkpoint for job %s: %v", job.ID, err)
	}
}
