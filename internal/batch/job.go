package batch

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending             Status = "pending"
	StatusRunning             Status = "running"
	StatusPaused              Status = "paused"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
)

// Terminal reports whether the status is one a job never leaves.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCompletedWithErrors || s == StatusFailed
}

// Job is one batch run: an ordered list of prompts against a single model.
// Mutated in place by the runner while processing; completed+failed never
// exceeds TotalPrompts, which is fixed at creation.
type Job struct {
	ID           string     `json:"id"`
	ModelID      string     `json:"model_id"`
	Prompts      []string   `json:"prompts"`
	TotalPrompts int        `json:"total_prompts"`
	Completed    int        `json:"completed"`
	Failed       int        `json:"failed"`
	Status       Status     `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CheckpointID string     `json:"checkpoint_id"`
}

// Result records the outcome of one processed prompt. Immutable once
// created; Index maps back to the job's prompt list.
type Result struct {
	Index           int     `json:"index"`
	Prompt          string  `json:"prompt"`
	Response        string  `json:"response"`
	TokensIn        int     `json:"tokens_in"`
	TokensOut       int     `json:"tokens_out"`
	DurationSeconds float64 `json:"duration_seconds"`
	Success         bool    `json:"success"`
	ErrorMessage    string  `json:"error_message,omitempty"`
}

// Document is the persisted checkpoint shape: the full job plus every
// result flushed so far.
type Document struct {
	Job       *Job      `json:"job"`
	Results   []Result  `json:"results"`
	Timestamp time.Time `json:"timestamp"`
}

func newJobID() string {
	return "job-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
