package jobs

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

type Kind string

const (
	KindBatch    Kind = "batch"
	KindWorkflow Kind = "workflow"
)

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   RunPayload
}

// RunPayload describes what a queued run executes: either a flat batch of
// prompts against one model, or a workflow definition file.
type RunPayload struct {
	Kind           Kind     `json:"kind"`
	ModelID        string   `json:"model_id,omitempty"`
	Prompts        []string `json:"prompts,omitempty"`
	ErrorStrategy  string   `json:"error_strategy,omitempty"`
	DefinitionPath string   `json:"definition_path,omitempty"`
}

// OrchestrationRun is one queued unit of orchestration work. CheckpointID
// is filled in once the executor has created the durable snapshot for the
// run, so an operator can resume or inspect it later.
type OrchestrationRun struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	DedupeKey    string     `json:"dedupe_key"`
	Payload      RunPayload `json:"payload"`
	Status       Status     `json:"status"`
	Error        string     `json:"error,omitempty"`
	CheckpointID string     `json:"checkpoint_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
