package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/checkpoint"
	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/orchestrator"
	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/template"
	"github.com/isndotbiz/llm-optimization-framework-sub001/pkg/log"
)

type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// StepState is the per-step state machine. Every step starts pending,
// moves to running when picked up, and ends in exactly one terminal state.
type StepState string

const (
	StatePending       StepState = "pending"
	StateRunning       StepState = "running"
	StateSucceeded     StepState = "succeeded"
	StateFailedHandled StepState = "failed-handled"
	StateFailedFatal   StepState = "failed-fatal"
)

// StepOutcome records what one step produced: its terminal state, the
// rendered output (or substituted fallback), and the error text when the
// step failed. Skipped marks a conditional whose condition was falsy; that
// is a no-op success, not a failure.
type StepOutcome struct {
	State   StepState `json:"state"`
	Output  string    `json:"output"`
	Error   string    `json:"error,omitempty"`
	Skipped bool      `json:"skipped,omitempty"`
}

// Execution is the live record of one workflow run. It is mutated step by
// step and persisted as a whole snapshot through the checkpoint store,
// never incrementally per field.
type Execution struct {
	WorkflowID   string                 `json:"workflow_id"`
	WorkflowName string                 `json:"workflow_name"`
	Status       ExecutionStatus        `json:"status"`
	Results      map[string]StepOutcome `json:"results"`
	Variables    map[string]any         `json:"variables"`
	StartedAt    time.Time              `json:"started_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
}

// Executor walks a resolved step order strictly sequentially on the
// calling goroutine, each step reading and extending the shared variable
// scope. The only suspension point is the blocking model call.
type Executor struct {
	model    orchestrator.ModelExecutor
	renderer orchestrator.TemplateRenderer
	store    *checkpoint.FileStore
}

// NewExecutor wires the executor to its collaborators. The store may be
// nil for runs that do not need durable snapshots.
func NewExecutor(model orchestrator.ModelExecutor, renderer orchestrator.TemplateRenderer, store *checkpoint.FileStore) *Executor {
	if renderer == nil {
		renderer = template.NewRenderer()
	}
	return &Executor{model: model, renderer: renderer, store: store}
}

// Run validates and resolves the definition, then executes every step in
// topological order. Structural errors surface before any step runs. A
// fatal step failure stops execution, marks it failed, and is returned
// alongside the partially-populated execution record; the snapshot on disk
// reflects exactly the work done before the stop.
func (e *Executor) Run(ctx context.Context, def *Definition) (*Execution, error) {
	if def == nil {
		return nil, orchestrator.NewError(orchestrator.ErrInvalidDefinition, "workflow definition is nil")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	order, err := Resolve(def)
	if err != nil {
		return nil, err
	}

	execution := &Execution{
		WorkflowID:   "wf-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		WorkflowName: def.Name,
		Status:       ExecutionRunning,
		Results:      make(map[string]StepOutcome, len(def.Steps)),
		StartedAt:    time.Now(),
	}
	for _, step := range order {
		execution.Results[step.Name] = StepOutcome{State: StatePending}
	}
	scope := NewScope(def.Variables)
	execution.Variables = scope.Snapshot()

	log.Info("Workflow %s (%s): executing %d steps", def.Name, execution.WorkflowID, len(order))

	for _, step := range order {
		if err := e.runStep(ctx, step, scope, execution); err != nil {
			execution.Status = ExecutionFailed
			e.finish(execution, scope)
			return execution, err
		}
		execution.Variables = scope.Snapshot()
		e.persist(execution)
	}

	execution.Status = ExecutionCompleted
	e.finish(execution, scope)
	return execution, nil
}

// runStep executes one step per its kind. A non-nil return is fatal for
// the whole execution; failures absorbed by the step's error policy return
// nil and record a failed-handled outcome instead.
func (e *Executor) runStep(ctx context.Context, step *Step, scope *Scope, execution *Execution) error {
	execution.Results[step.Name] = StepOutcome{State: StateRunning}

	var (
		outcome StepOutcome
		err     error
	)
	switch step.Type {
	case StepPrompt:
		outcome, err = e.runPrompt(ctx, step, scope)
	case StepConditional:
		outcome, err = e.runConditional(ctx, step, scope, execution)
	case StepLoop:
		outcome, err = e.runLoop(ctx, step, scope, execution)
	default:
		err = orchestrator.NewError(orchestrator.ErrInvalidDefinition, "unknown step type").
			WithContext("step", step.Name)
	}

	if err != nil {
		if step.ErrorHandling != nil && step.ErrorHandling.OnError == "continue" {
			fallback := step.ErrorHandling.FallbackValue
			log.Warn("Step %s failed, continuing with fallback: %v", step.Name, err)
			execution.Results[step.Name] = StepOutcome{
				State:  StateFailedHandled,
				Output: fallback,
				Error:  err.Error(),
			}
			if step.Type == StepPrompt && step.Prompt.OutputVar != "" {
				scope.SetOutput(step.Prompt.OutputVar, fallback)
			}
			return nil
		}
		log.Error("Step %s failed fatally: %v", step.Name, err)
		execution.Results[step.Name] = StepOutcome{State: StateFailedFatal, Error: err.Error()}
		return err
	}

	execution.Results[step.Name] = outcome
	return nil
}

func (e *Executor) runPrompt(ctx context.Context, step *Step, scope *Scope) (StepOutcome, error) {
	rendered, err := e.renderer.Render(step.Prompt.Prompt, scope.Vars())
	if err != nil {
		return StepOutcome{}, orchestrator.WrapError(err, orchestrator.ErrExecutorFailure, "prompt failed to render").
			WithContext("step", step.Name)
	}

	output, err := e.model.Execute(ctx, step.Prompt.Model, rendered)
	if err != nil {
		return StepOutcome{}, orchestrator.WrapError(err, orchestrator.ErrExecutorFailure, "model call failed").
			WithContext("step", step.Name).
			WithContext("model", step.Prompt.Model)
	}

	if step.Prompt.OutputVar != "" {
		scope.SetOutput(step.Prompt.OutputVar, output.Text)
	}
	return StepOutcome{State: StateSucceeded, Output: output.Text}, nil
}

func (e *Executor) runConditional(ctx context.Context, step *Step, scope *Scope, execution *Execution) (StepOutcome, error) {
	rendered, err := e.renderer.Render(step.Conditional.Condition, scope.Vars())
	if err != nil {
		return StepOutcome{}, orchestrator.WrapError(err, orchestrator.ErrExecutorFailure, "condition failed to render").
			WithContext("step", step.Name)
	}

	if !template.Truthy(rendered) {
		log.Debug("Step %s: condition %q is falsy, skipping", step.Name, rendered)
		return StepOutcome{State: StateSucceeded, Skipped: true}, nil
	}

	if err := e.runStep(ctx, step.Conditional.Then, scope, execution); err != nil {
		return StepOutcome{}, err
	}
	return StepOutcome{State: StateSucceeded, Output: rendered}, nil
}

func (e *Executor) runLoop(ctx context.Context, step *Step, scope *Scope, execution *Execution) (StepOutcome, error) {
	seq, err := template.ResolveSequence(step.Loop.IterateOver, scope.Vars(), e.renderer)
	if err != nil {
		return StepOutcome{}, orchestrator.WrapError(err, orchestrator.ErrExecutorFailure, "iterate_over failed to render").
			WithContext("step", step.Name)
	}

	for _, element := range seq {
		iteration := scope.Fork(step.Loop.LoopVar, element)
		for i := range step.Loop.Steps {
			if err := e.runStep(ctx, &step.Loop.Steps[i], iteration, execution); err != nil {
				return StepOutcome{}, err
			}
		}
	}
	return StepOutcome{State: StateSucceeded, Output: fmt.Sprintf("%d iterations", len(seq))}, nil
}

func (e *Executor) finish(execution *Execution, scope *Scope) {
	now := time.Now()
	execution.CompletedAt = &now
	execution.Variables = scope.Snapshot()
	e.persist(execution)
	log.Info("Workflow %s (%s) finished: %s", execution.WorkflowName, execution.WorkflowID, execution.Status)
}

func (e *Executor) persist(execution *Execution) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(execution.WorkflowID, execution); err != nil {
		log.Error("Failed to persist snapshot for %s: %v", execution.WorkflowID, err)
	}
}

// LoadExecution reconstructs a persisted execution snapshot. Missing ids
// surface NotFound and undecodable documents Corrupt, never an empty
// fabricated execution.
func LoadExecution(store *checkpoint.FileStore, id string) (*Execution, error) {
	var execution Execution
	if err := store.Load(id, &execution); err != nil {
		return nil, err
	}
	if execution.WorkflowID == "" {
		return nil, orchestrator.NewError(orchestrator.ErrCorrupt, "snapshot has no workflow id").
			WithContext("id", id)
	}
	return &execution, nil
}
