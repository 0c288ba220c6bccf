package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/batch"
	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/checkpoint"
	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/config"
	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/jobs"
	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/orchestrator"
	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/template"
	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/workflow"
	"github.com/isndotbiz/llm-optimization-framework-sub001/pkg/icron"
	"github.com/isndotbiz/llm-optimization-framework-sub001/pkg/log"
)

// OrchestratorService glues the run queue to the batch runner and the
// workflow executor, and sweeps the workflow directory on a cron schedule
// so dropped-in definition files get picked up and enqueued.
type OrchestratorService struct {
	cfg      config.Config
	queue    *jobs.Queue
	store    *checkpoint.FileStore
	model    orchestrator.ModelExecutor
	runner   *batch.Runner
	executor *workflow.Executor
	cron     *cron.Cron
}

var sweepGroup singleflight.Group

func NewOrchestratorService(
	cfg config.Config,
	queue *jobs.Queue,
	store *checkpoint.FileStore,
	model orchestrator.ModelExecutor,
	cr *cron.Cron,
) *OrchestratorService {
	return &OrchestratorService{
		cfg:      cfg,
		queue:    queue,
		store:    store,
		model:    model,
		runner:   batch.NewRunner(store).WithCheckpointInterval(cfg.Orchestrator.CheckpointInterval),
		executor: workflow.NewExecutor(model, template.NewRenderer(), store),
		cron:     cr,
	}
}

// Start brings up the queue workers and registers the scheduled sweep.
func (s *OrchestratorService) Start(ctx context.Context) error {
	s.queue.Start(s.executeRun)

	expr := s.cfg.Orchestrator.CronExpr
	runFunc := func() {
		_, _, _ = sweepGroup.Do("sweep", func() (any, error) {
			s.sweep()
			return nil, nil
		})
	}
	if _, err := s.cron.AddFunc(expr, runFunc); err != nil {
		return fmt.Errorf("schedule workflow sweep: %w", err)
	}
	s.cron.Start()

	if info, err := icron.GetTriggerInfo(expr, time.Now()); err == nil {
		log.Info("Workflow sweep scheduled (%s), next trigger in %s", expr, info.TimeUntilNext.Round(time.Second))
	}
	return nil
}

func (s *OrchestratorService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.queue.Stop()
}

// EnqueueBatch queues a batch run of prompts against one model.
func (s *OrchestratorService) EnqueueBatch(modelID string, prompts []string, errorStrategy string) (*jobs.OrchestrationRun, bool) {
	return s.queue.Enqueue(jobs.EnqueueRequest{
		Source: "manual",
		Payload: jobs.RunPayload{
			Kind:          jobs.KindBatch,
			ModelID:       modelID,
			Prompts:       prompts,
			ErrorStrategy: errorStrategy,
		},
	})
}

// EnqueueWorkflow queues a run of the given workflow definition file. The
// dedupe key keeps one pending run per definition path.
func (s *OrchestratorService) EnqueueWorkflow(source string, definitionPath string) (*jobs.OrchestrationRun, bool) {
	return s.queue.Enqueue(jobs.EnqueueRequest{
		Source:    source,
		DedupeKey: definitionPath,
		Payload: jobs.RunPayload{
			Kind:           jobs.KindWorkflow,
			DefinitionPath: definitionPath,
		},
	})
}

// executeRun dispatches one queued run to the matching engine.
func (s *OrchestratorService) executeRun(ctx context.Context, run *jobs.OrchestrationRun) error {
	switch run.Payload.Kind {
	case jobs.KindBatch:
		return s.executeBatch(ctx, run)
	case jobs.KindWorkflow:
		return s.executeWorkflow(ctx, run)
	default:
		return orchestrator.NewError(orchestrator.ErrInvalidInput, "unknown run kind").
			WithContext("run", run.ID).
			WithContext("kind", string(run.Payload.Kind))
	}
}

func (s *OrchestratorService) executeBatch(ctx context.Context, run *jobs.OrchestrationRun) error {
	job, err := s.runner.CreateJob(run.Payload.ModelID, run.Payload.Prompts)
	if err != nil {
		return err
	}
	s.queue.SetCheckpoint(run.ID, job.CheckpointID)

	progress := func(job *batch.Job, processed int) {
		log.Debug("Run %s: %d/%d prompts processed", run.ID, processed, job.TotalPrompts)
	}
	results, err := s.runner.ProcessBatch(ctx, job, s.model, run.Payload.ErrorStrategy, progress)
	if err != nil {
		return err
	}
	s.exportBatch(job, results)
	if job.Status == batch.StatusFailed {
		return fmt.Errorf("batch job %s stopped by error strategy after %d failures", job.ID, job.Failed)
	}
	return nil
}

// exportBatch drops JSON and CSV result files for a finished batch run,
// partial results included. Export failures are logged, not propagated; the
// checkpoint document remains the source of truth.
func (s *OrchestratorService) exportBatch(job *batch.Job, results []batch.Result) {
	exportDir := s.cfg.Orchestrator.ExportDir()
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		log.Error("Failed to create export dir %s: %v", exportDir, err)
		return
	}
	base := filepath.Join(exportDir, job.ID)
	previewChars := s.cfg.Orchestrator.ExportPreviewChars
	for _, format := range []string{"json", "csv"} {
		if err := batch.ExportResultsWithPreview(job, results, base, format, previewChars); err != nil {
			log.Error("Failed to export %s results for job %s: %v", format, job.ID, err)
		}
	}
}

func (s *OrchestratorService) executeWorkflow(ctx context.Context, run *jobs.OrchestrationRun) error {
	def, err := workflow.LoadDefinition(run.Payload.DefinitionPath)
	if err != nil {
		return err
	}
	execution, err := s.executor.Run(ctx, def)
	if execution != nil {
		s.queue.SetCheckpoint(run.ID, execution.WorkflowID)
	}
	return err
}

// sweep enqueues a run for every workflow definition file currently in
// the workflow directory. Dedupe keys keep repeat sweeps from stacking up
// runs for a definition that is already pending.
func (s *OrchestratorService) sweep() {
	patterns := []string{"*.yaml", "*.yml"}
	paths := make([]string, 0)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(s.cfg.Orchestrator.WorkflowDir, pattern))
		if err != nil {
			log.Error("Workflow sweep glob failed: %v", err)
			return
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	for _, path := range paths {
		run, created := s.EnqueueWorkflow("cron", path)
		if created {
			log.Info("Sweep enqueued workflow %s as %s", path, run.ID)
		}
	}
}
