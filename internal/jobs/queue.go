package jobs

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/isndotbiz/llm-optimization-framework-sub001/pkg/log"
)

// Executor runs one queued orchestration run to completion. Each run is
// executed on a single worker goroutine; parallelism exists only across
// independent runs, never inside one.
type Executor func(ctx context.Context, run *OrchestrationRun) error

type Queue struct {
	workerCount int
	maxRuns     int
	store       Store

	mu         sync.RWMutex
	runs       map[string]*OrchestrationRun
	dedupe     map[string]string
	idCounter  uint64
	started    bool
	pendingIDs chan string
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewQueue(workerCount int, store Store) *Queue {
	if workerCount <= 0 {
		workerCount = 1
	}
	q := &Queue{
		workerCount: workerCount,
		maxRuns:     1000,
		store:       store,
		runs:        make(map[string]*OrchestrationRun),
		dedupe:      make(map[string]string),
		pendingIDs:  make(chan string, 1024),
		stopCh:      make(chan struct{}),
	}
	q.hydrateFromStore(context.Background())
	return q
}

func (q *Queue) Enqueue(req EnqueueRequest) (*OrchestrationRun, bool) {
	now := time.Now()

	q.mu.Lock()
	if id, ok := q.dedupe[req.DedupeKey]; ok {
		if existing, exists := q.runs[id]; exists {
			snapshot := cloneRun(existing)
			q.mu.Unlock()
			return snapshot, false
		}
		delete(q.dedupe, req.DedupeKey)
	}

	id := fmt.Sprintf("run-%d", atomic.AddUint64(&q.idCounter, 1))
	run := &OrchestrationRun{
		ID:        id,
		Source:    req.Source,
		DedupeKey: req.DedupeKey,
		Payload:   req.Payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.runs[id] = run
	if req.DedupeKey != "" {
		q.dedupe[req.DedupeKey] = id
	}
	started := q.started
	snapshot := cloneRun(run)
	q.mu.Unlock()

	q.persistRun(snapshot)
	if started {
		q.enqueuePendingID(id)
	}
	return snapshot, true
}

func (q *Queue) Get(id string) (*OrchestrationRun, bool) {
	q.mu.RLock()
	run, ok := q.runs[id]
	q.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneRun(run), true
}

func (q *Queue) List() []*OrchestrationRun {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ret := make([]*OrchestrationRun, 0, len(q.runs))
	for _, run := range q.runs {
		ret = append(ret, cloneRun(run))
	}
	return ret
}

// SetCheckpoint records the checkpoint document id produced by the
// executor for this run.
func (q *Queue) SetCheckpoint(id string, checkpointID string) {
	q.mu.Lock()
	run, ok := q.runs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	run.CheckpointID = checkpointID
	run.UpdatedAt = time.Now()
	snapshot := cloneRun(run)
	q.mu.Unlock()

	q.persistRun(snapshot)
}

func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true

	pending := make([]string, 0)
	for id, run := range q.runs {
		if run.Status == StatusPending {
			pending = append(pending, id)
		}
	}
	q.mu.Unlock()

	for _, id := range pending {
		q.enqueuePendingID(id)
	}

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(exec)
	}
}

func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.wg.Wait()
	})
}

func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case id := <-q.pendingIDs:
			run, ok := q.markRunning(id)
			if !ok {
				continue
			}

			err := exec(context.Background(), run)
			if err != nil {
				q.markFailed(id, err)
				continue
			}
			q.markSuccess(id)
		}
	}
}

func (q *Queue) enqueuePendingID(id string) {
	select {
	case q.pendingIDs <- id:
	default:
		go func() { q.pendingIDs <- id }()
	}
}

func (q *Queue) markRunning(id string) (*OrchestrationRun, bool) {
	q.mu.Lock()
	run, ok := q.runs[id]
	if !ok || run.Status != StatusPending {
		q.mu.Unlock()
		return nil, false
	}
	run.Status = StatusRunning
	run.UpdatedAt = time.Now()
	snapshot := cloneRun(run)
	q.mu.Unlock()

	q.persistRun(snapshot)
	return snapshot, true
}

func (q *Queue) markSuccess(id string) {
	q.mu.Lock()
	run, ok := q.runs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	run.Status = StatusSuccess
	run.Error = ""
	run.UpdatedAt = time.Now()
	q.releaseDedupeLocked(run)
	pruned := q.pruneTerminalRunsLocked()
	snapshot := cloneRun(run)
	q.mu.Unlock()

	q.persistRun(snapshot)
	q.deleteRunsFromStore(pruned)
}

func (q *Queue) markFailed(id string, err error) {
	q.mu.Lock()
	run, ok := q.runs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	run.Status = StatusFailed
	if err != nil {
		run.Error = err.Error()
	}
	run.UpdatedAt = time.Now()
	q.releaseDedupeLocked(run)
	pruned := q.pruneTerminalRunsLocked()
	snapshot := cloneRun(run)
	q.mu.Unlock()

	q.persistRun(snapshot)
	q.deleteRunsFromStore(pruned)
}

func (q *Queue) releaseDedupeLocked(run *OrchestrationRun) {
	if run == nil || run.DedupeKey == "" {
		return
	}
	if id, ok := q.dedupe[run.DedupeKey]; ok && id == run.ID {
		delete(q.dedupe, run.DedupeKey)
	}
}

// pruneTerminalRunsLocked drops the oldest finished runs once the registry
// exceeds maxRuns. Only run rows are pruned; checkpoint documents are an
// operator's to delete.
func (q *Queue) pruneTerminalRunsLocked() []string {
	if q.maxRuns <= 0 || len(q.runs) <= q.maxRuns {
		return nil
	}

	type candidate struct {
		id        string
		updatedAt time.Time
	}
	terminal := make([]candidate, 0, len(q.runs))
	for id, run := range q.runs {
		if run == nil {
			continue
		}
		if run.Status == StatusPending || run.Status == StatusRunning {
			continue
		}
		terminal = append(terminal, candidate{id: id, updatedAt: run.UpdatedAt})
	}
	if len(terminal) == 0 {
		return nil
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].updatedAt.Before(terminal[j].updatedAt)
	})

	toRemove := len(q.runs) - q.maxRuns
	if toRemove <= 0 {
		return nil
	}
	if toRemove > len(terminal) {
		toRemove = len(terminal)
	}

	pruned := make([]string, 0, toRemove)
	for i := 0; i < toRemove; i++ {
		id := terminal[i].id
		run := q.runs[id]
		if run != nil {
			q.releaseDedupeLocked(run)
		}
		delete(q.runs, id)
		pruned = append(pruned, id)
	}
	return pruned
}

func (q *Queue) deleteRunsFromStore(ids []string) {
	if q.store == nil || len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if err := q.store.DeleteRun(context.Background(), id); err != nil {
			log.Error("Failed to delete pruned run %s from store: %v", id, err)
		}
	}
}

// hydrateFromStore replays the persisted registry after a restart. Runs
// that were mid-flight when the process died go back to pending so a
// worker picks them up again; their checkpoints make the replay cheap.
func (q *Queue) hydrateFromStore(ctx context.Context) {
	if q.store == nil {
		return
	}
	loaded, err := q.store.LoadRuns(ctx)
	if err != nil {
		log.Error("Failed to load runs from store: %v", err)
		return
	}

	now := time.Now()
	toPersist := make([]*OrchestrationRun, 0)
	q.mu.Lock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		run := cloneRun(raw)
		if run.Status == StatusRunning {
			run.Status = StatusPending
			run.UpdatedAt = now
			toPersist = append(toPersist, cloneRun(run))
		}
		q.runs[run.ID] = run
		if (run.Status == StatusPending || run.Status == StatusRunning) && run.DedupeKey != "" {
			q.dedupe[run.DedupeKey] = run.ID
		}
		q.updateIDCounterLocked(run.ID)
	}
	q.mu.Unlock()

	for _, run := range toPersist {
		q.persistRun(run)
	}
}

func (q *Queue) updateIDCounterLocked(runID string) {
	if !strings.HasPrefix(runID, "run-") {
		return
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(runID, "run-"), 10, 64)
	if err != nil {
		return
	}
	if n > q.idCounter {
		q.idCounter = n
	}
}

func (q *Queue) persistRun(run *OrchestrationRun) {
	if q.store == nil || run == nil {
		return
	}
	if err := q.store.UpsertRun(context.Background(), run); err != nil {
		log.Error("Failed to persist run %s: %v", run.ID, err)
	}
}

func cloneRun(run *OrchestrationRun) *OrchestrationRun {
	if run == nil {
		return nil
	}
	tmp := *run
	tmp.Payload.Prompts = append([]string(nil), run.Payload.Prompts...)
	return &tmp
}
