package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/orchestrator"
)

// Summary is the lightweight view returned by List. It is decoded from the
// stored document's header fields without materializing results or
// variables for the caller.
type Summary struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Total     int    `json:"total"`
}

// FileStore persists JSON snapshot documents under a single directory, one
// file per id. Save replaces the whole document; there is no merging.
// Writes to different ids are independent; concurrent writes to the same id
// are last-write-wins (single writer per job/workflow assumed).
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, orchestrator.NewError(orchestrator.ErrInvalidInput, "checkpoint directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes the document for id, fully replacing any prior content.
// Callers pass the complete current state, not a delta.
func (s *FileStore) Save(id string, document any) error {
	if err := validateID(id); err != nil {
		return err
	}
	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint %s: %w", id, err)
	}
	if err := os.WriteFile(s.path(id), data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", id, err)
	}
	return nil
}

// Load decodes the document for id into out. A missing id is a NotFound
// error; a document that exists but does not deserialize is Corrupt.
func (s *FileStore) Load(id string, out any) error {
	if err := validateID(id); err != nil {
		return err
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return orchestrator.NewError(orchestrator.ErrNotFound, "checkpoint not found").
				WithContext("id", id)
		}
		return fmt.Errorf("read checkpoint %s: %w", id, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return orchestrator.WrapError(err, orchestrator.ErrCorrupt, "checkpoint failed to deserialize").
			WithContext("id", id)
	}
	return nil
}

// List returns a summary per stored document, sorted by id. Documents that
// fail to parse are skipped rather than failing the whole listing.
func (s *FileStore) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint directory: %w", err)
	}

	ret := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		summary, err := s.summarize(id)
		if err != nil {
			continue
		}
		ret = append(ret, summary)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret, nil
}

// Delete removes the stored document. A missing id is a NotFound error,
// not a silent no-op.
func (s *FileStore) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return orchestrator.NewError(orchestrator.ErrNotFound, "checkpoint not found").
				WithContext("id", id)
		}
		return fmt.Errorf("delete checkpoint %s: %w", id, err)
	}
	return nil
}

// summaryProbe matches the header fields of both document shapes: a batch
// checkpoint carries a "job" object, a workflow snapshot carries
// "workflow_id" and "status" at the top level.
type summaryProbe struct {
	Job *struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		Completed    int    `json:"completed"`
		Failed       int    `json:"failed"`
		TotalPrompts int    `json:"total_prompts"`
	} `json:"job"`
	WorkflowID string          `json:"workflow_id"`
	Status     string          `json:"status"`
	Results    json.RawMessage `json:"results"`
}

func (s *FileStore) summarize(id string) (Summary, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()

	var probe summaryProbe
	if err := json.NewDecoder(f).Decode(&probe); err != nil {
		return Summary{}, err
	}

	if probe.Job != nil {
		return Summary{
			ID:        id,
			Kind:      "batch",
			Status:    probe.Job.Status,
			Completed: probe.Job.Completed,
			Failed:    probe.Job.Failed,
			Total:     probe.Job.TotalPrompts,
		}, nil
	}
	var stepResults map[string]struct {
		State string `json:"state"`
	}
	_ = json.Unmarshal(probe.Results, &stepResults)
	completed := 0
	for _, outcome := range stepResults {
		switch outcome.State {
		case "succeeded", "failed-handled":
			completed++
		}
	}
	return Summary{
		ID:        id,
		Kind:      "workflow",
		Status:    probe.Status,
		Completed: completed,
		Total:     len(stepResults),
	}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return orchestrator.NewError(orchestrator.ErrInvalidInput, "checkpoint id is required")
	}
	if strings.ContainsAny(id, `/\`) || id != filepath.Base(id) {
		return orchestrator.NewError(orchestrator.ErrInvalidInput, "checkpoint id must not contain path separators").
			WithContext("id", id)
	}
	return nil
}
