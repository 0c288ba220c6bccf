package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/orchestrator"
	"github.com/isndotbiz/llm-optimization-framework-sub001/pkg/file"
)

// DefaultPreviewChars bounds long text fields in the tabular export. The
// structured export never truncates.
const DefaultPreviewChars = 120

// Summary is the computed section of the structured export.
type Summary struct {
	TotalPrompts         int     `json:"total_prompts"`
	Completed            int     `json:"completed"`
	Failed               int     `json:"failed"`
	SuccessRate          float64 `json:"success_rate"`
	TotalTokensIn        int     `json:"total_tokens_in"`
	TotalTokensOut       int     `json:"total_tokens_out"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
}

type exportDocument struct {
	Job        *Job      `json:"job"`
	Results    []Result  `json:"results"`
	Summary    Summary   `json:"summary"`
	ExportedAt time.Time `json:"exported_at"`
}

// ExportResults writes the job's results to path in the requested format:
// "json" for the full-fidelity structured document, "csv" for one row per
// result with long text fields truncated to a bounded preview. The path
// extension is normalized to match the format.
func ExportResults(job *Job, results []Result, path string, format string) error {
	return ExportResultsWithPreview(job, results, path, format, DefaultPreviewChars)
}

// ExportResultsWithPreview is ExportResults with a caller-chosen truncation
// limit for the tabular format. The limit has no effect on the structured
// export.
func ExportResultsWithPreview(job *Job, results []Result, path string, format string, previewChars int) error {
	switch format {
	case "json":
		return exportJSON(job, results, file.ReplaceExt(path, "json"))
	case "csv":
		return exportCSV(job, results, file.ReplaceExt(path, "csv"), previewChars)
	default:
		return orchestrator.NewError(orchestrator.ErrInvalidInput, "unsupported export format").
			WithContext("format", format)
	}
}

func exportJSON(job *Job, results []Result, path string) error {
	doc := exportDocument{
		Job:        job,
		Results:    results,
		Summary:    summarize(job, results),
		ExportedAt: time.Now(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export %s: %w", path, err)
	}
	return nil
}

func exportCSV(job *Job, results []Result, path string, previewChars int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"index", "prompt", "response", "tokens_in", "tokens_out", "duration_seconds", "success", "error"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}

	for _, result := range results {
		row := []string{
			strconv.Itoa(result.Index),
			truncate(result.Prompt, previewChars),
			truncate(result.Response, previewChars),
			strconv.Itoa(result.TokensIn),
			strconv.Itoa(result.TokensOut),
			strconv.FormatFloat(result.DurationSeconds, 'f', 3, 64),
			strconv.FormatBool(result.Success),
			truncate(result.ErrorMessage, previewChars),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write export row %d: %w", result.Index, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush export %s: %w", path, err)
	}
	return nil
}

func summarize(job *Job, results []Result) Summary {
	summary := Summary{
		TotalPrompts: job.TotalPrompts,
		Completed:    job.Completed,
		Failed:       job.Failed,
	}
	for _, result := range results {
		summary.TotalTokensIn += result.TokensIn
		summary.TotalTokensOut += result.TokensOut
		summary.TotalDurationSeconds += result.DurationSeconds
	}
	if attempted := job.Completed + job.Failed; attempted > 0 {
		summary.SuccessRate = float64(job.Completed) / float64(attempted)
	}
	return summary
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
