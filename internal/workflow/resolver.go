package workflow

import (
	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/orchestrator"
)

// Resolve orders the definition's steps so every step appears after all of
// its depends_on entries. The sort is stable over declaration order:
// whenever several steps are ready, the one declared first runs first, so
// a workflow without any depends_on executes exactly as written.
//
// Resolution happens before any step executes; an unknown reference or a
// cycle is surfaced here, never after partial execution.
func Resolve(def *Definition) ([]*Step, error) {
	index := make(map[string]int, len(def.Steps))
	for i := range def.Steps {
		index[def.Steps[i].Name] = i
	}

	indegree := make([]int, len(def.Steps))
	dependents := make([][]int, len(def.Steps))
	for i := range def.Steps {
		for _, dep := range def.Steps[i].DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, orchestrator.NewError(orchestrator.ErrUnknownDependency, "depends_on references an unknown step").
					WithContext("step", def.Steps[i].Name).
					WithContext("depends_on", dep)
			}
			if j == i {
				return nil, orchestrator.NewError(orchestrator.ErrCycleDetected, "step depends on itself").
					WithContext("step", def.Steps[i].Name)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	order := make([]*Step, 0, len(def.Steps))
	done := make([]bool, len(def.Steps))
	for len(order) < len(def.Steps) {
		picked := -1
		for i := range def.Steps {
			if !done[i] && indegree[i] == 0 {
				picked = i
				break
			}
		}
		if picked < 0 {
			return nil, orchestrator.NewError(orchestrator.ErrCycleDetected, "workflow dependency graph contains a cycle").
				WithContext("workflow", def.Name)
		}
		done[picked] = true
		order = append(order, &def.Steps[picked])
		for _, dependent := range dependents[picked] {
			indegree[dependent]--
		}
	}
	return order, nil
}
