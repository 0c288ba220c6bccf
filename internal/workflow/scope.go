package workflow

// Scope is the live variable mapping available to template rendering
// during one execution. It is owned by that single execution and passed by
// reference down the recursive step calls; no locking, no concurrent
// mutation.
//
// A loop iteration runs against a fork: a shallow copy holding the loop
// variable, linked back to its parent. Output-variable writes walk up the
// parent chain, so bindings made inside a loop body persist after the loop
// while the loop variable itself does not.
type Scope struct {
	vars   map[string]any
	parent *Scope
}

func NewScope(defaults map[string]any) *Scope {
	vars := make(map[string]any, len(defaults))
	for k, v := range defaults {
		vars[k] = v
	}
	return &Scope{vars: vars}
}

// Fork creates a loop-iteration scope with the loop variable bound.
func (s *Scope) Fork(loopVar string, value any) *Scope {
	vars := make(map[string]any, len(s.vars)+1)
	for k, v := range s.vars {
		vars[k] = v
	}
	vars[loopVar] = value
	return &Scope{vars: vars, parent: s}
}

func (s *Scope) Get(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// SetOutput binds an output variable in this scope and every ancestor.
func (s *Scope) SetOutput(name string, value any) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.vars[name] = value
	}
}

// Vars exposes the mapping for template rendering. Renderers read it; they
// must not hold onto it.
func (s *Scope) Vars() map[string]any {
	return s.vars
}

// Snapshot copies the mapping for persistence.
func (s *Scope) Snapshot() map[string]any {
	ret := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		ret[k] = v
	}
	return ret
}
