package template

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	varPattern  = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)
	ifPattern   = regexp.MustCompile(`(?s)\{%\s*if\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*%\}(.*?)\{%\s*endif\s*%\}`)
	forPattern  = regexp.MustCompile(`(?s)\{%\s*for\s+([a-zA-Z_][a-zA-Z0-9_]*)\s+in\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*%\}(.*?)\{%\s*endfor\s*%\}`)
	bareVarExpr = regexp.MustCompile(`^\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}$`)
)

// Renderer is the built-in template renderer. It resolves {{name}}
// placeholders, {% if name %}...{% endif %} blocks and
// {% for item in list %}...{% endfor %} blocks against a variable map.
// Unknown variables render as the empty string.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) Render(template string, variables map[string]any) (string, error) {
	if variables == nil {
		variables = map[string]any{}
	}

	out, err := r.renderBlocks(template, variables)
	if err != nil {
		return "", err
	}

	out = varPattern.ReplaceAllStringFunc(out, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		value, ok := variables[name]
		if !ok {
			return ""
		}
		return Stringify(value)
	})
	return out, nil
}

func (r *Renderer) renderBlocks(template string, variables map[string]any) (string, error) {
	var renderErr error

	out := forPattern.ReplaceAllStringFunc(template, func(match string) string {
		groups := forPattern.FindStringSubmatch(match)
		loopVar, listVar, body := groups[1], groups[2], groups[3]

		seq := ToSequence(variables[listVar])
		var sb strings.Builder
		for _, item := range seq {
			scoped := make(map[string]any, len(variables)+1)
			for k, v := range variables {
				scoped[k] = v
			}
			scoped[loopVar] = item

			rendered, err := r.Render(body, scoped)
			if err != nil {
				renderErr = err
				return ""
			}
			sb.WriteString(rendered)
		}
		return sb.String()
	})
	if renderErr != nil {
		return "", renderErr
	}

	out = ifPattern.ReplaceAllStringFunc(out, func(match string) string {
		groups := ifPattern.FindStringSubmatch(match)
		name, body := groups[1], groups[2]
		if !Truthy(Stringify(variables[name])) {
			return ""
		}
		rendered, err := r.Render(body, variables)
		if err != nil {
			renderErr = err
			return ""
		}
		return rendered
	})
	if renderErr != nil {
		return "", renderErr
	}
	return out, nil
}

// Stringify converts a variable value to its rendered text form.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Truthy implements the condition coercion rule: an empty string, "false"
// and "0" (case-insensitive, after trimming) are false, anything else true.
func Truthy(rendered string) bool {
	s := strings.ToLower(strings.TrimSpace(rendered))
	return s != "" && s != "false" && s != "0"
}

// ToSequence coerces a variable value to a sequence for loop iteration.
// Slices iterate element-wise; strings split on commas; nil yields an
// empty sequence; anything else iterates as a single element.
func ToSequence(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		ret := make([]any, len(v))
		for i, s := range v {
			ret[i] = s
		}
		return ret
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		ret := make([]any, 0, len(parts))
		for _, p := range parts {
			ret = append(ret, strings.TrimSpace(p))
		}
		return ret
	default:
		return []any{v}
	}
}

// ResolveSequence renders a loop's iterate_over expression to a sequence.
// A bare {{name}} expression resolves the variable directly so slice
// values keep their element types; anything else is rendered to text and
// split like a string value.
func ResolveSequence(expr string, variables map[string]any, renderer interface {
	Render(string, map[string]any) (string, error)
}) ([]any, error) {
	if groups := bareVarExpr.FindStringSubmatch(strings.TrimSpace(expr)); groups != nil {
		return ToSequence(variables[groups[1]]), nil
	}
	rendered, err := renderer.Render(expr, variables)
	if err != nil {
		return nil, err
	}
	return ToSequence(rendered), nil
}
