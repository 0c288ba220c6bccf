package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/orchestrator"
)

type StepType string

const (
	StepPrompt      StepType = "prompt"
	StepConditional StepType = "conditional"
	StepLoop        StepType = "loop"
)

// ErrorHandling is a step's failure policy. "continue" substitutes the
// fallback value and moves on; "stop" (or no policy at all) makes the
// failure fatal for the whole execution.
type ErrorHandling struct {
	OnError       string `yaml:"on_error" json:"on_error"`
	FallbackValue string `yaml:"fallback_value,omitempty" json:"fallback_value,omitempty"`
}

// PromptConfig renders a prompt against the variable scope, calls the
// model and optionally binds the response text to a variable.
type PromptConfig struct {
	Prompt    string `yaml:"prompt"`
	Model     string `yaml:"model,omitempty"`
	OutputVar string `yaml:"output_var,omitempty"`
}

// ConditionalConfig renders a condition and, when truthy, executes the
// nested then-step. A falsy condition skips the step as a no-op success.
type ConditionalConfig struct {
	Condition string `yaml:"condition"`
	Then      *Step  `yaml:"then"`
}

// LoopConfig iterates a sequence, binding each element to LoopVar in a
// loop-local scope, and executes the nested steps once per element.
type LoopConfig struct {
	IterateOver string `yaml:"iterate_over"`
	LoopVar     string `yaml:"loop_var"`
	Steps       []Step `yaml:"steps"`
}

// Step is one unit of work, a tagged union over the step kinds: exactly
// one of Prompt, Conditional or Loop is populated according to Type.
type Step struct {
	Name          string
	Type          StepType
	DependsOn     []string
	ErrorHandling *ErrorHandling

	Prompt      *PromptConfig
	Conditional *ConditionalConfig
	Loop        *LoopConfig
}

// rawStep is the on-disk YAML shape: a generic config block that gets
// decoded into the kind-specific variant once the type is known.
type rawStep struct {
	Name          string         `yaml:"name"`
	Type          StepType       `yaml:"type"`
	Config        yaml.Node      `yaml:"config"`
	DependsOn     []string       `yaml:"depends_on,omitempty"`
	ErrorHandling *ErrorHandling `yaml:"error_handling,omitempty"`
}

func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	var raw rawStep
	if err := value.Decode(&raw); err != nil {
		return err
	}

	s.Name = raw.Name
	s.Type = raw.Type
	s.DependsOn = raw.DependsOn
	s.ErrorHandling = raw.ErrorHandling

	if raw.Config.IsZero() {
		return nil
	}
	switch raw.Type {
	case StepPrompt:
		s.Prompt = &PromptConfig{}
		return raw.Config.Decode(s.Prompt)
	case StepConditional:
		s.Conditional = &ConditionalConfig{}
		return raw.Config.Decode(s.Conditional)
	case StepLoop:
		s.Loop = &LoopConfig{}
		return raw.Config.Decode(s.Loop)
	default:
		return nil
	}
}

// Definition is a named workflow: default variables plus an ordered list
// of step declarations.
type Definition struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Variables   map[string]any `yaml:"variables,omitempty"`
	Steps       []Step         `yaml:"steps"`
}

// LoadDefinition reads and validates a workflow definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, orchestrator.NewError(orchestrator.ErrNotFound, "workflow definition not found").
				WithContext("path", path)
		}
		return nil, fmt.Errorf("read workflow definition %s: %w", path, err)
	}
	return ParseDefinition(data)
}

// ParseDefinition decodes YAML into a Definition and validates it. A
// definition that is missing the steps field, or whose steps are
// structurally incomplete, is rejected with InvalidDefinition before
// anything executes.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, orchestrator.WrapError(err, orchestrator.ErrInvalidDefinition, "workflow definition failed to parse")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

func (d *Definition) Validate() error {
	if d.Name == "" {
		return orchestrator.NewError(orchestrator.ErrInvalidDefinition, "workflow name is required")
	}
	if len(d.Steps) == 0 {
		return orchestrator.NewError(orchestrator.ErrInvalidDefinition, "workflow has no steps").
			WithContext("workflow", d.Name)
	}

	seen := make(map[string]bool, len(d.Steps))
	for i := range d.Steps {
		step := &d.Steps[i]
		if seen[step.Name] {
			return orchestrator.NewError(orchestrator.ErrInvalidDefinition, "duplicate step name").
				WithContext("step", step.Name)
		}
		seen[step.Name] = true
		if err := validateStep(step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step *Step) error {
	if step.Name == "" {
		return orchestrator.NewError(orchestrator.ErrInvalidDefinition, "step name is required")
	}

	switch step.Type {
	case StepPrompt:
		if step.Prompt == nil || step.Prompt.Prompt == "" {
			return invalidStep(step, "prompt step requires a config.prompt")
		}
	case StepConditional:
		if step.Conditional == nil || step.Conditional.Condition == "" {
			return invalidStep(step, "conditional step requires a config.condition")
		}
		if step.Conditional.Then == nil {
			return invalidStep(step, "conditional step requires a config.then step")
		}
		if err := validateStep(step.Conditional.Then); err != nil {
			return err
		}
	case StepLoop:
		if step.Loop == nil || step.Loop.IterateOver == "" {
			return invalidStep(step, "loop step requires a config.iterate_over")
		}
		if step.Loop.LoopVar == "" {
			return invalidStep(step, "loop step requires a config.loop_var")
		}
		if len(step.Loop.Steps) == 0 {
			return invalidStep(step, "loop step requires nested config.steps")
		}
		for i := range step.Loop.Steps {
			if err := validateStep(&step.Loop.Steps[i]); err != nil {
				return err
			}
		}
	default:
		return invalidStep(step, "unknown step type")
	}

	if step.ErrorHandling != nil {
		switch step.ErrorHandling.OnError {
		case "stop", "continue":
		default:
			return invalidStep(step, "error_handling.on_error must be stop or continue")
		}
	}
	return nil
}

func invalidStep(step *Step, message string) error {
	return orchestrator.NewError(orchestrator.ErrInvalidDefinition, message).
		WithContext("step", step.Name).
		WithContext("type", string(step.Type))
}
