package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/orchestrator"
)

const sampleDefinition = `
name: summarize-library
description: Summarize and tag a list of notes
variables:
  style: terse
  notes: "alpha, beta"
steps:
  - name: extract
    type: prompt
    config:
      prompt: "Extract key points ({{style}})"
      model: llama3.1:8b
      output_var: extracted
  - name: maybe-expand
    type: conditional
    depends_on: [extract]
    config:
      condition: "{{extracted}}"
      then:
        name: expand
        type: prompt
        config:
          prompt: "Expand: {{extracted}}"
          output_var: expanded
  - name: per-note
    type: loop
    depends_on: [extract]
    error_handling:
      on_error: continue
      fallback_value: "n/a"
    config:
      iterate_over: "{{notes}}"
      loop_var: note
      steps:
        - name: tag-note
          type: prompt
          config:
            prompt: "Tag {{note}} using {{extracted}}"
            output_var: last_tag
`

func TestParseDefinition_FullShape(t *testing.T) {
	def, err := ParseDefinition([]byte(sampleDefinition))
	require.NoError(t, err)

	assert.Equal(t, "summarize-library", def.Name)
	assert.Equal(t, "terse", def.Variables["style"])
	require.Len(t, def.Steps, 3)

	extract := def.Steps[0]
	assert.Equal(t, StepPrompt, extract.Type)
	require.NotNil(t, extract.Prompt)
	assert.Equal(t, "extracted", extract.Prompt.OutputVar)
	assert.Nil(t, extract.Conditional)

	cond := def.Steps[1]
	assert.Equal(t, StepConditional, cond.Type)
	assert.Equal(t, []string{"extract"}, cond.DependsOn)
	require.NotNil(t, cond.Conditional)
	require.NotNil(t, cond.Conditional.Then)
	assert.Equal(t, "expand", cond.Conditional.Then.Name)

	loop := def.Steps[2]
	assert.Equal(t, StepLoop, loop.Type)
	require.NotNil(t, loop.Loop)
	assert.Equal(t, "note", loop.Loop.LoopVar)
	require.Len(t, loop.Loop.Steps, 1)
	require.NotNil(t, loop.ErrorHandling)
	assert.Equal(t, "continue", loop.ErrorHandling.OnError)
	assert.Equal(t, "n/a", loop.ErrorHandling.FallbackValue)
}

func TestParseDefinition_MissingStepsRejected(t *testing.T) {
	cases := []string{
		"name: empty\n",
		"name: empty\nsteps: []\n",
	}
	for _, input := range cases {
		_, err := ParseDefinition([]byte(input))
		require.Error(t, err)
		assert.True(t, orchestrator.IsErrorType(err, orchestrator.ErrInvalidDefinition))
	}
}

func TestParseDefinition_InvalidShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "unknown step type",
			input: "name: wf\nsteps:\n  - name: a\n    type: teleport\n",
		},
		{
			name:  "prompt without prompt text",
			input: "name: wf\nsteps:\n  - name: a\n    type: prompt\n    config:\n      model: m\n",
		},
		{
			name:  "conditional without then",
			input: "name: wf\nsteps:\n  - name: a\n    type: conditional\n    config:\n      condition: \"{{x}}\"\n",
		},
		{
			name:  "loop without nested steps",
			input: "name: wf\nsteps:\n  - name: a\n    type: loop\n    config:\n      iterate_over: \"{{xs}}\"\n      loop_var: x\n",
		},
		{
			name:  "duplicate step names",
			input: "name: wf\nsteps:\n  - name: a\n    type: prompt\n    config:\n      prompt: p\n  - name: a\n    type: prompt\n    config:\n      prompt: p\n",
		},
		{
			name:  "bad on_error",
			input: "name: wf\nsteps:\n  - name: a\n    type: prompt\n    error_handling:\n      on_error: retry\n    config:\n      prompt: p\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(tt.input))
			require.Error(t, err)
			assert.True(t, orchestrator.IsErrorType(err, orchestrator.ErrInvalidDefinition))
		})
	}
}

func TestLoadDefinition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDefinition), 0o644))

	def, err := LoadDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, "summarize-library", def.Name)

	_, err = LoadDefinition(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, orchestrator.IsErrorType(err, orchestrator.ErrNotFound))
}
