package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_VariableSubstitution(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render("Summarize {{topic}} in {{count}} words", map[string]any{
		"topic": "Go",
		"count": 50,
	})
	require.NoError(t, err)
	assert.Equal(t, "Summarize Go in 50 words", out)
}

func TestRenderer_UnknownVariableRendersEmpty(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render("a={{missing}}.", nil)
	require.NoError(t, err)
	assert.Equal(t, "a=.", out)
}

func TestRenderer_IfBlock(t *testing.T) {
	r := NewRenderer()

	tmpl := "start{% if flag %} extra{% endif %} end"

	out, err := r.Render(tmpl, map[string]any{"flag": "yes"})
	require.NoError(t, err)
	assert.Equal(t, "start extra end", out)

	out, err = r.Render(tmpl, map[string]any{"flag": "false"})
	require.NoError(t, err)
	assert.Equal(t, "start end", out)

	out, err = r.Render(tmpl, nil)
	require.NoError(t, err)
	assert.Equal(t, "start end", out)
}

func TestRenderer_ForBlock(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render("{% for item in items %}[{{item}}]{% endfor %}", map[string]any{
		"items": []string{"a", "b", "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, "[a][b][c]", out)
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"yes", true},
		{"1", true},
		{"anything", true},
		{"", false},
		{"  ", false},
		{"false", false},
		{"FALSE", false},
		{"0", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truthy(tt.input), "input %q", tt.input)
	}
}

func TestToSequence(t *testing.T) {
	assert.Nil(t, ToSequence(nil))
	assert.Equal(t, []any{"a", "b"}, ToSequence([]string{"a", "b"}))
	assert.Equal(t, []any{"a", "b"}, ToSequence("a, b"))
	assert.Equal(t, []any{42}, ToSequence(42))
	assert.Nil(t, ToSequence("   "))
}

func TestResolveSequence(t *testing.T) {
	r := NewRenderer()

	// Bare variable reference keeps element types.
	seq, err := ResolveSequence("{{items}}", map[string]any{"items": []any{1, 2}}, r)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, seq)

	// Anything else renders to text and splits like a string value.
	seq, err = ResolveSequence("{{a}},{{b}}", map[string]any{"a": "x", "b": "y"}, r)
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, seq)
}
