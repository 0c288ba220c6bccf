package orchestrator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrchError_MessageIncludesTypeAndContext(t *testing.T) {
	err := NewError(ErrCycleDetected, "workflow dependency graph contains a cycle").
		WithContext("workflow", "wf")

	msg := err.Error()
	assert.Contains(t, msg, "[CycleDetected]")
	assert.Contains(t, msg, "workflow=wf")
}

func TestIsErrorType_MatchesThroughWrapping(t *testing.T) {
	inner := NewError(ErrNotFound, "checkpoint not found")
	wrapped := fmt.Errorf("loading job: %w", inner)

	assert.True(t, IsErrorType(wrapped, ErrNotFound))
	assert.False(t, IsErrorType(wrapped, ErrCorrupt))
	assert.False(t, IsErrorType(errors.New("plain"), ErrNotFound))
}

func TestWrapError_PreservesCause(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := WrapError(cause, ErrCorrupt, "checkpoint failed to deserialize")

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "cause: unexpected end of JSON input")
}
