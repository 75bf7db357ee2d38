package model_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

func TestConfigurationErrorMessage(t *testing.T) {
	err := &model.ConfigurationError{
		Phase:  model.PhaseTranslate,
		Field:  "chunk_size",
		Reason: "chunk_size is required for chunk strategy",
	}
	assert.Contains(t, err.Error(), "phase translate")
	assert.Contains(t, err.Error(), "chunk_size is required for chunk strategy")

	err = &model.ConfigurationError{Reason: "no phases configured"}
	assert.Equal(t, "configuration: no phases configured", err.Error())
}

func TestExecutionFailureUnwrap(t *testing.T) {
	cause := fmt.Errorf("endpoint returned 503")
	err := &model.ExecutionFailure{UnitID: "translate-0003", Attempts: 4, Err: cause}
	assert.Contains(t, err.Error(), "translate-0003")
	assert.Contains(t, err.Error(), "after 4 attempts")
	assert.ErrorIs(t, err, cause)

	var ef *model.ExecutionFailure
	wrapped := fmt.Errorf("phase translate: %w", err)
	require.True(t, errors.As(wrapped, &ef))
	assert.Equal(t, 4, ef.Attempts)
}

func TestApprovalRequiredIsSignal(t *testing.T) {
	sig := &model.ApprovalRequired{Operation: "overwrite_translation", LineID: "s02:0010"}
	var target *model.ApprovalRequired
	require.True(t, errors.As(error(sig), &target))
	assert.Contains(t, sig.Error(), "approval required")
}

func TestMonotonicityViolationMessage(t *testing.T) {
	err := &model.MonotonicityViolation{
		Phase:     model.PhaseQA,
		MetricKey: "lines_checked",
		Quantity:  "completed_units",
		Prev:      80,
		Next:      64,
	}
	assert.Contains(t, err.Error(), "phase qa")
	assert.Contains(t, err.Error(), "lines_checked")
	assert.Contains(t, err.Error(), "regressed")
}
