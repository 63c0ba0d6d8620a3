package operations_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ehrqa/internal/operations"
)

func TestStepStateTransitions(t *testing.T) {
	tests := []struct {
		name        string
		apply       func(s *operations.StepState)
		wantStatus  operations.StepStatus
		wantMessage string
		wantError   string
	}{
		{
			name:       "pending",
			apply:      func(*operations.StepState) {},
			wantStatus: operations.StepStatusPending,
		},
		{
			name:       "active",
			apply:      func(s *operations.StepState) { s.Start() },
			wantStatus: operations.StepStatusActive,
		},
		{
			name: "completed",
			apply: func(s *operations.StepState) {
				s.Start()
				s.Complete()
			},
			wantStatus: operations.StepStatusCompleted,
		},
		{
			name: "failed",
			apply: func(s *operations.StepState) {
				s.Start()
				s.Fail(errors.New("bad input"))
			},
			wantStatus: operations.StepStatusFailed,
			wantError:  "bad input",
		},
		{
			name:        "skipped without start",
			apply:       func(s *operations.StepState) { s.Skip("nothing to do") },
			wantStatus:  operations.StepStatusSkipped,
			wantMessage: "nothing to do",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := operations.NewStepState("age", "Age")
			tt.apply(s)

			assert.Equal(t, tt.wantStatus, s.GetStatus())
			assert.Equal(t, tt.wantMessage, s.GetMessage())
			assert.Equal(t, tt.wantError, s.Error)
			assert.GreaterOrEqual(t, s.Duration().Nanoseconds(), int64(0))
		})
	}
}

func TestStepStateMetadata(t *testing.T) {
	s := operations.NewStepState("outliers", "Outliers")
	s.SetMetadata("outliers_found", 3)

	v, ok := s.GetMetadata("outliers_found")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = s.GetMetadata("unknown")
	assert.False(t, ok)
}

func TestRunStateLifecycle(t *testing.T) {
	opts := operations.Options{AgeColumn: "age"}
	state := operations.NewRunState("run-1", nil, opts)

	assert.Equal(t, operations.RunStatusPending, state.GetStatus())
	assert.Equal(t, operations.PhaseNew, state.GetPhase())

	state.AddStep(operations.NewStepState("b", "B"))
	state.AddStep(operations.NewStepState("a", "A"))
	state.AddStep(operations.NewStepState("b", "B again"))

	steps := state.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, "b", steps[0].ID)
	assert.Equal(t, "B again", steps[0].Name)
	assert.Equal(t, "a", steps[1].ID)
	assert.Nil(t, state.GetStep("zzz"))

	state.Start()
	assert.Equal(t, operations.RunStatusRunning, state.GetStatus())

	state.SetPhase(operations.PhaseMissingnessComputed)
	assert.Equal(t, operations.PhaseMissingnessComputed, state.GetPhase())

	state.Fail(errors.New("stopped"))
	assert.Equal(t, operations.RunStatusFailed, state.GetStatus())
	assert.Equal(t, "stopped", state.Error)
	require.NotNil(t, state.EndTime)

	state.Cancel()
	assert.Equal(t, operations.RunStatusCancelled, state.GetStatus())
}

func TestErrorClassification(t *testing.T) {
	cause := errors.New("disk full")

	tests := []struct {
		name       string
		err        error
		wantType   operations.ErrorType
		wantCancel bool
	}{
		{name: "validation", err: operations.NewValidationError("loaded", "no dataset"), wantType: operations.ErrorTypeValidation},
		{name: "execution", err: operations.NewExecutionError("age", cause), wantType: operations.ErrorTypeExecution},
		{name: "cancellation", err: operations.NewCancellationError("time", context.Canceled), wantType: operations.ErrorTypeCancellation, wantCancel: true},
		{name: "bare deadline", err: context.DeadlineExceeded, wantType: "", wantCancel: true},
		{name: "plain error", err: cause, wantType: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, operations.GetErrorType(tt.err))
			assert.Equal(t, tt.wantCancel, operations.IsCancellation(tt.err))
		})
	}

	err := operations.NewExecutionError("age", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[execution] age: step failed: disk full", err.Error())
}

func TestSkipped(t *testing.T) {
	err := operations.Skipped("no age column configured")

	var skip *operations.SkipError
	require.True(t, errors.As(err, &skip))
	assert.Equal(t, "no age column configured", skip.Reason)
}
