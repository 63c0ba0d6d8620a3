package operations

import (
	"context"
	"sync"
	"time"
)

// Step is one QA check. Steps run in registration order and read and
// write the shared RunState.
type Step interface {
	ID() string
	Name() string
	// Execute returns a *SkipError when the step has nothing to do, which
	// marks it skipped instead of failed.
	Execute(ctx context.Context, state *RunState) error
}

type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepState is the progress record of one step within a run. It is safe
// for concurrent use.
type StepState struct {
	mu        sync.RWMutex
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Status    StepStatus             `json:"status"`
	StartTime *time.Time             `json:"start_time,omitempty"`
	EndTime   *time.Time             `json:"end_time,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func NewStepState(id, name string) *StepState {
	return &StepState{
		ID:       id,
		Name:     name,
		Status:   StepStatusPending,
		Metadata: make(map[string]interface{}),
	}
}

func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.StartTime, s.Status = &now, StepStatusActive
}

// finish moves the step to a terminal status. A step that never started
// gets a zero-length interval.
func (s *StepState) finish(status StepStatus, update func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if s.StartTime == nil {
		s.StartTime = &now
	}
	s.EndTime, s.Status = &now, status
	if update != nil {
		update()
	}
}

func (s *StepState) Complete() {
	s.finish(StepStatusCompleted, nil)
}

// Fail records err's text; a nil err leaves Error empty
func (s *StepState) Fail(err error) {
	s.finish(StepStatusFailed, func() {
		if err != nil {
			s.Error = err.Error()
		}
	})
}

// Skip records why the step had nothing to do
func (s *StepState) Skip(reason string) {
	s.finish(StepStatusSkipped, func() { s.Message = reason })
}

// SetMetadata records a key figure produced by the Step
func (s *StepState) SetMetadata(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metadata[key] = value
}

func (s *StepState) GetStatus() StepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// GetMessage returns the status message, set for skipped steps
func (s *StepState) GetMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Message
}

func (s *StepState) GetMetadata(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.Metadata[key]
	return v, ok
}

// Duration is the time from Start to the terminal transition, or to now
// while the step is still active
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// SkipError tells the pipeline a step had nothing to do, e.g. its column is
// absent from the dataset
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

func Skipped(reason string) error {
	return &SkipError{Reason: reason}
}

// BaseStage supplies ID and Name; steps embed it and add Execute
type BaseStage struct {
	id   string
	name string
}

func NewBaseStage(id, name string) BaseStage {
	return BaseStage{id: id, name: name}
}

func (b *BaseStage) ID() string {
	if b == nil {
		return ""
	}
	return b.id
}

func (b *BaseStage) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}
