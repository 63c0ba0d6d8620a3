package operations

import (
	"sync"
	"time"

	"ehrqa/internal/dataprocessing"
	"ehrqa/internal/dataset"
	"ehrqa/pkg/contracts/domain"
)

// RunStatus represents the overall run status
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunState carries one pipeline invocation from Loaded to ReportAssembled.
// The data fields are owned by the step currently executing; status, phase
// and step bookkeeping are guarded by mu.
type RunState struct {
	mu sync.RWMutex

	ID        string     `json:"id"`
	Status    RunStatus  `json:"status"`
	Phase     Phase      `json:"phase"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Error     string     `json:"error,omitempty"`

	steps map[string]*StepState
	order []string

	// Options is the normalized run configuration
	Options Options `json:"options"`

	// Input is the loaded dataset; steps never modify it
	Input *dataset.Dataset `json:"-"`
	// Cleaned is the copy-on-write dataset built by the cleaning steps
	Cleaned *dataset.Dataset `json:"-"`

	// Partial results, filled in step order
	Missingness  *domain.MissingnessSummary   `json:"-"`
	Duplicates   *domain.DuplicateSummary     `json:"-"`
	AgeHandling  *domain.AgeHandling          `json:"-"`
	TimeFeatures *domain.TimeFeatures         `json:"-"`
	Flags        *dataprocessing.OutlierFlags `json:"-"`
	Report       *domain.Report               `json:"-"`
}

// NewRunState creates the state of a run over input
func NewRunState(id string, input *dataset.Dataset, opts Options) *RunState {
	return &RunState{
		ID:      id,
		Status:  RunStatusPending,
		Phase:   PhaseNew,
		steps:   make(map[string]*StepState),
		Options: opts,
		Input:   input,
	}
}

// Start marks the run as running
func (r *RunState) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunStatusRunning
	r.StartTime = time.Now()
}

// Complete marks the run as completed
func (r *RunState) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCompleted
}

// Fail marks the run as failed
func (r *RunState) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusFailed
	if err != nil {
		r.Error = err.Error()
	}
}

// Cancel marks the run as cancelled
func (r *RunState) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCancelled
}

// GetStatus returns the run status
func (r *RunState) GetStatus() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// GetPhase returns the last phase reached
func (r *RunState) GetPhase() Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Phase
}

// SetPhase advances the state machine
func (r *RunState) SetPhase(p Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Phase = p
}

// AddStep registers the state of a step in execution order
func (r *RunState) AddStep(s *StepState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.steps[s.ID]; !ok {
		r.order = append(r.order, s.ID)
	}
	r.steps[s.ID] = s
}

// GetStep returns the state of a specific step
func (r *RunState) GetStep(id string) *StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.steps[id]
}

// Steps returns the step states in execution order
func (r *RunState) Steps() []*StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*StepState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.steps[id])
	}
	return out
}

// Duration returns the duration of the run
func (r *RunState) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.StartTime.IsZero() {
		return 0
	}
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return time.Since(r.StartTime)
}
