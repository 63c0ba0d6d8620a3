package operations

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var errNilStep = errors.New("cannot register nil step")

// Registry holds the pipeline steps in execution order. It is small, so
// lookups scan the slice.
type Registry struct {
	mu    sync.RWMutex
	steps []Step
}

func NewRegistry() *Registry {
	return &Registry{}
}

// indexOf must be called with mu held
func (r *Registry) indexOf(id string) int {
	return slices.IndexFunc(r.steps, func(s Step) bool { return s.ID() == id })
}

// Register appends step. IDs must be non-empty and unique.
func (r *Registry) Register(step Step) error {
	if step == nil {
		return errNilStep
	}
	if step.ID() == "" {
		return errors.New("step ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(step.ID()) >= 0 {
		return fmt.Errorf("step with ID %s already registered", step.ID())
	}
	r.steps = append(r.steps, step)
	return nil
}

// Replace swaps in step for the one registered under its ID, keeping the
// position. Tests use it to inject failing steps.
func (r *Registry) Replace(step Step) error {
	if step == nil {
		return errNilStep
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(step.ID())
	if i < 0 {
		return fmt.Errorf("step with ID %s not found", step.ID())
	}
	r.steps[i] = step
	return nil
}

func (r *Registry) Get(id string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.steps[i], nil
	}
	return nil, fmt.Errorf("step with ID %s not found", id)
}

func (r *Registry) Has(id string) bool {
	_, err := r.Get(id)
	return err == nil
}

// List returns a copy of the steps in execution order
func (r *Registry) List() []Step {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.steps)
}

func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.steps))
	for i, s := range r.steps {
		ids[i] = s.ID()
	}
	return ids
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}
