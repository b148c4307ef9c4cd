package stage

import (
	"sync"

	"github.com/fusesell/fusesell/pkg/schema"
)

// Registry is a thread-safe stage lookup table built once at startup.
// Registration order is preserved and defines the normal-run sequence.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
	order  []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// Register adds a stage. Returns an error on nil, unnamed, or
// duplicate stages.
func (r *Registry) Register(s Stage) error {
	if s == nil {
		return schema.NewError(schema.ErrCodeValidation, "stage is nil")
	}
	name := s.Name()
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "stage name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stages[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "stage %q already registered", name)
	}
	r.stages[name] = s
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a stage by name.
func (r *Registry) Get(name string) (Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stages[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "stage %q not registered", name)
	}
	return s, nil
}

// GetAction retrieves a stage that supports direct action invocation.
func (r *Registry) GetAction(name string) (ActionStage, error) {
	s, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	as, ok := s.(ActionStage)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidAction, "stage %q does not accept actions", name)
	}
	return as, nil
}

// Ordered returns the registered stages in registration order.
func (r *Registry) Ordered() []Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Stage, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.stages[name])
	}
	return out
}

// Has checks if a stage is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.stages[name]
	return ok
}

// Count returns the number of registered stages.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stages)
}
