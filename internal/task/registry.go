package task

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownTaskType is returned when no factory is registered for a type.
var ErrUnknownTaskType = errors.New("unknown task type")

// Factory builds an executable task from its id and stored payload.
type Factory func(id uuid.UUID, payload []byte) (Task, error)

// Registry maps task types to factories. It is used both for new task
// requests and for tasks recovered from the store.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for taskType.
func (r *Registry) Register(taskType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[taskType] = f
}

// Has reports whether taskType has a factory.
func (r *Registry) Has(taskType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[taskType]
	return ok
}

// Build creates a task of taskType.
func (r *Registry) Build(id uuid.UUID, taskType string, payload []byte) (Task, error) {
	r.mu.RLock()
	f, ok := r.factories[taskType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}
	return f(id, payload)
}

// Rebuild turns a stored task into an executable one with the same id.
func (r *Registry) Rebuild(t Task) (Task, error) {
	return r.Build(t.ID(), t.Type(), t.Payload())
}
