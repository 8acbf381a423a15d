package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// TaskFunc is an executable task body. It returns a short human-readable
// result summary on success. Bodies are cooperative: long-running work must
// honor ctx cancellation, the core cannot interrupt it forcibly.
type TaskFunc func(ctx context.Context) (string, error)

// Registry maps symbolic task names to executable bodies. The scheduler only
// ever sees names; the registry is built once at process startup and looked
// up at invocation time.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]TaskFunc
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]TaskFunc)}
}

// Register binds a name to a body. Registering the same name twice is a
// programming error and is rejected.
func (r *Registry) Register(name string, fn TaskFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("registry: name and body are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[name]; exists {
		return fmt.Errorf("registry: task %q already registered", name)
	}
	r.tasks[name] = fn
	return nil
}

// Resolve returns the body bound to name.
func (r *Registry) Resolve(name string) (TaskFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.tasks[name]
	return fn, ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
