package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"

	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrUnknownStage is returned when no factory is registered for a
	// (substep name, kind) pair.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrDuplicateRegistration is returned when a stage key or initializer
	// name is registered twice. Registrations are never overwritten.
	ErrDuplicateRegistration = errors.New("duplicate registration")
	// ErrUnknownInitializer is returned when no initializer has the requested name.
	ErrUnknownInitializer = errors.New("unknown initializer")
)

// Module is the interface that all plug-in modules implement to be registered.
type Module interface {
	Register(r *Registry) error
}

// InitRequest describes the variable an initializer must fill.
type InitRequest struct {
	// Name is the variable path, e.g. "agents/consumers/budget".
	Name  string
	DType state.DType
	// Shape is the full declared shape; Size is the product of its dims.
	Shape     []int
	Size      int
	Arguments map[string]cty.Value
	Rand      *rand.Rand
	// BaseDir resolves relative file paths in arguments.
	BaseDir string
}

// Initializer produces the initial data for a declared variable. It returns
// a value accepted by state.Variable.Assign holding Size elements.
type Initializer func(ctx context.Context, req InitRequest) (any, error)

type stageKey struct {
	name string
	kind stage.Kind
}

// Registry holds the stage factories and initializers for a single
// application instance.
type Registry struct {
	stages       map[stageKey]stage.Factory
	initializers map[string]Initializer
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		stages:       make(map[stageKey]stage.Factory),
		initializers: make(map[string]Initializer),
	}
}

// Load registers every module in order and stops at the first failure.
func (r *Registry) Load(modules ...Module) error {
	for _, m := range modules {
		if err := m.Register(r); err != nil {
			return fmt.Errorf("registering module %T: %w", m, err)
		}
	}
	return nil
}

// Register associates a (substep name, kind) pair with a stage factory.
func (r *Registry) Register(name string, kind stage.Kind, f stage.Factory) error {
	if f == nil {
		return fmt.Errorf("stage %s/%s: factory must not be nil", name, kind)
	}
	k := stageKey{name: name, kind: kind}
	if _, exists := r.stages[k]; exists {
		return fmt.Errorf("%w: stage %s/%s", ErrDuplicateRegistration, name, kind)
	}
	slog.Debug("Registering stage.", "substep", name, "kind", kind.String())
	r.stages[k] = f
	return nil
}

// Resolve returns the factory registered for (name, kind).
func (r *Registry) Resolve(name string, kind stage.Kind) (stage.Factory, error) {
	f, ok := r.stages[stageKey{name: name, kind: kind}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownStage, name, kind)
	}
	return f, nil
}

// Has reports whether a factory is registered for (name, kind).
func (r *Registry) Has(name string, kind stage.Kind) bool {
	_, ok := r.stages[stageKey{name: name, kind: kind}]
	return ok
}

// Stages lists every registered stage as "name/kind", sorted.
func (r *Registry) Stages() []string {
	out := make([]string, 0, len(r.stages))
	for k := range r.stages {
		out = append(out, k.name+"/"+k.kind.String())
	}
	sort.Strings(out)
	return out
}

// RegisterInitializer adds a named initializer. Initializers live in their
// own namespace and are only used while building state.
func (r *Registry) RegisterInitializer(name string, fn Initializer) error {
	if fn == nil {
		return fmt.Errorf("initializer %q must not be nil", name)
	}
	if _, exists := r.initializers[name]; exists {
		return fmt.Errorf("%w: initializer %q", ErrDuplicateRegistration, name)
	}
	slog.Debug("Registering initializer.", "name", name)
	r.initializers[name] = fn
	return nil
}

// Initializer returns the named initializer.
func (r *Registry) Initializer(name string) (Initializer, error) {
	fn, ok := r.initializers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInitializer, name)
	}
	return fn, nil
}
