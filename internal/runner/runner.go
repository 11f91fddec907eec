package runner

import (
	"errors"
	"math/rand/v2"
	"sync/atomic"

	"github.com/vk/substepgrid/internal/config"
	"github.com/vk/substepgrid/internal/pipeline"
	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/state"
)

var (
	// ErrNotInitialized is returned by Reset, Step and Run before Init succeeded.
	ErrNotInitialized = errors.New("runner is not initialized")
	// ErrBusy is returned when a call arrives while a reset or step is running.
	ErrBusy = errors.New("runner is busy")
)

// Status is the lifecycle state of a Runner.
type Status int32

const (
	Uninitialized Status = iota
	Ready
	Running
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Running:
		return "running"
	}
	return "unknown"
}

// Option configures a Runner.
type Option func(*Runner)

// WithObservers adds observers notified after every step and reset.
func WithObservers(obs ...Observer) Option {
	return func(r *Runner) {
		r.observers = append(r.observers, obs...)
	}
}

// WithSeed overrides the seed from simulation_metadata.
func WithSeed(seed int64) Option {
	return func(r *Runner) {
		r.seed = &seed
	}
}

// WithAtomicSteps forces snapshot rollback of failed steps regardless of
// the configuration.
func WithAtomicSteps() Option {
	return func(r *Runner) {
		r.forceAtomic = true
	}
}

// WithWorkers sets the default per-agent worker limit for stages that fan
// out with stage.ForEachAgent.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithBaseDir sets the directory relative initializer file paths resolve
// against.
func WithBaseDir(dir string) Option {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithRunID sets the identifier reported to observers. By default each Init
// generates a new one.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.runID = id
	}
}

// Runner orchestrates episodes and steps over one pipeline and one store.
type Runner struct {
	reg         *registry.Registry
	observers   []Observer
	seed        *int64
	forceAtomic bool
	baseDir     string
	runID       string
	workers     int

	status atomic.Int32

	model        *config.Model
	pipeline     *pipeline.Pipeline
	store        *state.Store
	episodeStart *state.Snapshot
	targets      []initTarget
	rng          *rand.Rand
	atomicSteps  bool

	episode int
	step    int
}

// New creates an uninitialized Runner.
func New(reg *registry.Registry, opts ...Option) *Runner {
	r := &Runner{reg: reg}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current lifecycle state.
func (r *Runner) State() Status {
	return Status(r.status.Load())
}

// Store returns the live state store. It is nil before Init. Callers must
// not use it while a step is running.
func (r *Runner) Store() *state.Store {
	return r.store
}

// Pipeline returns the resolved pipeline. It is nil before Init.
func (r *Runner) Pipeline() *pipeline.Pipeline {
	return r.pipeline
}

// RunID identifies the current initialization.
func (r *Runner) RunID() string {
	return r.runID
}

// Episode returns the number of resets performed since Init.
func (r *Runner) Episode() int {
	return r.episode
}

// StepInEpisode returns the number of steps completed since the last reset.
func (r *Runner) StepInEpisode() int {
	return r.step
}

// acquire moves the runner from ready to running.
func (r *Runner) acquire() error {
	if r.status.CompareAndSwap(int32(Ready), int32(Running)) {
		return nil
	}
	if r.State() == Uninitialized {
		return ErrNotInitialized
	}
	return ErrBusy
}

func (r *Runner) release() {
	r.status.Store(int32(Ready))
}
