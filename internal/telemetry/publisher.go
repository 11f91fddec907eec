package telemetry

import (
	"context"
	"slices"

	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/vk/substepgrid/internal/runner"
	"github.com/vk/substepgrid/internal/state"
)

// Event names.
const (
	EventReset = "substepgrid:reset"
	EventStep  = "substepgrid:step"
)

// Emitter sends a named event with a JSON-encodable payload.
type Emitter interface {
	Emit(event string, payload any)
	Close() error
}

// Publisher forwards runner events to an Emitter.
type Publisher struct {
	emitter       Emitter
	includeAgents bool
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithAgents includes every agent column in the payloads. By default only
// the environment is published.
func WithAgents() PublisherOption {
	return func(p *Publisher) {
		p.includeAgents = true
	}
}

// NewPublisher creates a Publisher over e.
func NewPublisher(e Emitter, opts ...PublisherOption) *Publisher {
	p := &Publisher{emitter: e}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Close closes the underlying emitter.
func (p *Publisher) Close() error {
	return p.emitter.Close()
}

// OnReset emits EventReset.
func (p *Publisher) OnReset(ctx context.Context, ev runner.ResetEvent) error {
	payload := map[string]any{
		"run_id":      ev.RunID,
		"episode":     ev.Episode,
		"at":          ev.At.UTC().UnixMilli(),
		"environment": environment(ev.Store),
	}
	if p.includeAgents {
		payload["agents"] = agents(ev.Store)
	}
	p.emitter.Emit(EventReset, payload)
	ctxlog.FromContext(ctx).Debug("Published reset.", "episode", ev.Episode)
	return nil
}

// OnStep emits EventStep.
func (p *Publisher) OnStep(ctx context.Context, ev runner.StepEvent) error {
	p.emitter.Emit(EventStep, p.StepPayload(ev))
	ctxlog.FromContext(ctx).Debug("Published step.", "episode", ev.Episode, "step", ev.Step)
	return nil
}

// StepPayload builds the EventStep payload.
func (p *Publisher) StepPayload(ev runner.StepEvent) map[string]any {
	payload := map[string]any{
		"run_id":      ev.RunID,
		"episode":     ev.Episode,
		"step":        ev.Step,
		"at":          ev.At.UTC().UnixMilli(),
		"environment": environment(ev.Store),
	}
	if ev.Report != nil {
		skipped := make([]map[string]any, 0, len(ev.Report.Skipped))
		for _, b := range ev.Report.Skipped {
			skipped = append(skipped, map[string]any{"path": b.Path, "index": b.Index, "len": b.Len, "reason": b.Reason})
		}
		payload["substeps"] = ev.Report.Substeps
		payload["skipped"] = skipped
		payload["duration_ms"] = ev.Report.Duration.Milliseconds()
	}
	if p.includeAgents {
		payload["agents"] = agents(ev.Store)
	}
	return payload
}

func environment(s *state.Store) map[string]any {
	out := make(map[string]any)
	if s == nil {
		return out
	}
	for _, name := range s.EnvNames() {
		v, err := s.Env(name)
		if err != nil {
			continue
		}
		out[name] = values(v)
	}
	return out
}

func agents(s *state.Store) map[string]any {
	out := make(map[string]any)
	if s == nil {
		return out
	}
	for _, name := range s.Groups() {
		g, err := s.Group(name)
		if err != nil {
			continue
		}
		cols := make(map[string]any)
		for _, prop := range g.Properties() {
			col, err := g.Column(prop)
			if err != nil {
				continue
			}
			cols[prop] = values(col)
		}
		out[name] = cols
	}
	return out
}

func values(v *state.Variable) any {
	// Payloads are encoded after the step returns, so they must not alias
	// live state.
	switch v.DType {
	case state.Int:
		return slices.Clone(v.Ints())
	case state.Float:
		return slices.Clone(v.Floats())
	}
	return slices.Clone(v.Strings())
}

var _ runner.Observer = (*Publisher)(nil)
