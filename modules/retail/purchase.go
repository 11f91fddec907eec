package retail

import (
	"context"
	"fmt"

	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
)

const (
	scratchObservation = "consumer_observation"
	scratchActions     = "purchase_actions"
	scratchFinal       = "final_purchase_actions"
)

// Action is one consumer's purchase decision for a step.
type Action struct {
	Consumer int
	// Product is the product index, or -1 when the consumer bought nothing.
	Product int
	// Paid is the amount debited from the consumer's budget.
	Paid float64
	// Committed is set by the transition once stock has been taken.
	Committed bool
}

// Bought reports whether the consumer chose a product.
func (a Action) Bought() bool { return a.Product >= 0 }

// PurchaseObservation publishes the product catalog to consumers.
type PurchaseObservation struct {
	stage.Base
}

// NewPurchaseObservation is the factory for Purchase/observation.
func NewPurchaseObservation(spec stage.Spec) (stage.Stage, error) {
	spec = spec.WithPaths(
		[]string{envPath(envStocks), envPath(envPrices)},
		[]string{"substep/" + scratchObservation},
	)
	return &PurchaseObservation{Base: stage.NewBase(spec)}, nil
}

func (o *PurchaseObservation) Run(ctx context.Context, s *state.Store) error {
	c, err := readCatalog(s)
	if err != nil {
		return err
	}
	s.PutScratch(scratchObservation, c)
	ctxlog.FromContext(ctx).Debug("Published catalog.", "products", c.Len())
	return nil
}

type purchasePolicyArgs struct {
	Workers *int `cty:"workers"`
}

// PurchasePolicy lets every consumer pick the first product that is in
// stock and affordable. All consumers decide against the same observation;
// stock conflicts are settled by the transition.
type PurchasePolicy struct {
	stage.Base
	group   string
	workers int
}

// NewPurchasePolicy is the factory for Purchase/policy.
func NewPurchasePolicy(spec stage.Spec) (stage.Stage, error) {
	group := activeGroup(spec.ActiveAgents)
	spec = spec.WithPaths(
		[]string{"substep/" + scratchObservation, "agents/" + group + "/" + attrBudget},
		[]string{"substep/" + scratchActions, "agents/" + group + "/" + attrBudget},
	)
	var args purchasePolicyArgs
	if err := spec.Decode(&args); err != nil {
		return nil, err
	}
	p := &PurchasePolicy{Base: stage.NewBase(spec), group: group}
	if args.Workers != nil {
		if *args.Workers < 0 {
			return nil, fmt.Errorf("workers must not be negative, got %d", *args.Workers)
		}
		p.workers = *args.Workers
	}
	return p, nil
}

func (p *PurchasePolicy) Run(ctx context.Context, s *state.Store) error {
	logger := ctxlog.FromContext(ctx)

	c, err := state.ScratchAs[*Catalog](s, scratchObservation)
	if err != nil {
		return err
	}
	g, err := s.Group(p.group)
	if err != nil {
		return err
	}

	workers := p.workers
	if workers == 0 {
		workers = stage.Workers(ctx)
	}
	actions, err := stage.ForEachAgent(ctx, g.Len(), workers, func(_ context.Context, i int) (Action, error) {
		return decide(c, g.Agents[i])
	})
	if err != nil {
		return err
	}

	bought := 0
	for _, a := range actions {
		if !a.Bought() {
			continue
		}
		agent := g.Agents[a.Consumer]
		budget, err := agent.Number(attrBudget)
		if err != nil {
			return err
		}
		if err := agent.SetNumber(attrBudget, budget-a.Paid); err != nil {
			return err
		}
		bought++
	}

	s.PutScratch(scratchActions, actions)
	logger.Debug("Consumers decided.", "group", p.group, "consumers", len(actions), "buying", bought)
	return nil
}

// decide picks the first product with stock whose list price, scaled by
// the consumer's price sensitivity, and whose effective price both fit the
// budget.
func decide(c *Catalog, a *state.Agent) (Action, error) {
	budget, err := a.Number(attrBudget)
	if err != nil {
		return Action{}, err
	}
	sensitivity := a.NumberOr(attrSensitivity, 1)

	for j := 0; j < c.Len(); j++ {
		if c.Stocks[j] <= 0 {
			continue
		}
		price := c.EffectivePrice(j)
		if budget >= c.Prices[j]*sensitivity && budget >= price {
			return Action{Consumer: a.Index, Product: j, Paid: price}, nil
		}
	}
	return Action{Consumer: a.Index, Product: -1}, nil
}

// PurchaseTransition takes one unit of stock per purchase, in consumer
// order. Purchases that can no longer be served are refunded.
type PurchaseTransition struct {
	stage.Base
	group string
}

// NewPurchaseTransition is the factory for Purchase/transition.
func NewPurchaseTransition(spec stage.Spec) (stage.Stage, error) {
	group := activeGroup(spec.ActiveAgents)
	spec = spec.WithPaths(
		[]string{"substep/" + scratchActions, envPath(envStocks)},
		[]string{"substep/" + scratchFinal, envPath(envStocks), "agents/" + group + "/" + attrBudget},
	)
	return &PurchaseTransition{Base: stage.NewBase(spec), group: group}, nil
}

func (t *PurchaseTransition) Run(ctx context.Context, s *state.Store) error {
	logger := ctxlog.FromContext(ctx)

	actions, err := state.ScratchAs[[]Action](s, scratchActions)
	if err != nil {
		return err
	}
	stocks, err := s.Env(envStocks)
	if err != nil {
		return err
	}
	g, err := s.Group(t.group)
	if err != nil {
		return err
	}

	final := make([]Action, 0, len(actions))
	committed, refunded := 0, 0
	for _, a := range actions {
		if !a.Bought() {
			final = append(final, a)
			continue
		}
		agent, err := g.Agent(a.Consumer)
		if err != nil {
			s.ReportBounds(state.BoundsError{Path: "agents/" + t.group, Index: a.Consumer, Len: g.Len(), Reason: "unknown consumer"})
			continue
		}

		if a.Product >= stocks.Len() {
			s.ReportBounds(state.BoundsError{Path: envPath(envStocks), Index: a.Product, Len: stocks.Len(), Reason: "stale purchase"})
		} else if stock, _ := stocks.Number(a.Product); stock >= 1 {
			if err := stocks.SetNumber(a.Product, stock-1); err != nil {
				return err
			}
			a.Committed = true
			committed++
			final = append(final, a)
			continue
		}

		budget, err := agent.Number(attrBudget)
		if err != nil {
			return err
		}
		if err := agent.SetNumber(attrBudget, budget+a.Paid); err != nil {
			return err
		}
		refunded++
		a.Paid = 0
		final = append(final, a)
	}

	s.PutScratch(scratchFinal, final)
	logger.Debug("Purchases settled.", "committed", committed, "refunded", refunded)
	return nil
}
