package retail

import (
	"context"
	"fmt"

	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
)

const (
	scratchBelow   = "stock_below_threshold"
	scratchRestock = "restock_quantity"
)

// Restock strategies.
const (
	// StrategyDeficit tops a product up to the threshold, at most by the
	// restock quantity.
	StrategyDeficit = "deficit"
	// StrategyBatch adds the full restock quantity to every product below
	// the threshold.
	StrategyBatch = "batch"
)

// Shortfall is a product whose stock is strictly below the threshold.
type Shortfall struct {
	Product int
	Deficit float64
}

// Replenishment is the number of units to add to a product.
type Replenishment struct {
	Product int
	Amount  float64
}

type restockObservationArgs struct {
	Threshold *float64 `cty:"threshold"`
}

// RestockObservation finds the products whose stock is below the threshold.
// The threshold comes from the stage's threshold argument, or from
// environment/restock_threshold when the argument is absent.
type RestockObservation struct {
	stage.Base
	threshold *float64
}

// NewRestockObservation is the factory for Restock/observation.
func NewRestockObservation(spec stage.Spec) (stage.Stage, error) {
	var args restockObservationArgs
	if err := spec.Decode(&args); err != nil {
		return nil, err
	}
	inputs := []string{envPath(envStocks)}
	if args.Threshold == nil {
		inputs = append(inputs, envPath(envThreshold))
	}
	spec = spec.WithPaths(inputs, []string{"substep/" + scratchBelow})
	return &RestockObservation{Base: stage.NewBase(spec), threshold: args.Threshold}, nil
}

func (o *RestockObservation) Run(ctx context.Context, s *state.Store) error {
	threshold, err := o.resolveThreshold(s)
	if err != nil {
		return err
	}
	stocks, err := s.Env(envStocks)
	if err != nil {
		return err
	}

	var below []Shortfall
	for i, x := range stocks.Numbers() {
		if x < threshold {
			below = append(below, Shortfall{Product: i, Deficit: threshold - x})
		}
	}
	s.PutScratch(scratchBelow, below)
	ctxlog.FromContext(ctx).Debug("Checked stock levels.", "threshold", threshold, "below", len(below))
	return nil
}

func (o *RestockObservation) resolveThreshold(s *state.Store) (float64, error) {
	if o.threshold != nil {
		return *o.threshold, nil
	}
	return scalarEnv(s, envThreshold)
}

type restockPolicyArgs struct {
	Strategy string `cty:"strategy"`
}

// RestockPolicy decides how much to order for each short product, capped by
// environment/restock_quantity.
type RestockPolicy struct {
	stage.Base
	strategy string
}

// NewRestockPolicy is the factory for Restock/policy.
func NewRestockPolicy(spec stage.Spec) (stage.Stage, error) {
	args := restockPolicyArgs{Strategy: StrategyDeficit}
	if err := spec.Decode(&args); err != nil {
		return nil, err
	}
	switch args.Strategy {
	case StrategyDeficit, StrategyBatch:
	default:
		return nil, fmt.Errorf("unknown restock strategy %q: must be %q or %q", args.Strategy, StrategyDeficit, StrategyBatch)
	}
	spec = spec.WithPaths(
		[]string{"substep/" + scratchBelow, envPath(envQuantity)},
		[]string{"substep/" + scratchRestock},
	)
	return &RestockPolicy{Base: stage.NewBase(spec), strategy: args.Strategy}, nil
}

func (p *RestockPolicy) Run(_ context.Context, s *state.Store) error {
	below, err := state.ScratchAs[[]Shortfall](s, scratchBelow)
	if err != nil {
		return err
	}
	capacity, err := scalarEnv(s, envQuantity)
	if err != nil {
		return err
	}
	capacity = max(capacity, 0)

	orders := make([]Replenishment, 0, len(below))
	for _, b := range below {
		amount := capacity
		if p.strategy == StrategyDeficit {
			amount = min(b.Deficit, capacity)
		}
		orders = append(orders, Replenishment{Product: b.Product, Amount: amount})
	}
	s.PutScratch(scratchRestock, orders)
	return nil
}

// RestockTransition adds the ordered units to product_stocks. Orders for
// unknown products are skipped and reported.
type RestockTransition struct {
	stage.Base
}

// NewRestockTransition is the factory for Restock/transition.
func NewRestockTransition(spec stage.Spec) (stage.Stage, error) {
	spec = spec.WithPaths(
		[]string{"substep/" + scratchRestock, envPath(envStocks)},
		[]string{envPath(envStocks)},
	)
	return &RestockTransition{Base: stage.NewBase(spec)}, nil
}

func (t *RestockTransition) Run(ctx context.Context, s *state.Store) error {
	orders, err := state.ScratchAs[[]Replenishment](s, scratchRestock)
	if err != nil {
		return err
	}
	stocks, err := s.Env(envStocks)
	if err != nil {
		return err
	}

	for _, o := range orders {
		if o.Product < 0 || o.Product >= stocks.Len() {
			s.ReportBounds(state.BoundsError{Path: envPath(envStocks), Index: o.Product, Len: stocks.Len(), Reason: "unknown product"})
			continue
		}
		x, err := stocks.Number(o.Product)
		if err != nil {
			return err
		}
		if err := stocks.SetNumber(o.Product, x+o.Amount); err != nil {
			return err
		}
	}
	ctxlog.FromContext(ctx).Debug("Restocked products.", "orders", len(orders))
	return nil
}
