package retail

import (
	"context"
	"errors"

	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
)

const (
	scratchDeliveryInfo = "delivery_info"
	scratchDeliveryPlan = "delivery_plan"
)

// DeliveryInfo is what the Deliver substep observes: the purchases settled
// earlier in the same step.
type DeliveryInfo struct {
	Purchases []Action
}

// Delivery is one planned hand-over.
type Delivery struct {
	Consumer   int
	Product    int
	DeliverNow bool
}

// DeliverObservation collects the settled purchases carried over from the
// Purchase substep. A step without purchases observes an empty list.
type DeliverObservation struct {
	stage.Base
}

// NewDeliverObservation is the factory for Deliver/observation.
func NewDeliverObservation(spec stage.Spec) (stage.Stage, error) {
	spec = spec.WithPaths(
		[]string{"substep/" + scratchFinal},
		[]string{"substep/" + scratchDeliveryInfo},
	)
	return &DeliverObservation{Base: stage.NewBase(spec)}, nil
}

func (o *DeliverObservation) Run(ctx context.Context, s *state.Store) error {
	purchases, err := state.ScratchAs[[]Action](s, scratchFinal)
	if err != nil && !errors.Is(err, state.ErrPathNotFound) {
		return err
	}
	s.PutScratch(scratchDeliveryInfo, &DeliveryInfo{Purchases: purchases})
	ctxlog.FromContext(ctx).Debug("Gathered purchases for delivery.", "purchases", len(purchases))
	return nil
}

// DeliverPolicy plans a delivery for every committed purchase.
type DeliverPolicy struct {
	stage.Base
}

// NewDeliverPolicy is the factory for Deliver/policy.
func NewDeliverPolicy(spec stage.Spec) (stage.Stage, error) {
	spec = spec.WithPaths(
		[]string{"substep/" + scratchDeliveryInfo},
		[]string{"substep/" + scratchDeliveryPlan},
	)
	return &DeliverPolicy{Base: stage.NewBase(spec)}, nil
}

func (p *DeliverPolicy) Run(_ context.Context, s *state.Store) error {
	info, err := state.ScratchAs[*DeliveryInfo](s, scratchDeliveryInfo)
	if err != nil {
		return err
	}
	plan := make([]Delivery, 0, len(info.Purchases))
	for _, a := range info.Purchases {
		plan = append(plan, Delivery{
			Consumer:   a.Consumer,
			Product:    a.Product,
			DeliverNow: a.Bought() && a.Committed,
		})
	}
	s.PutScratch(scratchDeliveryPlan, plan)
	return nil
}

// DeliverTransition counts delivered units per product.
type DeliverTransition struct {
	stage.Base
}

// NewDeliverTransition is the factory for Deliver/transition.
func NewDeliverTransition(spec stage.Spec) (stage.Stage, error) {
	spec = spec.WithPaths(
		[]string{"substep/" + scratchDeliveryPlan, envPath(envDelivered)},
		[]string{envPath(envDelivered)},
	)
	return &DeliverTransition{Base: stage.NewBase(spec)}, nil
}

func (t *DeliverTransition) Run(ctx context.Context, s *state.Store) error {
	plan, err := state.ScratchAs[[]Delivery](s, scratchDeliveryPlan)
	if err != nil {
		return err
	}
	delivered, err := s.Env(envDelivered)
	if err != nil {
		return err
	}

	count := 0
	for _, d := range plan {
		if !d.DeliverNow {
			continue
		}
		if d.Product < 0 || d.Product >= delivered.Len() {
			s.ReportBounds(state.BoundsError{Path: envPath(envDelivered), Index: d.Product, Len: delivered.Len(), Reason: "unknown product"})
			continue
		}
		n, err := delivered.Number(d.Product)
		if err != nil {
			return err
		}
		if err := delivered.SetNumber(d.Product, n+1); err != nil {
			return err
		}
		count++
	}
	ctxlog.FromContext(ctx).Debug("Delivered products.", "units", count)
	return nil
}
