// Package retail is a toy retail economy built on the stage contract:
// consumers buy products (Purchase), purchases are handed over (Deliver)
// and low stocks are replenished (Restock).
//
// The stages read a product catalog from the environment namespace:
//
//	environment/product_stocks      float [P]
//	environment/product_prices      float [P]
//	environment/product_promotions  float [P]  optional, defaults to 1
//	environment/restock_threshold   scalar     unless Restock has a threshold argument
//	environment/restock_quantity    scalar
//	environment/units_delivered     float [P]  written by Deliver
//
// Consumers carry a budget attribute and an optional price_sensitivity.
package retail

import (
	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/stage"
)

const (
	PurchaseSubstep = "Purchase"
	DeliverSubstep  = "Deliver"
	RestockSubstep  = "Restock"
)

// DefaultGroup is the agent group used when a substep lists no active agents.
const DefaultGroup = "consumers"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers every retail stage with the engine.
func (m *Module) Register(r *registry.Registry) error {
	entries := []struct {
		name string
		kind stage.Kind
		f    stage.Factory
	}{
		{PurchaseSubstep, stage.Observation, NewPurchaseObservation},
		{PurchaseSubstep, stage.Policy, NewPurchasePolicy},
		{PurchaseSubstep, stage.Transition, NewPurchaseTransition},
		{DeliverSubstep, stage.Observation, NewDeliverObservation},
		{DeliverSubstep, stage.Policy, NewDeliverPolicy},
		{DeliverSubstep, stage.Transition, NewDeliverTransition},
		{RestockSubstep, stage.Observation, NewRestockObservation},
		{RestockSubstep, stage.Policy, NewRestockPolicy},
		{RestockSubstep, stage.Transition, NewRestockTransition},
	}
	for _, e := range entries {
		if err := r.Register(e.name, e.kind, e.f); err != nil {
			return err
		}
	}
	return nil
}
