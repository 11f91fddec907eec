// Package runner drives a simulation: it builds the initial state from
// configuration, resets it at the start of every episode and executes the
// pipeline once per step.
//
// A Runner moves between three states. It starts uninitialized; Init makes
// it ready; Reset and Step are only accepted while it is ready and mark it
// running until they return. Observers are notified synchronously after
// every completed step and every reset.
package runner
