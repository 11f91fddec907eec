// Package pipeline turns the configured substep list into resolved stages
// and executes them once per step.
//
// Every phase is resolved while the pipeline is built, so a configuration
// that names an unknown stage or lacks a transition fails before the first
// step. RunOnce executes the substeps in declared order; it never reorders
// them based on the paths they read or write.
package pipeline
