// Package registry provides the central "glue" for the module system.
//
// The Registry maps the substep names used in configuration (e.g.
// "Purchase") and a phase kind onto the Go factories that build the stage
// implementations, and maps initializer names onto the functions used while
// the initial state is constructed.
//
// During application startup, modules populate the registry and the loaded
// configuration is validated against it, so that a configuration naming an
// unknown stage or initializer fails before any state exists.
package registry
