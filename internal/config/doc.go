// Package config defines the format-agnostic configuration model for a
// simulation, along with the Loader interface implemented by the concrete
// file formats.
//
// The `config.Model` is the single source of truth for the `runner` and
// `pipeline` packages. HCL and YAML loaders live in separate packages and
// both produce this model.
package config
