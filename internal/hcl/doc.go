// Package hcl provides the HCL implementation of the config.Loader
// interface. It is responsible for file discovery, parsing, expression
// evaluation and translation of HCL blocks into the format-agnostic
// config.Model.
package hcl
