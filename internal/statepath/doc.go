// internal/statepath/doc.go

/*
Package statepath provides a structured, type-safe representation for
variable paths within the simulation state, based on the canonical
format `namespace/key`.

Three namespaces exist:

	environment/<key>
	agents/<group>/<key>      (or agents/<group>[<index>]/<key> for one agent)
	substep/<key>

A bare namespace (`environment`, `substep`) or a bare agent group
(`agents/<group>`) is also a valid path and refers to the whole container.

This package enforces the path schema and centralizes all formatting and
parsing logic so the store, the stage declarations and the config loaders
agree on a single spelling.
*/
package statepath
