// Package state implements the simulation StateStore: a namespaced container
// holding environment variables, ordered agent groups and the transient
// substep scratch space.
//
// Environment and agent values are typed Variables whose dtype and shape are
// fixed when the store is built and checked on every write. The substep
// namespace holds arbitrary Go values exchanged between the phases of a single
// substep and is cleared before the next substep begins.
//
// A Store is exclusively owned by whoever is running the pipeline; it performs
// no locking of its own.
package state
