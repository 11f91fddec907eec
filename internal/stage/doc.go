// Package stage defines the contract every unit of substep logic implements.
//
// A substep runs up to three phases in a fixed order: an optional
// Observation, an optional Policy and a required Transition. Observation
// writes only to the substep namespace. Policy reads the observation, writes
// its action list to the substep namespace and may update the attributes of
// the agent that made the decision. Transition is the only phase allowed to
// change environment values or apply effects across agents.
//
// Each stage carries a Spec: the paths it reads and writes and the arguments
// it was configured with. The Spec is metadata used for validation and for
// deciding which scratch values outlive a substep boundary.
package stage
