package stage

import "fmt"

// Kind is the phase a stage runs in.
type Kind int

const (
	Observation Kind = iota
	Policy
	Transition
)

// Kinds lists every phase in execution order.
var Kinds = [...]Kind{Observation, Policy, Transition}

func (k Kind) String() string {
	switch k {
	case Observation:
		return "observation"
	case Policy:
		return "policy"
	case Transition:
		return "transition"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a configuration block name onto a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown stage kind %q: must be one of observation, policy, transition", s)
}
