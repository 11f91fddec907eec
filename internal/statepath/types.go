// internal/statepath/types.go
package statepath

// Namespace identifies the top-level container a path points into.
type Namespace string

const (
	Environment Namespace = "environment"
	Agents      Namespace = "agents"
	Substep     Namespace = "substep"
)

// Path is the structured representation of a state variable path.
type Path struct {
	Namespace Namespace
	// Group is only set for the agents namespace.
	Group string
	// Index selects a single agent within Group; -1 means the whole group.
	Index int
	// Key is empty when the path addresses a whole namespace or group.
	Key string
}

// IsNamespace reports whether the path addresses a container rather than a key.
func (p Path) IsNamespace() bool {
	return p.Key == ""
}

// HasIndex returns true if the path selects a single agent.
func (p Path) HasIndex() bool {
	return p.Index != -1
}
