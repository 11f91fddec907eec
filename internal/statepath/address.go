// internal/statepath/address.go
package statepath

import (
	"fmt"
	"strings"
)

// String serializes the Path into its canonical representation.
func (p Path) String() string {
	var sb strings.Builder
	sb.WriteString(string(p.Namespace))
	if p.Namespace == Agents {
		sb.WriteRune('/')
		sb.WriteString(p.Group)
		if p.HasIndex() {
			sb.WriteString(fmt.Sprintf("[%d]", p.Index))
		}
	}
	if p.Key != "" {
		sb.WriteRune('/')
		sb.WriteString(p.Key)
	}
	return sb.String()
}

// Equal checks whether two paths address the same variable.
func (p Path) Equal(other Path) bool {
	return p == other
}

// EnvironmentKey returns the path of an environment key.
func EnvironmentKey(key string) Path {
	return Path{Namespace: Environment, Index: -1, Key: key}
}

// AgentKey returns the path of an attribute column within an agent group.
func AgentKey(group, key string) Path {
	return Path{Namespace: Agents, Group: group, Index: -1, Key: key}
}

// SubstepKey returns the path of a scratch key.
func SubstepKey(key string) Path {
	return Path{Namespace: Substep, Index: -1, Key: key}
}
