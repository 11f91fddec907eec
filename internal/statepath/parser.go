// internal/statepath/parser.go
package statepath

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// segmentRegex validates a key or group segment, e.g. `budget` or `consumers[1]`.
var segmentRegex = regexp.MustCompile(`^([a-zA-Z0-9_-]+)(?:\[(\d+)\])?$`)

// Parse creates a new Path by parsing its canonical string representation.
func Parse(raw string) (Path, error) {
	if raw == "" {
		return Path{}, fmt.Errorf("path cannot be empty")
	}

	parts := strings.Split(raw, "/")
	for _, part := range parts {
		if part == "" {
			return Path{}, fmt.Errorf("path %q contains empty segment", raw)
		}
	}

	p := Path{Namespace: Namespace(parts[0]), Index: -1}
	switch p.Namespace {
	case Environment, Substep:
		if len(parts) > 2 {
			return Path{}, fmt.Errorf("path %q: %s paths take at most one key", raw, p.Namespace)
		}
		if len(parts) == 2 {
			name, idx, err := parseSegment(parts[1])
			if err != nil {
				return Path{}, fmt.Errorf("path %q: %w", raw, err)
			}
			if idx != -1 {
				return Path{}, fmt.Errorf("path %q: index is only allowed on agent groups", raw)
			}
			p.Key = name
		}
	case Agents:
		if len(parts) < 2 || len(parts) > 3 {
			return Path{}, fmt.Errorf("path %q: agent paths have the form agents/<group>[/<key>]", raw)
		}
		group, idx, err := parseSegment(parts[1])
		if err != nil {
			return Path{}, fmt.Errorf("path %q: %w", raw, err)
		}
		p.Group, p.Index = group, idx
		if len(parts) == 3 {
			key, keyIdx, err := parseSegment(parts[2])
			if err != nil {
				return Path{}, fmt.Errorf("path %q: %w", raw, err)
			}
			if keyIdx != -1 {
				return Path{}, fmt.Errorf("path %q: index is only allowed on agent groups", raw)
			}
			p.Key = key
		}
	default:
		return Path{}, fmt.Errorf("path %q: unknown namespace %q", raw, parts[0])
	}

	return p, nil
}

// MustParse is like Parse but panics on error. It is intended for
// package-level path constants in stage implementations.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func parseSegment(s string) (string, int, error) {
	matches := segmentRegex.FindStringSubmatch(s)
	if matches == nil {
		return "", -1, fmt.Errorf("invalid path segment format: %q", s)
	}
	if matches[2] == "" {
		return matches[1], -1, nil
	}
	index, err := strconv.Atoi(matches[2])
	if err != nil {
		// Unreachable due to regex `\d+`
		return "", -1, fmt.Errorf("internal error parsing index: %w", err)
	}
	return matches[1], index, nil
}
