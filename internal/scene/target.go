package scene

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTarget is returned when a scene target cannot name any scene.
var ErrInvalidTarget = errors.New("invalid scene target")

// Alias ids. They are resolved against the scene directories on every call
// and never name a directory themselves.
const (
	AliasLast  = "last"
	AliasFinal = "final"
)

const dirPrefix = "scene"

// NormalizeTarget converts a caller supplied scene target into a canonical
// scene id. "scene_2", "scene_02", "scene-2", "scene2" and "2" all yield "2".
// Non-numeric identifiers are kept verbatim; "last" and "final" are reported
// as aliases.
func NormalizeTarget(target string) (id string, alias bool, err error) {
	rest := strings.TrimSpace(target)
	if len(rest) >= len(dirPrefix) && strings.EqualFold(rest[:len(dirPrefix)], dirPrefix) {
		rest = rest[len(dirPrefix):]
		if rest != "" && (rest[0] == '_' || rest[0] == '-') {
			rest = rest[1:]
		}
	}

	if rest == "" || strings.ContainsAny(rest, `/\`) || strings.Contains(rest, "..") {
		return "", false, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}

	if IsNumeric(rest) {
		trimmed := strings.TrimLeft(rest, "0")
		if trimmed == "" {
			trimmed = "0"
		}
		return trimmed, false, nil
	}

	switch lower := strings.ToLower(rest); lower {
	case AliasLast, AliasFinal:
		return lower, true, nil
	}
	return rest, false, nil
}

// ParseDirName reports the canonical id of a scene directory name. Only
// names of the form scene_<id>, scene-<id> or scene<digits> qualify; alias
// names are rejected because aliases are never filesystem backed.
func ParseDirName(name string) (string, bool) {
	if len(name) <= len(dirPrefix) || !strings.EqualFold(name[:len(dirPrefix)], dirPrefix) {
		return "", false
	}
	if c := name[len(dirPrefix)]; c != '_' && c != '-' && (c < '0' || c > '9') {
		return "", false
	}
	id, alias, err := NormalizeTarget(name)
	if err != nil || alias {
		return "", false
	}
	return id, true
}

// IsNumeric reports whether s is a non-empty run of ASCII digits.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// HighestNumeric returns the greatest numeric id in ids.
func HighestNumeric(ids []string) (string, bool) {
	best := ""
	for _, id := range ids {
		if !IsNumeric(id) {
			continue
		}
		if best == "" || CompareIDs(id, best) > 0 {
			best = id
		}
	}
	return best, best != ""
}
