package enums

import (
	"fmt"
	"slices"
	"strings"
)

// The enums mirror Postgres enum types; values are stored verbatim.

func member[T ~string](set []T, v T) bool {
	return slices.Contains(set, v)
}

// parse matches value case-insensitively after trimming.
func parse[T ~string](set []T, kind, value string) (T, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range set {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
