package sql

import "strings"

// resolveColumn implements spec §4.9's three-step column resolution:
// case-insensitive exact match, then qualified match table.col, then
// suffix match .col. It is used for projection, WHERE/HAVING operands,
// GROUP BY, and ORDER BY name references alike.
func resolveColumn(names []string, name string) int {
	lower := strings.ToLower(name)

	for i, n := range names {
		if strings.ToLower(n) == lower {
			return i
		}
	}

	if dot := strings.LastIndex(name, "."); dot >= 0 {
		unqualified := strings.ToLower(name[dot+1:])
		for i, n := range names {
			if strings.ToLower(n) == unqualified {
				return i
			}
		}
	}

	suffix := "." + lower
	for i, n := range names {
		if strings.HasSuffix(strings.ToLower(n), suffix) {
			return i
		}
	}

	return -1
}
