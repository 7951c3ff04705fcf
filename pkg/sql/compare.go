package sql

import (
	"strings"

	"github.com/bobboyms/shardsql/pkg/types"
)

// compareValues implements spec §4.8's comparison semantics for
// WHERE/HAVING/ORDER BY: nulls sort less than any non-null and less than
// each other reflexively; int/float compare as floats; strings compare
// by byte order; any other cross-type pairing is treated as equal.
func compareValues(a, b types.DataValue) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return -1
	}
	if b.IsNull() {
		return 1
	}

	if af, ok := a.Numeric(); ok {
		if bf, ok := b.Numeric(); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}

	if a.Kind == types.KindString && b.Kind == types.KindString {
		return strings.Compare(a.S, b.S)
	}

	if a.Kind == types.KindBool && b.Kind == types.KindBool {
		switch {
		case a.B == b.B:
			return 0
		case !a.B:
			return -1
		default:
			return 1
		}
	}

	return 0
}

func valuesEqual(a, b types.DataValue) bool {
	return compareValues(a, b) == 0
}
