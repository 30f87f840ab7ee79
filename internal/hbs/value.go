package hbs

import (
	"fmt"
	"strconv"
)

// Undefined distinguishes a missing path from an explicit JSON null —
// spec §4.3's variant-tagged value type names them separately, even
// though both render as empty text and both are falsy.
type Undefined struct{}

// Truthy follows Handlebars conventions: false, nil, Undefined, 0, ""
// and empty arrays/objects are falsy; everything else (including the
// string "false") is truthy.
func Truthy(v interface{}) bool {
	switch vv := v.(type) {
	case nil, Undefined:
		return false
	case bool:
		return vv
	case float64:
		return vv != 0
	case string:
		return vv != ""
	case []interface{}:
		return len(vv) > 0
	case *OrderedMap:
		return vv.Len() > 0
	case map[string]interface{}:
		return len(vv) > 0
	default:
		return true
	}
}

// ToFloat coerces a value to a number for arithmetic/comparison,
// mirroring the teacher's toFloat but returning ok=false instead of a
// silent 0 when the value does not parse cleanly — callers that need
// the spec's "numeric if both coerce, else lexicographic" rule check ok.
func ToFloat(v interface{}) (float64, bool) {
	switch vv := v.(type) {
	case float64:
		return vv, true
	case int:
		return float64(vv), true
	case bool:
		if vv {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(vv, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ToString renders a value the way it is written into a cell: numbers
// without a trailing ".0" when they are integral, booleans as
// "true"/"false", null/undefined as empty, everything else via %v.
func ToString(v interface{}) string {
	switch vv := v.(type) {
	case nil, Undefined:
		return ""
	case string:
		return vv
	case float64:
		if vv == float64(int64(vv)) {
			return strconv.FormatInt(int64(vv), 10)
		}
		return strconv.FormatFloat(vv, 'g', -1, 64)
	case bool:
		if vv {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", vv)
	}
}

// Len reports the length of an array/string/object, 0 for everything
// else — the contract §4.4's `len` helper states directly.
func Len(v interface{}) float64 {
	switch vv := v.(type) {
	case []interface{}:
		return float64(len(vv))
	case string:
		return float64(len([]rune(vv)))
	case *OrderedMap:
		return float64(vv.Len())
	case map[string]interface{}:
		return float64(len(vv))
	default:
		return 0
	}
}

// Equal implements §4.4's eq/ne contract: numeric if both sides coerce
// cleanly to a number, otherwise string comparison.
func Equal(a, b interface{}) bool {
	if af, aok := ToFloat(a); aok {
		if bf, bok := ToFloat(b); bok {
			return af == bf
		}
	}
	return ToString(a) == ToString(b)
}

// Compare returns -1/0/1 for a</=/> b under the same numeric-else-
// lexicographic rule as Equal.
func Compare(a, b interface{}) int {
	if af, aok := ToFloat(a); aok {
		if bf, bok := ToFloat(b); bok {
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
	as, bs := ToString(a), ToString(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
