// Package schema implements the compatibility matching between workflow
// output and input schemas: the primitive type coercion table, the
// three-tier field matcher, and the pairwise compatibility scorer the
// composer builds pipelines from.
package schema

import (
	"encoding/json"
	"strconv"
	"strings"

	"flowmarket/backend/pkg/models"
)

// AreCompatible reports whether a value of type a can feed a field of type
// b. The relation is symmetric: the three primitives are compatible with
// themselves, and the unordered pairs {number,string} and {boolean,number}
// coerce. Object and array types never pass here; they only line up through
// an exact name+type match in the field matcher.
func AreCompatible(a, b models.FieldType) bool {
	if !isPrimitive(a) || !isPrimitive(b) {
		return false
	}
	if a == b {
		return true
	}
	return unorderedPair(a, b, models.FieldNumber, models.FieldString) ||
		unorderedPair(a, b, models.FieldBoolean, models.FieldNumber)
}

func isPrimitive(t models.FieldType) bool {
	return t == models.FieldString || t == models.FieldNumber || t == models.FieldBoolean
}

func unorderedPair(a, b, x, y models.FieldType) bool {
	return (a == x && b == y) || (a == y && b == x)
}

// Coerce converts a value between primitive types. Defined conversions:
// identity, number→string (decimal string), string→number (non-numeric
// input yields 0, never an error), number→boolean (0 is false), and
// boolean→string ("true"/"false"). Any other pair passes the value through
// unchanged.
func Coerce(value any, from, to models.FieldType) any {
	if from == to {
		return value
	}
	switch {
	case from == models.FieldNumber && to == models.FieldString:
		if n, ok := toFloat(value); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
	case from == models.FieldString && to == models.FieldNumber:
		s, ok := value.(string)
		if !ok {
			return float64(0)
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return float64(0)
		}
		return n
	case from == models.FieldNumber && to == models.FieldBoolean:
		n, _ := toFloat(value)
		return n != 0
	case from == models.FieldBoolean && to == models.FieldString:
		if b, ok := value.(bool); ok {
			return strconv.FormatBool(b)
		}
	}
	return value
}

// ValueType infers the declared field type of a decoded JSON value.
func ValueType(v any) models.FieldType {
	switch v.(type) {
	case string:
		return models.FieldString
	case float64, float32, int, int32, int64, json.Number:
		return models.FieldNumber
	case bool:
		return models.FieldBoolean
	case []any:
		return models.FieldArray
	default:
		return models.FieldObject
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
