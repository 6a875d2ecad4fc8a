package schema

import "flowmarket/backend/pkg/models"

// Confidence assigned per match tier.
const (
	ConfidenceExact        = 1.0
	ConfidenceFuzzyName    = 0.8
	ConfidenceTypeCoercion = 0.5
)

// fuzzyDistanceMax bounds the edit distance a name pair may have and still
// count as the same field under a different spelling.
const fuzzyDistanceMax = 3

// MatchFields produces one candidate mapping per target field, in target
// declaration order. For each target field the tiers are tried strictly in
// order, stopping at the first hit:
//
//  1. exact: identical name and type, confidence 1.0
//  2. fuzzy_name: same type, name within edit distance 3 (closest wins,
//     ties keep the earlier declared source field), confidence 0.8
//  3. type_coercion: first source field with a coercible type, any name,
//     confidence 0.5
//
// Target fields with no hit are simply absent from the result.
func MatchFields(source, target models.Schema) []models.FieldMapping {
	var matches []models.FieldMapping
	for _, tf := range target.Properties {
		if m, ok := matchField(source, tf); ok {
			matches = append(matches, m)
		}
	}
	return matches
}

func matchField(source models.Schema, tf models.SchemaField) (models.FieldMapping, bool) {
	for _, sf := range source.Properties {
		if sf.Name == tf.Name && sf.Type == tf.Type {
			return mapping(sf.Name, tf.Name, ConfidenceExact, models.MatchExact), true
		}
	}

	// Fuzzy naming only applies to primitives; object and array fields must
	// match exactly or not at all.
	if isPrimitive(tf.Type) {
		best := -1
		bestDist := fuzzyDistanceMax + 1
		for i, sf := range source.Properties {
			if sf.Type != tf.Type {
				continue
			}
			if d := Levenshtein(sf.Name, tf.Name); d < bestDist {
				best = i
				bestDist = d
			}
		}
		if best >= 0 && bestDist <= fuzzyDistanceMax {
			return mapping(source.Properties[best].Name, tf.Name, ConfidenceFuzzyName, models.MatchFuzzyName), true
		}
	}

	for _, sf := range source.Properties {
		if AreCompatible(sf.Type, tf.Type) {
			return mapping(sf.Name, tf.Name, ConfidenceTypeCoercion, models.MatchTypeCoercion), true
		}
	}

	return models.FieldMapping{}, false
}

func mapping(src, dst string, confidence float64, reason models.MatchReason) models.FieldMapping {
	return models.FieldMapping{
		SourceField: src,
		TargetField: dst,
		Confidence:  confidence,
		Reason:      reason,
	}
}
