package schema

import "flowmarket/backend/pkg/models"

// CheckCompatibility scores how well a producing workflow's output schema
// feeds a consuming workflow's input schema. A target with no declared
// fields is trivially compatible (score 1); an empty source against a
// populated target scores 0 with every required field unmatched. Score is
// matched-fields over total target fields regardless of the
// required/optional split; Compatible turns false only when a required
// field has no match.
func CheckCompatibility(source, target models.Schema) models.CompatibilityResult {
	if target.IsEmpty() {
		return models.CompatibilityResult{Compatible: true, Score: 1}
	}

	matches := MatchFields(source, target)
	matched := make(map[string]bool, len(matches))
	for _, m := range matches {
		matched[m.TargetField] = true
	}

	var unmatchedRequired []string
	for _, name := range target.Required {
		if !matched[name] {
			unmatchedRequired = append(unmatchedRequired, name)
		}
	}

	return models.CompatibilityResult{
		Compatible:        len(unmatchedRequired) == 0,
		Score:             float64(len(matches)) / float64(len(target.Properties)),
		MatchedFields:     matches,
		UnmatchedRequired: unmatchedRequired,
	}
}
