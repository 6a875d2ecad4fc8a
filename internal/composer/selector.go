package composer

import (
	"sort"
	"strings"

	"flowmarket/backend/pkg/models"
)

// SelectCandidates picks at most one workflow per capability, in capability
// order. Candidates for a capability are catalog entries whose
// name+description+category mention any of its keywords, ranked by
// totalExecutions descending; the best not-yet-used one wins. A workflow is
// used at most once across the plan. Capabilities with no usable candidate
// contribute no step; they never fail composition on their own.
func SelectCandidates(capabilities []Capability, workflows []models.WorkflowDescriptor) []models.WorkflowDescriptor {
	used := make(map[string]bool)
	var selected []models.WorkflowDescriptor
	for _, capability := range capabilities {
		candidates := filterByCapability(capability, workflows)
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].TotalExecutions > candidates[j].TotalExecutions
		})
		for _, w := range candidates {
			if used[w.ID] {
				continue
			}
			used[w.ID] = true
			selected = append(selected, w)
			break
		}
	}
	return selected
}

func filterByCapability(capability Capability, workflows []models.WorkflowDescriptor) []models.WorkflowDescriptor {
	keywords := keywordsFor(capability)
	var out []models.WorkflowDescriptor
	for _, w := range workflows {
		haystack := strings.ToLower(w.Name + " " + w.Description + " " + w.Category)
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				out = append(out, w)
				break
			}
		}
	}
	return out
}
