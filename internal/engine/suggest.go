package engine

import (
	"fmt"
	"strings"

	"github.com/miradorstack/mirador-yield/internal/models"
)

// maxListed caps how many stages, defects or points one line names.
const maxListed = 10

// SuggestionInput gathers upstream findings. Every field is optional.
type SuggestionInput struct {
	LowYieldStages []models.LowYieldStage
	DefectTypes    []string
	OutOfControl   []models.OutOfControlPoint
	RCASummary     string
}

// Synthesize turns findings into recommended actions, one line per non-empty
// category in the order RCA, low-yield stages, defect types, SPC points. No
// findings means no suggestions.
func Synthesize(in SuggestionInput) []string {
	suggestions := make([]string, 0, 4)

	if rca := strings.TrimSpace(in.RCASummary); rca != "" {
		suggestions = append(suggestions, fmt.Sprintf(
			"Address the root cause identified in the analysis (%s) and record corrective actions for it.", rca))
	}

	if stages := stageNames(in.LowYieldStages); len(stages) > 0 {
		suggestions = append(suggestions, fmt.Sprintf(
			"Investigate root causes for low yield at %s: %s.", plural(len(stages), "stage", "stages"), joinCapped(stages)))
	}

	if defects := nonBlank(in.DefectTypes); len(defects) > 0 {
		suggestions = append(suggestions, fmt.Sprintf(
			"Implement corrective actions for %s: %s.", plural(len(defects), "defect type", "defect types"), joinCapped(defects)))
	}

	if n := len(in.OutOfControl); n > 0 {
		points := make([]string, 0, n)
		for _, p := range in.OutOfControl {
			points = append(points, fmt.Sprintf("#%d (%.4g)", p.Index, p.Value))
		}
		suggestions = append(suggestions, fmt.Sprintf(
			"Look for special causes behind %d out-of-control SPC %s: %s.", n, plural(n, "point", "points"), joinCapped(points)))
	}

	return suggestions
}

func stageNames(stages []models.LowYieldStage) []string {
	names := make([]string, 0, len(stages))
	for _, s := range stages {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			continue
		}
		if s.Input > 0 {
			name = fmt.Sprintf("%s (%.1f%% yield)", name, s.Yield*100)
		}
		names = append(names, name)
	}
	return names
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func joinCapped(items []string) string {
	if len(items) <= maxListed {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(items[:maxListed], ", "), len(items)-maxListed)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
