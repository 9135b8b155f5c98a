package engine

import (
	"strings"
)

const (
	thinkingMarker = "THINKING:"
	planMarker     = "PLAN:"

	// Placeholders keep the non-empty thinking/plan contract when parsing
	// yields nothing.
	placeholderThinking = "No explicit reasoning provided."
	placeholderPlan     = "Proceed with the task as described."
)

// parseThinkPlan splits a think-step response into thinking and plan text.
//
// Strategy: literal markers first, then a line-prefix scan, then treating the
// whole response as the plan. The results are never empty.
func parseThinkPlan(response string) (thinking, plan string) {
	thinkIdx := strings.Index(response, thinkingMarker)
	planIdx := strings.Index(response, planMarker)

	if thinkIdx >= 0 && planIdx > thinkIdx {
		thinking = strings.TrimSpace(response[thinkIdx+len(thinkingMarker) : planIdx])
		plan = strings.TrimSpace(response[planIdx+len(planMarker):])
	} else {
		thinking, plan = scanLinePrefixes(response)
	}

	if plan == "" {
		if trimmed := strings.TrimSpace(response); trimmed != "" {
			plan = trimmed
			if thinking == "" {
				thinking = placeholderThinking
			}
		}
	}

	if thinking == "" {
		thinking = placeholderThinking
	}
	if plan == "" {
		plan = placeholderPlan
	}
	return thinking, plan
}

// scanLinePrefixes collects marker-prefixed lines case-insensitively,
// accumulating continuation lines under the last seen marker.
func scanLinePrefixes(response string) (thinking, plan string) {
	var thinkLines, planLines []string
	current := ""

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		switch {
		case strings.HasPrefix(upper, thinkingMarker):
			current = "thinking"
			if rest := strings.TrimSpace(trimmed[len(thinkingMarker):]); rest != "" {
				thinkLines = append(thinkLines, rest)
			}
		case strings.HasPrefix(upper, planMarker):
			current = "plan"
			if rest := strings.TrimSpace(trimmed[len(planMarker):]); rest != "" {
				planLines = append(planLines, rest)
			}
		default:
			if trimmed == "" {
				continue
			}
			switch current {
			case "thinking":
				thinkLines = append(thinkLines, trimmed)
			case "plan":
				planLines = append(planLines, trimmed)
			}
		}
	}
	return strings.Join(thinkLines, " "), strings.Join(planLines, " ")
}
