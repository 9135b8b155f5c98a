package engine

import (
	"strconv"
	"strings"
)

// Evaluation is the verdict for one executed plan.
type Evaluation struct {
	Success    bool
	Confidence float64
	Reasoning  string
	Feedback   string
}

var successLexicon = []string{
	"successfully", "completed", "created", "generated", "written",
	"updated", "saved", "built", "implemented", "fixed",
}

var failureLexicon = []string{
	"error", "failed", "exception", "not found", "cannot", "unable",
	"denied", "invalid", "missing", "timeout", "refused",
}

// taskShapePatterns pairs task verbs with the result words that indicate the
// verb was carried out.
var taskShapePatterns = []struct {
	taskWords   []string
	resultWords []string
}{
	{[]string{"create", "write"}, []string{"created", "written"}},
	{[]string{"read", "open"}, []string{"read", "loaded"}},
	{[]string{"search", "find"}, []string{"found", "results"}},
}

// parseEvaluation extracts the four labelled evaluation fields. ok is false
// when the success flag is missing or the confidence does not parse; callers
// then fall back to the heuristic evaluator.
func parseEvaluation(response string) (ev Evaluation, ok bool) {
	successSeen := false
	confidenceSeen := false

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		switch {
		case strings.HasPrefix(upper, "SUCCESS:"):
			value, parsed := parseSuccessFlag(trimmed[len("SUCCESS:"):])
			if parsed {
				ev.Success = value
				successSeen = true
			}
		case strings.HasPrefix(upper, "CONFIDENCE:"):
			raw := strings.TrimSpace(trimmed[len("CONFIDENCE:"):])
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				if f < 0 {
					f = 0
				}
				if f > 1 {
					f = 1
				}
				ev.Confidence = f
				confidenceSeen = true
			}
		case strings.HasPrefix(upper, "REASONING:"):
			ev.Reasoning = strings.TrimSpace(trimmed[len("REASONING:"):])
		case strings.HasPrefix(upper, "FEEDBACK:"):
			ev.Feedback = strings.TrimSpace(trimmed[len("FEEDBACK:"):])
		}
	}
	return ev, successSeen && confidenceSeen
}

// parseSuccessFlag accepts the case-insensitive variants true/yes/1/y and
// false/no/0/n.
func parseSuccessFlag(raw string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1", "y":
		return true, true
	case "false", "no", "0", "n":
		return false, true
	default:
		return false, false
	}
}

// heuristicEvaluate judges a result without the model: lexicon hits first,
// then task-shape patterns, then keyword overlap between task and result.
func heuristicEvaluate(task, result string) Evaluation {
	lowerTask := strings.ToLower(task)
	lowerResult := strings.ToLower(result)

	failures := countHits(lowerResult, failureLexicon)
	if failures > 0 {
		return Evaluation{
			Success:    false,
			Confidence: 0.8,
			Feedback:   "result reports a failure; address the error and retry",
		}
	}
	if countHits(lowerResult, successLexicon) > 0 {
		return Evaluation{
			Success:    true,
			Confidence: 0.7,
			Feedback:   "result reports successful completion",
		}
	}

	for _, p := range taskShapePatterns {
		if containsAny(lowerTask, p.taskWords) && containsAny(lowerResult, p.resultWords) {
			return Evaluation{
				Success:    true,
				Confidence: 0.6,
				Feedback:   "result matches the task's expected outcome",
			}
		}
	}

	if keywordOverlap(lowerTask, lowerResult) >= 0.4 {
		return Evaluation{
			Success:    true,
			Confidence: 0.5,
			Feedback:   "result appears relevant to the task",
		}
	}
	return Evaluation{
		Success:    false,
		Confidence: 0.4,
		Feedback:   "result does not clearly address the task",
	}
}

func countHits(text string, lexicon []string) int {
	hits := 0
	for _, word := range lexicon {
		if strings.Contains(text, word) {
			hits++
		}
	}
	return hits
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// keywordOverlap is the fraction of the task's words that appear in the
// result. Words shorter than three characters are ignored.
func keywordOverlap(task, result string) float64 {
	taskWords := make(map[string]bool)
	for _, w := range strings.Fields(task) {
		if len(w) >= 3 {
			taskWords[w] = true
		}
	}
	if len(taskWords) == 0 {
		return 0
	}

	resultWords := make(map[string]bool)
	for _, w := range strings.Fields(result) {
		resultWords[w] = true
	}

	matched := 0
	for w := range taskWords {
		if resultWords[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(taskWords))
}
