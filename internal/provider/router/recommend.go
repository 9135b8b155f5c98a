package router

import (
	"regexp"
	"strings"
	"time"
)

var (
	codeTokenRegex = regexp.MustCompile(`(?i)\b(func|class|def|package|import|SELECT|INSERT|UPDATE|DELETE)\b`)
	analysisRegex  = regexp.MustCompile(`(?i)\b(analyze|review|explain|debug|why|trace|audit|tradeoff)\b`)
	generateRegex  = regexp.MustCompile(`(?i)\b(create|write|generate|build|implement|refactor|fix|add)\b`)
	quickRegex     = regexp.MustCompile(`(?i)\b(what is|define|quick|brief|list|show|summary)\b`)
	fencedCode     = regexp.MustCompile("```")
)

// taskKind is the coarse classification Recommend works from.
type taskKind int

const (
	taskSimple taskKind = iota
	taskGeneration
	taskCodeAnalysis
)

// classifyTask buckets free-form task text. Analysis of existing code ranks
// above generation when both patterns match, since it needs the stronger
// model.
func classifyTask(task string) taskKind {
	text := strings.TrimSpace(task)
	if text == "" {
		return taskSimple
	}

	hasCode := fencedCode.MatchString(text) || codeTokenRegex.MatchString(text)
	if analysisRegex.MatchString(text) && hasCode {
		return taskCodeAnalysis
	}
	if generateRegex.MatchString(text) {
		return taskGeneration
	}
	if quickRegex.MatchString(text) || len(text) < 80 {
		return taskSimple
	}
	if hasCode {
		return taskCodeAnalysis
	}
	return taskSimple
}

// capabilityFor maps the task kind to the model capability tag to route on.
func capabilityFor(kind taskKind) string {
	switch kind {
	case taskCodeAnalysis:
		return "reasoning"
	case taskGeneration:
		return "code"
	default:
		return "fast"
	}
}

// Recommend classifies task text and proposes a (provider, model) pair from
// the registered set. Confidence reflects how specific the classification
// was, not backend quality.
func (r *Router) Recommend(task string) (Recommendation, error) {
	kind := classifyTask(task)
	tag := capabilityFor(kind)

	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	best := Recommendation{}
	bestScore := 0.0
	for _, name := range r.orderedNamesLocked() {
		reg := r.providers[name]
		if !r.usableLocked(reg) {
			continue
		}
		for _, m := range reg.provider.Models() {
			if !m.HasCapability(tag) {
				continue
			}
			score := r.metrics[name].Snapshot().Score(now)
			if best.Provider == "" || score > bestScore {
				best = Recommendation{Provider: name, Model: m.ID}
				bestScore = score
			}
			break
		}
	}
	if best.Provider == "" {
		// No capability match; fall back to whatever priority selection
		// yields with its current model.
		name := r.byPriorityLocked("")
		if name == "" {
			return Recommendation{}, ErrNoProvider
		}
		best = Recommendation{Provider: name, Model: r.providers[name].model, Confidence: 0.3}
		return best, nil
	}

	switch kind {
	case taskCodeAnalysis:
		best.Confidence = 0.8
	case taskGeneration:
		best.Confidence = 0.7
	default:
		best.Confidence = 0.6
	}
	return best, nil
}
