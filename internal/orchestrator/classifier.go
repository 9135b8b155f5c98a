package orchestrator

import (
	"strings"
)

// systemicVerbs mark tasks that need multi-step reasoning rather than a
// single tool call.
var systemicVerbs = []string{
	"analyze",
	"systematically",
	"comprehensive",
	"figure out",
	"step by step",
	"debug",
	"refactor",
	"plan",
}

// conjunctionMarkers indicate multi-clause requests.
var conjunctionMarkers = []string{
	" and then ",
	", then ",
	" after that ",
	" and also ",
	"; ",
}

// directLookups are pure lookups that never warrant the iteration loop.
var directLookups = []string{
	"list files",
	"show status",
	"list tools",
	"show config",
}

// classifyAgentic decides whether a fresh request goes through the iteration
// loop or a single dispatcher call. Long requests, systemic verbs, and
// multi-clause phrasing all push toward agentic handling; known lookups stay
// direct regardless.
func classifyAgentic(task string) bool {
	lower := strings.ToLower(strings.TrimSpace(task))

	for _, lookup := range directLookups {
		if lower == lookup || strings.HasPrefix(lower, lookup+" ") {
			return false
		}
	}

	if len(strings.Fields(lower)) > 10 {
		return true
	}
	for _, verb := range systemicVerbs {
		if containsWord(lower, verb) {
			return true
		}
	}
	for _, marker := range conjunctionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// containsWord matches verb phrases on word boundaries so that "plan" does
// not fire on "airplane".
func containsWord(text, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
