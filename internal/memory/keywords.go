package memory

import (
	"strings"
	"unicode"
)

// domainVocabulary is the curated set of technology terms keyword extraction
// keeps. Tokens outside this set are kept only if they were capitalised in
// the source text.
var domainVocabulary = map[string]bool{
	// Languages and runtimes.
	"go": true, "golang": true, "python": true, "javascript": true,
	"typescript": true, "rust": true, "java": true, "ruby": true,
	"sql": true, "html": true, "css": true, "bash": true, "shell": true,
	"node": true, "wasm": true,

	// Frameworks and infrastructure.
	"react": true, "vue": true, "django": true, "flask": true,
	"rails": true, "spring": true, "docker": true, "kubernetes": true,
	"terraform": true, "redis": true, "postgres": true, "sqlite": true,
	"kafka": true, "grpc": true, "graphql": true, "rest": true,

	// Programming nouns.
	"api": true, "endpoint": true, "database": true, "function": true,
	"component": true, "module": true, "package": true, "class": true,
	"method": true, "interface": true, "struct": true, "server": true,
	"client": true, "service": true, "handler": true, "parser": true,
	"compiler": true, "test": true, "tests": true, "config": true,
	"schema": true, "query": true, "cache": true, "queue": true,
	"file": true, "script": true, "library": true, "cli": true,
	"calculator": true, "webhook": true, "token": true, "auth": true,
	"login": true, "logging": true, "metrics": true, "deploy": true,
	"migration": true, "index": true, "route": true, "router": true,
	"template": true, "json": true, "yaml": true, "xml": true, "csv": true,
	"http": true, "tcp": true, "websocket": true, "regex": true,
	"algorithm": true, "recursion": true, "array": true, "list": true,
	"map": true, "tree": true, "graph": true, "string": true,
	"integer": true, "boolean": true, "error": true, "exception": true,
	"thread": true, "goroutine": true, "channel": true, "mutex": true,
	"readme": true, "documentation": true, "refactor": true, "bug": true,
	"fix": true, "feature": true, "branch": true, "commit": true,
	"repository": true, "git": true, "github": true,
	"add": true, "subtract": true, "multiply": true, "divide": true,
	"sum": true, "count": true, "sort": true, "filter": true,

	// Generic task words. Extracted, but too weak to establish
	// continuation on their own (see isGeneric).
	"create": true, "implement": true, "next": true, "step": true,
	"simple": true, "basic": true,
}

// genericTokens are overlap tokens too common to establish continuation on
// their own.
var genericTokens = map[string]bool{
	"create":    true,
	"implement": true,
	"function":  true,
	"next":      true,
	"step":      true,
	"simple":    true,
	"basic":     true,
}

// continuationTokens explicitly signal that a request continues the active
// task.
var continuationTokens = []string{
	"continue",
	"next",
	"keep going",
	"proceed",
	"finish",
	"done?",
	"status",
	"progress",
}

// ExtractKeywords tokenises text on non-alphabetic boundaries and keeps
// lowercase alphabetic tokens of length >= 2 that are either in the domain
// vocabulary or were originally capitalised. No stemming.
func ExtractKeywords(text string) []string {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	seen := make(map[string]bool)
	var out []string
	for _, token := range tokens {
		if len(token) < 2 {
			continue
		}
		capitalised := unicode.IsUpper([]rune(token)[0])
		lower := strings.ToLower(token)
		if !domainVocabulary[lower] && !capitalised {
			continue
		}
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, lower)
	}
	return out
}

// isGeneric reports whether a token is too common to indicate continuation
// by itself.
func isGeneric(token string) bool {
	return genericTokens[token]
}

// hasContinuationToken reports whether the request contains an explicit
// continuation phrase.
func hasContinuationToken(request string) bool {
	lower := strings.ToLower(request)
	for _, token := range continuationTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
