package tool

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry holds the tool set, keyed by name and indexed by category and
// capability tag. Tools are registered at startup; after initialisation the
// registry is effectively read-only.
type Registry struct {
	mu           sync.RWMutex
	tools        map[string]Tool
	byCategory   map[string][]string
	byCapability map[string][]string
	logger       *slog.Logger
}

// RegistryStats summarises the registered tool set.
type RegistryStats struct {
	Count        int      `json:"count"`
	Categories   []string `json:"categories"`
	Capabilities []string `json:"capabilities"`
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:        make(map[string]Tool),
		byCategory:   make(map[string][]string),
		byCapability: make(map[string][]string),
		logger:       logger,
	}
}

// Register adds a tool. Names are globally unique; registering a duplicate
// replaces the prior entry and logs a warning.
func (r *Registry) Register(t Tool) {
	if t == nil || t.Name() == "" {
		return
	}
	name := t.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		r.logger.Warn("replacing registered tool", "tool", name)
		r.removeFromIndexesLocked(name)
	}
	r.tools[name] = t
	r.byCategory[t.Category()] = append(r.byCategory[t.Category()], name)
	for _, cap := range t.Capabilities() {
		r.byCapability[cap] = append(r.byCapability[cap], name)
	}
}

func (r *Registry) removeFromIndexesLocked(name string) {
	for cat, names := range r.byCategory {
		r.byCategory[cat] = removeString(names, name)
	}
	for cap, names := range r.byCapability {
		r.byCapability[cap] = removeString(names, name)
	}
}

func removeString(names []string, target string) []string {
	out := names[:0]
	for _, n := range names {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}

// Get returns the named tool, or nil.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// ByCategory returns the tools in a category, sorted by name.
func (r *Registry) ByCategory(category string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(r.byCategory[category])
}

// ByCapability returns the tools advertising a capability tag, sorted by name.
func (r *Registry) ByCapability(tag string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(r.byCapability[tag])
}

// All returns every registered tool, sorted by name.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return r.resolveLocked(names)
}

func (r *Registry) resolveLocked(names []string) []Tool {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	out := make([]Tool, 0, len(sorted))
	for _, name := range sorted {
		if t, ok := r.tools[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Stats reports counts and the sorted category/capability vocabularies.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{Count: len(r.tools)}
	for cat, names := range r.byCategory {
		if len(names) > 0 {
			stats.Categories = append(stats.Categories, cat)
		}
	}
	for cap, names := range r.byCapability {
		if len(names) > 0 {
			stats.Capabilities = append(stats.Capabilities, cap)
		}
	}
	sort.Strings(stats.Categories)
	sort.Strings(stats.Capabilities)
	return stats
}
