// Package router selects among registered LLM providers by capability,
// performance, and explicit override, and tracks per-provider metrics.
//
// Selection walks an ordered rule list: capability match, then fast-path for
// low-complexity requests, then priority fallback. The metrics score breaks
// ties and ranks failover targets.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sable-dev/sable/internal/provider"
)

// Complexity hints how demanding a request is expected to be.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// fastPathMinSamples is how many recorded requests a provider needs before
// the fast-path rule will trust its average latency.
const fastPathMinSamples = 3

// ErrNoProvider indicates no registered provider could serve the request.
var ErrNoProvider = errors.New("router: no available provider")

// SelectContext carries the per-request routing hints.
type SelectContext struct {
	// RequiredCapabilities must all be advertised by the chosen provider's
	// current model.
	RequiredCapabilities []string

	// Complexity enables the fast-path rule when set to ComplexityLow.
	Complexity Complexity
}

// Recommendation is the router's (provider, model) proposal for a task.
type Recommendation struct {
	Provider   string  `json:"provider"`
	Model      string  `json:"model"`
	Confidence float64 `json:"confidence"`
}

type registration struct {
	provider   provider.Provider
	descriptor provider.Descriptor
	model      string
}

// Router owns the provider registry, per-provider metrics, and the default
// provider/model the orchestrator uses.
type Router struct {
	mu        sync.RWMutex
	providers map[string]*registration
	metrics   map[string]*Metrics

	defaultName string

	prom   *promMetrics
	logger *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithPrometheus registers request counters and latency histograms on reg.
func WithPrometheus(reg promRegisterer) Option {
	return func(r *Router) {
		r.prom = newPromMetrics(reg)
	}
}

// New creates an empty router.
func New(opts ...Option) *Router {
	r := &Router{
		providers: make(map[string]*registration),
		metrics:   make(map[string]*Metrics),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a provider under its descriptor. The first registered
// provider becomes the default. Re-registering a name replaces it.
func (r *Router) Register(p provider.Provider, desc provider.Descriptor) error {
	if p == nil {
		return errors.New("router: nil provider")
	}
	name := desc.Name
	if name == "" {
		name = p.Name()
	}
	if name == "" {
		return errors.New("router: provider has no name")
	}

	model := ""
	if models := p.Models(); len(models) > 0 {
		model = models[0].ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		r.logger.Warn("replacing registered provider", "provider", name)
	}
	r.providers[name] = &registration{provider: p, descriptor: desc, model: model}
	if _, ok := r.metrics[name]; !ok {
		r.metrics[name] = NewMetrics()
	}
	if r.defaultName == "" {
		r.defaultName = name
	}
	return nil
}

// Default returns the current default provider name.
func (r *Router) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// CurrentModel returns the model currently selected for the named provider.
func (r *Router) CurrentModel(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.providers[name]; ok {
		return reg.model
	}
	return ""
}

// Providers returns descriptors for every registration, sorted by descending
// priority then name.
func (r *Router) Providers() []provider.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]provider.Descriptor, 0, len(r.providers))
	for _, reg := range r.providers {
		out = append(out, reg.descriptor)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Select walks the routing rules in order and returns the winning provider's
// name. Returns ErrNoProvider when nothing is available.
func (r *Router) Select(sc *SelectContext) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selectLocked(sc, "")
}

// selectLocked runs rule evaluation with r.mu held (read or write). exclude
// names a provider to skip, used for failover.
func (r *Router) selectLocked(sc *SelectContext, exclude string) (string, error) {
	if sc != nil && len(sc.RequiredCapabilities) > 0 {
		if name := r.byCapabilitiesLocked(sc.RequiredCapabilities, exclude); name != "" {
			return name, nil
		}
	}

	if sc != nil && sc.Complexity == ComplexityLow {
		if name := r.fastestLocked(exclude); name != "" {
			return name, nil
		}
	}

	if name := r.byPriorityLocked(exclude); name != "" {
		return name, nil
	}
	return "", ErrNoProvider
}

func (r *Router) byCapabilitiesLocked(required []string, exclude string) string {
	for _, name := range r.orderedNamesLocked() {
		if name == exclude {
			continue
		}
		reg := r.providers[name]
		if !r.usableLocked(reg) {
			continue
		}
		model, ok := r.currentModelInfoLocked(reg)
		if !ok {
			continue
		}
		matched := true
		for _, tag := range required {
			if !model.HasCapability(tag) {
				matched = false
				break
			}
		}
		if matched {
			return name
		}
	}
	return ""
}

func (r *Router) fastestLocked(exclude string) string {
	best := ""
	bestAvg := 0.0
	for _, name := range r.orderedNamesLocked() {
		if name == exclude {
			continue
		}
		reg := r.providers[name]
		if !r.usableLocked(reg) {
			continue
		}
		snap := r.metrics[name].Snapshot()
		if snap.Total < fastPathMinSamples {
			continue
		}
		if best == "" || snap.AvgSeconds < bestAvg {
			best = name
			bestAvg = snap.AvgSeconds
		}
	}
	return best
}

func (r *Router) byPriorityLocked(exclude string) string {
	now := time.Now()
	best := ""
	bestPriority := 0
	bestScore := 0.0
	for name, reg := range r.providers {
		if name == exclude || !r.usableLocked(reg) {
			continue
		}
		score := r.metrics[name].Snapshot().Score(now)
		if best == "" ||
			reg.descriptor.Priority > bestPriority ||
			(reg.descriptor.Priority == bestPriority && score > bestScore) ||
			(reg.descriptor.Priority == bestPriority && score == bestScore && name < best) {
			best = name
			bestPriority = reg.descriptor.Priority
			bestScore = score
		}
	}
	return best
}

// orderedNamesLocked returns registration names by descending priority then
// name, so rule walks are deterministic.
func (r *Router) orderedNamesLocked() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi := r.providers[names[i]].descriptor.Priority
		pj := r.providers[names[j]].descriptor.Priority
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})
	return names
}

func (r *Router) usableLocked(reg *registration) bool {
	return reg.descriptor.Enabled && reg.provider.Available()
}

func (r *Router) currentModelInfoLocked(reg *registration) (provider.ModelInfo, bool) {
	for _, m := range reg.provider.Models() {
		if m.ID == reg.model {
			return m, true
		}
	}
	return provider.ModelInfo{}, false
}

// Ask routes one completion call. When name is non-empty that provider is
// used directly and the call fails if it is unavailable; otherwise Select
// picks one. On a failover-worthy backend error exactly one alternative
// provider is tried before the error is returned.
func (r *Router) Ask(ctx context.Context, name string, req *provider.AskRequest, sc *SelectContext) (string, error) {
	explicit := name != ""
	if !explicit {
		selected, err := r.Select(sc)
		if err != nil {
			return "", err
		}
		name = selected
	}

	text, err := r.askOne(ctx, name, req)
	if err == nil {
		return text, nil
	}
	if explicit || !provider.ShouldFailover(err) || ctx.Err() != nil {
		return "", err
	}

	fallback, selErr := r.selectExcluding(sc, name)
	if selErr != nil {
		return "", err
	}

	r.logger.Warn("provider failed, failing over",
		"provider", name, "fallback", fallback, "error", err)
	if r.prom != nil {
		r.prom.failovers.WithLabelValues(name, fallback).Inc()
	}

	text, fbErr := r.askOne(ctx, fallback, req)
	if fbErr != nil {
		return "", fmt.Errorf("router: failover to %s after %s failed: %w", fallback, name, fbErr)
	}
	return text, nil
}

func (r *Router) selectExcluding(sc *SelectContext, exclude string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selectLocked(sc, exclude)
}

// askOne performs a single attempt against the named provider, filling in the
// provider's current model when the request does not set one, and records the
// outcome.
func (r *Router) askOne(ctx context.Context, name string, req *provider.AskRequest) (string, error) {
	r.mu.RLock()
	reg, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("router: unknown provider %q", name)
	}
	if !reg.provider.Available() {
		return "", fmt.Errorf("router: provider %s: %w", name, provider.ErrUnavailable)
	}

	call := *req
	if call.Model == "" {
		call.Model = reg.model
	}

	start := time.Now()
	text, err := reg.provider.Ask(ctx, &call)
	r.Record(name, err == nil, time.Since(start))
	return text, err
}

// Record updates the named provider's metrics after a request.
func (r *Router) Record(name string, success bool, elapsed time.Duration) {
	r.mu.RLock()
	m, ok := r.metrics[name]
	r.mu.RUnlock()
	if !ok {
		return
	}
	m.Record(success, elapsed)
	if r.prom != nil {
		r.prom.observe(name, success, elapsed)
	}
}

// Stats returns a metrics snapshot per registered provider.
func (r *Router) Stats() map[string]MetricsSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]MetricsSnapshot, len(r.metrics))
	for name, m := range r.metrics {
		out[name] = m.Snapshot()
	}
	return out
}

// SwitchProvider changes the default provider. Fails if the target is not
// registered or unavailable.
func (r *Router) SwitchProvider(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.providers[name]
	if !ok {
		return fmt.Errorf("router: unknown provider %q", name)
	}
	if !r.usableLocked(reg) {
		return fmt.Errorf("router: provider %s: %w", name, provider.ErrUnavailable)
	}
	r.defaultName = name
	return nil
}

// SwitchModel changes the current model. When providerName is empty the
// first provider serving the model (in priority order) is used and also
// becomes the default.
func (r *Router) SwitchModel(model, providerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if providerName != "" {
		reg, ok := r.providers[providerName]
		if !ok {
			return fmt.Errorf("router: unknown provider %q", providerName)
		}
		if !r.servesModelLocked(reg, model) {
			return fmt.Errorf("router: provider %s does not serve model %q", providerName, model)
		}
		if !r.usableLocked(reg) {
			return fmt.Errorf("router: provider %s: %w", providerName, provider.ErrUnavailable)
		}
		reg.model = model
		return nil
	}

	for _, name := range r.orderedNamesLocked() {
		reg := r.providers[name]
		if !r.usableLocked(reg) || !r.servesModelLocked(reg, model) {
			continue
		}
		reg.model = model
		r.defaultName = name
		return nil
	}
	return fmt.Errorf("router: no available provider serves model %q", model)
}

func (r *Router) servesModelLocked(reg *registration, model string) bool {
	for _, m := range reg.provider.Models() {
		if m.ID == model {
			return true
		}
	}
	return false
}
