package tool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// ScoreThreshold is the minimum CanHandle confidence for a tool to become a
// dispatch candidate. Inclusive.
const ScoreThreshold = 0.3

// clearWinnerMargin is the score gap above which the top tool runs alone even
// when coordination is enabled.
const clearWinnerMargin = 0.25

// DefaultToolTimeout bounds a single tool execution.
const DefaultToolTimeout = 30 * time.Second

// DefaultMaxTools caps how many tools a coordinated dispatch may run.
const DefaultMaxTools = 3

// Options tunes one dispatch. The zero value means: up to DefaultMaxTools
// tools, coordination enabled, no allowlist.
type Options struct {
	// MaxTools caps the coordinated tool count. 0 means DefaultMaxTools.
	MaxTools int

	// DisableCoordination forces the single-tool path.
	DisableCoordination bool

	// Allowed restricts candidates to the named tools when non-empty.
	Allowed []string

	// ToolTimeout overrides the per-tool deadline. 0 means
	// DefaultToolTimeout.
	ToolTimeout time.Duration
}

func (o Options) sanitized() Options {
	if o.MaxTools <= 0 {
		o.MaxTools = DefaultMaxTools
	}
	if o.ToolTimeout <= 0 {
		o.ToolTimeout = DefaultToolTimeout
	}
	return o
}

// Dispatcher routes a free-form request to one tool or a small coordinated
// set, normalising the outcome into a single Result.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the registry.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

type candidate struct {
	tool  Tool
	score float64
}

// Process scores every registered tool against the request, then runs the
// best match or a coordinated set.
func (d *Dispatcher) Process(ctx context.Context, tc *Context, opts Options) *Result {
	opts = opts.sanitized()

	candidates := d.score(tc, opts.Allowed)
	if len(candidates) == 0 {
		return &Result{Success: false, Error: "no tool matched"}
	}

	single := opts.DisableCoordination ||
		len(candidates) == 1 ||
		candidates[0].score-candidates[1].score >= clearWinnerMargin
	if single {
		res := d.executeOne(ctx, candidates[0].tool, tc, opts.ToolTimeout)
		if res.Success {
			res.Output = coerceMessage(res)
		}
		return res
	}
	return d.coordinate(ctx, candidates, tc, opts)
}

// score builds the sorted candidate list. Order is deterministic: descending
// score, then shorter description, then lexicographic name.
func (d *Dispatcher) score(tc *Context, allowed []string) []candidate {
	allowedSet := map[string]bool{}
	for _, name := range allowed {
		allowedSet[name] = true
	}

	var candidates []candidate
	for _, t := range d.registry.All() {
		if len(allowedSet) > 0 && !allowedSet[t.Name()] {
			continue
		}
		s := t.CanHandle(tc.Request, tc)
		if s >= ScoreThreshold {
			candidates = append(candidates, candidate{tool: t, score: s})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		da, db := len(a.tool.Description()), len(b.tool.Description())
		if da != db {
			return da < db
		}
		return a.tool.Name() < b.tool.Name()
	})
	return candidates
}

// coordinate runs the top candidates as a parallel group followed by a serial
// group, merging their results into one coordinated Result.
func (d *Dispatcher) coordinate(ctx context.Context, candidates []candidate, tc *Context, opts Options) *Result {
	if len(candidates) > opts.MaxTools {
		candidates = candidates[:opts.MaxTools]
	}

	parallel, serial := partition(candidates)

	maxInFlight := opts.MaxTools
	if limit := runtime.NumCPU() * 2; limit < maxInFlight {
		maxInFlight = limit
	}
	if maxInFlight < 1 {
		maxInFlight = 1
	}

	results := make([]*Result, 0, len(candidates))

	// Parallel group: concurrent, bounded, results assembled in score order.
	if len(parallel) > 0 {
		parallelResults := make([]*Result, len(parallel))
		sem := make(chan struct{}, maxInFlight)
		var wg sync.WaitGroup
		for i, c := range parallel {
			wg.Add(1)
			go func(i int, t Tool) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				parallelResults[i] = d.executeOne(ctx, t, tc, opts.ToolTimeout)
			}(i, c.tool)
		}
		wg.Wait()

		for _, res := range parallelResults {
			if len(res.Data) > 0 {
				tc.SetShared(res.Tool, res.Data)
			}
			results = append(results, res)
		}
	}

	// Serial group: descending score, each seeing the prior tool's data in
	// shared state under the prior tool's name.
	for _, c := range serial {
		res := d.executeOne(ctx, c.tool, tc, opts.ToolTimeout)
		if len(res.Data) > 0 {
			tc.SetShared(res.Tool, res.Data)
		}
		results = append(results, res)
	}

	return mergeResults(results)
}

// partition splits candidates into parallel-safe and serial groups. A tool is
// parallel-safe when its capabilities are disjoint from every other selected
// tool's mutation set. Both groups preserve score order.
func partition(candidates []candidate) (parallel, serial []candidate) {
	for i, c := range candidates {
		safe := true
		for j, other := range candidates {
			if i == j {
				continue
			}
			if intersects(c.tool.Capabilities(), other.tool.Mutates()) {
				safe = false
				break
			}
		}
		if safe {
			parallel = append(parallel, c)
		} else {
			serial = append(serial, c)
		}
	}
	return parallel, serial
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// mergeResults folds per-tool results into the coordinated Result.
func mergeResults(results []*Result) *Result {
	merged := &Result{Success: true}
	perTool := make(map[string]*Result, len(results))

	var messages []string
	for _, res := range results {
		perTool[res.Tool] = res
		merged.ToolsRun = append(merged.ToolsRun, res.Tool)
		if !res.Success {
			merged.Success = false
		}
		message := coerceMessage(res)
		if !res.Success && res.Error != "" {
			message = res.Error
		}
		messages = append(messages, fmt.Sprintf("[%s] %s", res.Tool, message))
		merged.FilesCreated = appendUnique(merged.FilesCreated, res.FilesCreated)
		merged.FilesModified = appendUnique(merged.FilesModified, res.FilesModified)
	}

	merged.Output = strings.Join(messages, "\n")
	merged.Data = map[string]any{
		"coordination_result": map[string]any{
			"tool_results": perTool,
		},
	}
	if !merged.Success {
		var failed []string
		for _, res := range results {
			if !res.Success {
				failed = append(failed, res.Tool)
			}
		}
		merged.Error = fmt.Sprintf("tools failed: %s", strings.Join(failed, ", "))
	}
	return merged
}

func appendUnique(dst []string, src []string) []string {
	for _, s := range src {
		found := false
		for _, existing := range dst {
			if existing == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}

// executeOne runs a single tool under the per-tool deadline, containing
// panics and late results.
func (d *Dispatcher) executeOne(ctx context.Context, t Tool, tc *Context, timeout time.Duration) *Result {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan *Result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &Result{
					Success: false,
					Error:   fmt.Sprintf("tool panicked: %v", r),
				}
			}
		}()
		res := t.Execute(execCtx, tc)
		if res == nil {
			res = &Result{Success: false, Error: "tool returned no result"}
		}
		done <- res
	}()

	var res *Result
	select {
	case res = <-done:
	case <-execCtx.Done():
		d.logger.Warn("tool deadline exceeded, discarding result",
			"tool", t.Name(), "timeout", timeout)
		res = &Result{
			Success:  false,
			TimedOut: true,
			Error:    fmt.Sprintf("timeout after %s", timeout),
		}
	}

	res.Tool = t.Name()
	res.Elapsed = time.Since(start)
	if len(res.ToolsRun) == 0 {
		res.ToolsRun = []string{t.Name()}
	}
	return res
}
