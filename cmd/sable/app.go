package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sable-dev/sable/internal/config"
	"github.com/sable-dev/sable/internal/engine"
	"github.com/sable-dev/sable/internal/events"
	"github.com/sable-dev/sable/internal/memory"
	"github.com/sable-dev/sable/internal/orchestrator"
	"github.com/sable-dev/sable/internal/provider"
	"github.com/sable-dev/sable/internal/provider/router"
	"github.com/sable-dev/sable/internal/tool"
	"github.com/sable-dev/sable/pkg/models"
)

// app holds the wired component graph for one CLI invocation.
type app struct {
	cfg       *config.Config
	providers map[string]provider.Provider
	router    *router.Router
	registry  *tool.Registry
	session   *memory.SessionMemory
	orch      *orchestrator.Orchestrator

	sink    *events.BackpressureSink
	printed chan struct{}
	metrics *http.Server
	watcher *config.Watcher
}

// watchConfig applies live-tunable settings from config edits: log level and
// the default provider. Structural settings still need a restart.
func (a *app) watchConfig(ctx context.Context, path string) {
	if path == "" {
		return
	}
	a.watcher = config.NewWatcher(path, func(cfg *config.Config) {
		setupLogging(cfg.Logging)
		if cfg.Providers.Default != a.router.Default() {
			if err := a.router.SwitchProvider(cfg.Providers.Default); err != nil {
				slog.Warn("config changed default provider, switch failed",
					"provider", cfg.Providers.Default, "error", err)
			}
		}
	}, slog.Default())
	if err := a.watcher.Start(ctx); err != nil {
		slog.Warn("config watch unavailable", "error", err)
		a.watcher = nil
	}
}

// routerLLM adapts the router to the single-method handle tools receive.
type routerLLM struct {
	r *router.Router
}

func (l routerLLM) Ask(ctx context.Context, req *provider.AskRequest) (string, error) {
	return l.r.Ask(ctx, "", req, nil)
}

// buildApp wires providers, router, tools, memory, engine, and orchestrator
// from the loaded config.
func buildApp(cfg *config.Config, sessionID string, verbose bool) (*app, error) {
	logger := slog.Default()

	a := &app{
		cfg:       cfg,
		providers: buildProviders(cfg.Providers),
	}

	opts := []router.Option{router.WithLogger(logger)}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		opts = append(opts, router.WithPrometheus(reg))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		a.metrics = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
	}
	a.router = router.New(opts...)

	if err := registerProviders(a.router, a.providers, cfg.Providers); err != nil {
		return nil, err
	}

	a.registry = tool.NewRegistry(logger)
	a.registry.Register(newResponderTool())
	dispatcher := tool.NewDispatcher(a.registry, logger)

	a.session = memory.New(memory.Config{
		SessionID:     sessionID,
		ArchiveDir:    cfg.Memory.ArchiveDir,
		SnapshotDir:   cfg.Memory.SnapshotDir,
		IdleThreshold: cfg.Memory.IdleThreshold,
		Logger:        logger,
	})
	if restored, err := a.session.Load(); err == nil && restored {
		logger.Info("restored session context", "session", sessionID)
	}

	sink, merged := events.NewBackpressureSink(events.BackpressureConfig{
		HighPriBuffer: cfg.Events.HighPriBuffer,
		LowPriBuffer:  cfg.Events.LowPriBuffer,
	})
	a.sink = sink
	a.printed = make(chan struct{})
	go func() {
		defer close(a.printed)
		printEvents(os.Stdout, merged, verbose)
	}()

	toolOpts := tool.Options{
		MaxTools:            cfg.Tools.MaxTools,
		ToolTimeout:         cfg.Tools.ToolTimeout,
		DisableCoordination: cfg.Tools.DisableCoordination,
	}

	eng := engine.New(engine.Config{
		SessionID:       sessionID,
		SystemPrompt:    cfg.Engine.SystemPrompt,
		WorkDir:         cfg.Tools.WorkDir,
		Registry:        a.registry,
		ToolLLM:         routerLLM{a.router},
		ToolOptions:     toolOpts,
		ThinkTimeout:    cfg.Engine.ThinkTimeout,
		ExecuteTimeout:  cfg.Engine.ExecuteTimeout,
		EvaluateTimeout: cfg.Engine.EvaluateTimeout,
		Logger:          logger,
	}, a.router, dispatcher, a.session, sink)

	a.orch = orchestrator.New(orchestrator.Config{
		SessionID:     sessionID,
		WorkDir:       cfg.Tools.WorkDir,
		MaxIterations: cfg.Engine.MaxIterations,
		TurnTimeout:   cfg.Engine.TurnTimeout,
		Registry:      a.registry,
		ToolLLM:       routerLLM{a.router},
		ToolOptions:   toolOpts,
		Logger:        logger,
	}, eng, dispatcher, a.session, sink)

	return a, nil
}

// close drains the event stream and shuts the metrics server down.
func (a *app) close() {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.sink != nil {
		a.sink.Close()
		<-a.printed
	}
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
	}
}

func buildProviders(cfg config.ProvidersConfig) map[string]provider.Provider {
	entry := func(name string) config.ProviderConfig {
		return cfg.Entries[name]
	}

	out := make(map[string]provider.Provider)

	anth := entry("anthropic")
	key := anth.APIKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	out["anthropic"] = provider.NewAnthropicProvider(provider.AnthropicConfig{
		APIKey:       key,
		BaseURL:      anth.BaseURL,
		DefaultModel: anth.DefaultModel,
	})

	oai := entry("openai")
	key = oai.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	out["openai"] = provider.NewOpenAIProvider(provider.OpenAIConfig{
		APIKey:       key,
		BaseURL:      oai.BaseURL,
		DefaultModel: oai.DefaultModel,
	})

	orc := entry("openrouter")
	key = orc.APIKey
	if key == "" {
		key = os.Getenv("OPENROUTER_API_KEY")
	}
	out["openrouter"] = provider.NewOpenRouterProvider(provider.OpenRouterConfig{
		APIKey:       key,
		DefaultModel: orc.DefaultModel,
		AppName:      "sable",
	})

	oll := entry("ollama")
	out["ollama"] = provider.NewOllamaProvider(provider.OllamaConfig{
		BaseURL:      oll.BaseURL,
		DefaultModel: oll.DefaultModel,
	})

	return out
}

// defaultPriorities order providers when the config does not say otherwise.
var defaultPriorities = map[string]int{
	"anthropic":  4,
	"openai":     3,
	"openrouter": 2,
	"ollama":     1,
}

func registerProviders(r *router.Router, providers map[string]provider.Provider, cfg config.ProvidersConfig) error {
	// Register the configured default first so it wins the default slot.
	names := []string{cfg.Default}
	for name := range providers {
		if name != cfg.Default {
			names = append(names, name)
		}
	}

	for _, name := range names {
		p, ok := providers[name]
		if !ok {
			continue
		}
		entry := cfg.Entries[name]
		priority := entry.Priority
		if priority == 0 {
			priority = defaultPriorities[name]
		}
		if err := r.Register(p, provider.Descriptor{
			Name:     name,
			Priority: priority,
			Enabled:  entry.On(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// summarize prints the terminal result after the event stream has drained.
func summarize(result *models.RunResult) {
	switch result.Status {
	case models.StatusSuccess:
		if result.FinalResult != nil && result.FinalResult.Output != "" {
			os.Stdout.WriteString(result.FinalResult.Output + "\n")
		}
	case models.StatusMaxIterations:
		slog.Warn("iteration budget exhausted",
			"iterations", len(result.Iterations), "duration", result.Duration)
	case models.StatusCancelled:
		slog.Warn("task cancelled", "duration", result.Duration)
	default:
		slog.Error("task failed", "error", result.Error)
	}
}
