// Package main provides the CLI entry point for the sable agentic execution
// core.
//
// # Basic Usage
//
// Run a task through the agentic loop:
//
//	sable run "refactor the parser to use a streaming tokenizer"
//
// List the configured providers and their models:
//
//	sable models
//
// # Environment Variables
//
//   - SABLE_CONFIG: Path to configuration file (default: sable.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key
//   - OPENAI_API_KEY: OpenAI API key
//   - OPENROUTER_API_KEY: OpenRouter API key
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sable-dev/sable/internal/config"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sable",
		Short: "Sable - agentic execution core",
		Long: `Sable runs free-form tasks through an iterative think, execute,
evaluate loop over a pool of LLM providers and registered tools.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to configuration file (or set SABLE_CONFIG; default: sable.yaml)")

	rootCmd.AddCommand(
		buildRunCmd(),
		buildModelsCmd(),
	)
	return rootCmd
}

// loadConfig resolves the config path and loads it, falling back to built-in
// defaults when no file exists. The returned path is empty when defaults were
// used, which disables config watching.
func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("SABLE_CONFIG")
	}
	if path == "" {
		path = "sable.yaml"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}

// setupLogging configures the default slog logger from config.
func setupLogging(cfg config.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
