// Clipqa is a daemon for conversational Q&A over video content.
//
// It extracts a video's spoken content (caption track first, whisper
// speech-to-text as fallback), seeds a local chat model with it, and
// answers questions about the video with streamed responses. It exposes
// a JSON API with a browser UI, plus a CLI for one-shot questions.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	clipqa serve                     Start the API server and web UI
//	clipqa ask <url> <question>      Analyze a video and ask one question
//	clipqa version                   Print version and build information
//	clipqa -o json version           Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/clipqa/clipqa/internal/api"
	"github.com/clipqa/clipqa/internal/buildinfo"
	"github.com/clipqa/clipqa/internal/chat"
	"github.com/clipqa/clipqa/internal/config"
	"github.com/clipqa/clipqa/internal/events"
	"github.com/clipqa/clipqa/internal/extract"
	"github.com/clipqa/clipqa/internal/llm"
	"github.com/clipqa/clipqa/internal/store"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the clipqa command. All OS-level
// dependencies are injected as parameters so tests can drive the full
// lifecycle. Arguments are parsed by hand: the flag package relies on
// package-level globals (flag.CommandLine), which makes it impossible
// to call run() concurrently from tests, and our argument surface is
// small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "ask":
		if len(cmdArgs) < 2 {
			return errors.New("usage: clipqa ask <url> <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, cmdArgs[0], strings.Join(cmdArgs[1:], " "))
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runServe starts the API server and web UI and blocks until shutdown.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting clipqa", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath, logger)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that the desired level is known. The
	// initial Info-level logger only covers the startup banner.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.Ollama.Model,
		"ollama_url", cfg.Ollama.URL,
	)

	bus := events.New()
	ollamaClient := llm.NewOllamaClient(cfg.Ollama.URL)

	// A reachability check at startup is informational only: Ollama may
	// come up later, and analyze/ask report their own failures.
	{
		pingCtx, cancel := context.WithTimeout(ctx, llm.HealthCheckTimeout)
		if err := ollamaClient.Ping(pingCtx); err != nil {
			logger.Warn("ollama not reachable", "url", cfg.Ollama.URL, "error", err)
		}
		cancel()
	}

	// Archive of past analyses and exchanges. Persistence problems
	// degrade to an archive-less server rather than refusing to start.
	var archive *store.Store
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			logger.Warn("create data directory failed, archive disabled", "dir", cfg.DataDir, "error", err)
		} else {
			dbPath := filepath.Join(cfg.DataDir, "clipqa.db")
			archive, err = store.NewStore(dbPath)
			if err != nil {
				logger.Warn("open archive failed, archive disabled", "path", dbPath, "error", err)
			} else {
				defer archive.Close()
				logger.Info("archive opened", "path", dbPath)
			}
		}
	}

	session := chat.NewSession(ollamaClient, cfg.Ollama.Model, bus, logger)
	extractor := extract.New(cfg.Extract, bus, logger)

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, session, extractor, ollamaClient, archive, bus, logger)

	// Signal handling and graceful shutdown. NotifyContext wraps the
	// parent context so SIGINT/SIGTERM cancellation flows through the
	// same ctx used by all components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		_ = server.Shutdown(context.Background())
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("clipqa stopped")
	return nil
}

// runAsk analyzes one video and asks one question, streaming the answer
// to stdout. Logs and progress go to stderr so stdout carries only the
// answer text.
func runAsk(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath, url, question string) error {
	logger := newLogger(stderr, slog.LevelWarn)

	cfg, _, err := loadConfig(configPath, logger)
	if err != nil {
		return err
	}

	bus := events.New()
	progress := bus.Subscribe(64)
	defer bus.Unsubscribe(progress)
	go func() {
		for ev := range progress {
			if ev.Kind == events.KindProgress {
				fmt.Fprintf(stderr, "%v%% %v\n", ev.Data["percent"], ev.Data["status"])
			}
		}
	}()

	extractor := extract.New(cfg.Extract, bus, logger)
	result, err := extractor.Extract(ctx, url)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	fmt.Fprintf(stderr, "%s (%s, %d chars)\n", result.Title, result.Duration, result.ContentChars)

	ollamaClient := llm.NewOllamaClient(cfg.Ollama.URL)
	session := chat.NewSession(ollamaClient, cfg.Ollama.Model, bus, logger)

	if err := session.Prime(ctx, result.Content); err != nil {
		return err
	}

	if _, err := session.Ask(ctx, question, func(delta string) {
		fmt.Fprint(stdout, delta)
	}); err != nil {
		return err
	}
	fmt.Fprintln(stdout)
	return nil
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// newLogger creates a structured text logger writing to w at the given
// level. All log output goes through slog; this helper standardizes
// handler configuration across subcommands.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. If
// explicit is non-empty, that exact path is used (and must exist).
// Otherwise [config.FindConfig] searches the default locations and, if
// nothing is found, built-in defaults are used so the daemon runs out
// of the box against a local Ollama.
func loadConfig(explicit string, logger *slog.Logger) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		logger.Info("no config file found, using defaults")
		return config.Default(), "(defaults)", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "clipqa - conversational Q&A over video content")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: clipqa [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                  Start the API server and web UI")
	fmt.Fprintln(w, "  ask <url> <question>   Analyze a video and ask one question")
	fmt.Fprintln(w, "  version                Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	for _, p := range config.DefaultSearchPaths() {
		fmt.Fprintf(w, "  %s\n", p)
	}
	return nil
}
