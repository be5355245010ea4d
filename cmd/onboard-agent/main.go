// Onboard-agent is an AI onboarding assistant for new hires.
//
// It answers onboarding questions over an HTTP API and can act on the
// company's behalf: checking calendars, booking meetings, searching the
// onboarding mailbox, looking up people in the directory, and sending
// mail. Side-effecting actions are staged for explicit human approval
// before anything is executed. Configuration is loaded from a single
// YAML file discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	onboard-agent serve              Start the API server
//	onboard-agent init [dir]         Initialize a working directory with defaults
//	onboard-agent ask <message>      Ask a single question (for testing)
//	onboard-agent version            Print version and build information
//	onboard-agent -o json version    Output version information as JSON
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/crewline/onboard-agent/internal/actions"
	"github.com/crewline/onboard-agent/internal/agent"
	"github.com/crewline/onboard-agent/internal/api"
	"github.com/crewline/onboard-agent/internal/buildinfo"
	"github.com/crewline/onboard-agent/internal/calendar"
	"github.com/crewline/onboard-agent/internal/config"
	"github.com/crewline/onboard-agent/internal/contacts"
	"github.com/crewline/onboard-agent/internal/email"
	"github.com/crewline/onboard-agent/internal/llm"
	"github.com/crewline/onboard-agent/internal/tools"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
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

// run is the real entry point for the onboard-agent command. All
// OS-level dependencies are injected as parameters:
//
//   - ctx controls the lifetime of the process. Cancelling it triggers
//     graceful shutdown of the server.
//   - stdout and stderr receive all program output. Structured logs go
//     to stdout; fatal error messages go to stderr.
//   - args is os.Args[1:], parsed manually rather than with the flag
//     package to avoid global state that interferes with parallel tests.
//
// run returns nil on clean shutdown and a non-nil error for any failure.
// The caller (main) is responsible for printing the error and exiting.
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
		return runServe(ctx, stdout, stderr, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: onboard-agent ask <message>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
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
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Onboard-Agent - AI Onboarding Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: onboard-agent [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  init [dir]   Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
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

// runAsk handles the "onboard-agent ask <message>" subcommand. It boots
// a minimal orchestrator with an in-memory action store and processes a
// single message, printing the response to stdout. Useful for quick
// smoke tests and debugging without starting the server. Staged actions
// are printed but cannot be approved; approval requires the server.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn)

	message := strings.Join(args, " ")

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger.Info("config loaded", "path", cfgPath)

	if cfg.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is not configured")
	}

	// Nothing to persist for a one-shot question. In-memory SQLite is
	// per-connection, so the pool must stay at one connection.
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return fmt.Errorf("open in-memory database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	store, err := actions.NewStore(db, logger)
	if err != nil {
		return fmt.Errorf("create action store: %w", err)
	}

	llmClient := newLLMClient(cfg, logger)
	registry := buildRegistry(cfg, logger)

	orch := agent.New(logger, llmClient, registry, store, cfg.Agent, cfg.Anthropic.Model)

	result, err := orch.HandleMessage(ctx, agent.Request{
		UserID:         "cli-test",
		ConversationID: "cli-test",
		Message:        message,
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, result.Content)
	for _, p := range result.PendingActions {
		fmt.Fprintf(stdout, "\n[pending approval] %s %s (id %s)\n", p.ToolName, formatParams(p.Params), p.ActionID)
	}
	return nil
}

// runServe handles the "onboard-agent serve" subcommand. It is the
// primary operating mode: loads config, opens the action database,
// wires the configured integrations into the tool registry, starts the
// API server, and blocks until a shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting onboard-agent", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that the desired level is known. The
	// initial Info-level logger covers only the startup banner.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log_level: %w", err)
		}
		logger = newLogger(stdout, level)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.Anthropic.Model,
	)

	if cfg.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is not configured")
	}

	// All persistent state (the staged-action database) lives under the
	// data directory.
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	// WAL plus a busy timeout so concurrent decisions queue on the
	// write lock instead of surfacing SQLITE_BUSY. The store's guarded
	// UPDATE then reports the loser of a race as a conflict.
	dbPath := cfg.DataDir + "/onboard-agent.db"
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("open action database %s: %w", dbPath, err)
	}
	defer db.Close()

	store, err := actions.NewStore(db, logger)
	if err != nil {
		return fmt.Errorf("create action store: %w", err)
	}
	logger.Info("action database opened", "path", dbPath)

	llmClient := newLLMClient(cfg, logger)
	registry := buildRegistry(cfg, logger)
	logger.Info("tool registry initialized", "tools", len(registry.List()))

	orch := agent.New(logger, llmClient, registry, store, cfg.Agent, cfg.Anthropic.Model)

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, orch, store, logger)

	// Shutdown on SIGINT or SIGTERM. Signal cancels the context; the
	// goroutine below drains in-flight requests.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	// Start blocks until the server is shut down (via context
	// cancellation or fatal error).
	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("onboard-agent stopped")
	return nil
}

// newLLMClient builds the completion client: the Anthropic API wrapped
// in retry-with-backoff so transient overload is absorbed before the
// orchestrator sees it.
func newLLMClient(cfg *config.Config, logger *slog.Logger) llm.Client {
	anthropic := llm.NewAnthropicClient(cfg.Anthropic.APIKey, logger)

	opts := []llm.RetryOption{}
	if cfg.Agent.CompletionRetries > 0 {
		opts = append(opts, llm.WithRetries(cfg.Agent.CompletionRetries))
	}
	if cfg.Agent.AttemptTimeoutSec > 0 {
		opts = append(opts, llm.WithAttemptTimeout(time.Duration(cfg.Agent.AttemptTimeoutSec)*time.Second))
	}
	return llm.NewRetryClient(anthropic, logger, opts...)
}

// buildRegistry wires every configured integration into the tool
// registry. Unconfigured integrations are skipped, which removes their
// tools from the model's view entirely rather than offering tools that
// would fail at execution time.
func buildRegistry(cfg *config.Config, logger *slog.Logger) *tools.Registry {
	registry := tools.NewRegistry(logger)

	if cfg.Calendar.Configured() {
		cal, err := calendar.NewService(calendar.Config{
			URL:      cfg.Calendar.URL,
			Username: cfg.Calendar.Username,
			Password: cfg.Calendar.Password,
			Timezone: cfg.Calendar.Timezone,
		}, logger)
		if err != nil {
			logger.Error("calendar integration disabled", "error", err)
		} else {
			registry.SetCalendarService(cal)
			logger.Info("calendar integration configured", "url", cfg.Calendar.URL)
		}
	} else {
		logger.Warn("calendar not configured - scheduling tools unavailable")
	}

	if cfg.Email.Configured() {
		svc := email.NewService(cfg.Email.From, email.SMTPConfig{
			Host:     cfg.Email.SMTP.Host,
			Port:     cfg.Email.SMTP.Port,
			Username: cfg.Email.SMTP.Username,
			Password: cfg.Email.SMTP.Password,
			StartTLS: cfg.Email.SMTP.StartTLS,
		}, email.IMAPConfig{
			Host:     cfg.Email.IMAP.Host,
			Port:     cfg.Email.IMAP.Port,
			Username: cfg.Email.IMAP.Username,
			Password: cfg.Email.IMAP.Password,
			TLS:      cfg.Email.IMAP.TLS,
		}, logger)
		registry.SetMailService(svc)
		logger.Info("email integration configured", "from", cfg.Email.From)
	} else {
		logger.Warn("email not configured - mail tools unavailable")
	}

	if cfg.Contacts.Dir != "" {
		dir, err := contacts.NewDirectory(cfg.Contacts.Dir, logger)
		if err != nil {
			logger.Error("contacts integration disabled", "error", err)
		} else {
			registry.SetContactFinder(dir)
			logger.Info("contacts directory loaded", "dir", cfg.Contacts.Dir, "people", dir.Count())
		}
	} else {
		logger.Warn("contacts not configured - find_contact unavailable")
	}

	return registry
}

// newLogger creates a structured text logger that writes to w at the
// given level. All log output goes through slog; this helper
// standardizes the handler configuration across subcommands.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used (and must exist). Otherwise,
// [config.FindConfig] searches the default locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// formatParams renders tool parameters for terminal display.
func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	b, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%v", params)
	}
	return string(b)
}
