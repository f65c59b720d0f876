// Command agentco runs the agent orchestrator: the configured agents, the
// ingress gateway, and the supporting infrastructure, all in one process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	"agentco/internal/kernel"
	"agentco/internal/orch"
	"agentco/pkg/config"
	"agentco/pkg/logx"
	"agentco/pkg/version"
	"agentco/pkg/webhook"
)

// EnvPassphrase bypasses the interactive secrets passphrase prompt.
const EnvPassphrase = "AGENTCO_PASSPHRASE"

func main() {
	var (
		configPath  = flag.String("config", "", "Path to agents.yaml (default: ./agents.yaml)")
		projectDir  = flag.String("dir", ".", "Project directory")
		tee         = flag.Bool("tee", false, "Output logs to both console and file (default: file only)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("agentco %s\n", version.Version)
		fmt.Printf("  commit: %s\n", version.Commit)
		fmt.Printf("  built:  %s\n", version.Date)
		os.Exit(0)
	}

	// Initialize log output before anything else logs.
	logsDir := filepath.Join(*projectDir, config.DefaultStateDir, "logs")
	if err := logx.InitializeLogFile(logsDir, *tee); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize log file: %v\n", err)
		os.Exit(1)
	}

	exitCode := run(*configPath, *projectDir)

	if err := logx.CloseLogFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
	}
	os.Exit(exitCode)
}

// run contains the main application logic and returns an exit code, so
// defers execute before os.Exit.
func run(configPath, projectDir string) int {
	logger := logx.NewLogger("main")

	cfg, err := loadConfig(configPath, projectDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	if err := unlockSecrets(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unlock secrets: %v\n", err)
		return 1
	}

	k, err := kernel.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize runtime: %v\n", err)
		return 1
	}
	defer k.Shutdown()

	orchestrator, err := orch.New(cfg, k.Bundle, k.Sink(), k.RouteObserver())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build agents: %v\n", err)
		return 1
	}

	// A SIGINT/SIGTERM cancels ctx; the orchestrator unwinds cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway := webhook.New(
		config.GetSecret(config.EnvWebhookSecret),
		orchestrator.Route,
		orchestrator.AgentInfos,
		k.Store,
		k.Metrics,
	)

	logger.Info("agentco %s started", version.Version)

	// The gateway runs as a member of the supervised group: a bind or serve
	// failure tears down the agents just like an agent loop fault. Blocks
	// until shutdown or the first fault; a fault is a process failure, so
	// exit non-zero and let the supervisor restart us.
	serveGateway := func(ctx context.Context) error {
		return gateway.Serve(ctx, cfg.Server.Host, cfg.Server.Port)
	}
	if err := orchestrator.Run(ctx, serveGateway); err != nil {
		fmt.Fprintf(os.Stderr, "Agent group failed: %v\n", err)
		return 1
	}

	logger.Info("shutdown complete")
	return 0
}

func loadConfig(configPath, projectDir string) (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadFromDir(projectDir)
}

// unlockSecrets decrypts the secrets file when one exists, taking the
// passphrase from the environment or an interactive prompt.
func unlockSecrets(cfg *config.Config) error {
	stateDir := cfg.StateDir
	if stateDir == "" {
		stateDir = config.DefaultStateDir
	}
	secretsPath := filepath.Join(stateDir, config.SecretsFileName)
	if !config.HasSecretsFile(secretsPath) {
		return nil
	}

	passphrase := os.Getenv(EnvPassphrase)
	if passphrase == "" {
		if !term.IsTerminal(syscall.Stdin) {
			return fmt.Errorf("secrets file present but no passphrase: set %s or run interactively", EnvPassphrase)
		}
		fmt.Print("Secrets passphrase: ")
		raw, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read passphrase: %w", err)
		}
		passphrase = string(raw)
	}

	return config.LoadSecretsFile(secretsPath, passphrase)
}
