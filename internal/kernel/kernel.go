// Package kernel assembles the runtime's infrastructure: the sqlite store,
// the event log, Prometheus metrics, and the shared capability bundle. It
// also provides the observation sink installed into every agent runtime.
package kernel

import (
	"fmt"
	"os"
	"path/filepath"

	"agentco/pkg/agent"
	"agentco/pkg/config"
	"agentco/pkg/eventlog"
	"agentco/pkg/logx"
	"agentco/pkg/metrics"
	"agentco/pkg/persistence"
	"agentco/pkg/proto"
	"agentco/pkg/tools"
)

const (
	databaseFilename = "agentco.db"
	eventLogDirname  = "events"
)

// Kernel owns the process-wide infrastructure. Built once at startup and
// shut down once at exit.
type Kernel struct {
	Config   *config.Config
	Bundle   *tools.Bundle
	Store    *persistence.Store
	EventLog *eventlog.Writer
	Metrics  *metrics.Recorder

	logger *logx.Logger
}

// New builds the kernel from a loaded configuration.
func New(cfg *config.Config) (*Kernel, error) {
	logger := logx.NewLogger("kernel")

	stateDir := cfg.StateDir
	if stateDir == "" {
		stateDir = config.DefaultStateDir
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}

	store, err := persistence.InitializeDatabase(filepath.Join(stateDir, databaseFilename))
	if err != nil {
		return nil, err
	}

	eventLog, err := eventlog.NewWriter(filepath.Join(stateDir, eventLogDirname))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	bundle, err := tools.NewBundle(cfg)
	if err != nil {
		_ = eventLog.Close()
		_ = store.Close()
		return nil, err
	}

	k := &Kernel{
		Config:   cfg,
		Bundle:   bundle,
		Store:    store,
		EventLog: eventLog,
		Metrics:  metrics.NewRecorder(),
		logger:   logger,
	}
	logger.Info("kernel initialized (state dir: %s)", stateDir)
	return k, nil
}

// Sink returns the observation sink wired to the event log, the store, and
// Prometheus.
func (k *Kernel) Sink() agent.Sink {
	return &runtimeSink{kernel: k}
}

// RouteObserver returns the callback the orchestrator invokes each time an
// event is delivered to an agent's queue.
func (k *Kernel) RouteObserver() func(agentName string, event *proto.Event) {
	sink := &runtimeSink{kernel: k}
	return sink.RecordRouted
}

// Shutdown releases all infrastructure. Called once, after every agent loop
// has joined.
func (k *Kernel) Shutdown() {
	k.Bundle.Close()
	if err := k.EventLog.Close(); err != nil {
		k.logger.Warn("event log close failed: %v", err)
	}
	if err := k.Store.Close(); err != nil {
		k.logger.Warn("database close failed: %v", err)
	}
	k.logger.Info("kernel shut down")
}
