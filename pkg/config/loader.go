package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config file constants.
const (
	ConfigFilename  = "agents.yaml"
	DefaultStateDir = ".agentco"
	DefaultPort     = 8000
)

// Load reads and validates the YAML config file at path. Missing optional
// sections get defaults; a missing agents section is an error because a run
// without agents has nothing to do.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadFromDir loads <dir>/agents.yaml.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, ConfigFilename))
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
		if port := os.Getenv(EnvPort); port != "" {
			if parsed, err := strconv.Atoi(port); err == nil {
				cfg.Server.Port = parsed
			}
		}
	}
	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
	}
	if cfg.Defaults.PollIntervalSeconds <= 0 {
		cfg.Defaults.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if cfg.Defaults.MaxRetries <= 0 {
		cfg.Defaults.MaxRetries = DefaultMaxRetries
	}
	if cfg.Defaults.RetryBackoffSeconds <= 0 {
		cfg.Defaults.RetryBackoffSeconds = DefaultRetryBackoffSeconds
	}
}

func validate(cfg *Config) error {
	if len(cfg.Agents) == 0 {
		return fmt.Errorf("no agents configured")
	}
	for name, agent := range cfg.Agents {
		if agent.Type == "" {
			return fmt.Errorf("agent %q has no type", name)
		}
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}
	return nil
}
