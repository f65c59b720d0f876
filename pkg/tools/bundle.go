// Package tools assembles the capability bundle shared by all agents. Each
// capability is optional: a handle is nil when its credential is absent, and
// agents must check before use.
package tools

import (
	"sync"

	"agentco/pkg/config"
	"agentco/pkg/github"
	"agentco/pkg/linear"
	"agentco/pkg/llm"
	"agentco/pkg/logx"
	"agentco/pkg/slack"
)

// Bundle holds the shared external-service handles. It is built once at
// startup, read concurrently by every agent, and closed exactly once at
// shutdown.
type Bundle struct {
	Linear *linear.Client
	GitHub github.GitHubClient
	Slack  *slack.Client
	LLM    llm.Client

	closeOnce sync.Once
	logger    *logx.Logger
}

// NewBundle builds the capability bundle from the available credentials.
// Missing credentials leave the corresponding handle nil rather than failing
// startup.
func NewBundle(cfg *config.Config) (*Bundle, error) {
	logger := logx.NewLogger("tools")
	bundle := &Bundle{logger: logger}

	if apiKey := config.GetSecret(config.EnvLinearAPIKey); apiKey != "" {
		bundle.Linear = linear.NewClient(apiKey)
	} else {
		logger.Info("%s not set, Linear capability disabled", config.EnvLinearAPIKey)
	}

	if token := config.GetSecret(config.EnvGitHubToken); token != "" {
		bundle.GitHub = github.NewClient(token)
	} else {
		logger.Info("%s not set, GitHub capability disabled", config.EnvGitHubToken)
	}

	if botToken := config.GetSecret(config.EnvSlackBotToken); botToken != "" {
		bundle.Slack = slack.NewClient(botToken)
	} else {
		logger.Info("%s not set, Slack capability disabled", config.EnvSlackBotToken)
	}

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return nil, err
	}
	if client != nil {
		bundle.LLM = client
		logger.Info("LLM capability enabled: %s (%s)", cfg.LLM.Provider, client.ModelName())
	}

	return bundle, nil
}

// HasLinear reports whether the Linear capability is available.
func (b *Bundle) HasLinear() bool { return b.Linear != nil }

// HasGitHub reports whether the GitHub capability is available.
func (b *Bundle) HasGitHub() bool { return b.GitHub != nil }

// HasSlack reports whether the Slack capability is available.
func (b *Bundle) HasSlack() bool { return b.Slack != nil }

// HasLLM reports whether the LLM capability is available.
func (b *Bundle) HasLLM() bool { return b.LLM != nil }

// Close releases every handle. Safe to call from multiple shutdown paths;
// only the first call does anything.
func (b *Bundle) Close() {
	b.closeOnce.Do(func() {
		if b.Linear != nil {
			b.Linear.Close()
		}
		if closer, ok := b.GitHub.(interface{ Close() }); ok {
			closer.Close()
		}
		if b.Slack != nil {
			b.Slack.Close()
		}
		b.logger.Debug("capability bundle closed")
	})
}
