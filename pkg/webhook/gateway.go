// Package webhook provides the ingress gateway: it terminates inbound
// webhook deliveries, authenticates them, maps provider payload shapes to
// internal events, and forwards them to the orchestrator's routing function.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentco/pkg/logx"
	"agentco/pkg/metrics"
	"agentco/pkg/persistence"
	"agentco/pkg/proto"
)

// Provider name constants used in routes and metrics labels.
const (
	ProviderGitHub = "github"
	ProviderLinear = "linear"
	ProviderSlack  = "slack"
)

// AgentInfo is one agent's runtime state as reported by GET /api/agents.
type AgentInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	QueueDepth int    `json:"queue_depth"`
}

// Gateway terminates inbound webhooks and forwards mapped events.
type Gateway struct {
	secret   string
	route    func(*proto.Event)
	agents   func() []AgentInfo
	store    *persistence.Store
	recorder *metrics.Recorder
	logger   *logx.Logger
}

// New creates an ingress gateway. route receives every mapped event; agents
// reports runtime state for the API; store and recorder may be nil in tests.
func New(secret string, route func(*proto.Event), agents func() []AgentInfo, store *persistence.Store, recorder *metrics.Recorder) *Gateway {
	return &Gateway{
		secret:   secret,
		route:    route,
		agents:   agents,
		store:    store,
		recorder: recorder,
		logger:   logx.NewLogger("webhook"),
	}
}

// RegisterRoutes sets up the gateway's HTTP routes.
func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", g.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/webhooks/github", g.handleGitHub)
	mux.HandleFunc("/webhooks/linear", g.handleLinear)
	mux.HandleFunc("/webhooks/slack", g.handleSlack)
	mux.HandleFunc("/api/abandoned", g.handleAbandoned)
	mux.HandleFunc("/api/agents", g.handleAgents)
}

// Serve binds and runs the HTTP server until ctx is cancelled. It blocks so
// the gateway can run as a member of the supervised group: a bind or serve
// failure is returned as a fault; cancellation is a clean shutdown and
// returns nil.
func (g *Gateway) Serve(ctx context.Context, host string, port int) error {
	mux := http.NewServeMux()
	g.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", host, port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind gateway on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.logger.Info("Starting ingress gateway on %s", listener.Addr())

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(listener) }()

	select {
	case <-ctx.Done():
		g.logger.Info("Shutting down ingress gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		//nolint:contextcheck // Parent context is cancelled; shutdown needs a fresh one
		if err := server.Shutdown(shutdownCtx); err != nil {
			g.logger.Error("Gateway shutdown failed: %v", err)
		}
		<-serveErr
		return nil
	case err := <-serveErr:
		return fmt.Errorf("gateway server failed: %w", err)
	}
}

// verifySignature checks a GitHub-style HMAC-SHA256 signature header against
// the raw request body. Comparison is constant-time.
func verifySignature(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGitHub implements POST /webhooks/github. The event kind is derived
// from the X-GitHub-Event header plus the payload's action field:
// github_<event>[_<action>].
func (g *Gateway) handleGitHub(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw, body, ok := g.readBody(w, r, ProviderGitHub)
	if !ok {
		return
	}

	// Signature checking is skipped only when no secret is configured.
	if g.secret != "" {
		signature := r.Header.Get("X-Hub-Signature-256")
		if !verifySignature(raw, signature, g.secret) {
			g.logger.Warn("GitHub webhook rejected: invalid signature from %s", r.RemoteAddr)
			g.countRequest(ProviderGitHub, "rejected")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}
	}

	kind := "github_" + r.Header.Get("X-GitHub-Event")
	if action, _ := body["action"].(string); action != "" {
		kind = kind + "_" + action
	}

	event := proto.NewEvent(kind, proto.SourceGitHub, body)
	g.deliver(ProviderGitHub, event)
	writeJSON(w, http.StatusOK, map[string]string{"received": kind})
}

// handleLinear implements POST /webhooks/linear. Known actions map to
// dedicated kinds; unrecognized actions fall back to linear_<action> so
// downstream agents can still observe them.
func (g *Gateway) handleLinear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, body, ok := g.readBody(w, r, ProviderLinear)
	if !ok {
		return
	}

	action, _ := body["action"].(string)
	if action == "" {
		action = "unknown"
	}

	var kind string
	switch action {
	case "create":
		kind = proto.KindLinearIssueCreated
	case "update":
		kind = proto.KindLinearIssueUpdated
	case "remove":
		kind = proto.KindLinearIssueRemoved
	default:
		kind = "linear_" + action
	}

	payload, _ := body["data"].(map[string]any)
	event := proto.NewEvent(kind, proto.SourceLinear, payload)
	g.deliver(ProviderLinear, event)
	writeJSON(w, http.StatusOK, map[string]string{"received": kind})
}

// handleSlack implements POST /webhooks/slack. A url_verification handshake
// is answered with its challenge token and routes no event.
func (g *Gateway) handleSlack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, body, ok := g.readBody(w, r, ProviderSlack)
	if !ok {
		return
	}

	if outer, _ := body["type"].(string); outer == "url_verification" {
		challenge, _ := body["challenge"].(string)
		g.countRequest(ProviderSlack, "challenge")
		writeJSON(w, http.StatusOK, map[string]string{"challenge": challenge})
		return
	}

	eventData, _ := body["event"].(map[string]any)
	eventType, _ := eventData["type"].(string)
	if eventType == "" {
		eventType = "unknown"
	}

	event := proto.NewEvent("slack_"+eventType, proto.SourceSlack, eventData)
	g.deliver(ProviderSlack, event)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleAbandoned implements GET /api/abandoned - events that exhausted
// their retry budget.
func (g *Gateway) handleAbandoned(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if g.store == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}

	events, err := g.store.ListAbandonedEvents(r.Context(), 100)
	if err != nil {
		g.logger.Error("Failed to list abandoned events: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*persistence.AbandonedEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleAgents implements GET /api/agents - per-agent runtime state.
func (g *Gateway) handleAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	infos := []AgentInfo{}
	if g.agents != nil {
		infos = g.agents()
	}
	writeJSON(w, http.StatusOK, infos)
}

// readBody decodes the request body as JSON, returning the raw bytes for
// signature verification.
func (g *Gateway) readBody(w http.ResponseWriter, r *http.Request, provider string) ([]byte, map[string]any, bool) {
	raw, err := readLimited(r)
	if err != nil {
		g.countRequest(provider, "invalid")
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return nil, nil, false
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		g.countRequest(provider, "invalid")
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return nil, nil, false
	}
	return raw, body, true
}

// deliver routes one mapped event and records the delivery.
func (g *Gateway) deliver(provider string, event *proto.Event) {
	g.logger.Info("%s webhook: %s", provider, event.Kind)
	g.countRequest(provider, "accepted")

	if g.store != nil {
		if err := g.store.RecordWebhookDelivery(context.Background(), provider, event); err != nil {
			g.logger.Warn("Failed to record webhook delivery: %v", err)
		}
	}
	g.route(event)
}

func (g *Gateway) countRequest(provider, status string) {
	if g.recorder != nil {
		g.recorder.IncWebhookRequest(provider, status)
	}
}

const maxBodyBytes = 1 << 20 // 1 MiB

func readLimited(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
