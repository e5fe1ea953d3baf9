// Package webpilot is a bounded multi-turn session orchestrator for
// AI-guided web navigation. Each call to GetNextStep turns the user's goal,
// the current page snapshot, and the session history into exactly one
// validated next action, under hard per-session step and feedback caps.
//
// Minimal usage:
//
//	client, err := webpilot.New(webpilot.WithInvoker(invoker))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	sess, err := client.CreateSession(ctx, "acme", "u-1",
//		"Submit a $50 expense report for office supplies", "https://expenses.example.com")
//	action, err := client.GetNextStep(ctx, "acme", sess.ID, page)
package webpilot

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/config"
	"github.com/webpilot-ai/webpilot/internal/metrics"
	"github.com/webpilot-ai/webpilot/internal/telemetry"
	"github.com/webpilot-ai/webpilot/llm"
	"github.com/webpilot-ai/webpilot/session"
	"github.com/webpilot-ai/webpilot/store"
	"github.com/webpilot-ai/webpilot/types"
)

// Client is the top-level entry point. It owns the orchestrator, the session
// store, and the metric instruments. Safe for concurrent use.
type Client struct {
	cfg          *config.Config
	store        store.SessionStore
	ownsStore    bool
	orchestrator *session.Orchestrator
	telemetry    *telemetry.Providers
	logger       *zap.Logger
}

// Option configures a Client.
type Option func(*options)

type options struct {
	cfg        *config.Config
	invoker    llm.Invoker
	store      store.SessionStore
	logger     *zap.Logger
	registerer prometheus.Registerer
}

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithInvoker sets the model invoker. Required.
func WithInvoker(inv llm.Invoker) Option {
	return func(o *options) { o.invoker = inv }
}

// WithStore injects a session store. The client will not close an injected
// store; the caller keeps ownership.
func WithStore(st store.SessionStore) Option {
	return func(o *options) { o.store = st }
}

// WithLogger injects a logger instead of one built from the log config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegisterer sets the Prometheus registerer for the client's metrics.
// Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New creates a Client. An invoker is required; everything else has a
// default: config.Default(), an in-memory store, a logger built from the log
// config, and the default Prometheus registerer.
func New(opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.invoker == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "an llm.Invoker is required")
	}

	cfg := o.cfg
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "invalid configuration").WithCause(err)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = buildLogger(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
	}

	st := o.store
	ownsStore := false
	if st == nil {
		var err error
		st, err = store.New(context.Background(), cfg.Store, logger)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		ownsStore = true
	}

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	reg := o.registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collector := metrics.NewCollector("webpilot", reg)

	return &Client{
		cfg:          cfg,
		store:        st,
		ownsStore:    ownsStore,
		orchestrator: session.NewOrchestrator(cfg, st, o.invoker, collector, logger),
		telemetry:    providers,
		logger:       logger,
	}, nil
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
		zc.Level = level
	}
	return zc.Build()
}

// CreateSession starts a new guided session for the given goal.
func (c *Client) CreateSession(ctx context.Context, tenantID, userID, goal, startingURL string) (*types.SessionSummary, error) {
	return c.orchestrator.CreateSession(ctx, tenantID, userID, goal, startingURL)
}

// GetNextStep recommends the single next action for an active session.
func (c *Client) GetNextStep(ctx context.Context, tenantID, sessionID string, page types.PageContext) (*types.ValidatedAction, error) {
	return c.orchestrator.GetNextStep(ctx, tenantID, sessionID, page)
}

// SubmitFeedback records a user correction and recommends a corrected action.
// Pass a nil page when no fresh snapshot is available.
func (c *Client) SubmitFeedback(ctx context.Context, tenantID, sessionID, correction, stepContext string, page *types.PageContext) (*types.ValidatedAction, error) {
	return c.orchestrator.SubmitFeedback(ctx, tenantID, sessionID, correction, stepContext, page)
}

// CompleteSession moves an active session to completed or abandoned.
func (c *Client) CompleteSession(ctx context.Context, tenantID, sessionID string, reason types.Status) (*types.SessionSummary, error) {
	return c.orchestrator.CompleteSession(ctx, tenantID, sessionID, reason)
}

// FailSession administratively moves an active session to the error state.
func (c *Client) FailSession(ctx context.Context, tenantID, sessionID, cause string) (*types.SessionSummary, error) {
	return c.orchestrator.FailSession(ctx, tenantID, sessionID, cause)
}

// GetSession returns the public snapshot of a session.
func (c *Client) GetSession(ctx context.Context, tenantID, sessionID string) (*types.SessionSummary, error) {
	return c.orchestrator.GetSession(ctx, tenantID, sessionID)
}

// Ping checks store health.
func (c *Client) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Close flushes telemetry and releases resources the client owns. Injected
// stores are left open.
func (c *Client) Close() error {
	err := c.telemetry.Shutdown(context.Background())
	if c.ownsStore {
		if cerr := c.store.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
