// Package executor selects and supervises exactly one load-generation
// backend per execution and normalizes the result shape regardless of
// which backend ran.
package executor

import (
	"context"
	"encoding/json"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hexbench/hexbench/internal/config"
	"github.com/hexbench/hexbench/internal/metrics"
	"github.com/hexbench/hexbench/internal/tracing"
)

// Kind identifies the concrete load-generation backend.
type Kind string

const (
	KindInternal Kind = "internal"
	KindK6       Kind = "k6"
)

// Below this many virtual users the in-process generator is preferred;
// the external runner only pays off at very high concurrency.
const internalUserThreshold = 500

// Result is the normalized outcome of one execution.
type Result struct {
	Success   bool              `json:"success"`
	Backend   Kind              `json:"backend"`
	Report    *metrics.Report   `json:"report,omitempty"`
	Summary   json.RawMessage   `json:"summary,omitempty"`
	Intervals []json.RawMessage `json:"intervals,omitempty"`
	Error     string            `json:"error,omitempty"`
	Stderr    string            `json:"stderr,omitempty"`
}

// AbortAck is the structured acknowledgement of an abort request.
type AbortAck struct {
	Aborted bool   `json:"aborted"`
	Message string `json:"message"`
}

// Backend runs one load test to completion. Each variant owns its own
// supervision and cancellation logic.
type Backend interface {
	Kind() Kind
	Run(ctx context.Context) (*Result, error)
	Abort() error
}

// Coordinator supervises a single execution: it selects a backend, runs
// it, and converts every failure mode into a structured Result.
type Coordinator struct {
	cfg    *config.Config
	logger *zap.Logger
	tracer trace.Tracer

	mu      sync.Mutex
	backend Backend
	running bool
}

// New prepares a coordinator for one configuration. Backend selection and
// construction happen at Execute time so configuration problems become
// structured failure results rather than constructor errors.
func New(cfg *config.Config, logger *zap.Logger, tracer trace.Tracer) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{cfg: cfg, logger: logger, tracer: tracer}
}

// SelectKind returns the backend kind the coordinator will use for cfg.
func SelectKind(cfg *config.Config) Kind {
	switch cfg.Engine {
	case config.EngineInternal:
		return KindInternal
	case config.EngineK6:
		return KindK6
	}
	if cfg.ConcurrentUsers < internalUserThreshold {
		return KindInternal
	}
	return KindK6
}

// Execute runs the configured test on the selected backend. It never
// returns an error: coordinator failures always terminate the execution
// and are reported as a structured result.
func (c *Coordinator) Execute(ctx context.Context) *Result {
	kind := SelectKind(c.cfg)

	ctx, span := tracing.StartExecutionSpan(ctx, c.tracer, string(kind), c.cfg.TargetURL)

	backend, err := c.newBackend(kind)
	if err != nil {
		c.logger.Error("backend setup failed", zap.String("backend", string(kind)), zap.Error(err))
		tracing.EndSpan(span, err)
		return &Result{Backend: kind, Error: err.Error()}
	}

	c.mu.Lock()
	c.backend = backend
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	c.logger.Info("executing load test",
		zap.String("backend", string(kind)),
		zap.String("target", c.cfg.TargetURL),
		zap.Int("users", c.cfg.ConcurrentUsers),
	)

	res, err := backend.Run(ctx)
	if err != nil {
		tracing.EndSpan(span, err)
		return &Result{Backend: kind, Error: err.Error()}
	}

	tracing.EndSpan(span, nil, attribute.Bool("hexbench.success", res.Success))
	return res
}

// Abort requests cancellation of the in-flight backend. Aborting when
// nothing runs is acknowledged, not an error.
func (c *Coordinator) Abort() AbortAck {
	c.mu.Lock()
	backend := c.backend
	running := c.running
	c.mu.Unlock()

	if !running || backend == nil {
		return AbortAck{Aborted: false, Message: "no execution is currently running"}
	}
	if err := backend.Abort(); err != nil {
		return AbortAck{Aborted: false, Message: "abort failed: " + err.Error()}
	}
	return AbortAck{Aborted: true, Message: "abort signalled"}
}

func (c *Coordinator) newBackend(kind Kind) (Backend, error) {
	switch kind {
	case KindK6:
		return newK6Backend(c.cfg, c.logger)
	default:
		return newInternalBackend(c.cfg, c.logger)
	}
}
