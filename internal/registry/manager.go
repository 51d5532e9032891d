// Package registry is the single point of admission control and lookup
// for concurrently running executions.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hexbench/hexbench/internal/config"
	"github.com/hexbench/hexbench/internal/executor"
	"github.com/hexbench/hexbench/internal/telemetry"
)

// DefaultMaxConcurrent caps how many executions may run at once.
const DefaultMaxConcurrent = 5

const (
	StateRunning   = "running"
	StateCompleted = "completed"
)

// Coordinator is the slice of the executor the registry drives. Satisfied
// by *executor.Coordinator; narrowed so tests can substitute.
type Coordinator interface {
	Execute(ctx context.Context) *executor.Result
	Abort() executor.AbortAck
}

// StartResult is the structured outcome of a Start call. A capacity
// rejection is not an execution failure; callers may retry later.
type StartResult struct {
	ExecutionID      string           `json:"execution_id,omitempty"`
	Success          bool             `json:"success"`
	CapacityExceeded bool             `json:"capacity_exceeded,omitempty"`
	Error            string           `json:"error,omitempty"`
	Result           *executor.Result `json:"result,omitempty"`
}

// AbortResult reports what an Abort call found and did.
type AbortResult struct {
	Found   bool   `json:"found"`
	Aborted bool   `json:"aborted"`
	Message string `json:"message"`
}

type handle struct {
	id      string
	coord   Coordinator
	running bool
}

// Options configure a Manager.
type Options struct {
	MaxConcurrent  int
	Logger         *zap.Logger
	Tracer         trace.Tracer
	Metrics        *telemetry.Metrics
	NewCoordinator func(cfg *config.Config) Coordinator
}

// Manager admits, tracks and aborts executions. Its lifetime is owned by
// the caller; construct one at process start and pass it around.
type Manager struct {
	mu      sync.Mutex
	active  map[string]*handle
	max     int
	logger  *zap.Logger
	metrics *telemetry.Metrics
	newCoor func(cfg *config.Config) Coordinator
}

func NewManager(opts Options) *Manager {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	newCoor := opts.NewCoordinator
	if newCoor == nil {
		logger, tracer := opts.Logger, opts.Tracer
		newCoor = func(cfg *config.Config) Coordinator {
			return executor.New(cfg, logger, tracer)
		}
	}
	return &Manager{
		active:  make(map[string]*handle),
		max:     opts.MaxConcurrent,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		newCoor: newCoor,
	}
}

// Start admits and synchronously runs one execution. The registry slot is
// released on every exit path.
func (m *Manager) Start(ctx context.Context, cfg *config.Config) *StartResult {
	m.mu.Lock()
	if len(m.active) >= m.max {
		m.mu.Unlock()
		m.metrics.Rejected()
		m.logger.Warn("execution rejected: concurrency cap reached", zap.Int("max", m.max))
		return &StartResult{
			CapacityExceeded: true,
			Error:            fmt.Sprintf("maximum concurrent executions (%d) reached", m.max),
		}
	}

	id := ulid.Make().String()
	h := &handle{id: id, coord: m.newCoor(cfg), running: true}
	m.active[id] = h
	m.mu.Unlock()

	m.metrics.Admitted()
	m.logger.Info("execution admitted", zap.String("execution_id", id))

	status := "failed"
	defer func() {
		m.remove(id)
		m.metrics.Completed(status)
	}()

	res := h.coord.Execute(ctx)

	m.mu.Lock()
	h.running = false
	m.mu.Unlock()

	if res.Success {
		status = "completed"
	}
	m.logger.Info("execution finished",
		zap.String("execution_id", id),
		zap.Bool("success", res.Success),
	)

	return &StartResult{
		ExecutionID: id,
		Success:     res.Success,
		Error:       res.Error,
		Result:      res,
	}
}

// Abort routes an abort request to the identified execution. An unknown
// id leaves registry state untouched.
func (m *Manager) Abort(id string) *AbortResult {
	m.mu.Lock()
	h, ok := m.active[id]
	m.mu.Unlock()

	if !ok {
		return &AbortResult{Found: false, Message: "execution not found"}
	}

	ack := h.coord.Abort()
	m.remove(id)
	m.logger.Info("execution aborted",
		zap.String("execution_id", id),
		zap.Bool("acknowledged", ack.Aborted),
	)
	return &AbortResult{Found: true, Aborted: ack.Aborted, Message: ack.Message}
}

// ListActive returns a point-in-time snapshot of tracked executions.
func (m *Manager) ListActive() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.active))
	for id, h := range m.active {
		state := StateCompleted
		if h.running {
			state = StateRunning
		}
		out[id] = state
	}
	return out
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}
