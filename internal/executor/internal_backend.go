package executor

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/hexbench/hexbench/internal/config"
	"github.com/hexbench/hexbench/internal/loadgen"
	"github.com/hexbench/hexbench/internal/metrics"
)

// internalBackend wraps the in-process load generator behind the Backend
// interface. Cancellation is cooperative: aborting cancels the run
// context and the virtual-user loops notice on their next iteration.
type internalBackend struct {
	cfg    *config.Config
	gen    *loadgen.Generator
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newInternalBackend(cfg *config.Config, logger *zap.Logger) (Backend, error) {
	gen, err := loadgen.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &internalBackend{cfg: cfg, gen: gen, logger: logger}, nil
}

func (b *internalBackend) Kind() Kind {
	return KindInternal
}

func (b *internalBackend) Run(ctx context.Context) (*Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
	defer cancel()

	snap := b.gen.Run(runCtx)

	report, err := metrics.BuildReport(b.cfg, snap)
	if err != nil {
		if errors.Is(err, metrics.ErrNoData) {
			return &Result{Backend: KindInternal, Error: err.Error()}, nil
		}
		return nil, err
	}

	return &Result{Success: true, Backend: KindInternal, Report: report}, nil
}

func (b *internalBackend) Abort() error {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// PartialSnapshot exposes whatever metrics were collected so far, so an
// aborted run still yields data.
func (b *internalBackend) PartialSnapshot() metrics.Snapshot {
	return b.gen.Collector().Snapshot()
}
