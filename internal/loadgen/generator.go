package loadgen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hexbench/hexbench/internal/config"
	"github.com/hexbench/hexbench/internal/httpclient"
	"github.com/hexbench/hexbench/internal/metrics"
)

const (
	// Fallback pacing when no RPS cap is configured: one request per
	// 100ms across all virtual users.
	defaultMinInterval = 100 * time.Millisecond

	rateControlInterval = 100 * time.Millisecond
	progressInterval    = time.Second
	maxFailureBodyBytes = 100
)

// Generator runs one load test with in-process virtual users. The rate
// budget is issued by a single shared limiter, so the aggregate cap does
// not depend on racy per-user bookkeeping.
type Generator struct {
	cfg       *config.Config
	client    *http.Client
	builder   *httpclient.RequestBuilder
	collector *metrics.Collector
	limiter   *rate.Limiter
	plan      *ratePlan
	maxRate   float64
	logger    *zap.Logger
}

// New validates the request shape and prepares a generator. Configuration
// problems (bad method, bad headers) surface here, before any load is sent.
func New(cfg *config.Config, logger *zap.Logger) (*Generator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	builder, err := httpclient.NewRequestBuilder(cfg)
	if err != nil {
		return nil, err
	}

	maxRate := float64(cfg.MaxRPS)
	if maxRate <= 0 {
		maxRate = float64(time.Second) / float64(defaultMinInterval)
	}

	// Burst of one keeps request spacing uniform, which keeps the
	// aggregate throughput close to the configured cap.
	limiter := rate.NewLimiter(rate.Limit(maxRate), 1)

	return &Generator{
		cfg:       cfg,
		client:    httpclient.NewClient(cfg.Timeout),
		builder:   builder,
		collector: metrics.NewCollector(),
		limiter:   limiter,
		plan:      compileProfilePlan(cfg, maxRate),
		maxRate:   maxRate,
		logger:    logger,
	}, nil
}

// Collector exposes the accumulator so a supervisor can snapshot partial
// metrics from an aborted run.
func (g *Generator) Collector() *metrics.Collector {
	return g.collector
}

// Run drives the virtual users until the configured duration elapses or
// ctx is cancelled. Per-request failures never abort the run; they are
// recorded and the returned snapshot carries them.
func (g *Generator) Run(ctx context.Context) metrics.Snapshot {
	runCtx, cancel := context.WithTimeout(ctx, g.cfg.Duration)
	defer cancel()

	g.logger.Info("starting load generation",
		zap.Int("users", g.cfg.ConcurrentUsers),
		zap.Duration("duration", g.cfg.Duration),
		zap.Float64("max_rps", g.maxRate),
		zap.String("profile", string(g.cfg.ProfileOrDefault())),
	)

	if g.plan != nil {
		go g.runRateController(runCtx)
	}
	go g.runProgressLogger(runCtx)

	var wg sync.WaitGroup
	wg.Add(g.cfg.ConcurrentUsers)
	for i := 0; i < g.cfg.ConcurrentUsers; i++ {
		go func() {
			defer wg.Done()
			g.userLoop(runCtx)
		}()
	}
	wg.Wait()

	g.collector.Finish()
	snap := g.collector.Snapshot()
	g.logger.Info("load generation finished",
		zap.Int64("total", snap.Total),
		zap.Int64("failed", snap.Failures),
	)
	return snap
}

// userLoop is one virtual user: wait for rate budget, issue a request,
// record the outcome, until the run context ends.
func (g *Generator) userLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return
		}
		g.doRequest(ctx)
	}
}

func (g *Generator) doRequest(ctx context.Context) {
	start := time.Now()

	req, err := g.builder.Build(ctx)
	if err != nil {
		g.collector.Record(metrics.Outcome{
			Latency: time.Since(start),
			Failure: fmt.Sprintf("build request: %v", err),
		})
		return
	}

	resp, err := g.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		// The run ending mid-flight is not a target failure.
		if ctx.Err() != nil {
			return
		}
		g.collector.Record(metrics.Outcome{
			Latency: latency,
			Failure: fmt.Sprintf("request error: %v", err),
		})
		return
	}

	outcome := metrics.Outcome{StatusCode: resp.StatusCode, Latency: latency}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxFailureBodyBytes))
		outcome.Failure = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, snippet)
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	g.collector.Record(outcome)
}

// runRateController re-tunes the shared limiter as the profile plan
// progresses through its segments.
func (g *Generator) runRateController(ctx context.Context) {
	start := time.Now()
	if initial, ok := g.plan.rateAt(0); ok {
		g.setRate(initial)
	}

	ticker := time.NewTicker(rateControlInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rps, ok := g.plan.rateAt(time.Since(start))
			if !ok {
				return
			}
			g.setRate(rps)
		}
	}
}

func (g *Generator) setRate(rps float64) {
	if rps <= 0 {
		// A zero segment still trickles; a fully closed valve would
		// park every user until the next segment.
		rps = 1
	}
	g.limiter.SetLimit(rate.Limit(rps))
}

func (g *Generator) runProgressLogger(ctx context.Context) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			live := g.collector.Live()
			g.logger.Debug("progress",
				zap.Int64("total", live.Total),
				zap.Int64("failed", live.Failures),
				zap.Float64("rps", live.RequestsPerSec),
				zap.Duration("p50", live.P50Latency),
				zap.Duration("p99", live.P99Latency),
			)
		}
	}
}
