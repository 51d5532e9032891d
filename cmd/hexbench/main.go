package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hexbench/hexbench/internal/config"
	"github.com/hexbench/hexbench/internal/output"
	"github.com/hexbench/hexbench/internal/registry"
	"github.com/hexbench/hexbench/internal/telemetry"
	"github.com/hexbench/hexbench/internal/tracing"
)

const shutdownGrace = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	traceProvider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownGrace)
		defer done()
		if err := traceProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	var engineMetrics *telemetry.Metrics
	if cfg.MetricsAddr != "" {
		engineMetrics = telemetry.New(prometheus.DefaultRegisterer)
		server := serveMetrics(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownGrace)
			defer done()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	mgr := registry.NewManager(registry.Options{
		Logger:  logger,
		Tracer:  traceProvider.Tracer(),
		Metrics: engineMetrics,
	})

	res := mgr.Start(ctx, cfg)
	if res.CapacityExceeded {
		return errors.New(res.Error)
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONResult(os.Stdout, res.Result); err != nil {
			return err
		}
	} else {
		output.PrintResult(os.Stdout, res.Result)
	}

	if !res.Success {
		return fmt.Errorf("load test failed: %s", res.Error)
	}
	return nil
}

// newLogger writes structured logs to stderr so stdout stays clean for
// report output.
func newLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func serveMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return server
}
