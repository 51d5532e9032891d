package loadgen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hexbench/hexbench/internal/config"
)

func testConfig(url string) *config.Config {
	return &config.Config{
		TargetURL:       url,
		Method:          "GET",
		ConcurrentUsers: 5,
		Duration:        2 * time.Second,
		MaxRPS:          10,
		Timeout:         5 * time.Second,
	}
}

func TestRunAllSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	gen, err := New(testConfig(server.URL+"/health"), zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	snap := gen.Run(context.Background())

	if snap.Total == 0 {
		t.Fatal("expected requests to be issued")
	}
	if snap.Failures != 0 {
		t.Fatalf("expected no failures, got %d (%v)", snap.Failures, snap.Errors)
	}
	if snap.Total != snap.Successes+snap.Failures {
		t.Fatal("count invariant broken")
	}

	elapsed := snap.End.Sub(snap.Start).Seconds()
	throughput := float64(snap.Total) / elapsed
	// Best-effort cap: allow modest overshoot.
	if throughput > 10*1.2 {
		t.Fatalf("throughput %.2f exceeds configured cap", throughput)
	}
}

func TestRunAllServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Duration = time.Second
	gen, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	snap := gen.Run(context.Background())

	if snap.Total == 0 {
		t.Fatal("expected requests to be issued")
	}
	if snap.Successes != 0 {
		t.Fatalf("expected zero successes, got %d", snap.Successes)
	}
	if snap.StatusCodes[500] != snap.Total {
		t.Fatalf("all requests should be 500s: %v vs total %d", snap.StatusCodes, snap.Total)
	}
	if len(snap.Errors) == 0 {
		t.Fatal("expected captured error messages")
	}
}

func TestRunTransportFailuresAreNotStatusCoded(t *testing.T) {
	// Nothing listens on this port.
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Duration = 500 * time.Millisecond
	cfg.ConcurrentUsers = 2
	cfg.Timeout = 200 * time.Millisecond

	gen, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	snap := gen.Run(context.Background())
	if snap.Total == 0 {
		t.Fatal("expected attempts to be recorded")
	}
	if snap.Successes != 0 {
		t.Fatalf("expected no successes, got %d", snap.Successes)
	}
	if len(snap.StatusCodes) != 0 {
		t.Fatalf("transport failures must not be status-coded: %v", snap.StatusCodes)
	}
}

func TestRunCancellationStopsPromptly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Duration = time.Minute
	cfg.MaxRPS = 50
	gen, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		gen.Run(ctx)
		close(done)
	}()

	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}

	// Partial metrics are still retrievable after an abort.
	snap := gen.Collector().Snapshot()
	if snap.Total == 0 {
		t.Fatal("expected partial metrics from aborted run")
	}
}

func TestNewRejectsUnsupportedMethod(t *testing.T) {
	cfg := testConfig("http://example.com")
	cfg.Method = "BREW"
	if _, err := New(cfg, zap.NewNop()); err == nil {
		t.Fatal("expected configuration error for unsupported method")
	}
}

func TestRunSendsBearerToken(t *testing.T) {
	seen := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case seen <- r.Header.Get("Authorization"):
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Duration = 500 * time.Millisecond
	cfg.AuthToken = "tok-1"
	gen, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	gen.Run(context.Background())

	select {
	case auth := <-seen:
		if auth != "Bearer tok-1" {
			t.Fatalf("authorization = %q", auth)
		}
	default:
		t.Fatal("no request observed")
	}
}
