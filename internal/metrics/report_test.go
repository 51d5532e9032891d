package metrics

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hexbench/hexbench/internal/config"
)

func reportConfig() *config.Config {
	return &config.Config{
		TargetURL:       "http://localhost/health",
		Method:          "GET",
		ConcurrentUsers: 5,
		Duration:        2 * time.Second,
		MaxRPS:          10,
	}
}

func TestBuildReportNoData(t *testing.T) {
	snap := Snapshot{Start: time.Now(), End: time.Now()}
	if _, err := BuildReport(reportConfig(), snap); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestBuildReportPercentileOrdering(t *testing.T) {
	c := NewCollector()
	for i := 1; i <= 1000; i++ {
		c.Record(Outcome{StatusCode: 200, Latency: time.Duration(i) * time.Millisecond})
	}
	c.Finish()

	report, err := BuildReport(reportConfig(), c.Snapshot())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	rt := report.ResponseTimes
	if !(rt.P50Ms <= rt.P95Ms && rt.P95Ms <= rt.P99Ms && rt.P99Ms <= rt.MaximumMs) {
		t.Fatalf("percentile ordering broken: %+v", rt)
	}
	if !(rt.MinimumMs <= rt.AverageMs && rt.AverageMs <= rt.MaximumMs) {
		t.Fatalf("average outside min/max: %+v", rt)
	}
}

func TestBuildReportNearestRank(t *testing.T) {
	snap := Snapshot{
		Total:     4,
		Successes: 4,
		Latencies: []float64{40, 10, 30, 20},
		Start:     time.Now().Add(-time.Second),
		End:       time.Now(),
	}
	report, err := BuildReport(reportConfig(), snap)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	// sorted = [10 20 30 40]; p50 index = floor(0.5*4) = 2 -> 30
	if report.ResponseTimes.P50Ms != 30 {
		t.Fatalf("p50 = %v, want 30", report.ResponseTimes.P50Ms)
	}
	// p99 index = floor(0.99*4) = 3 -> 40
	if report.ResponseTimes.P99Ms != 40 {
		t.Fatalf("p99 = %v, want 40", report.ResponseTimes.P99Ms)
	}
}

func TestBuildReportMetricsAndStatusCodes(t *testing.T) {
	c := NewCollector()
	for i := 0; i < 90; i++ {
		c.Record(Outcome{StatusCode: 200, Latency: 5 * time.Millisecond})
	}
	for i := 0; i < 10; i++ {
		c.Record(Outcome{StatusCode: 500, Latency: 5 * time.Millisecond, Failure: "HTTP 500: oops"})
	}
	c.Finish()

	report, err := BuildReport(reportConfig(), c.Snapshot())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	m := report.Metrics
	if m.TotalRequests != 100 || m.SuccessfulRequests != 90 || m.FailedRequests != 10 {
		t.Fatalf("unexpected counts: %+v", m)
	}
	if m.ErrorRatePercent != 10 {
		t.Fatalf("error rate = %v, want 10", m.ErrorRatePercent)
	}
	if report.StatusCodes["200"] != 90 || report.StatusCodes["500"] != 10 {
		t.Fatalf("status codes: %v", report.StatusCodes)
	}
	if len(report.Errors) > maxReportedErrors {
		t.Fatalf("reported errors not capped: %d", len(report.Errors))
	}
	if report.ErrorsCount != 10 {
		t.Fatalf("errors count = %d", report.ErrorsCount)
	}
}

func TestReportJSONShape(t *testing.T) {
	c := NewCollector()
	c.Record(Outcome{StatusCode: 200, Latency: 3 * time.Millisecond})
	c.Finish()

	report, err := BuildReport(reportConfig(), c.Snapshot())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"test_config", "execution", "metrics", "response_times", "status_codes", "errors", "errors_count"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}
}

func TestPercentileEmptyInput(t *testing.T) {
	if got := percentile(nil, 0.5); got != 0 {
		t.Fatalf("percentile(nil) = %v", got)
	}
}
