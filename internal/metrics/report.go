package metrics

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/hexbench/hexbench/internal/config"
)

// ErrNoData is returned when a report is requested for a run that
// completed zero requests.
var ErrNoData = errors.New("no requests completed")

const maxReportedErrors = 10

// Report is the read-only result record handed back to callers.
type Report struct {
	TestConfig    ReportConfig     `json:"test_config"`
	Execution     ReportExecution  `json:"execution"`
	Metrics       ReportMetrics    `json:"metrics"`
	ResponseTimes ResponseTimes    `json:"response_times"`
	StatusCodes   map[string]int64 `json:"status_codes"`
	Errors        []string         `json:"errors"`
	ErrorsCount   int64            `json:"errors_count"`
}

// ReportConfig echoes the load parameters the test ran with.
type ReportConfig struct {
	TargetURL       string `json:"target_url"`
	Method          string `json:"method"`
	ConcurrentUsers int    `json:"concurrent_users"`
	DurationSeconds int    `json:"duration"`
	MaxRPS          int    `json:"max_rps"`
	Profile         string `json:"profile"`
}

type ReportExecution struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
}

type ReportMetrics struct {
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests"`
	ErrorRatePercent   float64 `json:"error_rate_percent"`
	ThroughputRPS      float64 `json:"throughput_rps"`
}

type ResponseTimes struct {
	AverageMs float64 `json:"average_ms"`
	MinimumMs float64 `json:"minimum_ms"`
	MaximumMs float64 `json:"maximum_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P95Ms     float64 `json:"p95_ms"`
	P99Ms     float64 `json:"p99_ms"`
}

// BuildReport derives the final report from a snapshot. It fails with
// ErrNoData when the run completed no requests at all.
func BuildReport(cfg *config.Config, snap Snapshot) (*Report, error) {
	if snap.Total == 0 || len(snap.Latencies) == 0 {
		return nil, ErrNoData
	}

	sorted := append([]float64(nil), snap.Latencies...)
	sort.Float64s(sorted)

	var sum float64
	for _, ms := range sorted {
		sum += ms
	}
	avg := sum / float64(len(sorted))

	elapsed := snap.End.Sub(snap.Start).Seconds()
	throughput := 0.0
	if elapsed > 0 {
		throughput = float64(snap.Total) / elapsed
	}
	errorRate := float64(snap.Failures) / float64(snap.Total) * 100

	codes := make(map[string]int64, len(snap.StatusCodes))
	for code, count := range snap.StatusCodes {
		codes[strconv.Itoa(code)] = count
	}

	reported := snap.Errors
	if len(reported) > maxReportedErrors {
		reported = reported[:maxReportedErrors]
	}

	report := &Report{
		TestConfig: ReportConfig{
			TargetURL:       cfg.TargetURL,
			Method:          cfg.Method,
			ConcurrentUsers: cfg.ConcurrentUsers,
			DurationSeconds: int(cfg.Duration / time.Second),
			MaxRPS:          cfg.MaxRPS,
			Profile:         string(cfg.ProfileOrDefault()),
		},
		Execution: ReportExecution{
			StartTime:       snap.Start,
			EndTime:         snap.End,
			DurationSeconds: round2(elapsed),
		},
		Metrics: ReportMetrics{
			TotalRequests:      snap.Total,
			SuccessfulRequests: snap.Successes,
			FailedRequests:     snap.Failures,
			ErrorRatePercent:   round2(errorRate),
			ThroughputRPS:      round2(throughput),
		},
		ResponseTimes: ResponseTimes{
			AverageMs: round2(avg),
			MinimumMs: round2(sorted[0]),
			MaximumMs: round2(sorted[len(sorted)-1]),
			P50Ms:     round2(percentile(sorted, 0.50)),
			P95Ms:     round2(percentile(sorted, 0.95)),
			P99Ms:     round2(percentile(sorted, 0.99)),
		},
		StatusCodes: codes,
		Errors:      append([]string(nil), reported...),
		ErrorsCount: snap.ErrorsTotal,
	}
	return report, nil
}

// percentile selects by nearest rank: sorted[floor(p*n)], clamped to the
// last element.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
