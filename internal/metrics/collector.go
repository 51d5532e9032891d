package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	maxRecordedErrors = 100
	maxErrorLength    = 200
)

// Outcome is the result of one completed request attempt.
// StatusCode is zero for transport-level failures.
type Outcome struct {
	StatusCode int
	Latency    time.Duration
	Failure    string
}

// Success reports whether the request counts as successful.
func (o Outcome) Success() bool {
	return o.Failure == ""
}

// Collector records per-request metrics in a thread-safe manner.
type Collector struct {
	mu          sync.Mutex
	hist        *hdrhistogram.Histogram
	successes   int64
	failures    int64
	latencies   []float64
	statusCodes map[int]int64
	errors      []string
	errorsTotal int64
	start       time.Time
	end         time.Time
}

// Snapshot is a frozen copy of a Collector's state.
type Snapshot struct {
	Total       int64
	Successes   int64
	Failures    int64
	Latencies   []float64 // milliseconds, completion order
	StatusCodes map[int]int64
	Errors      []string
	ErrorsTotal int64
	Start       time.Time
	End         time.Time
}

// LiveStats is a cheap interval view used for progress reporting while a
// run is still in flight.
type LiveStats struct {
	Total          int64
	Failures       int64
	RequestsPerSec float64
	P50Latency     time.Duration
	P99Latency     time.Duration
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		hist:        h,
		statusCodes: make(map[int]int64),
		start:       time.Now(),
	}
}

// Record folds one request outcome into the accumulator.
func (c *Collector) Record(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms := float64(o.Latency) / float64(time.Millisecond)
	c.latencies = append(c.latencies, ms)

	if o.Latency > 0 {
		us := o.Latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}

	if o.StatusCode > 0 {
		c.statusCodes[o.StatusCode]++
	}

	if o.Success() {
		c.successes++
		return
	}

	c.failures++
	c.errorsTotal++
	if len(c.errors) < maxRecordedErrors {
		c.errors = append(c.errors, truncateError(o.Failure))
	}
}

// Finish stamps the end of the run. Later Record calls are still accepted
// for requests that were already in flight.
func (c *Collector) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.end = time.Now()
}

// Snapshot returns a copy of the accumulated state. If the run has not
// been finished yet, End is the snapshot time, so partial results from an
// aborted execution remain usable.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	end := c.end
	if end.IsZero() {
		end = time.Now()
	}

	codes := make(map[int]int64, len(c.statusCodes))
	for code, count := range c.statusCodes {
		codes[code] = count
	}

	return Snapshot{
		Total:       c.successes + c.failures,
		Successes:   c.successes,
		Failures:    c.failures,
		Latencies:   append([]float64(nil), c.latencies...),
		StatusCodes: codes,
		Errors:      append([]string(nil), c.errors...),
		ErrorsTotal: c.errorsTotal,
		Start:       c.start,
		End:         end,
	}
}

// Live computes interval statistics from the histogram without copying the
// latency sequence.
func (c *Collector) Live() LiveStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := LiveStats{Total: total, Failures: c.failures}

	elapsed := time.Since(c.start)
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}
	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}
	return stats
}

func truncateError(msg string) string {
	if len(msg) > maxErrorLength {
		return msg[:maxErrorLength]
	}
	return msg
}
