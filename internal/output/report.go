// Package output renders execution results for the command line.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/hexbench/hexbench/internal/executor"
)

// PrintResult outputs a human-readable summary of one execution,
// regardless of which backend produced it.
func PrintResult(w io.Writer, res *executor.Result) {
	if res == nil {
		return
	}
	if !res.Success {
		fmt.Fprintln(w, "\n--- Load Test Failed ---")
		fmt.Fprintf(w, "Backend:           %s\n", res.Backend)
		fmt.Fprintf(w, "Error:             %s\n", res.Error)
		if res.Stderr != "" {
			fmt.Fprintf(w, "Runner stderr:\n%s\n", res.Stderr)
		}
		return
	}

	if res.Report != nil {
		printReport(w, res)
		return
	}
	printSummary(w, res)
}

func printReport(w io.Writer, res *executor.Result) {
	r := res.Report
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Backend:           %s\n", res.Backend)
	fmt.Fprintf(w, "Target:            %s %s\n", r.TestConfig.Method, r.TestConfig.TargetURL)
	fmt.Fprintf(w, "Profile:           %s\n", r.TestConfig.Profile)
	fmt.Fprintf(w, "Total Requests:    %d\n", r.Metrics.TotalRequests)
	fmt.Fprintf(w, "Successful:        %d\n", r.Metrics.SuccessfulRequests)
	fmt.Fprintf(w, "Failed:            %d\n", r.Metrics.FailedRequests)
	fmt.Fprintf(w, "Error Rate:        %.2f%%\n", r.Metrics.ErrorRatePercent)
	fmt.Fprintf(w, "Duration:          %.2fs\n", r.Execution.DurationSeconds)
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", r.Metrics.ThroughputRPS)
	fmt.Fprintln(w, "\nResponse Times (ms):")
	fmt.Fprintf(w, "  Min:             %.2f\n", r.ResponseTimes.MinimumMs)
	fmt.Fprintf(w, "  Max:             %.2f\n", r.ResponseTimes.MaximumMs)
	fmt.Fprintf(w, "  Mean:            %.2f\n", r.ResponseTimes.AverageMs)
	fmt.Fprintf(w, "  P50:             %.2f\n", r.ResponseTimes.P50Ms)
	fmt.Fprintf(w, "  P95:             %.2f\n", r.ResponseTimes.P95Ms)
	fmt.Fprintf(w, "  P99:             %.2f\n", r.ResponseTimes.P99Ms)

	if len(r.StatusCodes) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		codes := make([]string, 0, len(r.StatusCodes))
		for code := range r.StatusCodes {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  %s: %d\n", code, r.StatusCodes[code])
		}
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors (%d total, showing %d):\n", r.ErrorsCount, len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
}

// printSummary renders the external runner's aggregate summary document.
func printSummary(w io.Writer, res *executor.Result) {
	fmt.Fprintln(w, "\n--- Load Test Results (external runner) ---")
	fmt.Fprintf(w, "Backend:           %s\n", res.Backend)
	if len(res.Summary) == 0 {
		fmt.Fprintln(w, "No summary artifact was produced.")
		return
	}

	summary := string(res.Summary)
	if reqs := gjson.Get(summary, "metrics.http_reqs.count"); reqs.Exists() {
		fmt.Fprintf(w, "Total Requests:    %d\n", reqs.Int())
	}
	if failed := gjson.Get(summary, "metrics.http_req_failed.value"); failed.Exists() {
		fmt.Fprintf(w, "Failure Rate:      %.2f%%\n", failed.Float()*100)
	}
	if dur := gjson.Get(summary, "metrics.http_req_duration"); dur.Exists() {
		fmt.Fprintln(w, "\nRequest Duration (ms):")
		fmt.Fprintf(w, "  Min:             %.2f\n", dur.Get("min").Float())
		fmt.Fprintf(w, "  Max:             %.2f\n", dur.Get("max").Float())
		fmt.Fprintf(w, "  Mean:            %.2f\n", dur.Get("avg").Float())
		fmt.Fprintf(w, "  P90:             %.2f\n", dur.Get(`p\(90\)`).Float())
		fmt.Fprintf(w, "  P95:             %.2f\n", dur.Get(`p\(95\)`).Float())
	}
	fmt.Fprintf(w, "\nIntervals captured: %d\n", len(res.Intervals))
}

// PrintJSONResult outputs the full result as indented JSON.
func PrintJSONResult(w io.Writer, res *executor.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
