// Package metrics accumulates per-request outcomes for a single load-test
// execution and derives the final report. A Collector is owned by exactly
// one execution; all mutation goes through a mutex because virtual users
// run on separate goroutines.
package metrics
