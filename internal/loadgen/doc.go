// Package loadgen drives one load test entirely in-process: concurrent
// virtual users share a single rate budget, issue requests against the
// target, and record per-request outcomes until the configured duration
// elapses or the run is cancelled.
package loadgen
