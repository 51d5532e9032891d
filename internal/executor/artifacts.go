package executor

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// parseArtifacts reads the runner's two output files best-effort: a
// missing or malformed artifact is logged and its section simply omitted,
// because the external run already succeeded from the process's
// perspective.
func parseArtifacts(workDir string, logger *zap.Logger) (json.RawMessage, []json.RawMessage) {
	summary := parseSummary(filepath.Join(workDir, summaryArtifact), logger)
	intervals := parseIntervals(filepath.Join(workDir, intervalsArtifact), logger)
	return summary, intervals
}

// parseSummary loads the aggregate summary document (one JSON object).
func parseSummary(path string, logger *zap.Logger) json.RawMessage {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("summary artifact unavailable", zap.String("path", path), zap.Error(err))
		return nil
	}
	if !gjson.ValidBytes(data) {
		logger.Warn("summary artifact is not valid JSON", zap.String("path", path))
		return nil
	}

	if reqs := gjson.GetBytes(data, "metrics.http_reqs.count"); reqs.Exists() {
		logger.Info("external runner summary",
			zap.Int64("http_reqs", reqs.Int()),
			zap.Float64("p95_ms", gjson.GetBytes(data, `metrics.http_req_duration.p\(95\)`).Float()),
		)
	}
	return json.RawMessage(data)
}

// parseIntervals loads the newline-delimited interval stream, skipping
// lines that do not parse.
func parseIntervals(path string, logger *zap.Logger) []json.RawMessage {
	file, err := os.Open(path)
	if err != nil {
		logger.Warn("interval artifact unavailable", zap.String("path", path), zap.Error(err))
		return nil
	}
	defer file.Close()

	var intervals []json.RawMessage
	var skipped int

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			skipped++
			continue
		}
		intervals = append(intervals, json.RawMessage(append([]byte(nil), line...)))
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("interval artifact truncated", zap.String("path", path), zap.Error(err))
	}
	if skipped > 0 {
		logger.Warn("skipped malformed interval lines", zap.Int("skipped", skipped))
	}
	return intervals
}
